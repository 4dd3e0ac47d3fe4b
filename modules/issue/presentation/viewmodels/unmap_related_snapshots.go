package viewmodels

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/pagination"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

// UnmapRelatedSnapshots backs the modal that lists the snapshots mapped to
// both an issue and its target before the issue is unmapped.
type UnmapRelatedSnapshots struct {
	*unmapWorkflow

	relatedAudit     *instance.Instance
	relatedSnapshots []*instance.Instance
}

func NewUnmapRelatedSnapshots(deps Deps, issue, target *instance.Instance) *UnmapRelatedSnapshots {
	vm := &UnmapRelatedSnapshots{}
	vm.unmapWorkflow = newUnmapWorkflow(deps, "issue.unmap_related_snapshots", issue, target)
	vm.reload = vm.LoadRelatedObjects
	return vm
}

func (vm *UnmapRelatedSnapshots) RelatedAudit() *instance.Instance {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.relatedAudit
}

func (vm *UnmapRelatedSnapshots) RelatedSnapshots() []*instance.Instance {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]*instance.Instance(nil), vm.relatedSnapshots...)
}

// LoadRelatedObjects fetches the current page of related snapshots and the
// target's audit concurrently. Either failing flashes the load error and keeps
// the previously loaded data. A load started later supersedes this one, which
// then returns ErrSuperseded.
func (vm *UnmapRelatedSnapshots) LoadRelatedObjects(ctx context.Context) error {
	ctx, gen := vm.beginLoad(ctx)
	defer vm.endLoad(gen)

	var (
		snapshots []*instance.Instance
		total     int
		audit     *instance.Instance
	)
	query := vm.buildQuery(instance.TypeSnapshot)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := vm.deps.Query.MakeRequest(gctx, queryapi.Request{Data: []queryapi.Query{query}})
		if err != nil {
			return err
		}
		res, ok := resp.Result(0, instance.TypeSnapshot)
		if !ok {
			return errors.New("snapshot result missing from response")
		}
		values, err := queryapi.DecodeValues[*instance.Instance](res)
		if err != nil {
			return err
		}
		snapshots, total = values, res.Total
		return nil
	})
	g.Go(func() error {
		a, err := vm.loadRelatedAudit(gctx)
		if err != nil {
			return errors.Wrap(err, "load audit")
		}
		audit = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return vm.failLoad(gen, err)
	}

	title := vm.modalTitle(total + 1)
	if !vm.commit(gen, total, func() {
		vm.relatedAudit = audit
		vm.relatedSnapshots = snapshots
		vm.modal.Title = title
	}) {
		vm.log.Debug("discarding result of superseded load")
		return ErrSuperseded
	}
	return nil
}

// loadRelatedAudit reifies the target's audit and refreshes it from the server
// only when the cached copy was never loaded.
func (vm *UnmapRelatedSnapshots) loadRelatedAudit(ctx context.Context) (*instance.Instance, error) {
	if vm.target.Audit == nil {
		return nil, nil
	}
	audit := vm.deps.Store.Reify(ctx, *vm.target.Audit)
	if audit.Title != "" {
		return audit, nil
	}
	return vm.deps.Store.Refresh(ctx, audit)
}

// OpenObject returns the page URL of a related object. Snapshots open the
// object they were taken of.
func (vm *UnmapRelatedSnapshots) OpenObject(obj *instance.Instance) (string, error) {
	if obj == nil || obj.Type == "" {
		return "", errors.New("related object has no type")
	}
	url := obj.URL()
	vm.log.WithField("url", url).Debug("open related object")
	return url, nil
}

type UnmapRelatedSnapshotsState struct {
	IssueID          int64                `json:"issueId"`
	TargetID         int64                `json:"targetId"`
	TargetType       string               `json:"targetType"`
	IsLoading        bool                 `json:"isLoading"`
	Modal            ModalState           `json:"modalState"`
	RelatedAudit     *instance.Instance   `json:"relatedAudit,omitempty"`
	RelatedSnapshots []*instance.Instance `json:"relatedSnapshots"`
	Paging           pagination.State     `json:"paging"`
}

func (vm *UnmapRelatedSnapshots) State() UnmapRelatedSnapshotsState {
	vm.mu.RLock()
	st := UnmapRelatedSnapshotsState{
		IssueID:          vm.issue.ID,
		TargetID:         vm.target.ID,
		TargetType:       vm.target.Type,
		IsLoading:        vm.loading || vm.unmapping,
		Modal:            vm.modal,
		RelatedAudit:     vm.relatedAudit,
		RelatedSnapshots: append([]*instance.Instance{}, vm.relatedSnapshots...),
	}
	vm.mu.RUnlock()
	st.Paging = vm.paging.State()
	return st
}
