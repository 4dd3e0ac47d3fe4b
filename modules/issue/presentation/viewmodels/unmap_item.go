package viewmodels

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/pagination"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

// UnmapItem backs the "unmap" action of an issue row. Issues mapped to an
// assessment go through the related snapshots modal unless the issue allows
// unmapping from the audit.
type UnmapItem struct {
	*unmapWorkflow

	total            int
	relatedSnapshots []*instance.Instance
}

func NewUnmapItem(deps Deps, issue, target *instance.Instance) *UnmapItem {
	vm := &UnmapItem{}
	vm.unmapWorkflow = newUnmapWorkflow(deps, "issue.unmap_item", issue, target)
	vm.reload = vm.LoadRelatedObjects
	return vm
}

// Total counts the related snapshots and audits.
func (vm *UnmapItem) Total() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.total
}

func (vm *UnmapItem) RelatedSnapshots() []*instance.Instance {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]*instance.Instance(nil), vm.relatedSnapshots...)
}

// LoadRelatedObjects asks for the related snapshots and audits in one request.
// It returns ErrSuperseded when a newer load replaced it.
func (vm *UnmapItem) LoadRelatedObjects(ctx context.Context) error {
	_, err := vm.load(ctx)
	return err
}

// load returns the related total of its own response. When a newer load has
// started meanwhile, that total is still returned but not stored, together
// with ErrSuperseded.
func (vm *UnmapItem) load(ctx context.Context) (int, error) {
	ctx, gen := vm.beginLoad(ctx)
	defer vm.endLoad(gen)

	resp, err := vm.deps.Query.MakeRequest(ctx, queryapi.Request{Data: []queryapi.Query{
		vm.buildQuery(instance.TypeSnapshot),
		vm.buildQuery(instance.TypeAudit),
	}})
	if err != nil {
		return 0, vm.failLoad(gen, err)
	}
	snapshots, ok := resp.Result(0, instance.TypeSnapshot)
	if !ok {
		return 0, vm.failLoad(gen, errors.New("snapshot result missing from response"))
	}
	audits, ok := resp.Result(1, instance.TypeAudit)
	if !ok {
		return 0, vm.failLoad(gen, errors.New("audit result missing from response"))
	}
	values, err := queryapi.DecodeValues[*instance.Instance](snapshots)
	if err != nil {
		return 0, vm.failLoad(gen, err)
	}

	total := snapshots.Total + audits.Total
	if !vm.commit(gen, snapshots.Total, func() {
		vm.total = total
		vm.relatedSnapshots = values
	}) {
		return total, ErrSuperseded
	}
	return total, nil
}

// ProcessRelatedSnapshots loads the related objects and opens the modal when
// there are any; otherwise the issue is unmapped right away. The decision is
// made on this call's own response: a superseded load can still show the
// modal, but it never unmaps.
func (vm *UnmapItem) ProcessRelatedSnapshots(ctx context.Context) error {
	total, err := vm.load(ctx)
	superseded := errors.Is(err, ErrSuperseded)
	if err != nil && !superseded {
		return err
	}
	if total > 0 {
		vm.showModal(total)
		return nil
	}
	if superseded {
		vm.log.Debug("related objects load superseded, not unmapping")
		return err
	}
	return vm.Unmap(ctx)
}

// ShowModal titles the modal after the loaded total and opens it without
// loading again.
func (vm *UnmapItem) ShowModal() {
	vm.showModal(vm.Total())
}

func (vm *UnmapItem) showModal(total int) {
	vm.setTitle(vm.modalTitle(total))
	vm.setModalOpen(true)
}

// Click handles the unmap button.
func (vm *UnmapItem) Click(ctx context.Context) error {
	if vm.target.Type == instance.TypeAssessment && !vm.issue.AllowUnmapFromAudit {
		return vm.ProcessRelatedSnapshots(ctx)
	}
	if vm.deps.Events != nil {
		vm.deps.Events.Publish(&UnmapIssue{Issue: vm.issue, Target: vm.target})
	}
	return nil
}

type UnmapItemState struct {
	IssueID          int64                `json:"issueId"`
	TargetID         int64                `json:"targetId"`
	TargetType       string               `json:"targetType"`
	IsLoading        bool                 `json:"isLoading"`
	Total            int                  `json:"total"`
	Modal            ModalState           `json:"modalState"`
	RelatedSnapshots []*instance.Instance `json:"relatedSnapshots"`
	Paging           pagination.State     `json:"paging"`
}

func (vm *UnmapItem) State() UnmapItemState {
	vm.mu.RLock()
	st := UnmapItemState{
		IssueID:          vm.issue.ID,
		TargetID:         vm.target.ID,
		TargetType:       vm.target.Type,
		IsLoading:        vm.loading || vm.unmapping,
		Total:            vm.total,
		Modal:            vm.modal,
		RelatedSnapshots: append([]*instance.Instance{}, vm.relatedSnapshots...),
	}
	vm.mu.RUnlock()
	st.Paging = vm.paging.State()
	return st
}
