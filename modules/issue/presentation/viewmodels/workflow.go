package viewmodels

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/modules/issue/presentation/locales"
	"github.com/jacksonlee411/grc-console/pkg/flash"
	"github.com/jacksonlee411/grc-console/pkg/intl"
	"github.com/jacksonlee411/grc-console/pkg/pagination"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

var UnmapPageSizeSelect = []int{5, 10, 15}

const (
	modalTitleID = "Issue.Unmap.ModalTitle"

	LoadRelatedError  = "loadRelated"
	UnmapRelatedError = "unmapRelated"
)

var errorMessages = map[string]*i18n.Message{
	LoadRelatedError: {
		ID:    "Issue.Unmap.Errors.LoadRelated",
		Other: "There was a problem with retrieving related objects.",
	},
	UnmapRelatedError: {
		ID:    "Issue.Unmap.Errors.Unmap",
		Other: "There was a problem with unmapping.",
	},
}

var (
	ErrLoadRelated  = serrors.NewError("ISSUE_LOAD_RELATED", "loading related objects failed", "Issue.Unmap.Errors.LoadRelated")
	ErrUnmapRelated = serrors.NewError("ISSUE_UNMAP_RELATED", "unmapping failed", "Issue.Unmap.Errors.Unmap")
	// ErrSuperseded is returned by a load whose result was discarded because a
	// newer load started before it finished.
	ErrSuperseded = serrors.NewError("ISSUE_LOAD_SUPERSEDED", "load superseded by a newer one", "")
)

// unmapWorkflow is the state both unmap view-models share: the issue and its
// target, paging, the modal and the busy flag, plus the unmap action itself.
type unmapWorkflow struct {
	deps   Deps
	log    *logrus.Entry
	issue  *instance.Instance
	target *instance.Instance
	paging *pagination.Pagination
	reload func(ctx context.Context) error

	mu         sync.RWMutex
	modal      ModalState
	loading    bool
	unmapping  bool
	generation uint64
	cancelLoad context.CancelFunc

	// commitMu orders the commit of a load result with the paging total update.
	commitMu sync.Mutex
	// pageMu serializes page changes with the reloads they cause.
	pageMu sync.Mutex
}

func newUnmapWorkflow(deps Deps, component string, issue, target *instance.Instance) *unmapWorkflow {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if deps.Localizer == nil {
		deps.Localizer = locales.Localizer()
	}
	opts := deps.Paging
	if len(opts.PageSizeSelect) == 0 {
		opts.PageSizeSelect = UnmapPageSizeSelect
	}
	w := &unmapWorkflow{
		deps:   deps,
		log:    logger.WithField("component", component),
		issue:  issue,
		target: target,
		paging: pagination.New(opts),
		modal:  ModalState{Title: "Unmapping"},
	}
	w.paging.OnChangeContext(w.onPagingChange)
	return w
}

func (w *unmapWorkflow) Issue() *instance.Instance  { return w.issue }
func (w *unmapWorkflow) Target() *instance.Instance { return w.target }

func (w *unmapWorkflow) Paging() *pagination.Pagination {
	return w.paging
}

// IsLoading reports whether a load or an unmap is in flight.
func (w *unmapWorkflow) IsLoading() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loading || w.unmapping
}

func (w *unmapWorkflow) ModalState() ModalState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.modal
}

func (w *unmapWorkflow) ModalTitle() string {
	return w.ModalState().Title
}

// ShowRelatedSnapshots mirrors the modal's open flag.
func (w *unmapWorkflow) ShowRelatedSnapshots() bool {
	return w.ModalState().Open
}

// SetShowRelatedSnapshots opens or closes the modal. Opening always loads the
// related objects; closing an open modal publishes ModalClosed.
func (w *unmapWorkflow) SetShowRelatedSnapshots(ctx context.Context, open bool) error {
	w.setModalOpen(open)
	if open {
		return w.reload(ctx)
	}
	return nil
}

func (w *unmapWorkflow) setModalOpen(open bool) {
	w.mu.Lock()
	wasOpen := w.modal.Open
	w.modal.Open = open
	w.mu.Unlock()

	if wasOpen && !open && w.deps.Events != nil {
		w.deps.Events.Publish(&ModalClosed{Issue: w.issue, Target: w.target})
	}
}

func (w *unmapWorkflow) setTitle(title string) {
	w.mu.Lock()
	w.modal.Title = title
	w.mu.Unlock()
}

// SetCurrentPage moves to page n and returns the error of the reload it causes.
func (w *unmapWorkflow) SetCurrentPage(ctx context.Context, n int) error {
	w.pageMu.Lock()
	defer w.pageMu.Unlock()
	return w.paging.SetCurrentContext(ctx, n)
}

// SetPageSize changes the page size and returns the error of the reload it causes.
func (w *unmapWorkflow) SetPageSize(ctx context.Context, size int) error {
	w.pageMu.Lock()
	defer w.pageMu.Unlock()
	return w.paging.SetPageSizeContext(ctx, size)
}

// onPagingChange reloads under the context of whoever changed the page. A
// reload overtaken by a newer one is not a failure of the page change.
func (w *unmapWorkflow) onPagingChange(ctx context.Context, field string) error {
	if field != pagination.FieldCurrent && field != pagination.FieldPageSize {
		return nil
	}
	err := w.reload(ctx)
	if errors.Is(err, ErrSuperseded) {
		return nil
	}
	if err != nil {
		w.log.WithError(err).WithField("field", field).Warn("reload after paging change failed")
	}
	return err
}

// beginLoad starts a new load generation. The previous in-flight load, if any,
// is cancelled and its result will be discarded.
func (w *unmapWorkflow) beginLoad(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelLoad != nil {
		w.cancelLoad()
	}
	w.generation++
	w.cancelLoad = cancel
	w.loading = true
	return ctx, w.generation
}

// endLoad clears the busy flag, but only for the latest load.
func (w *unmapWorkflow) endLoad(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		return
	}
	if w.cancelLoad != nil {
		w.cancelLoad()
		w.cancelLoad = nil
	}
	w.loading = false
}

func (w *unmapWorkflow) isCurrent(gen uint64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return gen == w.generation
}

// commit applies a load result unless a newer load has started since. apply
// runs with the state lock held.
func (w *unmapWorkflow) commit(gen uint64, total int, apply func()) bool {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return false
	}
	apply()
	w.mu.Unlock()

	w.paging.SetTotal(total)
	return true
}

// failLoad flashes the load error unless the load was superseded, in which
// case the failure is only the cancellation and ErrSuperseded is returned.
func (w *unmapWorkflow) failLoad(gen uint64, err error) error {
	if !w.isCurrent(gen) {
		w.log.WithError(err).Debug("superseded load failed")
		return serrors.Wrap(ErrSuperseded, err)
	}
	w.showError(LoadRelatedError)
	w.log.WithError(err).Error("failed to load related objects")
	return serrors.Wrap(ErrLoadRelated, err)
}

func (w *unmapWorkflow) modalTitle(count int) string {
	title, err := intl.Plural(w.deps.Localizer, modalTitleID, count)
	if err != nil {
		w.log.WithError(err).Warn("modal title translation missing")
		if count == 1 {
			return "Unmapping (1 object)"
		}
		return fmt.Sprintf("Unmapping (%d objects)", count)
	}
	return title
}

func (w *unmapWorkflow) showError(key string) {
	if w.deps.Notifier == nil {
		return
	}
	msg := errorMessages[key]
	text, err := w.deps.Localizer.Localize(&i18n.LocalizeConfig{DefaultMessage: msg})
	if err != nil || text == "" {
		text = msg.Other
	}
	w.deps.Notifier.Flash(flash.Message{Error: text})
}

func (w *unmapWorkflow) setUnmapping(v bool) {
	w.mu.Lock()
	w.unmapping = v
	w.mu.Unlock()
}

// Unmap deletes the relationship between the issue and the target. When the
// current page shows the issue itself the browser is sent to the issue page,
// otherwise the modal is closed.
func (w *unmapWorkflow) Unmap(ctx context.Context) error {
	w.setUnmapping(true)
	defer w.setUnmapping(false)

	if err := w.deps.Unmapper.Unmap(ctx, w.issue, w.target); err != nil {
		w.showError(UnmapRelatedError)
		w.log.WithError(err).Error("failed to unmap issue")
		return serrors.Wrap(ErrUnmapRelated, err)
	}

	if w.deps.PageInstance != nil && w.deps.PageInstance.PageInstance() == w.issue {
		if w.deps.Navigator != nil {
			w.deps.Navigator.Navigate(w.issue.ViewLink)
		}
		return nil
	}
	return w.SetShowRelatedSnapshots(ctx, false)
}

// buildQuery restricts typ to objects relevant to both the target and the issue.
func (w *unmapWorkflow) buildQuery(typ string) queryapi.Query {
	return queryapi.BuildParam(typ, w.paging,
		queryapi.Relevant(w.target.Type, w.target.ID),
		queryapi.Relevant(w.issue.Type, w.issue.ID),
	)
}
