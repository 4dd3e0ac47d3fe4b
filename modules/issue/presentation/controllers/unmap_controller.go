package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/modules/issue/presentation/locales"
	"github.com/jacksonlee411/grc-console/modules/issue/presentation/viewmodels"
	"github.com/jacksonlee411/grc-console/modules/issue/services"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
	"github.com/jacksonlee411/grc-console/pkg/flash"
	"github.com/jacksonlee411/grc-console/pkg/intl"
	"github.com/jacksonlee411/grc-console/pkg/middleware"
	"github.com/jacksonlee411/grc-console/pkg/pagination"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

// ObjectStore loads the issue and target a request is about.
type ObjectStore interface {
	viewmodels.ObjectStore
	Load(ctx context.Context, typ string, id int64) (*instance.Instance, error)
	FindInCache(ctx context.Context, typ string, id int64) (*instance.Instance, bool)
	Middleware(next http.Handler) http.Handler
}

type UnmapController struct {
	app       application.Application
	store     ObjectStore
	query     queryapi.Client
	unmapper  viewmodels.Unmapper
	pageSizes []int
	basePath  string
}

// NewUnmapController serves the unmap modal. pageSizes overrides the page
// size choices offered by the related list.
func NewUnmapController(app application.Application, pageSizes ...int) application.Controller {
	if len(pageSizes) == 0 {
		pageSizes = viewmodels.UnmapPageSizeSelect
	}
	return &UnmapController{
		app:       app,
		store:     app.Service(objects.Store{}).(*objects.Store),
		query:     app.Service(queryapi.HTTPClient{}).(*queryapi.HTTPClient),
		unmapper:  app.Service(services.UnmapService{}).(*services.UnmapService),
		pageSizes: pageSizes,
		basePath:  "/issues/api",
	}
}

func (c *UnmapController) Key() string {
	return c.basePath + "/unmap"
}

func (c *UnmapController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideLocalizer(c.app), c.store.Middleware)

	const target = "/{issueID:[0-9]+}/unmap/{targetType:[A-Za-z]+}/{targetID:[0-9]+}"
	router.HandleFunc(target+"/related", c.Related).Methods(http.MethodGet)
	router.HandleFunc(target+"/click", c.Click).Methods(http.MethodPost)
	router.HandleFunc(target, c.Unmap).Methods(http.MethodPost)
}

// requestScope collects what the view-models report through their side
// channels while one request runs.
type requestScope struct {
	flashes  *flash.Recorder
	events   eventbus.EventBus
	fired    []string
	navigate string
}

type unmapResponse struct {
	State    any             `json:"state"`
	Events   []string        `json:"events"`
	Navigate string          `json:"navigate,omitempty"`
	Flash    []flash.Message `json:"flash"`
}

func (c *UnmapController) deps(r *http.Request) (viewmodels.Deps, *requestScope, error) {
	scope := &requestScope{
		flashes: flash.NewRecorder(),
		events:  eventbus.NewEventPublisher(c.app.Logger()),
		fired:   []string{},
	}
	scope.events.Subscribe(func(e *viewmodels.ModalClosed) { scope.fired = append(scope.fired, "modalClosed") })
	scope.events.Subscribe(func(e *viewmodels.UnmapIssue) { scope.fired = append(scope.fired, "unmapIssue") })

	paging, err := parsePaging(r, c.pageSizes)
	if err != nil {
		return viewmodels.Deps{}, nil, err
	}

	ctx := r.Context()
	// Only objects this request already loaded can be the page instance.
	var page *instance.Instance
	if typ, id := r.URL.Query().Get("page_type"), r.URL.Query().Get("page_id"); typ != "" && id != "" {
		if pid, err := strconv.ParseInt(id, 10, 64); err == nil {
			page, _ = c.store.FindInCache(ctx, typ, pid)
		}
	}

	return viewmodels.Deps{
		Query:        c.query,
		Store:        c.store,
		Unmapper:     c.unmapper,
		Notifier:     scope.flashes,
		Navigator:    viewmodels.NavigatorFunc(func(url string) { scope.navigate = url }),
		PageInstance: viewmodels.PageInstanceFunc(func() *instance.Instance { return page }),
		Events:       scope.events,
		Localizer:    useLocalizer(ctx),
		Logger:       c.app.Logger(),
		Paging:       paging,
	}, scope, nil
}

var errInvalidPaging = errors.New("invalid paging")

func parsePaging(r *http.Request, pageSizes []int) (pagination.Options, error) {
	opts := pagination.Options{PageSizeSelect: pageSizes}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errInvalidPaging
		}
		opts.Current = n
	}
	if v := strings.TrimSpace(q.Get("pageSize")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !containsInt(opts.PageSizeSelect, n) {
			return opts, errInvalidPaging
		}
		opts.PageSize = n
	}
	return opts, nil
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func useLocalizer(ctx context.Context) *i18n.Localizer {
	if l, ok := intl.UseLocalizer(ctx); ok {
		return l
	}
	return locales.Localizer()
}

// loadPair resolves the issue and the target named by the route.
func (c *UnmapController) loadPair(w http.ResponseWriter, r *http.Request) (*instance.Instance, *instance.Instance, bool) {
	vars := mux.Vars(r)
	issueID, err := strconv.ParseInt(vars["issueID"], 10, 64)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ISSUE_INVALID_ID", "invalid issue id")
		return nil, nil, false
	}
	targetID, err := strconv.ParseInt(vars["targetID"], 10, 64)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ISSUE_INVALID_TARGET", "invalid target id")
		return nil, nil, false
	}

	ctx := r.Context()
	issue, err := c.store.Load(ctx, instance.TypeIssue, issueID)
	if err != nil {
		c.writeLoadError(w, r, err)
		return nil, nil, false
	}
	target, err := c.store.Load(ctx, vars["targetType"], targetID)
	if err != nil {
		c.writeLoadError(w, r, err)
		return nil, nil, false
	}
	return issue, target, true
}

func (c *UnmapController) writeLoadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, objects.ErrNotFound) {
		writeAPIError(w, r, http.StatusNotFound, serrors.Code(err), localize(r.Context(), "Issue.Unmap.Errors.NotFound", "object not found"))
		return
	}
	middleware.UseLogger(r.Context()).WithError(err).Error("failed to load issue or target")
	writeAPIError(w, r, http.StatusBadGateway, "ISSUE_UPSTREAM", "upstream request failed")
}

func (c *UnmapController) begin(w http.ResponseWriter, r *http.Request) (viewmodels.Deps, *requestScope, *instance.Instance, *instance.Instance, bool) {
	issue, target, ok := c.loadPair(w, r)
	if !ok {
		return viewmodels.Deps{}, nil, nil, nil, false
	}
	deps, scope, err := c.deps(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ISSUE_INVALID_PAGING", localize(r.Context(), "Issue.Unmap.Errors.InvalidRequest", "invalid request"))
		return viewmodels.Deps{}, nil, nil, nil, false
	}
	return deps, scope, issue, target, true
}

// writeResult answers with the view-model state, or with the flashed message
// when the operation failed.
func (c *UnmapController) writeResult(w http.ResponseWriter, r *http.Request, scope *requestScope, state any, err error) {
	messages := scope.flashes.Drain()
	if err != nil {
		message := "request failed"
		if len(messages) > 0 && messages[0].Error != "" {
			message = messages[0].Error
		}
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, services.ErrNoSharedRelationship):
			status = http.StatusConflict
			message = localize(r.Context(), "Issue.Unmap.Errors.NoRelationship", message)
		case errors.Is(err, viewmodels.ErrSuperseded):
			status = http.StatusConflict
			message = localize(r.Context(), "Issue.Unmap.Errors.Superseded", "a newer request replaced this one")
		}
		writeAPIError(w, r, status, serrors.Code(err), message)
		return
	}
	if messages == nil {
		messages = []flash.Message{}
	}
	writeJSON(w, http.StatusOK, unmapResponse{
		State:    state,
		Events:   scope.fired,
		Navigate: scope.navigate,
		Flash:    messages,
	})
}

// Related opens the related snapshots modal on the requested page.
func (c *UnmapController) Related(w http.ResponseWriter, r *http.Request) {
	deps, scope, issue, target, ok := c.begin(w, r)
	if !ok {
		return
	}
	vm := viewmodels.NewUnmapRelatedSnapshots(deps, issue, target)
	err := vm.SetShowRelatedSnapshots(r.Context(), true)
	c.writeResult(w, r, scope, vm.State(), err)
}

// Click runs the unmap button of an issue row.
func (c *UnmapController) Click(w http.ResponseWriter, r *http.Request) {
	deps, scope, issue, target, ok := c.begin(w, r)
	if !ok {
		return
	}
	vm := viewmodels.NewUnmapItem(deps, issue, target)
	err := vm.Click(r.Context())
	c.writeResult(w, r, scope, vm.State(), err)
}

// Unmap confirms the modal: the issue is unmapped from the target together
// with its related snapshots.
func (c *UnmapController) Unmap(w http.ResponseWriter, r *http.Request) {
	deps, scope, issue, target, ok := c.begin(w, r)
	if !ok {
		return
	}
	vm := viewmodels.NewUnmapRelatedSnapshots(deps, issue, target)
	err := vm.Unmap(r.Context())
	c.writeResult(w, r, scope, vm.State(), err)
}
