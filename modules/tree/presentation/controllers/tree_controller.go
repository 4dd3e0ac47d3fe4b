package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/modules/tree/presentation/viewmodels"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/middleware"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

const defaultDeepLimit = 2

type InstanceLoader interface {
	Load(ctx context.Context, typ string, id int64) (*instance.Instance, error)
}

type TreeController struct {
	app      application.Application
	loader   InstanceLoader
	basePath string
}

func NewTreeController(app application.Application) application.Controller {
	return &TreeController{
		app:      app,
		loader:   app.Service(objects.Store{}).(*objects.Store),
		basePath: "/tree/api",
	}
}

func (c *TreeController) Key() string {
	return c.basePath
}

func (c *TreeController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideLocalizer(c.app))

	const item = "/{type:[A-Za-z]+}/{id:[0-9]+}"
	router.HandleFunc(item, c.Item).Methods(http.MethodGet)
	router.HandleFunc(item+"/{action:preview|expand|childTreeTypes}", c.Action).Methods(http.MethodPost)
}

type itemResponse struct {
	Item    viewmodels.TreeItemState        `json:"item"`
	Actions viewmodels.TreeItemActionsState `json:"actions"`
}

// Item renders the state of one tree row. The query carries the row's
// columns, its nesting depth and the type of the page it is shown on.
func (c *TreeController) Item(w http.ResponseWriter, r *http.Request) {
	inst, ok := c.load(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	deepLimit, err := intParam(q.Get("deep_limit"), defaultDeepLimit)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "TREE_INVALID_REQUEST", "invalid deep_limit")
		return
	}
	depth, err := intParam(q.Get("depth"), 0)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "TREE_INVALID_REQUEST", "invalid depth")
		return
	}
	expanded := q.Get("expanded") == "true"

	item := viewmodels.NewTreeItem(inst, splitList(q.Get("columns")), splitList(q.Get("mandatory")))
	item.SetExpanded(expanded)
	item.SetChildModels(splitList(q.Get("child_models")))

	actions := viewmodels.NewTreeItemActions(inst, deepLimit, nil)
	actions.SetExpanded(expanded)
	actions.Inserted(depth)

	writeJSON(w, http.StatusOK, itemResponse{
		Item:    item.State(),
		Actions: actions.State(q.Get("page_type")),
	})
}

// Action runs one row action and reports the events it raised.
func (c *TreeController) Action(w http.ResponseWriter, r *http.Request) {
	inst, ok := c.load(w, r)
	if !ok {
		return
	}

	bus := eventbus.NewEventPublisher(c.app.Logger())
	events := []string{}
	bus.Subscribe(func(e *viewmodels.Preview) { events = append(events, "preview") })
	bus.Subscribe(func(e *viewmodels.Expand) { events = append(events, "expand") })
	bus.Subscribe(func(e *viewmodels.ChildTreeTypes) { events = append(events, "childTreeTypes") })

	actions := viewmodels.NewTreeItemActions(inst, defaultDeepLimit, bus)
	switch mux.Vars(r)["action"] {
	case "preview":
		actions.MaximizeObject()
	case "expand":
		actions.Expand()
	case "childTreeTypes":
		actions.SubTreeTypes()
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (c *TreeController) load(w http.ResponseWriter, r *http.Request) (*instance.Instance, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "TREE_INVALID_ID", "invalid id")
		return nil, false
	}
	inst, err := c.loader.Load(r.Context(), vars["type"], id)
	if err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			writeAPIError(w, r, http.StatusNotFound, serrors.Code(err), "object not found")
			return nil, false
		}
		middleware.UseLogger(r.Context()).WithError(err).Error("failed to load tree item")
		writeAPIError(w, r, http.StatusBadGateway, "TREE_UPSTREAM", "upstream request failed")
		return nil, false
	}
	return inst, true
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	if err := httpapi.WriteRequestError(w, r, status, code, message); err != nil {
		panic(err)
	}
}
