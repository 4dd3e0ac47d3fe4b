package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/pkg/application"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	up := mux.NewRouter()
	up.HandleFunc("/api/cycle_task_group_object_tasks/8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":8,"type":"CycleTaskGroupObjectTask","title":"Review","workflow_state":"InProgress"}`)
	})
	up.HandleFunc("/api/controls/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":3,"type":"Control","title":"Access","snapshot":{"id":40,"type":"Snapshot"}}`)
	})
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := application.New(&application.ApplicationOptions{Logger: logger})
	app.RegisterServices(objects.NewStore(objects.StoreOptions{
		API:    objects.NewClient(objects.ClientOptions{BaseURL: srv.URL, Logger: logger}),
		Logger: logger,
	}))

	r := mux.NewRouter()
	NewTreeController(app).Register(r)
	return r
}

func TestTreeController_Item(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/tree/api/CycleTaskGroupObjectTask/8?columns=title,status,owner,due&page_type=Workflow&depth=1&deep_limit=3&expanded=true", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "Review", out.Item.Title)
	require.Equal(t, 2, out.Item.SelectableSize)
	require.True(t, out.Item.Expanded)
	require.True(t, out.Actions.CanExpand)
	require.True(t, out.Actions.ShowReducedIcon)
	require.True(t, out.Actions.IsAllowedToEdit)
	require.Equal(t, "compress", out.Actions.ExpandIcon)
	require.Equal(t, "Collapse tree", out.Actions.ExpanderTitle)
}

func TestTreeController_SnapshotRow(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tree/api/Control/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Item.IsSnapshot)
	require.False(t, out.Actions.IsAllowedToEdit)
	require.False(t, out.Actions.IsAllowedToMap)
	require.Equal(t, "Expand tree", out.Actions.ExpanderTitle)
}

func TestTreeController_Errors(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tree/api/Control/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), objects.ErrNotFound.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tree/api/Control/3?depth=x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTreeController_Action(t *testing.T) {
	r := newTestRouter(t)
	for action, want := range map[string]string{
		"preview":        "preview",
		"expand":         "expand",
		"childTreeTypes": "childTreeTypes",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tree/api/Control/3/"+action, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var out struct {
			Events []string `json:"events"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Equal(t, []string{want}, out.Events)
	}
}
