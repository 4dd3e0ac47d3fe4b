package queryapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedPaging struct{ index, size int }

func (p fixedPaging) PageIndex() int { return p.index }
func (p fixedPaging) PageSize() int  { return p.size }

func TestBuildParam(t *testing.T) {
	q := BuildParam("Snapshot", fixedPaging{index: 2, size: 5},
		Relevant("Assessment", 7),
		Relevant("Issue", 3),
	)

	require.Equal(t, "Snapshot", q.Type)
	require.Equal(t, &Paging{PageSize: 5, PageIndex: 2}, q.Paging)
	require.Equal(t, []Filter{
		{Type: "Assessment", Operation: "relevant", ID: 7},
		{Type: "Issue", Operation: "relevant", ID: 3},
	}, q.Filters)

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "Snapshot",
		"paging": {"pageSize": 5, "pageIndex": 2},
		"filters": [
			{"type": "Assessment", "operation": "relevant", "id": 7},
			{"type": "Issue", "operation": "relevant", "id": 3}
		]
	}`, string(raw))
}

func TestTextSearch(t *testing.T) {
	raw, err := json.Marshal(BuildParam("Person", nil, TextSearch("ali")))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "Person",
		"filters": [{"operation": "text_search", "text": "ali"}]
	}`, string(raw))
}

func TestBuildParam_WithoutPaging(t *testing.T) {
	q := BuildParam("Person", nil)
	require.Nil(t, q.Paging)
	require.Empty(t, q.Filters)
}

func TestResponse_Result(t *testing.T) {
	resp := Response{
		{"Snapshot": {Total: 10}},
		{"Audit": {Total: 1}},
	}
	res, ok := resp.Result(1, "Audit")
	require.True(t, ok)
	require.Equal(t, 1, res.Total)

	_, ok = resp.Result(0, "Audit")
	require.False(t, ok)
	_, ok = resp.Result(5, "Snapshot")
	require.False(t, ok)
}

func TestDecodeValues(t *testing.T) {
	type item struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}
	res := Result{Values: []json.RawMessage{
		json.RawMessage(`{"id": 1, "type": "Snapshot"}`),
		json.RawMessage(`{"id": 2, "type": "Snapshot"}`),
	}}
	items, err := DecodeValues[item](res)
	require.NoError(t, err)
	require.Equal(t, []item{{1, "Snapshot"}, {2, "Snapshot"}}, items)

	_, err = DecodeValues[item](Result{Values: []json.RawMessage{json.RawMessage(`[`)}})
	require.Error(t, err)
}

func TestHTTPClient_MakeRequest(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)
		require.Equal(t, "Bearer caller", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Snapshot": {"values": [{}, {}], "total": 10}}]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientOptions{BaseURL: srv.URL + "/", AuthToken: "Bearer static"})
	ctx := WithAuthToken(context.Background(), "Bearer caller")
	resp, err := client.MakeRequest(ctx, Request{Data: []Query{
		BuildParam("Snapshot", fixedPaging{size: 5}, Relevant("Issue", 1)),
	}})
	require.NoError(t, err)

	res, ok := resp.Result(0, "Snapshot")
	require.True(t, ok)
	require.Equal(t, 10, res.Total)
	require.Len(t, res.Values, 2)
	require.Len(t, got.Data, 1)
	require.Equal(t, "Snapshot", got.Data[0].Type)
}

func TestHTTPClient_Errors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientOptions{BaseURL: "http://127.0.0.1:0"})
		_, err := client.MakeRequest(context.Background(), Request{})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = client.MakeRequest(context.Background(), Request{Data: []Query{
			BuildParam("Snapshot", nil, Filter{Type: "Issue", Operation: "owned", ID: 1}),
		}})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = client.MakeRequest(context.Background(), Request{Data: []Query{
			BuildParam("Person", nil, Filter{Operation: OperationTextSearch}),
		}})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = client.MakeRequest(context.Background(), Request{Data: []Query{
			BuildParam("Snapshot", nil, Filter{Operation: OperationRelevant, Type: "Issue"}),
		}})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewHTTPClient(HTTPClientOptions{BaseURL: srv.URL})
		_, err := client.MakeRequest(context.Background(), Request{Data: []Query{BuildParam("Audit", nil)}})
		require.ErrorIs(t, err, ErrStatus)
	})

	t.Run("result count mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		client := NewHTTPClient(HTTPClientOptions{BaseURL: srv.URL})
		_, err := client.MakeRequest(context.Background(), Request{Data: []Query{BuildParam("Audit", nil)}})
		require.ErrorIs(t, err, ErrDecode)
	})
}
