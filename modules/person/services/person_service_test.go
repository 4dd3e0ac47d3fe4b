package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

func peopleResponse(t *testing.T, people ...instance.Instance) queryapi.Response {
	t.Helper()
	values := make([]json.RawMessage, 0, len(people))
	for _, p := range people {
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		values = append(values, raw)
	}
	return queryapi.Response{{instance.TypePerson: {Values: values, Total: len(people)}}}
}

var testPeople = []instance.Instance{
	{ID: 1, Type: instance.TypePerson, Name: "Alice Smith", Email: "alice@example.com"},
	{ID: 2, Type: instance.TypePerson, Name: "Bob Stone", Email: "bob@example.com"},
	{ID: 3, Type: instance.TypePerson, Name: "Alicia Keys", Email: "ak@example.com"},
}

func TestPersonService_Options(t *testing.T) {
	var got queryapi.Request
	svc := NewPersonService(queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		got = req
		return peopleResponse(t, testPeople...), nil
	}), nil)

	out, err := svc.Options(context.Background(), "ali", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(3), out[0].ID)
	require.Equal(t, int64(1), out[1].ID)

	require.Len(t, got.Data, 1)
	require.Equal(t, instance.TypePerson, got.Data[0].Type)
	require.Equal(t, &queryapi.Paging{PageSize: candidatePageSize, PageIndex: 0}, got.Data[0].Paging)
	require.Equal(t, []queryapi.Filter{queryapi.TextSearch("ali")}, got.Data[0].Filters)
}

func TestPersonService_OptionsEmptyQueryKeepsOrder(t *testing.T) {
	svc := NewPersonService(queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		return peopleResponse(t, testPeople...), nil
	}), nil)

	out, err := svc.Options(context.Background(), "  ", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(1), out[0].ID)
	require.Equal(t, int64(2), out[1].ID)
}

func TestPersonService_OptionsByEmail(t *testing.T) {
	svc := NewPersonService(queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		return peopleResponse(t, testPeople...), nil
	}), nil)

	out, err := svc.Options(context.Background(), "BOB@", 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Bob Stone", out[0].Name)
}

func TestPersonService_OptionsQueryFailure(t *testing.T) {
	svc := NewPersonService(queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		return nil, errors.New("down")
	}), nil)

	_, err := svc.Options(context.Background(), "a", 5)
	require.ErrorIs(t, err, ErrPersonQuery)
}

// directory fakes the query endpoint over a large person directory, applying
// the text search and paging the way the server does.
func directory(t *testing.T, size int) queryapi.Client {
	people := make([]instance.Instance, size)
	for i := range people {
		people[i] = instance.Instance{
			ID: int64(i + 1), Type: instance.TypePerson,
			Name:  fmt.Sprintf("Employee %04d", i+1),
			Email: fmt.Sprintf("employee%04d@example.com", i+1),
		}
	}
	people[size-1].Name = "Zora Quinlan"
	people[size-1].Email = "zora@example.com"

	return queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		q := req.Data[0]
		matched := people
		for _, f := range q.Filters {
			if f.Operation != queryapi.OperationTextSearch {
				continue
			}
			matched = nil
			for _, p := range people {
				if strings.Contains(strings.ToLower(p.Name+" "+p.Email), strings.ToLower(f.Text)) {
					matched = append(matched, p)
				}
			}
		}
		first := q.Paging.PageIndex * q.Paging.PageSize
		last := min(first+q.Paging.PageSize, len(matched))
		resp := peopleResponse(t, matched[first:last]...)
		res := resp[0][instance.TypePerson]
		res.Total = len(matched)
		resp[0][instance.TypePerson] = res
		return resp, nil
	})
}

func TestPersonService_OptionsFindsPeopleBeyondFirstPage(t *testing.T) {
	svc := NewPersonService(directory(t, 3*candidatePageSize), nil)

	out, err := svc.Options(context.Background(), "zora", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(3*candidatePageSize), out[0].ID)

	out, err = svc.Options(context.Background(), "", 5)
	require.NoError(t, err)
	require.Len(t, out, 5)
	require.Equal(t, int64(1), out[0].ID)
}

func TestPersonService_OptionsMissingResult(t *testing.T) {
	svc := NewPersonService(queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		return queryapi.Response{{"Snapshot": {}}}, nil
	}), nil)

	_, err := svc.Options(context.Background(), "a", 5)
	require.ErrorIs(t, err, ErrPersonQuery)
}
