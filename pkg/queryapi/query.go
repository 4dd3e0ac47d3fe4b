// Package queryapi is the client side of the GGRC generic query endpoint:
// filtered, paginated object queries answered with value lists and totals.
package queryapi

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

const (
	OperationRelevant   = "relevant"
	OperationTextSearch = "text_search"
)

// Filter restricts a query. relevant keeps objects mapped to Type/ID;
// text_search keeps objects whose searchable fields contain Text.
type Filter struct {
	Type      string `json:"type,omitempty" validate:"required_if=Operation relevant"`
	Operation string `json:"operation" validate:"required,oneof=relevant text_search"`
	ID        int64  `json:"id,omitempty" validate:"required_if=Operation relevant,gte=0"`
	Text      string `json:"text,omitempty" validate:"required_if=Operation text_search"`
}

type Paging struct {
	PageSize  int `json:"pageSize" validate:"gt=0"`
	PageIndex int `json:"pageIndex" validate:"gte=0"`
}

type Query struct {
	Type    string   `json:"type" validate:"required"`
	Paging  *Paging  `json:"paging,omitempty"`
	Filters []Filter `json:"filters" validate:"dive"`
}

type Request struct {
	Data []Query `json:"data" validate:"required,min=1,dive"`
}

// Result is the answer to one query for one object type.
type Result struct {
	Values []json.RawMessage `json:"values"`
	Total  int               `json:"total"`
}

// Response holds one entry per query, keyed by the requested type name.
type Response []map[string]Result

// Result returns the result of the i-th query for typ.
func (r Response) Result(i int, typ string) (Result, bool) {
	if i < 0 || i >= len(r) {
		return Result{}, false
	}
	res, ok := r[i][typ]
	return res, ok
}

type Client interface {
	MakeRequest(ctx context.Context, req Request) (Response, error)
}

type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) MakeRequest(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// PagingSource is anything that can report the page currently shown.
type PagingSource interface {
	PageIndex() int
	PageSize() int
}

func Relevant(typ string, id int64) Filter {
	return Filter{Type: typ, Operation: OperationRelevant, ID: id}
}

func TextSearch(text string) Filter {
	return Filter{Operation: OperationTextSearch, Text: text}
}

// BuildParam builds a query for typ restricted by filters. A nil paging
// source leaves the query unpaginated.
func BuildParam(typ string, paging PagingSource, filters ...Filter) Query {
	q := Query{
		Type:    typ,
		Filters: append([]Filter(nil), filters...),
	}
	if paging != nil {
		q.Paging = &Paging{
			PageSize:  paging.PageSize(),
			PageIndex: paging.PageIndex(),
		}
	}
	return q
}

// DecodeValues unmarshals every raw value of res into T.
func DecodeValues[T any](res Result) ([]T, error) {
	out := make([]T, 0, len(res.Values))
	for i, raw := range res.Values {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "decode value %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}
