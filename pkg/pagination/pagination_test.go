package pagination

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func recordChanges(p *Pagination) *[]string {
	var fields []string
	p.OnChange(func(field string) { fields = append(fields, field) })
	return &fields
}

func TestNew_Defaults(t *testing.T) {
	p := New(Options{PageSizeSelect: []int{5, 10, 15}})
	require.Equal(t, 1, p.Current())
	require.Equal(t, 0, p.PageIndex())
	require.Equal(t, 5, p.PageSize())
	require.Equal(t, []int{5, 10, 15}, p.PageSizeSelect())
	require.Equal(t, 1, p.Count())

	p = New(Options{})
	require.Equal(t, 10, p.PageSize())
}

func TestSetCurrent_NotifiesOnlyOnChange(t *testing.T) {
	p := New(Options{PageSizeSelect: []int{5}})
	fields := recordChanges(p)

	p.SetCurrent(1)
	require.Empty(t, *fields)

	p.SetCurrent(3)
	require.Equal(t, []string{FieldCurrent}, *fields)
	require.Equal(t, 2, p.PageIndex())

	p.SetCurrent(-4)
	require.Equal(t, 1, p.Current())
	require.Equal(t, []string{FieldCurrent, FieldCurrent}, *fields)
}

func TestSetPageSize_RewindsSilently(t *testing.T) {
	p := New(Options{PageSizeSelect: []int{5, 10}})
	p.SetCurrent(4)
	fields := recordChanges(p)

	p.SetPageSize(10)
	require.Equal(t, []string{FieldPageSize}, *fields)
	require.Equal(t, 1, p.Current())

	p.SetPageSize(10)
	p.SetPageSize(0)
	require.Len(t, *fields, 1)
}

func TestSetTotal_CountAndLimits(t *testing.T) {
	p := New(Options{PageSizeSelect: []int{5}})
	fields := recordChanges(p)

	p.SetTotal(11)
	require.Equal(t, []string{FieldTotal}, *fields)
	require.Equal(t, 3, p.Count())

	p.SetCurrent(2)
	first, last := p.Limits()
	require.Equal(t, 5, first)
	require.Equal(t, 10, last)

	require.Equal(t, State{
		Current:        2,
		PageSize:       5,
		PageSizeSelect: []int{5},
		Total:          11,
		Count:          3,
	}, p.State())
}

func TestOnChange_Unsubscribe(t *testing.T) {
	p := New(Options{})
	calls := 0
	stop := p.OnChange(func(string) { calls++ })
	p.SetCurrent(2)
	stop()
	p.SetCurrent(3)
	require.Equal(t, 1, calls)
}

type ctxKey struct{}

func TestSetCurrentContext_PassesCallerContextAndError(t *testing.T) {
	p := New(Options{})
	var seen any
	boom := errors.New("reload failed")
	p.OnChangeContext(func(ctx context.Context, field string) error {
		seen = ctx.Value(ctxKey{})
		if field == FieldPageSize {
			return boom
		}
		return nil
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")
	require.NoError(t, p.SetCurrentContext(ctx, 2))
	require.Equal(t, "caller", seen)

	require.ErrorIs(t, p.SetPageSizeContext(ctx, 25), boom)
	require.NoError(t, p.SetPageSizeContext(ctx, 25))

	p.SetCurrent(3)
	require.Nil(t, seen)
}
