// Package pagination holds page index, page size and total for list views
// and notifies observers when a field changes.
package pagination

import (
	"context"
	"errors"
	"slices"
	"sync"
)

const (
	FieldCurrent  = "current"
	FieldPageSize = "pageSize"
	FieldTotal    = "total"
)

var DefaultPageSizeSelect = []int{10, 25, 50}

// Listener receives the name of the changed field.
type Listener func(field string)

// ContextListener also receives the context of the caller that made the
// change; its error is returned to that caller.
type ContextListener func(ctx context.Context, field string) error

type Options struct {
	PageSizeSelect []int
	PageSize       int
	Current        int
}

type Pagination struct {
	mu             sync.RWMutex
	current        int
	pageSize       int
	pageSizeSelect []int
	total          int
	listeners      []ContextListener
}

func New(opts Options) *Pagination {
	sel := slices.Clone(opts.PageSizeSelect)
	if len(sel) == 0 {
		sel = slices.Clone(DefaultPageSizeSelect)
	}
	size := opts.PageSize
	if size <= 0 {
		size = sel[0]
	}
	current := opts.Current
	if current < 1 {
		current = 1
	}
	return &Pagination{
		current:        current,
		pageSize:       size,
		pageSizeSelect: sel,
	}
}

// OnChange registers l and returns a func that removes it.
func (p *Pagination) OnChange(l Listener) func() {
	return p.OnChangeContext(func(_ context.Context, field string) error {
		l(field)
		return nil
	})
}

// OnChangeContext registers l and returns a func that removes it.
func (p *Pagination) OnChangeContext(l ContextListener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
	idx := len(p.listeners) - 1
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if idx < len(p.listeners) {
			p.listeners[idx] = nil
		}
	}
}

func (p *Pagination) notify(ctx context.Context, field string) error {
	p.mu.RLock()
	listeners := slices.Clone(p.listeners)
	p.mu.RUnlock()
	var errs []error
	for _, l := range listeners {
		if l != nil {
			errs = append(errs, l(ctx, field))
		}
	}
	return errors.Join(errs...)
}

// Current is the 1-based page number.
func (p *Pagination) Current() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// PageIndex is the 0-based page number sent to the query API.
func (p *Pagination) PageIndex() int {
	return p.Current() - 1
}

func (p *Pagination) PageSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pageSize
}

func (p *Pagination) PageSizeSelect() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.pageSizeSelect)
}

func (p *Pagination) Total() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}

// Count is the number of pages; zero items still make one page.
func (p *Pagination) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return pageCount(p.total, p.pageSize)
}

func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Limits returns the half-open item range [first, last) of the current page.
func (p *Pagination) Limits() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	first := (p.current - 1) * p.pageSize
	return first, first + p.pageSize
}

// SetCurrent moves to page n (at least 1). The upper bound is not enforced
// because the total is only known after the page was loaded. Observers are
// notified only when the page actually changes.
func (p *Pagination) SetCurrent(n int) {
	_ = p.SetCurrentContext(context.Background(), n)
}

// SetCurrentContext is SetCurrent with the observers running under ctx.
func (p *Pagination) SetCurrentContext(ctx context.Context, n int) error {
	p.mu.Lock()
	if n < 1 {
		n = 1
	}
	changed := n != p.current
	p.current = n
	p.mu.Unlock()

	if !changed {
		return nil
	}
	return p.notify(ctx, FieldCurrent)
}

// SetPageSize changes the page size and silently rewinds to the first page,
// so a single pageSize notification is emitted.
func (p *Pagination) SetPageSize(size int) {
	_ = p.SetPageSizeContext(context.Background(), size)
}

// SetPageSizeContext is SetPageSize with the observers running under ctx.
func (p *Pagination) SetPageSizeContext(ctx context.Context, size int) error {
	if size <= 0 {
		return nil
	}
	p.mu.Lock()
	changed := size != p.pageSize
	p.pageSize = size
	if changed {
		p.current = 1
	}
	p.mu.Unlock()

	if !changed {
		return nil
	}
	return p.notify(ctx, FieldPageSize)
}

// SetTotal records the item count reported by the server.
func (p *Pagination) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	p.mu.Lock()
	changed := total != p.total
	p.total = total
	p.mu.Unlock()

	if changed {
		_ = p.notify(context.Background(), FieldTotal)
	}
}

type State struct {
	Current        int   `json:"current"`
	PageSize       int   `json:"pageSize"`
	PageSizeSelect []int `json:"pageSizeSelect"`
	Total          int   `json:"total"`
	Count          int   `json:"count"`
}

func (p *Pagination) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State{
		Current:        p.current,
		PageSize:       p.pageSize,
		PageSizeSelect: slices.Clone(p.pageSizeSelect),
		Total:          p.total,
		Count:          pageCount(p.total, p.pageSize),
	}
}
