package viewmodels

import (
	"sync"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
)

// ValueChanged is published when the user picks or clears the person of a
// field. A nil Value means the field was cleared.
type ValueChanged struct {
	FieldID int64
	Value   *int64
}

// PersonFormField backs a person picker inside a custom attribute form.
type PersonFormField struct {
	fieldID     int64
	withDetails bool
	events      eventbus.EventBus

	mu          sync.RWMutex
	value       *int64
	initialised bool
}

func NewPersonFormField(fieldID int64, withDetails bool, events eventbus.EventBus) *PersonFormField {
	return &PersonFormField{
		fieldID:     fieldID,
		withDetails: withDetails,
		events:      events,
	}
}

func (f *PersonFormField) FieldID() int64 {
	return f.fieldID
}

func (f *PersonFormField) WithDetails() bool {
	return f.withDetails
}

func (f *PersonFormField) Value() *int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneID(f.value)
}

// SetValue is the programmatic set used by the parent form. It never
// publishes ValueChanged.
func (f *PersonFormField) SetValue(v *int64) {
	f.mu.Lock()
	f.value = cloneID(v)
	f.initialised = true
	f.mu.Unlock()
}

// SetPerson selects p as the field value.
func (f *PersonFormField) SetPerson(p *instance.Instance) bool {
	if p == nil {
		return f.UnsetPerson()
	}
	id := p.ID
	return f.change(&id)
}

func (f *PersonFormField) UnsetPerson() bool {
	return f.change(nil)
}

// change stores a user-driven value. ValueChanged is published only when the
// field already held a value and the new one differs.
func (f *PersonFormField) change(v *int64) bool {
	f.mu.Lock()
	old, initialised := f.value, f.initialised
	f.value = cloneID(v)
	f.initialised = true
	f.mu.Unlock()

	if !initialised || sameID(old, v) {
		return false
	}
	if f.events != nil {
		f.events.Publish(&ValueChanged{FieldID: f.fieldID, Value: cloneID(v)})
	}
	return true
}

type PersonFormFieldState struct {
	FieldID     int64  `json:"fieldId"`
	WithDetails bool   `json:"withDetails"`
	Value       *int64 `json:"value"`
}

func (f *PersonFormField) State() PersonFormFieldState {
	return PersonFormFieldState{
		FieldID:     f.fieldID,
		WithDetails: f.withDetails,
		Value:       f.Value(),
	}
}

func cloneID(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
