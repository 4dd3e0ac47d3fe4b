// Package flash is the user-facing notification side channel. View-models
// push messages through a Notifier; the HTTP layer drains a Recorder into the
// response so the browser can render them.
package flash

import (
	"sync"

	"github.com/jacksonlee411/grc-console/pkg/eventbus"
)

type Message struct {
	Error   string `json:"error,omitempty"`
	Success string `json:"success,omitempty"`
	Notice  string `json:"notice,omitempty"`
}

func (m Message) IsZero() bool {
	return m.Error == "" && m.Success == "" && m.Notice == ""
}

type Notifier interface {
	Flash(msg Message)
}

type NotifierFunc func(msg Message)

func (f NotifierFunc) Flash(msg Message) { f(msg) }

// Recorder keeps every flashed message in order.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Flash(msg Message) {
	if msg.IsZero() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Drain returns the recorded messages and resets the recorder.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}

// Errors returns only the error texts, in order.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		if m.Error != "" {
			out = append(out, m.Error)
		}
	}
	return out
}

// Broadcast fans a message out to every notifier.
func Broadcast(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(msg Message) {
		for _, n := range notifiers {
			if n != nil {
				n.Flash(msg)
			}
		}
	})
}

// BusNotifier publishes every message as a *Message event on bus.
func BusNotifier(bus eventbus.EventBus) Notifier {
	return NotifierFunc(func(msg Message) {
		m := msg
		bus.Publish(&m)
	})
}
