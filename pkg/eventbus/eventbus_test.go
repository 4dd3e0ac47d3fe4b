package eventbus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type modalClosed struct {
	issueID int64
}

type valueChanged struct {
	fieldID int
}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_IgnoresMismatchedSubscribers(t *testing.T) {
	log, buf := bufferedLogger(logrus.DebugLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *modalClosed) {
		t.Error("should not be called")
	})
	publisher.Publish(&valueChanged{fieldID: 1})

	require.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var got int64
	publisher.Subscribe(func(e *modalClosed) {
		got = e.issueID
	})
	publisher.Publish(&modalClosed{issueID: 42})
	require.Equal(t, int64(42), got)
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	calls := 0
	handler := func(e *modalClosed) { calls++ }
	publisher.Subscribe(handler)
	require.Equal(t, 1, publisher.SubscribersCount())

	publisher.Unsubscribe(handler)
	require.Equal(t, 0, publisher.SubscribersCount())

	publisher.Publish(&modalClosed{})
	require.Equal(t, 0, calls)
}

func TestPublisher_HandlerMayPublishAgain(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var closedSeen bool
	publisher.Subscribe(func(e *valueChanged) {
		publisher.Publish(&modalClosed{})
	})
	publisher.Subscribe(func(e *modalClosed) {
		closedSeen = true
	})

	publisher.Publish(&valueChanged{})
	require.True(t, closedSeen)
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *modalClosed) {}, []interface{}{&modalClosed{}}))
	require.False(t, MatchSignature(func(e *modalClosed) {}, []interface{}{&valueChanged{}}))
	require.False(t, MatchSignature(func(e *modalClosed) {}, []interface{}{}))
	require.False(t, MatchSignature(func(e *modalClosed) {}, []interface{}{&modalClosed{}, &modalClosed{}}))
	require.True(t, MatchSignature(func(e *modalClosed) {}, []interface{}{nil}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []interface{}{context.Background()}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Parallel()

	t.Run("handler panic is caught and logged", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *modalClosed) {
			panic("intentional panic for testing")
		})

		require.NotPanics(t, func() { publisher.Publish(&modalClosed{}) })

		output := buf.String()
		require.Contains(t, output, "panicked")
		require.Contains(t, output, "intentional panic for testing")
	})

	t.Run("other handlers still run", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called := 0
		publisher.Subscribe(func(e *modalClosed) { called++ })
		publisher.Subscribe(func(e *modalClosed) { panic("handler 2 panic") })
		publisher.Subscribe(func(e *modalClosed) { called++ })

		publisher.Publish(&modalClosed{})
		require.Equal(t, 2, called)
	})

	t.Run("all handlers panicking counts as unhandled", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.DebugLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *modalClosed) { panic("always panics") })

		publisher.Publish(&modalClosed{})
		if !strings.Contains(buf.String(), "no matching subscribers") {
			t.Errorf("expected unhandled log line, got: %q", buf.String())
		}
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		err := publisher.PublishE(&modalClosed{})
		require.ErrorIs(t, err, ErrNoSubscribers)
	})

	t.Run("returns joined errors from multiple handlers", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *modalClosed) error { return err1 })
		publisher.Subscribe(func(e *modalClosed) error { return err2 })

		err := publisher.PublishE(&modalClosed{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic is surfaced as error", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called := false
		publisher.Subscribe(func(e *modalClosed) error { panic("boom") })
		publisher.Subscribe(func(e *modalClosed) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&modalClosed{}))
		require.True(t, called)
	})

	t.Run("invalid handler return is surfaced as ErrInvalidHandlerReturn", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		publisher.Subscribe(func(e *modalClosed) int { return 1 })

		require.ErrorIs(t, publisher.PublishE(&modalClosed{}), ErrInvalidHandlerReturn)
	})
}
