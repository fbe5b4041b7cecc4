package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/conveyance-bills/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) InfoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.infos)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func noop(ctx context.Context, evt *event.Event) error { return nil }

func statusChanged() *event.Event {
	return event.NewEvent(event.TypeStatusChanged, "bill-1", "sup-1", map[string]interface{}{
		event.KeyFromStatus: "SUBMITTED",
		event.KeyToStatus:   "APPROVED_BY_SUPERVISOR",
	})
}

func TestSubscribeNamed(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.SubscribeNamed(event.TypeStatusChanged, "pending-cache", noop)

	handlers := d.ListHandlers(event.TypeStatusChanged)
	if len(handlers) != 1 {
		t.Fatalf("expected 1 handler, got %d", len(handlers))
	}
	if handlers[0].Name != "pending-cache" {
		t.Errorf("expected name pending-cache, got %s", handlers[0].Name)
	}
	if handlers[0].Handler != nil {
		t.Error("ListHandlers should not expose the handler func")
	}
	if logger.InfoCount() != 1 {
		t.Errorf("expected registration to be logged once, got %d", logger.InfoCount())
	}
}

func TestSubscribeMany(t *testing.T) {
	d := NewDispatcher()
	types := []event.Type{event.TypeSubmitted, event.TypeForwarded, event.TypeDeleted}

	d.SubscribeMany(types, "audit", noop)

	for _, typ := range types {
		if got := len(d.ListHandlers(typ)); got != 1 {
			t.Errorf("%s: expected 1 handler, got %d", typ, got)
		}
	}
	if got := len(d.ListHandlers(event.TypeDraftSaved)); got != 0 {
		t.Errorf("expected no handler for draft_saved, got %d", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeSubmitted, "a", noop)
	d.SubscribeNamed(event.TypeSubmitted, "b", noop)

	d.Unsubscribe(event.TypeSubmitted, "a")

	handlers := d.ListHandlers(event.TypeSubmitted)
	if len(handlers) != 1 || handlers[0].Name != "b" {
		t.Errorf("expected only handler b to remain, got %+v", handlers)
	}

	// unknown names are ignored
	d.Unsubscribe(event.TypeSubmitted, "missing")
	if len(d.ListHandlers(event.TypeSubmitted)) != 1 {
		t.Error("unsubscribing an unknown name should be a no-op")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string

		d.SubscribeNamed(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.SubscribeNamed(event.TypeStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		if err := d.Dispatch(context.Background(), statusChanged()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("expected [first second], got %v", order)
		}
	})

	t.Run("passes the event through", func(t *testing.T) {
		d := NewDispatcher()
		var seen *event.Event

		d.SubscribeNamed(event.TypeStatusChanged, "capture", func(ctx context.Context, evt *event.Event) error {
			seen = evt
			return nil
		})

		evt := statusChanged()
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if seen != evt {
			t.Fatal("handler did not receive the dispatched event")
		}
		if got := seen.GetPayloadString(event.KeyToStatus); got != "APPROVED_BY_SUPERVISOR" {
			t.Errorf("unexpected to_status %q", got)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		d := NewDispatcher(WithLogger(&mockLogger{}))
		expectedErr := errors.New("redis down")
		called := false

		d.SubscribeNamed(event.TypeStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
			return expectedErr
		})
		d.SubscribeNamed(event.TypeStatusChanged, "after", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), statusChanged())
		if !errors.Is(err, expectedErr) {
			t.Fatalf("expected error wrapping %v, got %v", expectedErr, err)
		}
		if called {
			t.Error("second handler should not run after an error")
		}
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.SubscribeNamed(event.TypeStatusChanged, "panicky", func(ctx context.Context, evt *event.Event) error {
			panic("boom")
		})

		if err := d.Dispatch(context.Background(), statusChanged()); err == nil {
			t.Fatal("expected error from panic recovery")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("rejects unknown event types", func(t *testing.T) {
		d := NewDispatcher()
		evt := event.NewEvent(event.Type("bill.unknown"), "bill-1", "u-1", nil)

		if err := d.Dispatch(context.Background(), evt); err == nil {
			t.Fatal("expected error for unknown event type")
		}
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Dispatch(context.Background(), statusChanged()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("fails once closed", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := d.Dispatch(context.Background(), statusChanged()); err == nil {
			t.Fatal("expected error dispatching to a closed dispatcher")
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("runs every handler", func(t *testing.T) {
		d := NewDispatcher()
		var called atomic.Int32

		for _, name := range []string{"a", "b", "c"} {
			d.SubscribeNamed(event.TypeSubmitted, name, func(ctx context.Context, evt *event.Event) error {
				called.Add(1)
				return nil
			})
		}

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSubmitted, "bill-1", "emp-1", nil))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if called.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", called.Load())
		}
	})

	t.Run("survives request cancellation", func(t *testing.T) {
		d := NewDispatcher()
		errCh := make(chan error, 1)

		d.SubscribeNamed(event.TypeSubmitted, "slow", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			errCh <- ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, event.NewEvent(event.TypeSubmitted, "bill-1", "emp-1", nil))
		cancel()

		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("handler context should not be cancelled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("handler did not run")
		}
		_ = d.Close()
	})

	t.Run("logs handler errors", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.SubscribeNamed(event.TypeSubmitted, "failing", func(ctx context.Context, evt *event.Event) error {
			return errors.New("nope")
		})

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSubmitted, "bill-1", "emp-1", nil))
		_ = d.Close()

		if logger.ErrorCount() != 1 {
			t.Errorf("expected 1 logged error, got %d", logger.ErrorCount())
		}
	})

	t.Run("drops events once closed", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Bool

		d.SubscribeNamed(event.TypeSubmitted, "h", func(ctx context.Context, evt *event.Event) error {
			called.Store(true)
			return nil
		})
		_ = d.Close()

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSubmitted, "bill-1", "emp-1", nil))
		if called.Load() {
			t.Error("handler should not run after close")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected dropped event to be logged, got %d errors", logger.ErrorCount())
		}
	})
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("expected error on second close")
	}
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	var calls atomic.Int64

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.SubscribeNamed(event.TypeForwarded, "h", func(ctx context.Context, evt *event.Event) error {
				calls.Add(1)
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeForwarded, "bill-1", "sup-1", nil))
		}()
	}
	wg.Wait()

	if got := len(d.ListHandlers(event.TypeForwarded)); got != 20 {
		t.Errorf("expected 20 handlers, got %d", got)
	}
	_ = d.Close()
}

func TestDispatchAsyncDuringClose(t *testing.T) {
	d := NewDispatcher()
	var started, finished atomic.Int64
	d.SubscribeNamed(event.TypeSubmitted, "slow", func(ctx context.Context, evt *event.Event) error {
		started.Add(1)
		time.Sleep(time.Millisecond)
		finished.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSubmitted, "bill-1", "emp-1", nil))
		}()
	}

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	atClose := finished.Load()
	if got := started.Load(); got != atClose {
		t.Errorf("close returned with %d handlers still running", got-atClose)
	}

	wg.Wait()
	time.Sleep(5 * time.Millisecond)
	if got := started.Load(); got != atClose {
		t.Errorf("%d handlers started after close", got-atClose)
	}
}
