package rtc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type ctxKey struct{}

// TestDispatchDoesNotBlock verifies the event source returns while the
// handler is still running.
func TestDispatchDoesNotBlock(t *testing.T) {
	d := newDispatcher(context.Background(), newTestLogger(), nil)

	release := make(chan struct{})
	finished := make(chan struct{})
	returned := make(chan struct{})

	go func() {
		d.dispatch("message", func(ctx context.Context) error {
			<-release
			close(finished)
			return nil
		})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked on a running handler")
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never finished")
	}
}

func TestDispatchReportsFaults(t *testing.T) {
	type fault struct {
		event string
		err   error
	}
	faults := make(chan fault, 2)
	d := newDispatcher(context.Background(), newTestLogger(), func(event string, err error) {
		faults <- fault{event, err}
	})

	boom := errors.New("boom")
	d.dispatch("open", func(ctx context.Context) error { return boom })
	d.dispatch("close", func(ctx context.Context) error { panic("kaboom") })

	seen := map[string]error{}
	for i := 0; i < 2; i++ {
		select {
		case f := <-faults:
			seen[f.event] = f.err
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d faults reported", i)
		}
	}
	if !errors.Is(seen["open"], boom) {
		t.Errorf("open fault = %v, want boom", seen["open"])
	}
	if seen["close"] == nil {
		t.Error("panic was not reported")
	}
}

// TestHandlerContextOutlivesCreator checks that handlers keep the creating
// context's values but not its cancellation.
func TestHandlerContextOutlivesCreator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "room-1"))
	d := newDispatcher(ctx, newTestLogger(), nil)
	cancel()

	got := make(chan context.Context, 1)
	d.dispatch("open", func(ctx context.Context) error {
		got <- ctx
		return nil
	})

	select {
	case hctx := <-got:
		if hctx.Err() != nil {
			t.Errorf("handler context is done: %v", hctx.Err())
		}
		if v, _ := hctx.Value(ctxKey{}).(string); v != "room-1" {
			t.Errorf("handler context value = %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestTeardownReleasesOnce(t *testing.T) {
	d := newDispatcher(context.Background(), newTestLogger(), nil)

	var released atomic.Int32
	for i := 0; i < 3; i++ {
		d.retain(func() { released.Add(1) })
	}
	d.retain(nil)

	if got := d.retained(); got != 3 {
		t.Fatalf("retained = %d, want 3", got)
	}

	d.teardown()
	d.teardown()

	if got := released.Load(); got != 3 {
		t.Errorf("released = %d, want 3", got)
	}

	// late registrations are released immediately
	d.retain(func() { released.Add(1) })
	if got := released.Load(); got != 4 {
		t.Errorf("released after late retain = %d, want 4", got)
	}
	if got := d.retained(); got != 0 {
		t.Errorf("retained after teardown = %d", got)
	}
}

func TestDispatchPreservesRaiseOrder(t *testing.T) {
	d := newDispatcher(context.Background(), newTestLogger(), nil)

	const n = 2000
	got := make(chan int, n)
	var active, overlapped atomic.Int32
	for i := 0; i < n; i++ {
		d.dispatch("message", func(ctx context.Context) error {
			if active.Add(1) > 1 {
				overlapped.Add(1)
			}
			got <- i
			active.Add(-1)
			return nil
		})
	}

	for want := 0; want < n; want++ {
		select {
		case i := <-got:
			if i != want {
				t.Fatalf("handler call %d saw event %d", want, i)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d handlers ran", want, n)
		}
	}
	if overlapped.Load() != 0 {
		t.Errorf("%d handlers ran concurrently", overlapped.Load())
	}
}

// TestDispatchAfterIdle checks that a drained queue picks up new events.
func TestDispatchAfterIdle(t *testing.T) {
	d := newDispatcher(context.Background(), newTestLogger(), nil)
	ran := make(chan string, 2)

	d.dispatch("open", func(ctx context.Context) error { ran <- "open"; return nil })
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("first handler never ran")
	}

	d.qmu.Lock()
	for d.draining {
		d.qmu.Unlock()
		time.Sleep(time.Millisecond)
		d.qmu.Lock()
	}
	d.qmu.Unlock()

	d.dispatch("close", func(ctx context.Context) error { ran <- "close"; return nil })
	select {
	case ev := <-ran:
		if ev != "close" {
			t.Errorf("ran %q, want close", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler queued after idle never ran")
	}
}
