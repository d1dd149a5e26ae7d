package rtc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Message is one inbound data channel message
type Message struct {
	Data   []byte
	IsText bool
}

// Handler types. Handlers registered on one connection or channel run one at
// a time, on a goroutine owned by that object, in the order the backend raised
// the events. A returned error (or a panic) is logged and reported to the
// FaultObserver, never propagated.
type (
	OpenHandler            func(ctx context.Context) error
	CloseHandler           func(ctx context.Context) error
	MessageHandler         func(ctx context.Context, msg Message) error
	ConnectionStateHandler func(ctx context.Context, state PeerConnectionState) error
	// ICECandidateHandler receives nil once gathering is complete.
	ICECandidateHandler func(ctx context.Context, candidate *IceCandidate) error
	DataChannelHandler  func(ctx context.Context, channel *DataChannel) error
)

// FaultObserver is told about every handler that failed or panicked.
type FaultObserver func(event string, err error)

// dispatcher turns synchronous backend events into handler calls and owns
// the release funcs of every listener installed on the backend. Calls are
// queued without bound and drained by a single worker, so the event source
// never waits and handlers see events in raise order.
type dispatcher struct {
	ctx      context.Context
	logger   *slog.Logger
	observer FaultObserver

	mu       sync.Mutex
	releases []func()
	torndown bool
	once     sync.Once

	qmu      sync.Mutex
	queue    []queuedEvent
	draining bool
}

type queuedEvent struct {
	event string
	run   func(ctx context.Context) error
}

func newDispatcher(ctx context.Context, logger *slog.Logger, observer FaultObserver) *dispatcher {
	return &dispatcher{
		ctx:      context.WithoutCancel(ctx),
		logger:   logger,
		observer: observer,
	}
}

// child shares ctx, logger and observer but keeps its own listeners.
func (d *dispatcher) child(logger *slog.Logger) *dispatcher {
	return &dispatcher{ctx: d.ctx, logger: logger, observer: d.observer}
}

// dispatch queues run behind every earlier event and returns immediately.
// The worker goroutine exists only while the queue is non-empty.
func (d *dispatcher) dispatch(event string, run func(ctx context.Context) error) {
	d.qmu.Lock()
	d.queue = append(d.queue, queuedEvent{event: event, run: run})
	start := !d.draining
	d.draining = true
	d.qmu.Unlock()

	if start {
		go d.drain()
	}
}

func (d *dispatcher) drain() {
	for {
		d.qmu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.queue = nil
			d.qmu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue[0] = queuedEvent{}
		d.queue = d.queue[1:]
		d.qmu.Unlock()

		d.invoke(next)
	}
}

func (d *dispatcher) invoke(e queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.fault(e.event, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := e.run(d.ctx); err != nil {
		d.fault(e.event, err)
	}
}

func (d *dispatcher) fault(event string, err error) {
	d.logger.Warn("event handler failed", "event", event, "error", err)
	if d.observer != nil {
		d.observer(event, err)
	}
}

// retain keeps release until teardown. After teardown it runs at once.
func (d *dispatcher) retain(release func()) {
	if release == nil {
		return
	}
	d.mu.Lock()
	if d.torndown {
		d.mu.Unlock()
		release()
		return
	}
	d.releases = append(d.releases, release)
	d.mu.Unlock()
}

// teardown releases every retained listener exactly once.
func (d *dispatcher) teardown() {
	d.once.Do(func() {
		d.mu.Lock()
		releases := d.releases
		d.releases = nil
		d.torndown = true
		d.mu.Unlock()

		for _, release := range releases {
			release()
		}
		if len(releases) > 0 {
			d.logger.Debug("released event listeners", "count", len(releases))
		}
	})
}

// retained reports how many listeners are held.
func (d *dispatcher) retained() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.releases)
}
