package rtc

import (
	"context"
	"log/slog"
)

// peerBackend is what the facade needs from a connectivity engine. Listener
// setters take synchronous sinks and return a release func (nil when the
// backend has nothing to release). Each setter replaces the previous sink.
type peerBackend interface {
	createOffer(ctx context.Context) (SessionDescription, error)
	createAnswer(ctx context.Context) (SessionDescription, error)
	setLocalDescription(ctx context.Context, desc SessionDescription) error
	setRemoteDescription(ctx context.Context, desc SessionDescription) error
	// addICECandidate forwards nil as end-of-candidates.
	addICECandidate(ctx context.Context, candidate *IceCandidateInit) error
	createDataChannel(ctx context.Context, label string, init DataChannelInit) (channelBackend, error)
	stats(ctx context.Context) ([]statsRecord, error)

	connectionState() PeerConnectionState
	localDescription() (SessionDescription, bool)
	remoteDescription() (SessionDescription, bool)
	close() error

	onConnectionStateChange(sink func(PeerConnectionState)) func()
	// onICECandidate passes a nil candidateBackend when gathering completes.
	onICECandidate(sink func(candidateBackend)) func()
	onDataChannel(sink func(channelBackend)) func()
}

type channelBackend interface {
	label() string
	readyState() DataChannelState
	send(ctx context.Context, data []byte) error
	sendText(ctx context.Context, text string) error
	close() error

	onOpen(sink func()) func()
	onClose(sink func()) func()
	onMessage(sink func(Message)) func()
}

type candidateBackend interface {
	toInit() (IceCandidateInit, error)
	String() string
}

// DataChannelInit configures a locally created channel. Nil fields take the
// backend default (ordered, reliable).
type DataChannelInit struct {
	Ordered        *bool
	MaxRetransmits *uint16
}

// Option adjusts NewPeerConnection
type Option func(*options)

type options struct {
	logger             *slog.Logger
	observer           FaultObserver
	engineLogFilter    string
	loopbackCandidates bool
}

// WithLogger sets the logger for the connection, its channels and handler
// faults. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFaultObserver reports handler errors and panics to fn.
func WithFaultObserver(fn FaultObserver) Option {
	return func(o *options) { o.observer = fn }
}

// WithEngineLogFilter sets per-scope levels for the native engine's own
// logging, e.g. "warn,ice=off,mdns=off". Ignored in the browser.
func WithEngineLogFilter(filter string) Option {
	return func(o *options) { o.engineLogFilter = filter }
}

// WithLoopbackCandidates gathers loopback host candidates, which lets two
// peers in one process connect without a network. Ignored in the browser.
func WithLoopbackCandidates() Option {
	return func(o *options) { o.loopbackCandidates = true }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
