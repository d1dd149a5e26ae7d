// Package rtc is a peer connection API that behaves the same natively, on
// top of pion/webrtc, and in a browser, on top of RTCPeerConnection via
// syscall/js (GOOS=js GOARCH=wasm).
//
// Every blocking operation takes a context. Event handlers run off the
// backend's own goroutines, one at a time per connection or channel and in
// the order the events were raised; the backend never waits for them and
// their errors are only logged and reported to the FaultObserver. A handler
// that blocks holds back later events of the same object.
package rtc

import (
	"context"
	"log/slog"
	"sync"
)

// PeerConnection is safe for concurrent use.
type PeerConnection struct {
	mu       sync.RWMutex
	backend  peerBackend
	bridge   *dispatcher
	logger   *slog.Logger
	channels []*DataChannel
	closed   bool
}

// NewPeerConnection creates a connection. Handlers later registered on it
// see ctx's values, but ctx's cancellation does not reach them.
func NewPeerConnection(ctx context.Context, cfg Configuration, opts ...Option) (*PeerConnection, error) {
	o := buildOptions(opts)
	backend, err := newPeerBackend(ctx, cfg, o)
	if err != nil {
		o.logger.Debug("peer connection creation failed", "error", err)
		if ctx.Err() != nil {
			return nil, canceled(ctx, ErrPeerCreation)
		}
		return nil, ErrPeerCreation
	}
	o.logger.Debug("peer connection created", "iceServers", len(cfg.IceServers), "policy", cfg.IceTransportPolicy.String())
	return &PeerConnection{
		backend: backend,
		bridge:  newDispatcher(ctx, o.logger, o.observer),
		logger:  o.logger,
	}, nil
}

// handle returns the backend; the lock is not held during backend calls.
func (pc *PeerConnection) handle() peerBackend {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.backend
}

// fail logs the backend detail and returns the sentinel only.
func (pc *PeerConnection) fail(ctx context.Context, op string, sentinel *Error, err error) error {
	pc.logger.Debug("peer connection operation failed", "op", op, "error", err)
	if ctx.Err() != nil {
		return canceled(ctx, sentinel)
	}
	return sentinel
}

// CreateOffer creates an offer for the remote peer.
func (pc *PeerConnection) CreateOffer(ctx context.Context) (SessionDescription, error) {
	offer, err := pc.handle().createOffer(ctx)
	if err != nil {
		return SessionDescription{}, pc.fail(ctx, "create offer", ErrOfferCreation, err)
	}
	return offer, nil
}

// CreateAnswer answers the remote offer already set.
func (pc *PeerConnection) CreateAnswer(ctx context.Context) (SessionDescription, error) {
	answer, err := pc.handle().createAnswer(ctx)
	if err != nil {
		return SessionDescription{}, pc.fail(ctx, "create answer", ErrAnswerCreation, err)
	}
	return answer, nil
}

// SetLocalDescription applies desc locally and starts candidate gathering.
func (pc *PeerConnection) SetLocalDescription(ctx context.Context, desc SessionDescription) error {
	if desc.IsZero() {
		return ErrSetLocalDescription
	}
	if err := pc.handle().setLocalDescription(ctx, desc); err != nil {
		return pc.fail(ctx, "set local description", ErrSetLocalDescription, err)
	}
	return nil
}

// SetRemoteDescription applies the remote peer's offer or answer.
func (pc *PeerConnection) SetRemoteDescription(ctx context.Context, desc SessionDescription) error {
	if desc.IsZero() {
		return ErrSetRemoteDescription
	}
	if err := pc.handle().setRemoteDescription(ctx, desc); err != nil {
		return pc.fail(ctx, "set remote description", ErrSetRemoteDescription, err)
	}
	return nil
}

// AddICECandidate adds a remote candidate. A nil candidate marks the end of
// remote candidates; before any remote description exists there is nothing
// to end and the call succeeds without reaching the backend.
func (pc *PeerConnection) AddICECandidate(ctx context.Context, candidate *IceCandidateInit) error {
	backend := pc.handle()
	if candidate == nil {
		if _, ok := backend.remoteDescription(); !ok {
			if ctx.Err() != nil {
				return canceled(ctx, ErrCandidateAdd)
			}
			return nil
		}
	}
	if err := backend.addICECandidate(ctx, candidate); err != nil {
		return pc.fail(ctx, "add ice candidate", ErrCandidateAdd, err)
	}
	return nil
}

// CreateDataChannel opens a channel with the given label. The zero
// DataChannelInit asks for an ordered, reliable channel.
func (pc *PeerConnection) CreateDataChannel(ctx context.Context, label string, init DataChannelInit) (*DataChannel, error) {
	backend := pc.handle()
	ch, err := backend.createDataChannel(ctx, label, init)
	if err != nil {
		return nil, pc.fail(ctx, "create data channel", ErrChannelCreation, err)
	}
	return pc.track(ch), nil
}

// track wraps ch and ties its listeners to the connection's lifetime.
func (pc *PeerConnection) track(ch channelBackend) *DataChannel {
	logger := pc.logger.With("channel", ch.label())
	dc := newDataChannel(ch, pc.bridge.child(logger), logger)

	pc.mu.Lock()
	closed := pc.closed
	if !closed {
		pc.channels = append(pc.channels, dc)
	}
	pc.mu.Unlock()

	if closed {
		dc.bridge.teardown()
	}
	return dc
}

// OnConnectionStateChange replaces the connection state handler.
func (pc *PeerConnection) OnConnectionStateChange(h ConnectionStateHandler) {
	pc.register(func(backend peerBackend) func() {
		return backend.onConnectionStateChange(func(state PeerConnectionState) {
			if h == nil {
				return
			}
			pc.bridge.dispatch("connectionstatechange", func(ctx context.Context) error {
				return h(ctx, state)
			})
		})
	})
}

// OnICECandidate replaces the local candidate handler. The handler receives
// nil when gathering is complete.
func (pc *PeerConnection) OnICECandidate(h ICECandidateHandler) {
	pc.register(func(backend peerBackend) func() {
		return backend.onICECandidate(func(c candidateBackend) {
			if h == nil {
				return
			}
			var candidate *IceCandidate
			if c != nil {
				candidate = &IceCandidate{handle: c, logger: pc.logger}
			}
			pc.bridge.dispatch("icecandidate", func(ctx context.Context) error {
				return h(ctx, candidate)
			})
		})
	})
}

// OnDataChannel replaces the handler for channels opened by the remote peer.
func (pc *PeerConnection) OnDataChannel(h DataChannelHandler) {
	pc.register(func(backend peerBackend) func() {
		return backend.onDataChannel(func(ch channelBackend) {
			dc := pc.track(ch)
			if h == nil {
				return
			}
			pc.bridge.dispatch("datachannel", func(ctx context.Context) error {
				return h(ctx, dc)
			})
		})
	})
}

// register installs a listener under the write lock and keeps its release
// func until Close.
func (pc *PeerConnection) register(install func(peerBackend) func()) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return
	}
	pc.bridge.retain(install(pc.backend))
}

// Stats returns candidate pair and candidate statistics. Other report
// kinds are dropped.
func (pc *PeerConnection) Stats(ctx context.Context) (StatsReport, error) {
	records, err := pc.handle().stats(ctx)
	if err != nil {
		return nil, pc.fail(ctx, "get stats", ErrStatsFetch, err)
	}
	return translateStats(records), nil
}

// ConnectionState returns the current connection state.
func (pc *PeerConnection) ConnectionState() PeerConnectionState {
	return pc.handle().connectionState()
}

// LocalDescription reports false until a local description is set.
func (pc *PeerConnection) LocalDescription() (SessionDescription, bool) {
	return pc.handle().localDescription()
}

// RemoteDescription reports false until a remote description is set.
func (pc *PeerConnection) RemoteDescription() (SessionDescription, bool) {
	return pc.handle().remoteDescription()
}

// Close shuts the connection down and releases every listener installed on
// it and on its channels. Calling Close again returns nil.
func (pc *PeerConnection) Close(ctx context.Context) error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil
	}
	pc.closed = true
	backend := pc.backend
	channels := pc.channels
	pc.channels = nil
	pc.mu.Unlock()

	err := backend.close()

	for _, dc := range channels {
		dc.bridge.teardown()
	}
	pc.bridge.teardown()

	if err != nil {
		return pc.fail(ctx, "close", ErrClose, err)
	}
	pc.logger.Debug("peer connection closed", "channels", len(channels))
	return nil
}
