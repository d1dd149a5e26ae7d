package rtc

import (
	"context"
	"log/slog"
	"sync"
)

// maxPendingMessages bounds what a channel holds before OnMessage is set.
const maxPendingMessages = 256

// DataChannel is safe for concurrent use. Its backend listeners are
// installed once, when the channel is handed out, and live until the owning
// PeerConnection is closed. Events that fire before the matching handler is
// registered are held for it: messages are queued (up to
// maxPendingMessages), and a missed open or close is delivered on
// registration.
type DataChannel struct {
	mu      sync.RWMutex
	backend channelBackend
	bridge  *dispatcher
	logger  *slog.Logger

	openHandler    OpenHandler
	closeHandler   CloseHandler
	messageHandler MessageHandler

	missedOpen  bool
	missedClose bool
	pending     []Message
}

func newDataChannel(backend channelBackend, bridge *dispatcher, logger *slog.Logger) *DataChannel {
	dc := &DataChannel{backend: backend, bridge: bridge, logger: logger}
	bridge.retain(backend.onOpen(dc.opened))
	bridge.retain(backend.onClose(dc.closed))
	bridge.retain(backend.onMessage(dc.received))
	return dc
}

func (dc *DataChannel) handle() channelBackend {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.backend
}

// Label returns the label the channel was created with.
func (dc *DataChannel) Label() string {
	return dc.handle().label()
}

// ReadyState returns the channel's current state.
func (dc *DataChannel) ReadyState() DataChannelState {
	return dc.handle().readyState()
}

// Send transmits a binary message. It fails unless the channel is open.
func (dc *DataChannel) Send(ctx context.Context, data []byte) error {
	if err := dc.handle().send(ctx, data); err != nil {
		return dc.fail(ctx, "send", ErrSendFailure, err)
	}
	return nil
}

// SendText transmits a text message. It fails unless the channel is open.
func (dc *DataChannel) SendText(ctx context.Context, text string) error {
	if err := dc.handle().sendText(ctx, text); err != nil {
		return dc.fail(ctx, "send text", ErrSendFailure, err)
	}
	return nil
}

// Close closes the channel. Its listeners stay installed until the owning
// PeerConnection is closed, so a later close event still reaches OnClose.
func (dc *DataChannel) Close() error {
	if err := dc.handle().close(); err != nil {
		dc.logger.Debug("data channel close failed", "error", err)
		return ErrClose
	}
	return nil
}

func (dc *DataChannel) fail(ctx context.Context, op string, sentinel *Error, err error) error {
	dc.logger.Debug("data channel operation failed", "op", op, "error", err)
	if ctx.Err() != nil {
		return canceled(ctx, sentinel)
	}
	return sentinel
}

// OnOpen replaces the open handler.
func (dc *DataChannel) OnOpen(h OpenHandler) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.openHandler = h
	if h != nil && dc.missedOpen {
		dc.missedOpen = false
		dc.dispatchOpen(h)
	}
}

// OnClose replaces the close handler.
func (dc *DataChannel) OnClose(h CloseHandler) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.closeHandler = h
	if h != nil && dc.missedClose {
		dc.missedClose = false
		dc.dispatchClose(h)
	}
}

// OnMessage replaces the message handler. Payloads are delivered as
// received and in order; text is UTF-8 on both backends. Held messages are
// queued ahead of any that arrive afterwards.
func (dc *DataChannel) OnMessage(h MessageHandler) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.messageHandler = h
	if h == nil {
		return
	}
	for _, msg := range dc.pending {
		dc.dispatchMessage(h, msg)
	}
	dc.pending = nil
}

// The sinks below queue under dc.mu so that registration and delivery see
// one order. dispatch never blocks.

func (dc *DataChannel) opened() {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.openHandler == nil {
		dc.missedOpen = true
		return
	}
	dc.dispatchOpen(dc.openHandler)
}

func (dc *DataChannel) closed() {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.closeHandler == nil {
		dc.missedClose = true
		return
	}
	dc.dispatchClose(dc.closeHandler)
}

func (dc *DataChannel) received(msg Message) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.messageHandler != nil {
		dc.dispatchMessage(dc.messageHandler, msg)
		return
	}
	if len(dc.pending) < maxPendingMessages {
		dc.pending = append(dc.pending, msg)
	} else {
		dc.logger.Warn("dropping message, no handler registered", "bytes", len(msg.Data))
	}
}

func (dc *DataChannel) dispatchOpen(h OpenHandler) {
	dc.bridge.dispatch("open", func(ctx context.Context) error {
		return h(ctx)
	})
}

func (dc *DataChannel) dispatchClose(h CloseHandler) {
	dc.bridge.dispatch("close", func(ctx context.Context) error {
		return h(ctx)
	})
}

func (dc *DataChannel) dispatchMessage(h MessageHandler, msg Message) {
	dc.bridge.dispatch("message", func(ctx context.Context) error {
		return h(ctx, msg)
	})
}
