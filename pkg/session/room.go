package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/silviot/unirtc/pkg/rtc"
	"github.com/silviot/unirtc/pkg/signal"
)

// Room is one membership in a hub room. Signaling messages are handled one
// at a time by the orchestration loop.
type Room struct {
	Name string

	url    string
	cfg    ManagerConfig
	client *signal.Client
	links  map[string]*link // remote peer ID -> link
	mu     sync.RWMutex
	closed bool // guarded by mu; no wg.Add after it is set
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func newRoom(name, url string, client *signal.Client, cfg ManagerConfig) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		Name:   name,
		url:    url,
		cfg:    cfg,
		client: client,
		links:  make(map[string]*link),
		ctx:    ctx,
		cancel: cancel,
		logger: cfg.Logger.With("room", name),
	}
}

// ID returns the peer ID the hub assigned to this member.
func (r *Room) ID() string {
	return r.signaling().ID()
}

// Peers returns the remote peers this member holds a connection to.
func (r *Room) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]string, 0, len(r.links))
	for id := range r.links {
		peers = append(peers, id)
	}
	return peers
}

// Stats returns the connection statistics for one remote peer.
func (r *Room) Stats(ctx context.Context, peerID string) (rtc.StatsReport, error) {
	l := r.link(peerID)
	if l == nil {
		return nil, fmt.Errorf("unknown peer %s", peerID)
	}
	return l.pc.Stats(ctx)
}

func (r *Room) signaling() *signal.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

func (r *Room) link(peerID string) *link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.links[peerID]
}

// send addresses msg to peerID through the current signaling connection.
func (r *Room) send(ctx context.Context, peerID string, msg signal.Message) error {
	msg.To = peerID
	return r.signaling().Send(ctx, msg)
}

// orchestrationLoop manages room-level coordination
func (r *Room) orchestrationLoop() {
	defer r.wg.Done()

	for {
		client := r.signaling()
		msgCh := client.MessageChan()
		errCh := client.ErrorChan()

	inner:
		for {
			select {
			case <-r.ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					break inner
				}
				r.handleMessage(msg)
			case err := <-errCh:
				r.logger.Warn("signaling connection error", "error", err)
				break inner
			}
		}

		select {
		case <-r.ctx.Done():
			return
		default:
		}
		r.logger.Warn("signaling connection lost, reconnecting")
		r.reconnect()
	}
}

// reconnect drops every link, since the hub hands out a new peer ID, and
// dials again with backoff.
func (r *Room) reconnect() {
	r.closeLinks()
	r.signaling().Close()

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(backoff):
		}

		client, err := signal.Dial(r.ctx, signal.ClientConfig{URL: r.url, Codec: r.cfg.Codec, Logger: r.cfg.Logger})
		if err != nil {
			r.logger.Error("signaling reconnection failed", "error", err, "nextBackoff", backoff*2)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		r.mu.Lock()
		r.client = client
		r.mu.Unlock()
		r.logger.Info("signaling reconnected", "peer", client.ID())
		return
	}
}

// handleMessage routes signaling messages appropriately
func (r *Room) handleMessage(msg signal.Message) {
	switch msg.Type {
	case signal.TypeJoin:
		r.handleJoin(msg.From)
	case signal.TypeLeave:
		r.logger.Info("peer left room", "peer", msg.From)
		r.removeLink(msg.From)
	case signal.TypeOffer:
		r.handleOffer(msg)
	case signal.TypeAnswer:
		r.handleAnswer(msg)
	case signal.TypeCandidate:
		r.handleCandidate(msg)
	case signal.TypeError:
		r.logger.Warn("hub reported an error", "error", msg.Error, "to", msg.To)
	default:
		r.logger.Debug("unhandled signaling message type", "type", msg.Type)
	}
}

// handleJoin offers a connection to a newcomer. Existing members always
// offer, so two members never offer to each other.
func (r *Room) handleJoin(peerID string) {
	r.logger.Info("peer joined room", "peer", peerID)

	l, err := r.addLink(peerID)
	if err != nil {
		r.logger.Error("failed to create peer connection", "peer", peerID, "error", err)
		return
	}

	ctx := r.ctx
	dc, err := l.pc.CreateDataChannel(ctx, r.cfg.ChannelLabel, rtc.DataChannelInit{})
	if err != nil {
		r.logger.Error("failed to create data channel", "peer", peerID, "error", err)
		r.removeLink(peerID)
		return
	}
	r.channelReady(peerID, dc)

	offer, err := l.pc.CreateOffer(ctx)
	if err != nil {
		r.logger.Error("failed to create offer", "peer", peerID, "error", err)
		r.removeLink(peerID)
		return
	}
	// queue the offer before gathering starts so that it precedes our
	// candidates on the signaling connection
	if err := r.send(ctx, peerID, signal.Message{Type: signal.TypeOffer, Description: signal.NewDescription(offer)}); err != nil {
		r.logger.Error("failed to send offer", "peer", peerID, "error", err)
		r.removeLink(peerID)
		return
	}
	if err := l.pc.SetLocalDescription(ctx, offer); err != nil {
		r.logger.Error("failed to apply offer", "peer", peerID, "error", err)
		r.removeLink(peerID)
	}
}

// handleOffer answers an offer, creating the link for a first offer.
func (r *Room) handleOffer(msg signal.Message) {
	offer, err := msg.Description.SessionDescription()
	if err != nil || offer.Type() != rtc.SDPTypeOffer {
		r.logger.Warn("invalid offer", "peer", msg.From, "error", err)
		return
	}

	l := r.link(msg.From)
	if l == nil {
		if l, err = r.addLink(msg.From); err != nil {
			r.logger.Error("failed to create peer connection", "peer", msg.From, "error", err)
			return
		}
	}

	ctx := r.ctx
	if err := l.setRemoteDescription(ctx, offer); err != nil {
		r.logger.Error("failed to apply offer", "peer", msg.From, "error", err)
		return
	}

	answer, err := l.pc.CreateAnswer(ctx)
	if err != nil {
		r.logger.Error("failed to create answer", "peer", msg.From, "error", err)
		return
	}
	if err := r.send(ctx, msg.From, signal.Message{Type: signal.TypeAnswer, Description: signal.NewDescription(answer)}); err != nil {
		r.logger.Error("failed to send answer", "peer", msg.From, "error", err)
		return
	}
	if err := l.pc.SetLocalDescription(ctx, answer); err != nil {
		r.logger.Error("failed to apply answer", "peer", msg.From, "error", err)
	}
}

func (r *Room) handleAnswer(msg signal.Message) {
	l := r.link(msg.From)
	if l == nil {
		r.logger.Warn("answer from unknown peer", "peer", msg.From)
		return
	}
	answer, err := msg.Description.SessionDescription()
	if err != nil || answer.Type() != rtc.SDPTypeAnswer {
		r.logger.Warn("invalid answer", "peer", msg.From, "error", err)
		return
	}
	if err := l.setRemoteDescription(r.ctx, answer); err != nil {
		r.logger.Error("failed to apply answer", "peer", msg.From, "error", err)
	}
}

func (r *Room) handleCandidate(msg signal.Message) {
	l := r.link(msg.From)
	if l == nil {
		r.logger.Debug("candidate from unknown peer", "peer", msg.From)
		return
	}
	if err := l.addCandidate(r.ctx, msg.Candidate); err != nil {
		r.logger.Debug("failed to add ICE candidate", "peer", msg.From, "error", err)
	}
}

// addLink creates the peer connection to peerID and wires its events to
// the signaling connection.
func (r *Room) addLink(peerID string) (*link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[peerID]; exists {
		return nil, fmt.Errorf("peer %s already linked", peerID)
	}
	if len(r.links) >= r.cfg.MaxPeers {
		r.logger.Warn("peer capacity reached for room")
		return nil, errors.New("room at capacity")
	}

	logger := r.logger.With("peer", peerID)
	opts := append([]rtc.Option{rtc.WithLogger(logger)}, r.cfg.RTCOptions...)
	pc, err := rtc.NewPeerConnection(r.ctx, r.cfg.RTC, opts...)
	if err != nil {
		return nil, err
	}
	l := newLink(peerID, pc, logger)

	pc.OnICECandidate(func(ctx context.Context, c *rtc.IceCandidate) error {
		msg := signal.Message{Type: signal.TypeCandidate}
		if c != nil {
			init, err := c.ToInit()
			if err != nil {
				return err
			}
			msg.Candidate = &init
		}
		return r.send(ctx, peerID, msg)
	})
	pc.OnConnectionStateChange(func(ctx context.Context, state rtc.PeerConnectionState) error {
		logger.Info("peer connection state changed", "state", state.String())
		return nil
	})
	pc.OnDataChannel(func(ctx context.Context, dc *rtc.DataChannel) error {
		logger.Debug("remote data channel announced", "label", dc.Label())
		r.channelReady(peerID, dc)
		return nil
	})

	r.links[peerID] = l
	return l, nil
}

// channelReady hands dc to the application on its own goroutine, as the
// orchestration loop must not wait for it. It is called from rtc handler
// goroutines too, so the wg.Add is serialized with close under r.mu.
func (r *Room) channelReady(peerID string, dc *rtc.DataChannel) {
	if r.cfg.OnChannel == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := r.cfg.OnChannel(r.ctx, peerID, dc); err != nil {
			r.logger.Warn("channel handler failed", "peer", peerID, "error", err)
		}
	}()
}

// removeLink closes the connection to peerID, if any.
func (r *Room) removeLink(peerID string) {
	r.mu.Lock()
	l, exists := r.links[peerID]
	delete(r.links, peerID)
	r.mu.Unlock()

	if !exists {
		return
	}
	if err := l.pc.Close(context.Background()); err != nil {
		r.logger.Error("failed to close peer connection", "peer", peerID, "error", err)
	}
}

func (r *Room) closeLinks() {
	r.mu.Lock()
	links := r.links
	r.links = make(map[string]*link)
	r.mu.Unlock()

	for id, l := range links {
		if err := l.pc.Close(context.Background()); err != nil {
			r.logger.Error("failed to close peer connection", "peer", id, "error", err)
		}
	}
}

func (r *Room) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.closeLinks()
	if err := r.signaling().Close(); err != nil {
		r.logger.Error("failed to close signaling client", "error", err)
	}
}
