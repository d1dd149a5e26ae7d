// Package session joins signaling rooms and keeps one peer connection, with
// one data channel, to every other member.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/silviot/unirtc/pkg/rtc"
	"github.com/silviot/unirtc/pkg/signal"
)

// ChannelHandler is called once per remote peer when its data channel is
// available: created locally by the offering side, announced by the remote
// side otherwise. Register channel handlers from here.
type ChannelHandler func(ctx context.Context, peerID string, dc *rtc.DataChannel) error

// Manager manages multiple rooms
type Manager struct {
	rooms  map[string]*Room // room name -> Room
	mu     sync.RWMutex
	logger *slog.Logger
	cfg    ManagerConfig
}

// ManagerConfig holds configuration for the session manager
type ManagerConfig struct {
	SignalURL    string       // hub base URL
	Codec        signal.Codec // defaults to JSON
	RTC          rtc.Configuration
	RTCOptions   []rtc.Option
	ChannelLabel string // defaults to "data"
	MaxPeers     int    // per room; defaults to 100
	OnChannel    ChannelHandler
	Logger       *slog.Logger
}

// NewManager creates a new session manager
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Codec == nil {
		cfg.Codec = signal.JSONCodec
	}
	if cfg.ChannelLabel == "" {
		cfg.ChannelLabel = "data"
	}
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 100
	}

	return &Manager{
		rooms:  make(map[string]*Room),
		logger: cfg.Logger,
		cfg:    cfg,
	}
}

// JoinRoom connects to the hub room and starts negotiating with its members.
// Joining a room twice returns the existing Room.
func (m *Manager) JoinRoom(ctx context.Context, name string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, exists := m.rooms[name]; exists {
		m.logger.Info("room already joined", "room", name)
		return room, nil
	}

	url, err := signal.RoomURL(m.cfg.SignalURL, name)
	if err != nil {
		return nil, err
	}
	client, err := signal.Dial(ctx, signal.ClientConfig{URL: url, Codec: m.cfg.Codec, Logger: m.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to join room %s: %w", name, err)
	}

	room := newRoom(name, url, client, m.cfg)
	m.rooms[name] = room

	room.wg.Add(1)
	go room.orchestrationLoop()

	m.logger.Info("room joined", "room", name, "peer", client.ID(), "members", len(client.Peers()))

	return room, nil
}

// LeaveRoom closes the room and every peer connection in it
func (m *Manager) LeaveRoom(name string) error {
	m.mu.Lock()
	room, exists := m.rooms[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("room not found: %s", name)
	}
	delete(m.rooms, name)
	m.mu.Unlock()

	room.close()

	// Wait for all goroutines
	done := make(chan struct{})
	go func() {
		room.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.logger.Warn("room cleanup timeout", "room", name)
	}

	m.logger.Info("room left", "room", name)

	return nil
}

// Room returns a joined room
func (m *Manager) Room(name string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

// RoomCount returns the number of active rooms
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// PeerCount returns the number of peer connections across all rooms
func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, room := range m.rooms {
		count += len(room.Peers())
	}
	return count
}

// Close leaves every room
func (m *Manager) Close() error {
	m.mu.Lock()
	names := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		if err := m.LeaveRoom(name); err != nil {
			m.logger.Error("failed to leave room during shutdown", "room", name, "error", err)
		}
	}

	return nil
}
