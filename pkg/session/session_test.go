//go:build !js

package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/silviot/unirtc/pkg/rtc"
	"github.com/silviot/unirtc/pkg/signal"
)

const testTimeout = 30 * time.Second

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func startHub(t *testing.T) string {
	t.Helper()
	hub := signal.NewHub(signal.HubConfig{Logger: testLogger()})
	srv := httptest.NewServer(hub.Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv.URL
}

func newTestManager(t *testing.T, hubURL string, codec signal.Codec, onChannel ChannelHandler) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{
		SignalURL:  hubURL,
		Codec:      codec,
		RTCOptions: []rtc.Option{rtc.WithLoopbackCandidates(), rtc.WithEngineLogFilter("off")},
		OnChannel:  onChannel,
		Logger:     testLogger(),
	})
	t.Cleanup(func() { m.Close() })
	return m
}

type greeting struct {
	from string
	text string
}

// greeter answers every channel with "Hello!" and reports what it hears.
func greeter(got chan<- greeting) ChannelHandler {
	return func(ctx context.Context, peerID string, dc *rtc.DataChannel) error {
		dc.OnMessage(func(ctx context.Context, msg rtc.Message) error {
			got <- greeting{from: peerID, text: string(msg.Data)}
			return nil
		})
		dc.OnOpen(func(ctx context.Context) error {
			return dc.SendText(ctx, "Hello!")
		})
		return nil
	}
}

func expectGreeting(t *testing.T, got <-chan greeting, from string) {
	t.Helper()
	select {
	case g := <-got:
		if g.from != from || g.text != "Hello!" {
			t.Errorf("greeting = %+v, want Hello! from %s", g, from)
		}
	case <-time.After(testTimeout):
		t.Fatalf("no greeting from %s", from)
	}
}

func TestRoomMembersExchangeGreetings(t *testing.T) {
	hubURL := startHub(t)
	ctx := context.Background()

	gotA := make(chan greeting, 4)
	gotB := make(chan greeting, 4)
	a := newTestManager(t, hubURL, signal.JSONCodec, greeter(gotA))
	b := newTestManager(t, hubURL, signal.CBORCodec, greeter(gotB))

	roomA, err := a.JoinRoom(ctx, "lobby")
	if err != nil {
		t.Fatalf("a JoinRoom: %v", err)
	}
	roomB, err := b.JoinRoom(ctx, "lobby")
	if err != nil {
		t.Fatalf("b JoinRoom: %v", err)
	}

	expectGreeting(t, gotA, roomB.ID())
	expectGreeting(t, gotB, roomA.ID())

	if peers := roomA.Peers(); len(peers) != 1 || peers[0] != roomB.ID() {
		t.Errorf("a peers = %v", peers)
	}

	report, err := roomA.Stats(ctx, roomB.ID())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(report.CandidatePairs()) == 0 {
		t.Error("no candidate pairs for a connected peer")
	}

	if err := b.LeaveRoom("lobby"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	deadline := time.Now().Add(testTimeout)
	for len(roomA.Peers()) != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if peers := roomA.Peers(); len(peers) != 0 {
		t.Errorf("a still linked to %v after b left", peers)
	}
}

func TestJoinRoomTwiceReturnsSameRoom(t *testing.T) {
	m := newTestManager(t, startHub(t), nil, nil)

	first, err := m.JoinRoom(context.Background(), "solo")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	second, err := m.JoinRoom(context.Background(), "solo")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if first != second || m.RoomCount() != 1 {
		t.Errorf("second join created a new room (count %d)", m.RoomCount())
	}

	if err := m.LeaveRoom("solo"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if err := m.LeaveRoom("solo"); err == nil {
		t.Error("leaving an unknown room should fail")
	}
}

func TestJoinRoomUnreachableHub(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:1", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.JoinRoom(ctx, "lobby"); err == nil {
		t.Fatal("joined through an unreachable hub")
	}
	if m.RoomCount() != 0 {
		t.Error("failed join left a room behind")
	}
}

func TestLinkBuffersCandidatesUntilRemoteDescription(t *testing.T) {
	ctx := context.Background()
	pc, err := rtc.NewPeerConnection(ctx, rtc.Configuration{}, rtc.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close(ctx)
	l := newLink("remote", pc, testLogger())

	candidate := &rtc.IceCandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host"}
	if err := l.addCandidate(ctx, candidate); err != nil {
		t.Fatalf("addCandidate: %v", err)
	}
	if err := l.addCandidate(ctx, nil); err != nil {
		t.Fatalf("addCandidate(nil): %v", err)
	}

	l.mu.Lock()
	pending := len(l.pending)
	l.mu.Unlock()
	if pending != 2 {
		t.Errorf("pending = %d, want 2", pending)
	}

	for i := 0; i < maxPendingCandidates; i++ {
		l.addCandidate(ctx, candidate)
	}
	l.mu.Lock()
	pending = len(l.pending)
	l.mu.Unlock()
	if pending != maxPendingCandidates {
		t.Errorf("pending = %d, want cap %d", pending, maxPendingCandidates)
	}
}

// TestChannelReadyRacingClose hands channels over from another goroutine,
// as rtc handlers do, while the room is being closed and drained.
func TestChannelReadyRacingClose(t *testing.T) {
	url, err := signal.RoomURL(startHub(t), "late")
	if err != nil {
		t.Fatalf("RoomURL: %v", err)
	}
	client, err := signal.Dial(context.Background(), signal.ClientConfig{URL: url, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	var calls atomic.Int32
	r := newRoom("late", url, client, ManagerConfig{
		Logger: testLogger(),
		OnChannel: func(ctx context.Context, peerID string, dc *rtc.DataChannel) error {
			calls.Add(1)
			return nil
		},
	})

	stop := make(chan struct{})
	var spinner sync.WaitGroup
	spinner.Add(1)
	go func() {
		defer spinner.Done()
		for {
			select {
			case <-stop:
				return
			default:
				r.channelReady("remote", nil)
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	r.close()
	r.wg.Wait()
	settled := calls.Load()

	r.channelReady("remote", nil)
	close(stop)
	spinner.Wait()
	time.Sleep(20 * time.Millisecond)

	if settled == 0 {
		t.Error("no channel was handed over before close")
	}
	if got := calls.Load(); got != settled {
		t.Errorf("%d channel handlers ran after the room closed", got-settled)
	}
}

func TestControlAPI(t *testing.T) {
	m := newTestManager(t, startHub(t), nil, nil)
	router := gin.New()
	m.RegisterRoutes(router)
	api := httptest.NewServer(router)
	defer api.Close()

	do := func(method, path, body string, want int) map[string]any {
		t.Helper()
		req, _ := http.NewRequest(method, api.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s %s status = %d, want %d", method, path, resp.StatusCode, want)
		}
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		return out
	}

	do(http.MethodPost, "/api/v1/rooms", `{}`, http.StatusBadRequest)

	joined := do(http.MethodPost, "/api/v1/rooms", `{"room":"ops"}`, http.StatusOK)
	if joined["room"] != "ops" || joined["peer"] == "" {
		t.Errorf("join response = %v", joined)
	}

	room := do(http.MethodGet, "/api/v1/rooms/ops", "", http.StatusOK)
	if room["peer"] != joined["peer"] {
		t.Errorf("room peer = %v, want %v", room["peer"], joined["peer"])
	}

	if health := do(http.MethodGet, "/healthz", "", http.StatusOK); health["rooms"] != float64(1) {
		t.Errorf("health = %v", health)
	}

	do(http.MethodDelete, "/api/v1/rooms/ops", "", http.StatusOK)
	do(http.MethodDelete, "/api/v1/rooms/ops", "", http.StatusNotFound)
	do(http.MethodGet, "/api/v1/rooms/ops", "", http.StatusNotFound)
}
