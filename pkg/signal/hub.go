package signal

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait           = 10 * time.Second
	maxMessageSize      = 64 << 10
	sendQueueSize       = 64
	maxRoomNameLength   = 64
	DefaultPingInterval = 25 * time.Second
)

// HubConfig holds hub configuration
type HubConfig struct {
	Logger *slog.Logger
	// AllowedOrigins restricts browser origins; empty or "*" allows any.
	AllowedOrigins []string
	PingInterval   time.Duration
	// MaxRoomSize caps members per room; 0 means no limit.
	MaxRoomSize int
}

// Hub relays signaling messages between the members of named rooms. Rooms
// exist while they have members.
type Hub struct {
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	origins      []string
	pingInterval time.Duration
	maxRoomSize  int

	mu     sync.RWMutex
	rooms  map[string]*room
	closed bool
}

type room struct {
	members map[string]*participant
	order   []string // join order
}

type participant struct {
	id    string
	room  string
	conn  *websocket.Conn
	codec Codec
	send  chan Message
	done  chan struct{}
	once  sync.Once
}

// NewHub creates a hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if slices.Contains(cfg.AllowedOrigins, "*") {
		cfg.AllowedOrigins = nil
	}

	h := &Hub{
		logger:       cfg.Logger.With("component", "signal-hub"),
		origins:      cfg.AllowedOrigins,
		pingInterval: cfg.PingInterval,
		maxRoomSize:  cfg.MaxRoomSize,
		rooms:        make(map[string]*room),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{SubprotocolCBOR, SubprotocolJSON},
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	// non-browser clients send no Origin
	return origin == "" || slices.Contains(h.origins, origin)
}

// Router returns the HTTP handler serving the hub.
func (h *Hub) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.logRequests)

	config := cors.DefaultConfig()
	if len(h.origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = h.origins
	}
	config.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", h.health)
	rooms := router.Group("/rooms")
	rooms.GET("/:room", h.getRoom)
	rooms.GET("/:room/ws", h.join)

	return router
}

func (h *Hub) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

func (h *Hub) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": h.RoomCount()})
}

func (h *Hub) getRoom(c *gin.Context) {
	name := c.Param("room")
	if !validRoomName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": name, "peers": h.Peers(name)})
}

func (h *Hub) join(c *gin.Context) {
	name := c.Param("room")
	if !validRoomName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		return
	}
	h.mu.RLock()
	closed := h.closed
	full := h.maxRoomSize > 0 && h.rooms[name] != nil && len(h.rooms[name].members) >= h.maxRoomSize
	h.mu.RUnlock()
	if closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub is shutting down"})
		return
	}
	if full {
		c.JSON(http.StatusConflict, gin.H{"error": "room is full"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Warn("websocket upgrade failed", "room", name, "error", err)
		return
	}
	codec, err := CodecFor(conn.Subprotocol())
	if err != nil {
		h.logger.Error("negotiated unknown subprotocol", "error", err)
		conn.Close()
		return
	}

	p := &participant{
		id:    uuid.NewString(),
		room:  name,
		conn:  conn,
		codec: codec,
		send:  make(chan Message, sendQueueSize),
		done:  make(chan struct{}),
	}
	go h.writeLoop(p)

	if err := h.add(p); err != nil {
		p.enqueue(h.logger, Message{Type: TypeError, Room: name, Error: err.Error()})
		p.close()
		return
	}
	h.logger.Info("participant joined", "room", name, "peer", p.id, "subprotocol", codec.Subprotocol())

	h.readLoop(p)

	h.remove(p)
	p.close()
	h.logger.Info("participant left", "room", name, "peer", p.id)
}

// add registers p, queues its welcome and announces it. The welcome is
// queued under the lock so it precedes any message about later arrivals.
func (h *Hub) add(p *participant) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("hub is shutting down")
	}
	r := h.rooms[p.room]
	if r == nil {
		r = &room{members: make(map[string]*participant)}
		h.rooms[p.room] = r
	}
	if h.maxRoomSize > 0 && len(r.members) >= h.maxRoomSize {
		return fmt.Errorf("room is full")
	}

	peers := slices.Clone(r.order)
	r.members[p.id] = p
	r.order = append(r.order, p.id)

	p.enqueue(h.logger, Message{Type: TypeWelcome, To: p.id, Room: p.room, Peers: peers})
	for _, id := range peers {
		r.members[id].enqueue(h.logger, Message{Type: TypeJoin, From: p.id, Room: p.room})
	}
	return nil
}

func (h *Hub) remove(p *participant) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.rooms[p.room]
	if r == nil || r.members[p.id] != p {
		return
	}
	delete(r.members, p.id)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == p.id })
	if len(r.members) == 0 {
		delete(h.rooms, p.room)
		return
	}
	for _, id := range r.order {
		r.members[id].enqueue(h.logger, Message{Type: TypeLeave, From: p.id, Room: p.room})
	}
}

// route forwards offers, answers and candidates to their recipient.
func (h *Hub) route(from *participant, msg Message) {
	if !msg.routed() {
		from.enqueue(h.logger, Message{Type: TypeError, Room: from.room, Error: fmt.Sprintf("unexpected message type %q", msg.Type)})
		return
	}
	if msg.To == "" {
		from.enqueue(h.logger, Message{Type: TypeError, Room: from.room, Error: "missing recipient"})
		return
	}
	msg.From = from.id
	msg.Room = from.room

	h.mu.RLock()
	var target *participant
	if r := h.rooms[from.room]; r != nil {
		target = r.members[msg.To]
	}
	if target != nil {
		target.enqueue(h.logger, msg)
	}
	h.mu.RUnlock()

	if target == nil {
		from.enqueue(h.logger, Message{Type: TypeError, Room: from.room, To: msg.To, Error: "unknown peer"})
		return
	}
	h.logger.Debug("relayed message", "room", from.room, "type", msg.Type, "from", from.id, "to", msg.To)
}

func (h *Hub) pongWait() time.Duration {
	return 2*h.pingInterval + writeWait
}

func (h *Hub) readLoop(p *participant) {
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read error", "peer", p.id, "error", err)
			}
			return
		}

		msg, err := p.codec.Unmarshal(data)
		if err != nil {
			h.logger.Debug("undecodable message", "peer", p.id, "error", err)
			p.enqueue(h.logger, Message{Type: TypeError, Room: p.room, Error: "malformed message"})
			continue
		}
		h.route(p, msg)
	}
}

// writeLoop owns every write to p.conn and closes it on exit.
func (h *Hub) writeLoop(p *participant) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			if err := p.write(msg); err != nil {
				h.logger.Debug("websocket write failed", "peer", p.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.logger.Debug("ping failed", "peer", p.id, "error", err)
				return
			}
		case <-p.done:
			// flush what was queued before the close, e.g. a final error
			for {
				select {
				case msg := <-p.send:
					if p.write(msg) != nil {
						return
					}
				default:
					p.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

func (p *participant) write(msg Message) error {
	data, err := p.codec.Marshal(msg)
	if err != nil {
		return err
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(p.codec.FrameType(), data)
}

// enqueue never blocks; a participant that cannot keep up is disconnected.
func (p *participant) enqueue(logger *slog.Logger, msg Message) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.send <- msg:
	default:
		logger.Warn("send queue full, disconnecting", "peer", p.id, "room", p.room)
		p.close()
	}
}

func (p *participant) close() {
	p.once.Do(func() { close(p.done) })
}

// RoomCount returns the number of rooms with members
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Peers returns the members of a room in join order.
func (h *Hub) Peers(name string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peers := []string{}
	if r := h.rooms[name]; r != nil {
		peers = append(peers, r.order...)
	}
	return peers
}

// Close disconnects every participant and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*participant
	for _, r := range h.rooms {
		for _, p := range r.members {
			all = append(all, p)
		}
	}
	h.mu.Unlock()

	for _, p := range all {
		p.close()
	}
	h.logger.Info("hub closed", "participants", len(all))
}

func validRoomName(name string) bool {
	if name == "" || len(name) > maxRoomNameLength {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
