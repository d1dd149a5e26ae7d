package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Send once the client is closed.
var ErrClosed = errors.New("signal: client closed")

// ClientConfig holds signaling client configuration
type ClientConfig struct {
	URL          string // hub websocket URL, see RoomURL
	Codec        Codec  // defaults to JSONCodec
	PingInterval time.Duration
	Logger       *slog.Logger
}

// Client is one participant's connection to a hub room.
type Client struct {
	conn   *websocket.Conn
	codec  Codec
	logger *slog.Logger

	id    string
	room  string
	peers []string

	pingInterval time.Duration
	msgChan      chan Message
	errChan      chan error
	sendChan     chan Message
	closeChan    chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// RoomURL builds the websocket URL of room on the hub at base, which may use
// an http(s) or ws(s) scheme.
func RoomURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rooms/" + url.PathEscape(room) + "/ws"
	return u.String(), nil
}

// Dial connects to a hub room and waits for the welcome message.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Codec == nil {
		cfg.Codec = JSONCodec
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{cfg.Codec.Subprotocol()},
	}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to hub (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to hub: %w", err)
	}

	codec, err := CodecFor(conn.Subprotocol())
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{
		conn:         conn,
		codec:        codec,
		logger:       cfg.Logger,
		pingInterval: cfg.PingInterval,
		msgChan:      make(chan Message, 100),
		errChan:      make(chan error, 1),
		sendChan:     make(chan Message, sendQueueSize),
		closeChan:    make(chan struct{}),
	}

	if err := c.awaitWelcome(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	c.logger = c.logger.With("room", c.room, "peer", c.id)
	c.logger.Info("connected to signaling hub", "peers", len(c.peers), "subprotocol", codec.Subprotocol())

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()

	return c, nil
}

func (c *Client) awaitWelcome(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("waiting for welcome: %w", err)
	}
	msg, err := c.codec.Unmarshal(data)
	if err != nil {
		return err
	}
	switch msg.Type {
	case TypeWelcome:
	case TypeError:
		return fmt.Errorf("hub refused join: %s", msg.Error)
	default:
		return fmt.Errorf("expected welcome, got %q", msg.Type)
	}

	c.id = msg.To
	c.room = msg.Room
	c.peers = msg.Peers
	return nil
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.msgChan)

	pongWait := 2*c.pingInterval + writeWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// the hub pings too; answering counts as liveness on both sides
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeChan:
			default:
				c.logger.Error("signaling read error", "error", err)
				c.errChan <- err
			}
			return
		}

		msg, err := c.codec.Unmarshal(data)
		if err != nil {
			c.logger.Warn("failed to decode signaling message", "error", err)
			continue
		}
		c.logger.Debug("received signaling message", "type", msg.Type, "from", msg.From)

		select {
		case c.msgChan <- msg:
		case <-c.closeChan:
			return
		}
	}
}

// writeLoop owns every data frame write and sends keep-alive pings.
func (c *Client) writeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case msg := <-c.sendChan:
			data, err := c.codec.Marshal(msg)
			if err != nil {
				c.logger.Error("failed to encode signaling message", "type", msg.Type, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.logger.Error("signaling write error", "error", err)
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to send ping", "error", err)
			}
		}
	}
}

// Send queues msg for the hub.
func (c *Client) Send(ctx context.Context, msg Message) error {
	select {
	case <-c.closeChan:
		return ErrClosed
	default:
	}
	select {
	case c.sendChan <- msg:
		return nil
	case <-c.closeChan:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MessageChan delivers inbound messages. It is closed when the connection
// ends.
func (c *Client) MessageChan() <-chan Message {
	return c.msgChan
}

// ErrorChan reports the error that ended the connection, if any.
func (c *Client) ErrorChan() <-chan error {
	return c.errChan
}

// ID returns the peer ID the hub assigned.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) Room() string {
	return c.room
}

// Peers returns the members present when the client joined.
func (c *Client) Peers() []string {
	return append([]string(nil), c.peers...)
}

// Close leaves the room and waits for the client's goroutines.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.conn.Close()
	})
	c.wg.Wait()
	return nil
}
