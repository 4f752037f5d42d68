package ws

import (
	"context"
	"sync"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/config"
)

const sendBufferSize = 256

// Client is one websocket connection. The read pump feeds inbound frames to
// the session; the write pump drains the send buffer and keeps the
// connection alive with pings. A consumer that cannot drain its buffer is
// severed rather than allowed to stall fan-out.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	session      *Session
	userID       primitive.ObjectID
	connectionID string
	ip           string

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID primitive.ObjectID, connectionID, ip string, conf config.ServerConfig) *Client {
	conn.SetReadLimit(conf.MaxMessageSize)
	return &Client{
		hub:          hub,
		conn:         conn,
		userID:       userID,
		connectionID: connectionID,
		ip:           ip,
		pingInterval: conf.PingInterval,
		pongTimeout:  conf.PongTimeout,
		writeTimeout: conf.WriteTimeout,
		send:         make(chan []byte, sendBufferSize),
	}
}

// enqueue hands a pre-encoded frame to the write pump without blocking the
// hub. On a full buffer the connection is closed; the read pump notices and
// runs the normal teardown.
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Warnw(context.Background(), "send buffer full, dropping connection",
			"user_id", c.userID.Hex(),
			"connection_id", c.connectionID)
		c.closed = true
		go c.conn.Close()
	}
}

// shutdown closes the send channel exactly once. Called by the hub on
// unregister.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.session.Close(ctx)
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnw(ctx, "websocket read failed",
					"connection_id", c.connectionID,
					"error", err)
			}
			return
		}
		c.session.Handle(ctx, raw)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debugw(ctx, "websocket write failed",
					"connection_id", c.connectionID,
					"error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
