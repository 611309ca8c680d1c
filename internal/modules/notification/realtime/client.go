package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"anoa.com/tunehub/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is a WebSocket connection of one authenticated user.
type Client struct {
	id       string
	userID   uuid.UUID
	conn     *websocket.Conn
	registry *Registry
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	log      *slog.Logger
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, registry *Registry, bufferSize int, log *slog.Logger) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		conn:     conn,
		registry: registry,
		send:     make(chan []byte, max(bufferSize, 1)),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (c *Client) ID() string { return c.id }

// Send queues ev for the write pump. It fails fast when the client is
// closed or its buffer is full.
func (c *Client) Send(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Run registers the client and blocks until the peer goes away.
func (c *Client) Run() {
	c.registry.Register(c.userID, c)
	c.log.Debug("notification socket connected",
		logger.UserID(c.userID),
		logger.ConnectionID(c.id),
		slog.Int("user_connections", len(c.registry.ConnectionsFor(c.userID))),
	)

	go c.writePump()
	c.readPump()

	c.registry.Unregister(c.id, c.userID)
	_ = c.Close()
	c.log.Debug("notification socket disconnected", logger.UserID(c.userID), logger.ConnectionID(c.id))
}

// readPump discards client frames; it exists to process control frames
// and notice disconnects.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("notification socket read failed", logger.ConnectionID(c.id), logger.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("notification socket write failed", logger.ConnectionID(c.id), logger.Error(err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
