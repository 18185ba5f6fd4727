// Package realtime pushes leaderboard snapshots to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shilkatype/server/internal/models"
)

const (
	MessageLeaderboardUpdate = "leaderboard_update"
	MessageError             = "error"
	MessagePing              = "ping"
	MessagePong              = "pong"

	// LoadFailedMessage is sent when the initial snapshot cannot be read
	LoadFailedMessage = "Failed to load leaderboard data"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Snapshot loads the current leaderboard
type Snapshot func(ctx context.Context) ([]models.PublicUser, error)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks websocket clients and fans leaderboard snapshots out to them.
// Without Redis the hub is used directly as the service notifier; with Redis
// it re-broadcasts whatever any instance publishes.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	logger   *slog.Logger
	period   time.Duration
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "realtime"),
		period: pingPeriod,
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Invalidate is a no-op; the hub holds no cached views.
func (h *Hub) Invalidate(ctx context.Context, pattern string) error {
	return nil
}

// PublishLeaderboard broadcasts a snapshot to local clients
func (h *Hub) PublishLeaderboard(ctx context.Context, users []models.PublicUser) error {
	if users == nil {
		users = []models.PublicUser{}
	}
	msg, err := json.Marshal(models.LeaderboardMessage{Type: MessageLeaderboardUpdate, Data: users})
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Broadcast queues msg for every client. Clients whose buffer is full are
// disconnected rather than blocking the caller.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	sent := len(h.clients) - len(slow)
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", "client_id", c.id)
		h.unregister(c)
	}
	h.logger.Debug("broadcast leaderboard", "delivered", sent, "dropped", len(slow))
}

// Serve upgrades the request, sends the initial snapshot and keeps the
// connection registered until the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial Snapshot) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	// The initial message is queued before registration so it is always
	// the first frame the client sees.
	c.send <- h.initialMessage(r.Context(), initial)
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) initialMessage(ctx context.Context, initial Snapshot) []byte {
	msg := models.LeaderboardMessage{Type: MessageLeaderboardUpdate}
	users, err := initial(ctx)
	if err != nil {
		h.logger.Error("failed to load initial leaderboard", "error", err)
		msg = models.LeaderboardMessage{Type: MessageError, Message: LoadFailedMessage}
	} else {
		if users == nil {
			users = []models.PublicUser{}
		}
		msg.Data = users
	}
	raw, _ := json.Marshal(msg)
	return raw
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket connected", "client_id", c.id, "clients", total)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("websocket disconnected", "client_id", c.id, "clients", total)
	}
}

// readPump answers client pings and returns when the connection fails
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)

	for {
		var in struct {
			Type string `json:"type"`
		}
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}
		switch in.Type {
		case MessagePing:
			h.sendTo(c, []byte(`{"type":"pong"}`))
		case MessagePong:
		default:
			h.logger.Warn("unknown websocket message type", "client_id", c.id, "type", in.Type)
		}
	}
}

func (h *Hub) sendTo(c *client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump is the only goroutine writing to the connection
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.period)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
				return
			}
		}
	}
}

// Subscribe re-broadcasts snapshots published on channel until ctx is done
func (h *Hub) Subscribe(ctx context.Context, rdb *redis.Client, channel string) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	h.logger.Info("listening for leaderboard updates", "channel", channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var users []models.PublicUser
			if err := json.Unmarshal([]byte(m.Payload), &users); err != nil {
				h.logger.Error("failed to decode leaderboard update", "error", err)
				continue
			}
			h.PublishLeaderboard(ctx, users)
		}
	}
}
