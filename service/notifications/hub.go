package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type ClientConnection struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// Hub pushes events to the websocket connections of online users. It is
// also a Sink; offline users are skipped.
type Hub struct {
	mu          sync.RWMutex
	connections map[uint]map[*ClientConnection]struct{}
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[uint]map[*ClientConnection]struct{}),
		logger:      logger,
	}
}

func (h *Hub) Register(client *ClientConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[client.UserID] == nil {
		h.connections[client.UserID] = make(map[*ClientConnection]struct{})
	}
	h.connections[client.UserID][client] = struct{}{}
}

func (h *Hub) Unregister(client *ClientConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.connections[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; ok {
		delete(conns, client)
		close(client.Send)
	}
	if len(conns) == 0 {
		delete(h.connections, client.UserID)
	}
}

// Close drops every connection. Write pumps see the closed channel and
// send a close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.connections {
		for c := range conns {
			close(c.Send)
		}
	}
	h.connections = make(map[uint]map[*ClientConnection]struct{})
}

func (h *Hub) Name() string { return "websocket" }

// Deliver queues ev on every connection of the recipient. A connection
// whose buffer is full misses the event.
func (h *Hub) Deliver(_ context.Context, recipient *models.User, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections[recipient.ID] {
		select {
		case c.Send <- payload:
		default:
			h.logger.Warn("websocket buffer full, dropping event", zap.String("client", c.ID))
		}
	}
	return nil
}

func (h *Hub) Online(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and attaches the connection to userID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &ClientConnection{
		ID:     uuid.NewString(),
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 32),
		UserID: userID,
	}
	h.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}

// ReadPump discards client frames and keeps the connection alive.
func (c *ClientConnection) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("websocket closed", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *ClientConnection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
