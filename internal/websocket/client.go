package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xelth-com/f8tracker/internal/models"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Time allowed for one edit to be applied.
	editTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte

	// guards send against delivery after the hub closed it
	mu     sync.Mutex
	closed bool
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the client is already closed.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel once; writePump then ends the
// connection.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// inbound is a client frame. Only ORDER_EDIT is acted upon.
type inbound struct {
	Type  string `json:"type"`
	MsgID string `json:"msgId,omitempty"`
	ID    string `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// reply answers an inbound frame by msgId.
type reply struct {
	Type  string        `json:"type"`
	MsgID string        `json:"msgId,omitempty"`
	Order *models.Order `json:"order,omitempty"`
	Error string        `json:"error,omitempty"`
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer c.hub.pumps.Done()
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("ws read error", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendJSON(reply{Type: MsgError, Error: "malformed message"})
			continue
		}
		if msg.Type != MsgOrderEdit {
			continue
		}
		if c.hub.dedup.IsDuplicate(msg.MsgID) {
			c.hub.log.Debug("duplicate ws edit ignored", zap.String("msgId", msg.MsgID))
			continue
		}
		c.handleEdit(msg)
	}
}

func (c *Client) handleEdit(msg inbound) {
	if c.hub.editor == nil {
		c.sendJSON(reply{Type: MsgError, MsgID: msg.MsgID, Error: "edits not accepted"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), editTimeout)
	defer cancel()

	order, err := c.hub.editor.ApplyEdit(ctx, models.Edit{ID: msg.ID, Field: msg.Field, Value: msg.Value})
	if err != nil {
		c.sendJSON(reply{Type: MsgError, MsgID: msg.MsgID, Error: err.Error()})
		return
	}
	c.sendJSON(reply{Type: MsgAck, MsgID: msg.MsgID, Order: &order})
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON queues a direct reply. A full buffer or a closed client drops
// the reply.
func (c *Client) sendJSON(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	if !c.trySend(msg) {
		c.hub.log.Debug("ws reply dropped", zap.String("client", c.ID))
	}
}

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		ID:   "web_" + uuid.New().String(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	// counted before registering so Stop never misses a pump
	hub.pumps.Add(1)
	select {
	case hub.register <- client:
	case <-hub.done:
		hub.pumps.Done()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
