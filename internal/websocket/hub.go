package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/xelth-com/f8tracker/internal/models"
	"go.uber.org/zap"
)

// Message types pushed to clients or received from them.
const (
	MsgOrderEdit   = "ORDER_EDIT"
	MsgOrderEdited = "ORDER_EDITED"
	MsgAck         = "ACK"
	MsgError       = "ERROR"
)

// Editor applies an edit received from a client.
type Editor interface {
	ApplyEdit(ctx context.Context, e models.Edit) (models.Order, error)
}

// Envelope is the frame sent for every pushed message.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: client id -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}
	done       chan struct{}

	editor  Editor
	dedup   *Deduplicator
	log     *zap.Logger
	onCount func(int)

	mu sync.RWMutex
	// read pumps still running, each possibly inside an edit
	pumps    sync.WaitGroup
	stopOnce sync.Once
}

// NewHub creates a new Hub instance. editor may be nil for a push-only hub.
func NewHub(editor Editor, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		editor:     editor,
		dedup:      NewDeduplicator(5 * time.Minute),
		log:        log,
	}
}

// OnClientCount registers a callback fired whenever the client count
// changes. Call it before Run.
func (h *Hub) OnClientCount(fn func(int)) {
	h.onCount = fn
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client connected", zap.String("client", client.ID))
			h.countChanged(n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.closeSend()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client disconnected", zap.String("client", client.ID))
			h.countChanged(n)

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.trySend(message) {
					// slow consumer; it catches up on the next full refresh
					h.log.Warn("ws client buffer full, message dropped", zap.String("client", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				client.closeSend()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run, closes every client and waits until no client is still
// reading or applying an edit. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		<-h.done
		h.pumps.Wait()
	})
}

// Broadcast queues a typed message for every client. It never blocks.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Type: msgType, Data: payload})
	if err != nil {
		h.log.Error("marshal ws message", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("ws broadcast queue full, message dropped", zap.String("type", msgType))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) countChanged(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
