package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is the JSON frame pushed to websocket clients.
type Event struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data, SentAt: time.Now().UTC()}, nil
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

func NewClient(userID uuid.UUID, conn *WebSocketConn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
}

// Hub tracks the websocket clients connected to this process, indexed by
// user. A user may hold several connections.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// RegisterClient reports false once the hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Deliver writes a raw frame to every connection of userID. Slow clients
// whose buffer is full miss the frame.
func (h *Hub) Deliver(userID uuid.UUID, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- frame:
			sent++
		default:
			h.log.Warn().Str("client_id", client.ID).Msg("send buffer full, dropping frame")
		}
	}
	return sent
}

// Notify delivers an event to the local connections of userID only. It is
// used when no Redis is configured.
func (h *Hub) Notify(_ context.Context, userID uuid.UUID, eventType string, payload any) error {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Deliver(userID, frame)
	return nil
}

// Connected returns the number of open connections of userID.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[string]*Client)
			}
			h.clients[client.UserID][client.ID] = client
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.ID).Str("user_id", client.UserID.String()).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.UserID]; ok {
				if old, ok := conns[client.ID]; ok {
					delete(conns, client.ID)
					close(old.Send)
				}
				if len(conns) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.ID).Msg("client unregistered")

		case <-ctx.Done():
			h.mu.Lock()
			for userID, conns := range h.clients {
				for _, c := range conns {
					close(c.Send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}
