package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/protocol"
)

const defaultSendBuffer = 64

var (
	ErrMaxClientsReached = errors.New("maximum stream clients reached")
	ErrClientNotFound    = errors.New("stream client not found")
	ErrClientSlow        = errors.New("stream client send buffer full")
)

// Client is one subscriber of the alert stream. The transport drains Send()
// and writes each payload to the wire.
type Client struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	send     chan []byte
	lastSent atomic.Int64
}

// Send returns the outbound payload channel. It is closed when the client is
// unregistered.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// LastSentAt returns when a payload was last queued for the client.
func (c *Client) LastSentAt() time.Time {
	ns := c.lastSent.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Hub tracks stream clients and fans alert events out to them.
type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	maxClients int
	bufferSize int
	broadcasts atomic.Uint64
	dropped    atomic.Uint64
}

// NewHub creates a hub that accepts up to maxClients subscribers.
func NewHub(maxClients int) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		maxClients: maxClients,
		bufferSize: defaultSendBuffer,
	}
}

// Register adds a client with a fresh id.
func (h *Hub) Register(remoteAddr string) (*Client, error) {
	return h.RegisterWith(remoteAddr, nil)
}

// RegisterWith adds a client and, when initial is non-nil, queues its result
// as the client's first message. initial runs under the hub lock, so no
// broadcast can reach the client ahead of it.
func (h *Hub) RegisterWith(remoteAddr string, initial func() interface{}) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return nil, ErrMaxClientsReached
	}

	client := &Client{
		ID:          uuid.New().String(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, h.bufferSize),
	}

	if initial != nil {
		payload, err := json.Marshal(initial())
		if err != nil {
			return nil, fmt.Errorf("failed to encode initial stream message: %w", err)
		}
		h.enqueue(client, payload)
	}
	h.clients[client.ID] = client

	log.WithFields(log.Fields{
		"client_id": client.ID,
		"remote":    remoteAddr,
		"clients":   len(h.clients),
	}).Info("stream client registered")

	return client, nil
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	delete(h.clients, id)
	close(client.send)

	log.WithField("client_id", id).Info("stream client unregistered")
	return nil
}

// Get returns a registered client.
func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	return client, ok
}

// Send queues v for a single client.
func (h *Hub) Send(id string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode stream message: %w", err)
	}

	h.mu.RLock()
	client, ok := h.clients[id]
	if !ok {
		h.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	queued := h.enqueue(client, payload)
	h.mu.RUnlock()

	if !queued {
		h.drop(id)
		return ErrClientSlow
	}
	return nil
}

// Broadcast queues v for every client and returns how many accepted it.
// Clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(v interface{}) int {
	payload, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to encode stream broadcast")
		return 0
	}

	var slow []string
	delivered := 0

	h.mu.RLock()
	for id, client := range h.clients {
		if h.enqueue(client, payload) {
			delivered++
		} else {
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.drop(id)
	}
	h.broadcasts.Add(1)
	return delivered
}

// HandleChange forwards an alert log change to every client. It is meant to
// be registered with alertlog.Log.Subscribe.
func (h *Hub) HandleChange(c alertlog.Change) {
	h.Broadcast(protocol.StreamEventFromChange(c))
}

// CloseAll unregisters every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		Clients:    len(h.clients),
		MaxClients: h.maxClients,
		Broadcasts: h.broadcasts.Load(),
		Dropped:    h.dropped.Load(),
	}
}

// HubStats contains statistics about the hub.
type HubStats struct {
	Clients    int    `json:"clients"`
	MaxClients int    `json:"maxClients"`
	Broadcasts uint64 `json:"broadcasts"`
	Dropped    uint64 `json:"dropped"`
}

// enqueue must be called with h.mu held for reading.
func (h *Hub) enqueue(c *Client, payload []byte) bool {
	select {
	case c.send <- payload:
		c.lastSent.Store(time.Now().UnixNano())
		return true
	default:
		return false
	}
}

func (h *Hub) drop(id string) {
	if err := h.Unregister(id); err == nil {
		h.dropped.Add(1)
		log.WithField("client_id", id).Warn("dropped slow stream client")
	}
}
