package ws

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/usecase"
)

var _ usecase.EventPublisher = (*Hub)(nil)

// Hub owns the set of live connections and performs all fan-out. A user may
// hold several connections at once (multiple tabs, devices); every event
// addressed to the user goes to all of them. Channel routing is resolved
// through the presence tracker, the hub itself knows nothing about
// membership.
type Hub struct {
	tracker usecase.PresenceTracker

	mu    sync.RWMutex
	users map[primitive.ObjectID]map[string]*Client

	// fanMu serializes sequence stamping with delivery. Without it two
	// concurrent sends could enqueue to different clients in different
	// orders, so one client would see seq numbers go backwards.
	fanMu sync.Mutex
	seq   uint64
}

func NewHub(tracker usecase.PresenceTracker) *Hub {
	return &Hub{
		tracker: tracker,
		users:   make(map[primitive.ObjectID]map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[client.userID]
	if !ok {
		conns = make(map[string]*Client)
		h.users[client.userID] = conns
	}
	conns[client.connectionID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[client.userID]
	if !ok {
		return
	}
	if current, ok := conns[client.connectionID]; !ok || current != client {
		return
	}
	delete(conns, client.connectionID)
	if len(conns) == 0 {
		delete(h.users, client.userID)
	}
	client.shutdown()
}

// Connections reports the number of live connections for a user.
func (h *Hub) Connections(userID primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) BroadcastToChannel(channelID primitive.ObjectID, event string, data any) {
	h.broadcast(channelID, nil, event, data)
}

func (h *Hub) BroadcastToChannelExcept(channelID, exceptUserID primitive.ObjectID, event string, data any) {
	h.broadcast(channelID, &exceptUserID, event, data)
}

func (h *Hub) broadcast(channelID primitive.ObjectID, except *primitive.ObjectID, event string, data any) {
	h.fanMu.Lock()
	defer h.fanMu.Unlock()

	payload, ok := h.encode(event, data)
	if !ok {
		return
	}

	members := h.tracker.ChannelMembers(channelID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range members {
		if except != nil && userID == *except {
			continue
		}
		for _, client := range h.users[userID] {
			client.enqueue(payload)
		}
	}
}

func (h *Hub) SendToUser(userID primitive.ObjectID, event string, data any) {
	h.fanMu.Lock()
	defer h.fanMu.Unlock()

	payload, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.users[userID] {
		client.enqueue(payload)
	}
}

// Emit delivers an event to a single connection, bypassing channel routing.
// Session replies (acks, errors, history pages) use this path.
func (h *Hub) Emit(client *Client, event string, data any) {
	h.fanMu.Lock()
	defer h.fanMu.Unlock()

	payload, ok := h.encode(event, data)
	if !ok {
		return
	}
	client.enqueue(payload)
}

// encode stamps the next sequence number and marshals the envelope once so
// every recipient gets identical bytes. Callers hold fanMu, which keeps the
// stamped order and the delivery order the same.
func (h *Hub) encode(event string, data any) ([]byte, bool) {
	h.seq++
	envelope := Event{
		Seq:   h.seq,
		Event: event,
		Data:  data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Errorw(context.Background(), "failed to encode event", "event", event, "error", err)
		return nil, false
	}
	return payload, true
}
