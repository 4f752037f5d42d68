// Package presence tracks which users are connected and which channels each
// of them subscribes to. The table lives only in process memory: it is
// rebuilt from scratch on restart and must never be treated as durable.
package presence

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is the per-user presence entry. A user may hold several live
// connections at once (multiple tabs or devices); the record stays until the
// last one unregisters. Subscriptions are per user, not per connection.
type Record struct {
	Connections map[string]struct{}
	LastSeen    time.Time
	Channels    map[primitive.ObjectID]struct{}
}

type Tracker struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*Record
	now   func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		users: make(map[primitive.ObjectID]*Record),
		now:   time.Now,
	}
}

// Register adds connectionID to the user's presence record, creating the
// record on the first connection. Existing subscriptions survive, so a second
// tab joins the user's current channel set instead of resetting it.
func (t *Tracker) Register(userID primitive.ObjectID, connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[userID]
	if !ok {
		rec = &Record{
			Connections: make(map[string]struct{}),
			Channels:    make(map[primitive.ObjectID]struct{}),
		}
		t.users[userID] = rec
	}
	rec.Connections[connectionID] = struct{}{}
	rec.LastSeen = t.now()
}

// Unregister removes connectionID from the user's record and reports whether
// the user went offline, which happens only when the last connection is gone.
// An unknown connection id (a stale disconnect, or a double disconnect) is a
// no-op and must not tear down the surviving connections' state.
func (t *Tracker) Unregister(userID primitive.ObjectID, connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[userID]
	if !ok {
		return false
	}
	if _, ok := rec.Connections[connectionID]; !ok {
		return false
	}
	delete(rec.Connections, connectionID)
	if len(rec.Connections) > 0 {
		rec.LastSeen = t.now()
		return false
	}
	delete(t.users, userID)
	return true
}

func (t *Tracker) AddSubscription(userID, channelID primitive.ObjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.users[userID]; ok {
		rec.Channels[channelID] = struct{}{}
		rec.LastSeen = t.now()
	}
}

func (t *Tracker) RemoveSubscription(userID, channelID primitive.ObjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.users[userID]; ok {
		delete(rec.Channels, channelID)
		rec.LastSeen = t.now()
	}
}

func (t *Tracker) IsOnline(userID primitive.ObjectID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.users[userID]
	return ok
}

// IsSubscribed reports whether userID currently subscribes to channelID.
func (t *Tracker) IsSubscribed(userID, channelID primitive.ObjectID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.users[userID]
	if !ok {
		return false
	}
	_, ok = rec.Channels[channelID]
	return ok
}

// ChannelSize counts the users currently subscribed to channelID.
func (t *Tracker) ChannelSize(channelID primitive.ObjectID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.users {
		if _, ok := rec.Channels[channelID]; ok {
			n++
		}
	}
	return n
}

// ChannelMembers returns the user ids subscribed to channelID.
func (t *Tracker) ChannelMembers(channelID primitive.ObjectID) []primitive.ObjectID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := make([]primitive.ObjectID, 0, 8)
	for userID, rec := range t.users {
		if _, ok := rec.Channels[channelID]; ok {
			members = append(members, userID)
		}
	}
	return members
}

// Subscriptions returns a copy of the user's channel set, for the
// disconnect flow's final presence broadcast.
func (t *Tracker) Subscriptions(userID primitive.ObjectID) []primitive.ObjectID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.users[userID]
	if !ok {
		return nil
	}
	channels := make([]primitive.ObjectID, 0, len(rec.Channels))
	for id := range rec.Channels {
		channels = append(channels, id)
	}
	return channels
}

// OnlineUsers returns the ids of every registered user.
func (t *Tracker) OnlineUsers() []primitive.ObjectID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]primitive.ObjectID, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	return ids
}
