package usecase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/models"
)

// EventPublisher is the fan-out boundary. The ws hub implements it; tests
// substitute a recorder. Delivery order within one channel follows the
// order of calls; there is no cross-channel guarantee.
type EventPublisher interface {
	BroadcastToChannel(channelID primitive.ObjectID, event string, data any)
	BroadcastToChannelExcept(channelID, exceptUserID primitive.ObjectID, event string, data any)
	SendToUser(userID primitive.ObjectID, event string, data any)
}

// AssistantResponder is the AI extension point. Implementations may reply
// asynchronously by injecting messages through the ingest path on behalf of
// a system sender; the core never blocks a sender on it.
type AssistantResponder interface {
	Trigger(ctx context.Context, channel *models.Channel, message *models.Message) error
}

// PresenceTracker is the in-memory registry of connected users and their
// channel subscriptions.
type PresenceTracker interface {
	Register(userID primitive.ObjectID, connectionID string)
	Unregister(userID primitive.ObjectID, connectionID string) bool
	AddSubscription(userID, channelID primitive.ObjectID)
	RemoveSubscription(userID, channelID primitive.ObjectID)
	IsOnline(userID primitive.ObjectID) bool
	IsSubscribed(userID, channelID primitive.ObjectID) bool
	ChannelSize(channelID primitive.ObjectID) int
	ChannelMembers(channelID primitive.ObjectID) []primitive.ObjectID
	Subscriptions(userID primitive.ObjectID) []primitive.ObjectID
}
