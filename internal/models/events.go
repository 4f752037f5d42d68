package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inbound (client -> server) event names.
const (
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventJoinChannel    = "join_channel"
	EventLeaveChannel   = "leave_channel"
	EventAddReaction    = "add_reaction"
	EventRemoveReaction = "remove_reaction"
	EventMarkRead       = "mark_messages_read"
	EventRequestHistory = "request_channel_history"
)

// Outbound (server -> client) event names.
const (
	EventNewMessage     = "new_message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventUserTyping     = "user_typing"
	EventChannelJoined  = "channel_joined"
	EventChannelLeft    = "channel_left"
	EventChannelHistory = "channel_history"
	EventReactionAdded  = "reaction_added"
	EventReactionRemove = "reaction_removed"
	EventMessagesRead   = "messages_read"
	EventUserPresence   = "user_presence"
	EventMention        = "mention_notification"
	EventError          = "error"
)

// HistoryLimitMax caps request_channel_history page sizes.
const HistoryLimitMax = 100

type SendMessagePayload struct {
	ChannelID       string       `json:"channelId" validate:"required"`
	Content         string       `json:"content"`
	MessageType     string       `json:"messageType,omitempty"`
	ParentMessageID string       `json:"parentMessageId,omitempty"`
	Mentions        []string     `json:"mentions,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

type TypingPayload struct {
	ChannelID string `json:"channelId" validate:"required"`
	IsTyping  bool   `json:"isTyping"`
}

type ChannelPayload struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type MarkReadPayload struct {
	ChannelID  string   `json:"channelId" validate:"required"`
	MessageIDs []string `json:"messageIds" validate:"required,min=1"`
}

type HistoryPayload struct {
	ChannelID string `json:"channelId" validate:"required"`
	Before    string `json:"before,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type UserTypingEvent struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
	IsTyping  bool   `json:"isTyping"`
}

type ReactionEvent struct {
	MessageID string     `json:"messageId"`
	Emoji     string     `json:"emoji"`
	UserID    string     `json:"userId"`
	Reactions []Reaction `json:"reactions"`
}

type MessagesReadEvent struct {
	UserID     string    `json:"userId"`
	ChannelID  string    `json:"channelId"`
	MessageIDs []string  `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

type UserPresenceEvent struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type MentionEvent struct {
	Message *Message `json:"message"`
	Channel *Channel `json:"channel"`
}

type ChannelHistoryEvent struct {
	ChannelID string     `json:"channelId"`
	Messages  []*Message `json:"messages"`
	HasMore   bool       `json:"hasMore"`
}

type ChannelAckEvent struct {
	ChannelID string `json:"channelId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// ParseObjectID converts a wire channel/message id, mapping failures to the
// domain validation error so handlers reject malformed ids uniformly.
func ParseObjectID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidContent
	}
	return id, nil
}
