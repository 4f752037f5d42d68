package ws

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/status"

	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/ratelimit"
	"github.com/velora/chat-core/internal/usecase"
)

// Session is the authenticated lifetime of one connection. It dispatches
// inbound events to the chat use case and writes replies and error events
// back through the hub. All event handling is sequential per connection:
// the read pump delivers one frame at a time.
type Session struct {
	user         *models.User
	connectionID string
	ip           string

	client   *Client
	hub      *Hub
	chat     *usecase.ChatUseCase
	limits   *ratelimit.Bank
	validate *validator.Validate

	closeOnce sync.Once
}

func newSession(user *models.User, connectionID, ip string, client *Client, hub *Hub, chat *usecase.ChatUseCase, limits *ratelimit.Bank) *Session {
	return &Session{
		user:         user,
		connectionID: connectionID,
		ip:           ip,
		client:       client,
		hub:          hub,
		chat:         chat,
		limits:       limits,
		validate:     validator.New(),
	}
}

// Handle dispatches one inbound frame. Malformed frames and unknown events
// produce an error event on the same connection; nothing is broadcast.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var inbound InboundEvent
	if err := json.Unmarshal(raw, &inbound); err != nil {
		s.sendError("malformed event")
		return
	}

	switch inbound.Event {
	case models.EventSendMessage:
		s.handleSendMessage(ctx, inbound.Data)
	case models.EventTyping:
		s.handleTyping(ctx, inbound.Data, true)
	case models.EventStopTyping:
		s.handleTyping(ctx, inbound.Data, false)
	case models.EventJoinChannel:
		s.handleJoinChannel(ctx, inbound.Data)
	case models.EventLeaveChannel:
		s.handleLeaveChannel(ctx, inbound.Data)
	case models.EventAddReaction:
		s.handleReaction(ctx, inbound.Data, true)
	case models.EventRemoveReaction:
		s.handleReaction(ctx, inbound.Data, false)
	case models.EventMarkRead:
		s.handleMarkRead(ctx, inbound.Data)
	case models.EventRequestHistory:
		s.handleHistory(ctx, inbound.Data)
	default:
		s.sendError("unknown event: " + inbound.Event)
	}
}

func (s *Session) handleSendMessage(ctx context.Context, data json.RawMessage) {
	// the message budget is charged per connection before anything else
	if ok, _ := s.limits.Message.Allow(s.connectionID); !ok {
		s.sendError(errorMessage(models.ErrRateLimited))
		return
	}

	// a send that fails shape validation carries the same error the use
	// case reports for bad content, so clients handle one code path
	var payload models.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(errorMessage(models.ErrInvalidContent))
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		s.sendError(errorMessage(models.ErrInvalidContent))
		return
	}

	message, err := s.chat.SendMessage(ctx, usecase.SendMessageParams{
		Sender:      s.user,
		SenderIP:    s.ip,
		ChannelID:   payload.ChannelID,
		Content:     payload.Content,
		MessageType: payload.MessageType,
		ParentID:    payload.ParentMessageID,
		Mentions:    payload.Mentions,
		Attachments: payload.Attachments,
	})
	if err != nil {
		s.sendError(errorMessage(err))
		return
	}

	log.Debugw(ctx, "message sent",
		"message_id", message.ID.Hex(),
		"channel_id", payload.ChannelID,
		"user_id", s.user.ID.Hex())
}

// handleTyping drops over-limit and invalid signals silently: typing is
// ephemeral and not worth an error round trip.
func (s *Session) handleTyping(ctx context.Context, data json.RawMessage, isTyping bool) {
	if ok, _ := s.limits.Typing.Allow(s.user.ID.Hex()); !ok {
		return
	}

	var payload models.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChannelID == "" {
		return
	}

	s.chat.Typing(ctx, s.user.ID, payload.ChannelID, isTyping)
}

func (s *Session) handleJoinChannel(ctx context.Context, data json.RawMessage) {
	var payload models.ChannelPayload
	if !s.decode(data, &payload) {
		return
	}

	channel, err := s.chat.JoinChannel(ctx, s.user, s.ip, payload.ChannelID)
	if err != nil {
		s.sendError(errorMessage(err))
		return
	}
	s.send(models.EventChannelJoined, models.ChannelAckEvent{ChannelID: channel.ID.Hex()})
}

func (s *Session) handleLeaveChannel(ctx context.Context, data json.RawMessage) {
	var payload models.ChannelPayload
	if !s.decode(data, &payload) {
		return
	}

	if err := s.chat.LeaveChannel(ctx, s.user.ID, payload.ChannelID); err != nil {
		s.sendError(errorMessage(err))
		return
	}
	s.send(models.EventChannelLeft, models.ChannelAckEvent{ChannelID: payload.ChannelID})
}

func (s *Session) handleReaction(ctx context.Context, data json.RawMessage, add bool) {
	var payload models.ReactionPayload
	if !s.decode(data, &payload) {
		return
	}

	var err error
	if add {
		_, err = s.chat.AddReaction(ctx, s.user, s.ip, payload.MessageID, payload.Emoji)
	} else {
		_, err = s.chat.RemoveReaction(ctx, s.user, s.ip, payload.MessageID, payload.Emoji)
	}
	if err != nil {
		s.sendError(errorMessage(err))
	}
}

func (s *Session) handleMarkRead(ctx context.Context, data json.RawMessage) {
	var payload models.MarkReadPayload
	if !s.decode(data, &payload) {
		return
	}

	event, err := s.chat.MarkMessagesRead(ctx, s.user, s.ip, payload.ChannelID, payload.MessageIDs)
	if err != nil {
		s.sendError(errorMessage(err))
		return
	}
	// the broadcast excludes the reader, echo the result back directly
	s.send(models.EventMessagesRead, event)
}

func (s *Session) handleHistory(ctx context.Context, data json.RawMessage) {
	var payload models.HistoryPayload
	if !s.decode(data, &payload) {
		return
	}

	history, err := s.chat.ChannelHistory(ctx, s.user, s.ip, payload.ChannelID, payload.Before, payload.Limit)
	if err != nil {
		s.sendError(errorMessage(err))
		return
	}
	s.send(models.EventChannelHistory, history)
}

// Close tears the session down once, regardless of which pump noticed the
// disconnect first.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.chat.Disconnect(ctx, s.user, s.connectionID)
		s.hub.Unregister(s.client)
		s.limits.Message.Reset(s.connectionID)
	})
}

func (s *Session) decode(data json.RawMessage, payload any) bool {
	if err := json.Unmarshal(data, payload); err != nil {
		s.sendError("malformed payload")
		return false
	}
	if err := s.validate.Struct(payload); err != nil {
		s.sendError("invalid payload: " + err.Error())
		return false
	}
	return true
}

func (s *Session) send(event string, data any) {
	s.hub.Emit(s.client, event, data)
}

func (s *Session) sendError(message string) {
	s.hub.Emit(s.client, models.EventError, models.ErrorEvent{Message: message})
}

// errorMessage strips the grpc wrapping so the wire carries only the
// human-readable description.
func errorMessage(err error) string {
	return status.Convert(err).Message()
}
