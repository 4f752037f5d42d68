package usecase

import (
	"context"
	"strings"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/repo/mongodb"
)

// ChatUseCase coordinates the message flows: persist-then-broadcast for
// sends, ephemeral fan-out for typing, idempotent mutations for reactions
// and read receipts, and the connect/disconnect presence lifecycle.
type ChatUseCase struct {
	directory   *DirectoryUseCase
	channelRepo mongodb.ChannelRepository
	messageRepo mongodb.MessageRepository
	userRepo    mongodb.UserRepository
	tracker     PresenceTracker
	publisher   EventPublisher
	assistant   AssistantResponder
}

func NewChatUseCase(
	directory *DirectoryUseCase,
	channelRepo mongodb.ChannelRepository,
	messageRepo mongodb.MessageRepository,
	userRepo mongodb.UserRepository,
	tracker PresenceTracker,
	publisher EventPublisher,
	assistant AssistantResponder,
) *ChatUseCase {
	return &ChatUseCase{
		directory:   directory,
		channelRepo: channelRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		tracker:     tracker,
		publisher:   publisher,
		assistant:   assistant,
	}
}

// RegisterSession is the join-on-connect step: the user is registered with
// the presence tracker, subscribed to every channel the directory returns,
// and announced online to each of them.
func (uc *ChatUseCase) RegisterSession(ctx context.Context, user *models.User, connectionID string) ([]*models.Channel, error) {
	channels, err := uc.directory.ListChannelsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	uc.tracker.Register(user.ID, connectionID)
	for _, ch := range channels {
		uc.tracker.AddSubscription(user.ID, ch.ID)
	}

	if err := uc.userRepo.SetOnline(ctx, user.ID, true); err != nil {
		log.Warnw(ctx, "failed to persist online flag", "user_id", user.ID.Hex(), "error", err)
	}

	presence := models.UserPresenceEvent{
		UserID:   user.ID.Hex(),
		Status:   "online",
		LastSeen: time.Now(),
	}
	for _, ch := range channels {
		uc.publisher.BroadcastToChannelExcept(ch.ID, user.ID, models.EventUserPresence, presence)
	}

	log.Infow(ctx, "session registered",
		"user_id", user.ID.Hex(),
		"connection_id", connectionID,
		"channels", len(channels))
	return channels, nil
}

// Disconnect tears down one connection's presence state. The offline
// broadcast and the persisted offline flag fire only when the user's last
// connection goes away; closing one of several tabs, a stale connection id,
// or a double disconnect all return early.
func (uc *ChatUseCase) Disconnect(ctx context.Context, user *models.User, connectionID string) {
	subscribed := uc.tracker.Subscriptions(user.ID)
	if !uc.tracker.Unregister(user.ID, connectionID) {
		return
	}

	if err := uc.userRepo.SetOnline(ctx, user.ID, false); err != nil {
		log.Warnw(ctx, "failed to persist offline flag", "user_id", user.ID.Hex(), "error", err)
	}

	presence := models.UserPresenceEvent{
		UserID:   user.ID.Hex(),
		Status:   "offline",
		LastSeen: time.Now(),
	}
	for _, channelID := range subscribed {
		uc.publisher.BroadcastToChannel(channelID, models.EventUserPresence, presence)
	}

	log.Infow(ctx, "session disconnected",
		"user_id", user.ID.Hex(),
		"connection_id", connectionID)
}

type SendMessageParams struct {
	Sender      *models.User
	SenderIP    string
	ChannelID   string
	Content     string
	MessageType string
	ParentID    string
	Mentions    []string
	Attachments []models.Attachment
}

// SendMessage runs the authoritative send pipeline: validate, authorize,
// slow-mode check, persist, stats, broadcast, mention fan-out, assistant
// trigger. Any rejection terminates the flow with no partial state; the
// write must complete before anything is broadcast.
func (uc *ChatUseCase) SendMessage(ctx context.Context, params SendMessageParams) (*models.Message, error) {
	if strings.TrimSpace(params.Content) == "" || params.ChannelID == "" {
		return nil, models.ErrInvalidContent
	}

	channelID, err := models.ParseObjectID(params.ChannelID)
	if err != nil {
		return nil, err
	}

	channel, err := uc.directory.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if !uc.directory.CanAccess(channel, params.Sender.ID, params.SenderIP) {
		return nil, models.ErrAccessDenied
	}
	if !uc.directory.CanWrite(channel, params.Sender.ID) {
		return nil, models.ErrCannotWrite
	}

	remaining, err := uc.directory.SlowModeRemaining(ctx, channel, params.Sender.ID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, &models.SlowModeError{Remaining: remaining}
	}

	messageType := models.MessageType(params.MessageType)
	if messageType == "" {
		messageType = models.MessageText
	}
	message := &models.Message{
		ChannelID:   channel.ID,
		SenderID:    params.Sender.ID,
		Content:     params.Content,
		Type:        messageType,
		Attachments: params.Attachments,
	}
	if params.ParentID != "" {
		parentID, err := models.ParseObjectID(params.ParentID)
		if err != nil {
			return nil, err
		}
		message.ParentID = &parentID
	}
	for _, hex := range params.Mentions {
		mentionID, err := models.ParseObjectID(hex)
		if err != nil {
			return nil, err
		}
		message.Mentions = append(message.Mentions, mentionID)
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		log.Errorw(ctx, "message persist failed",
			"channel_id", channel.ID.Hex(),
			"sender_id", params.Sender.ID.Hex(),
			"error", err)
		return nil, models.ErrPersistenceFault
	}

	if err := uc.channelRepo.IncrementStats(ctx, channel.ID); err != nil {
		log.Warnw(ctx, "failed to update channel stats", "channel_id", channel.ID.Hex(), "error", err)
	}

	uc.publisher.BroadcastToChannel(channel.ID, models.EventNewMessage, message)
	uc.notifyMentions(channel, message)

	if channel.AIEnabled() && params.Sender.Role != models.RoleSystem {
		go uc.triggerAssistant(channel, message)
	}

	return message, nil
}

// notifyMentions delivers mention notifications to mentioned users who are
// members of the channel. Best effort: offline users get nothing beyond the
// persisted message itself.
func (uc *ChatUseCase) notifyMentions(channel *models.Channel, message *models.Message) {
	for _, mentionID := range message.Mentions {
		if channel.Member(mentionID) == nil {
			continue
		}
		uc.publisher.SendToUser(mentionID, models.EventMention, models.MentionEvent{
			Message: message,
			Channel: channel,
		})
	}
}

// triggerAssistant invokes the extension point without blocking the
// sender's acknowledgment.
func (uc *ChatUseCase) triggerAssistant(channel *models.Channel, message *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := uc.assistant.Trigger(ctx, channel, message); err != nil {
		log.Warnw(ctx, "assistant trigger failed",
			"channel_id", channel.ID.Hex(),
			"message_id", message.ID.Hex(),
			"error", err)
	}
}

// Typing broadcasts the ephemeral typing signal to every other subscriber.
// Nothing is persisted and all failures are silent.
func (uc *ChatUseCase) Typing(ctx context.Context, userID primitive.ObjectID, channelID string, isTyping bool) {
	id, err := models.ParseObjectID(channelID)
	if err != nil {
		return
	}
	if !uc.tracker.IsSubscribed(userID, id) {
		return
	}

	uc.publisher.BroadcastToChannelExcept(id, userID, models.EventUserTyping, models.UserTypingEvent{
		UserID:    userID.Hex(),
		ChannelID: channelID,
		IsTyping:  isTyping,
	})
}

// JoinChannel is the explicit (re)subscription path on top of the
// join-on-connect default.
func (uc *ChatUseCase) JoinChannel(ctx context.Context, user *models.User, ip, channelID string) (*models.Channel, error) {
	id, err := models.ParseObjectID(channelID)
	if err != nil {
		return nil, err
	}

	channel, err := uc.directory.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !uc.directory.CanAccess(channel, user.ID, ip) {
		return nil, models.ErrAccessDenied
	}

	uc.tracker.AddSubscription(user.ID, id)
	return channel, nil
}

func (uc *ChatUseCase) LeaveChannel(ctx context.Context, userID primitive.ObjectID, channelID string) error {
	id, err := models.ParseObjectID(channelID)
	if err != nil {
		return err
	}
	uc.tracker.RemoveSubscription(userID, id)
	return nil
}

// AddReaction adds (emoji, user) to the message's reaction set and
// broadcasts the updated set. Membership is verified against the message's
// own channel reference, not client input, to prevent spoofing.
func (uc *ChatUseCase) AddReaction(ctx context.Context, user *models.User, ip, messageID, emoji string) (*models.Message, error) {
	message, channel, err := uc.resolveMessageChannel(ctx, user, ip, messageID)
	if err != nil {
		return nil, err
	}

	updated, err := uc.messageRepo.AddReaction(ctx, message.ID, emoji, user.ID)
	if err != nil {
		return nil, models.ErrPersistenceFault
	}

	uc.publisher.BroadcastToChannel(channel.ID, models.EventReactionAdded, models.ReactionEvent{
		MessageID: updated.ID.Hex(),
		Emoji:     emoji,
		UserID:    user.ID.Hex(),
		Reactions: updated.Reactions,
	})
	return updated, nil
}

func (uc *ChatUseCase) RemoveReaction(ctx context.Context, user *models.User, ip, messageID, emoji string) (*models.Message, error) {
	message, channel, err := uc.resolveMessageChannel(ctx, user, ip, messageID)
	if err != nil {
		return nil, err
	}

	updated, err := uc.messageRepo.RemoveReaction(ctx, message.ID, emoji, user.ID)
	if err != nil {
		return nil, models.ErrPersistenceFault
	}

	uc.publisher.BroadcastToChannel(channel.ID, models.EventReactionRemove, models.ReactionEvent{
		MessageID: updated.ID.Hex(),
		Emoji:     emoji,
		UserID:    user.ID.Hex(),
		Reactions: updated.Reactions,
	})
	return updated, nil
}

func (uc *ChatUseCase) resolveMessageChannel(ctx context.Context, user *models.User, ip, messageID string) (*models.Message, *models.Channel, error) {
	id, err := models.ParseObjectID(messageID)
	if err != nil {
		return nil, nil, err
	}

	message, err := uc.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	channel, err := uc.directory.GetChannel(ctx, message.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	if !uc.directory.CanAccess(channel, user.ID, ip) {
		return nil, nil, models.ErrAccessDenied
	}
	return message, channel, nil
}

// MarkMessagesRead records read receipts for the batch and broadcasts one
// messages_read event to the rest of the channel. Ids that do not belong to
// the claimed channel are silently skipped; re-marking is a no-op. Delivery
// is at-least-once, receivers must treat the set as idempotent.
func (uc *ChatUseCase) MarkMessagesRead(ctx context.Context, user *models.User, ip, channelID string, messageIDs []string) (*models.MessagesReadEvent, error) {
	id, err := models.ParseObjectID(channelID)
	if err != nil {
		return nil, err
	}

	channel, err := uc.directory.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !uc.directory.CanAccess(channel, user.ID, ip) {
		return nil, models.ErrAccessDenied
	}

	ids := make([]primitive.ObjectID, 0, len(messageIDs))
	for _, hex := range messageIDs {
		objectID, err := models.ParseObjectID(hex)
		if err != nil {
			continue
		}
		ids = append(ids, objectID)
	}
	if len(ids) == 0 {
		return nil, models.ErrInvalidContent
	}

	valid, err := uc.messageRepo.FilterIDsInChannel(ctx, channel.ID, ids)
	if err != nil {
		return nil, models.ErrPersistenceFault
	}
	if len(valid) == 0 {
		return nil, models.ErrMessageNotFound
	}

	readAt := time.Now()
	for _, messageID := range valid {
		if _, err := uc.messageRepo.MarkRead(ctx, messageID, user.ID, readAt); err != nil {
			log.Warnw(ctx, "failed to mark message read",
				"message_id", messageID.Hex(),
				"user_id", user.ID.Hex(),
				"error", err)
		}
	}

	if err := uc.channelRepo.UpdateMemberLastSeen(ctx, channel.ID, user.ID); err != nil {
		log.Warnw(ctx, "failed to update member last seen", "channel_id", channel.ID.Hex(), "error", err)
	}

	event := &models.MessagesReadEvent{
		UserID:     user.ID.Hex(),
		ChannelID:  channel.ID.Hex(),
		MessageIDs: hexIDs(valid),
		ReadAt:     readAt,
	}
	uc.publisher.BroadcastToChannelExcept(channel.ID, user.ID, models.EventMessagesRead, *event)
	return event, nil
}

// ChannelHistory returns a page of messages, newest first, capped at
// models.HistoryLimitMax.
func (uc *ChatUseCase) ChannelHistory(ctx context.Context, user *models.User, ip, channelID, before string, limit int) (*models.ChannelHistoryEvent, error) {
	id, err := models.ParseObjectID(channelID)
	if err != nil {
		return nil, err
	}

	channel, err := uc.directory.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !uc.directory.CanAccess(channel, user.ID, ip) {
		return nil, models.ErrAccessDenied
	}

	if limit <= 0 || limit > models.HistoryLimitMax {
		limit = models.HistoryLimitMax
	}
	var beforeID *primitive.ObjectID
	if before != "" {
		parsed, err := models.ParseObjectID(before)
		if err != nil {
			return nil, err
		}
		beforeID = &parsed
	}

	page, err := uc.messageRepo.GetChannelPage(ctx, channel.ID, limit, beforeID)
	if err != nil {
		return nil, models.ErrPersistenceFault
	}

	return &models.ChannelHistoryEvent{
		ChannelID: channel.ID.Hex(),
		Messages:  page.Messages,
		HasMore:   page.HasMore,
	}, nil
}

// EditMessage rewrites a message's content (sender only) and broadcasts the
// updated document.
func (uc *ChatUseCase) EditMessage(ctx context.Context, user *models.User, ip, messageID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrInvalidContent
	}

	message, channel, err := uc.resolveMessageChannel(ctx, user, ip, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != user.ID {
		return nil, models.ErrCannotWrite
	}

	updated, err := uc.messageRepo.UpdateContent(ctx, message.ID, content)
	if err != nil {
		return nil, err
	}

	uc.publisher.BroadcastToChannel(channel.ID, models.EventMessageUpdated, updated)
	return updated, nil
}

// DeleteMessage soft-deletes a message. Senders may delete their own;
// managers and admins may delete anything in channels they can access.
func (uc *ChatUseCase) DeleteMessage(ctx context.Context, user *models.User, ip, messageID string) error {
	message, channel, err := uc.resolveMessageChannel(ctx, user, ip, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != user.ID && user.Role != models.RoleManager && user.Role != models.RoleAdmin {
		return models.ErrCannotWrite
	}

	if err := uc.messageRepo.SoftDelete(ctx, message.ID); err != nil {
		return err
	}

	uc.publisher.BroadcastToChannel(channel.ID, models.EventMessageDeleted, map[string]string{
		"messageId": message.ID.Hex(),
		"channelId": channel.ID.Hex(),
	})
	return nil
}

// IngestMessage is the trusted producer path (kafka consumer, assistant
// workers). It skips client-scoped rate limits and write-permission checks
// but still requires the channel to exist and persists before broadcasting.
func (uc *ChatUseCase) IngestMessage(ctx context.Context, channelID, senderID primitive.ObjectID, content, messageType string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrInvalidContent
	}

	channel, err := uc.directory.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	ingestType := models.MessageType(messageType)
	if ingestType == "" {
		ingestType = models.MessageText
	}
	message := &models.Message{
		ChannelID: channel.ID,
		SenderID:  senderID,
		Content:   content,
		Type:      ingestType,
	}
	if err := uc.messageRepo.Create(ctx, message); err != nil {
		log.Errorw(ctx, "ingest persist failed", "channel_id", channel.ID.Hex(), "error", err)
		return nil, models.ErrPersistenceFault
	}

	if err := uc.channelRepo.IncrementStats(ctx, channel.ID); err != nil {
		log.Warnw(ctx, "failed to update channel stats", "channel_id", channel.ID.Hex(), "error", err)
	}

	uc.publisher.BroadcastToChannel(channel.ID, models.EventNewMessage, message)
	return message, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
