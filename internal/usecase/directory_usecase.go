package usecase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/repo/mongodb"
	"github.com/velora/chat-core/pkg/util"
)

// DirectoryUseCase answers the access-control questions over the channel
// registry. All checks are pure reads evaluated before any mutation; the
// member list is the only access authority, even for public channels.
type DirectoryUseCase struct {
	channelRepo mongodb.ChannelRepository
	messageRepo mongodb.MessageRepository
	now         func() time.Time
}

func NewDirectoryUseCase(channelRepo mongodb.ChannelRepository, messageRepo mongodb.MessageRepository) *DirectoryUseCase {
	return &DirectoryUseCase{
		channelRepo: channelRepo,
		messageRepo: messageRepo,
		now:         time.Now,
	}
}

func (uc *DirectoryUseCase) GetChannel(ctx context.Context, channelID primitive.ObjectID) (*models.Channel, error) {
	return uc.channelRepo.GetByID(ctx, channelID)
}

func (uc *DirectoryUseCase) ListChannelsForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Channel, error) {
	channels, err := uc.channelRepo.GetChannelsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// CanAccess requires membership plus, when the channel carries an IP
// policy, a source address that satisfies it.
func (uc *DirectoryUseCase) CanAccess(channel *models.Channel, userID primitive.ObjectID, ip string) bool {
	member := channel.Member(userID)
	if member == nil || !member.Permissions.CanRead {
		return false
	}

	settings := channel.Settings
	if len(settings.DeniedIPs) > 0 && util.SliceIncludes(settings.DeniedIPs, ip) {
		return false
	}
	if len(settings.AllowedIPs) > 0 && !util.SliceIncludes(settings.AllowedIPs, ip) {
		return false
	}
	return true
}

func (uc *DirectoryUseCase) CanWrite(channel *models.Channel, userID primitive.ObjectID) bool {
	member := channel.Member(userID)
	return member != nil && member.Permissions.CanWrite
}

// SlowModeRemaining reports how long the user must still wait before their
// next send. Zero means the send may proceed. The persisted store is the
// source of truth so reconnecting cannot bypass the interval.
func (uc *DirectoryUseCase) SlowModeRemaining(ctx context.Context, channel *models.Channel, userID primitive.ObjectID) (time.Duration, error) {
	seconds := channel.Settings.SlowModeSeconds
	if seconds <= 0 {
		return 0, nil
	}

	last, err := uc.messageRepo.LastMessageTime(ctx, channel.ID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to check slow mode: %w", err)
	}
	if last == nil {
		return 0, nil
	}

	elapsed := uc.now().Sub(*last)
	interval := time.Duration(seconds) * time.Second
	if elapsed >= interval {
		return 0, nil
	}
	return interval - elapsed, nil
}
