package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChannelType string

const (
	ChannelPublic      ChannelType = "public"
	ChannelPrivate     ChannelType = "private"
	ChannelDirect      ChannelType = "direct"
	ChannelAIAssistant ChannelType = "ai_assistant"
)

// Channel is the unit of message exchange. The member list is the sole
// authority for access control: even "public" channels require an explicit
// membership entry before a user can read or write.
type Channel struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Type      ChannelType        `bson:"type" json:"type"`
	Members   []ChannelMember    `bson:"members" json:"members"`
	Settings  ChannelSettings    `bson:"settings" json:"settings"`
	Stats     ChannelStats       `bson:"stats" json:"stats"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type ChannelMember struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Permissions MemberPermissions  `bson:"permissions" json:"permissions"`
	LastSeenAt  *time.Time         `bson:"last_seen_at" json:"last_seen_at"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joined_at"`
}

type MemberPermissions struct {
	CanRead  bool `bson:"can_read" json:"can_read"`
	CanWrite bool `bson:"can_write" json:"can_write"`
}

type ChannelSettings struct {
	SlowModeSeconds int         `bson:"slow_mode_seconds" json:"slow_mode_seconds"`
	AllowedIPs      []string    `bson:"allowed_ips,omitempty" json:"allowed_ips,omitempty"`
	DeniedIPs       []string    `bson:"denied_ips,omitempty" json:"denied_ips,omitempty"`
	AISettings      *AISettings `bson:"ai_settings,omitempty" json:"ai_settings,omitempty"`
}

type AISettings struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Persona string `bson:"persona,omitempty" json:"persona,omitempty"`
	BotID   string `bson:"bot_id,omitempty" json:"bot_id,omitempty"`
}

type ChannelStats struct {
	TotalMessages int64      `bson:"total_messages" json:"total_messages"`
	LastActivity  *time.Time `bson:"last_activity" json:"last_activity"`
}

// Member returns the membership entry for userID, or nil when the user is
// not a member.
func (c *Channel) Member(userID primitive.ObjectID) *ChannelMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

// AIEnabled reports whether the assistant extension point should fire for
// messages sent to this channel.
func (c *Channel) AIEnabled() bool {
	return c.Type == ChannelAIAssistant &&
		c.Settings.AISettings != nil &&
		c.Settings.AISettings.Enabled
}
