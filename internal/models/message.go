package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

type Message struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ChannelID   primitive.ObjectID   `bson:"channel_id" json:"channel_id" validate:"required"`
	SenderID    primitive.ObjectID   `bson:"sender_id" json:"sender_id" validate:"required"`
	Content     string               `bson:"content" json:"content"`
	Type        MessageType          `bson:"type" json:"type"`
	ParentID    *primitive.ObjectID  `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Attachments []Attachment         `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Mentions    []primitive.ObjectID `bson:"mentions,omitempty" json:"mentions,omitempty"`
	Reactions   []Reaction           `bson:"reactions" json:"reactions"`
	ReadBy      []ReadReceipt        `bson:"read_by" json:"read_by"`
	IsEdited    bool                 `bson:"is_edited" json:"is_edited"`
	EditedAt    *time.Time           `bson:"edited_at" json:"edited_at"`
	IsDeleted   bool                 `bson:"is_deleted" json:"is_deleted"`
	CreatedAt   time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at" json:"updated_at"`
}

type Attachment struct {
	URL      string `bson:"url" json:"url"`
	Name     string `bson:"name" json:"name"`
	MimeType string `bson:"mime_type" json:"mime_type"`
	Size     int64  `bson:"size" json:"size"`
}

// Reaction groups every user who reacted with the same emoji. UserIDs is a
// set: the repository enforces uniqueness on write.
type Reaction struct {
	Emoji   string               `bson:"emoji" json:"emoji"`
	UserIDs []primitive.ObjectID `bson:"user_ids" json:"user_ids"`
}

// ReadReceipt entries are unique per user; re-marking is a no-op.
type ReadReceipt struct {
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	ReadAt time.Time          `bson:"read_at" json:"read_at"`
}

// HasReaction reports whether userID already reacted with emoji.
func (m *Message) HasReaction(emoji string, userID primitive.ObjectID) bool {
	for _, r := range m.Reactions {
		if r.Emoji != emoji {
			continue
		}
		for _, id := range r.UserIDs {
			if id == userID {
				return true
			}
		}
	}
	return false
}

// ReadByUser reports whether userID already acknowledged the message.
func (m *Message) ReadByUser(userID primitive.ObjectID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
