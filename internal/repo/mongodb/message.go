package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/velora/chat-core/internal/models"
)

type MessagePage struct {
	Messages []*models.Message
	HasMore  bool
	Total    int64
}

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	GetChannelPage(ctx context.Context, channelID primitive.ObjectID, limit int, before *primitive.ObjectID) (*MessagePage, error)
	LastMessageTime(ctx context.Context, channelID, senderID primitive.ObjectID) (*time.Time, error)
	AddReaction(ctx context.Context, messageID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Message, error)
	RemoveReaction(ctx context.Context, messageID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Message, error)
	FilterIDsInChannel(ctx context.Context, channelID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
	MarkRead(ctx context.Context, messageID, userID primitive.ObjectID, readAt time.Time) (bool, error)
	UpdateContent(ctx context.Context, messageID primitive.ObjectID, content string) (*models.Message, error)
	SoftDelete(ctx context.Context, messageID primitive.ObjectID) error
}

type messageRepo struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *DB) MessageRepository {
	return &messageRepo{
		collection: db.Database.Collection("messages"),
	}
}

func (r *messageRepo) Create(ctx context.Context, message *models.Message) error {
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	message.UpdatedAt = message.CreatedAt
	if message.Type == "" {
		message.Type = models.MessageText
	}
	if message.Reactions == nil {
		message.Reactions = []models.Reaction{}
	}
	if message.ReadBy == nil {
		message.ReadBy = []models.ReadReceipt{}
	}

	_, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var message models.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &message, nil
}

// GetChannelPage returns up to limit messages before the given id, newest
// first, together with the channel's total message count.
func (r *messageRepo) GetChannelPage(ctx context.Context, channelID primitive.ObjectID, limit int, before *primitive.ObjectID) (*MessagePage, error) {
	filter := bson.M{
		"channel_id": channelID,
		"is_deleted": false,
	}
	if before != nil {
		filter["_id"] = bson.M{"$lt": *before}
	}

	group, ctx := errgroup.WithContext(ctx)
	page := &MessagePage{}

	group.Go(func() error {
		opts := options.Find().
			SetSort(bson.D{{Key: "_id", Value: -1}}).
			SetLimit(int64(limit) + 1)
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return fmt.Errorf("find: %w", err)
		}
		defer cursor.Close(ctx)

		var messages []*models.Message
		if err := cursor.All(ctx, &messages); err != nil {
			return fmt.Errorf("cursor all: %w", err)
		}
		if len(messages) > limit {
			messages = messages[:limit]
			page.HasMore = true
		}
		page.Messages = messages
		return nil
	})

	group.Go(func() error {
		total, err := r.collection.CountDocuments(ctx, bson.M{
			"channel_id": channelID,
			"is_deleted": false,
		})
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		page.Total = total
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (r *messageRepo) LastMessageTime(ctx context.Context, channelID, senderID primitive.ObjectID) (*time.Time, error) {
	filter := bson.M{
		"channel_id": channelID,
		"sender_id":  senderID,
		"is_deleted": false,
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"created_at": 1})

	var doc struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last message time: %w", err)
	}
	return &doc.CreatedAt, nil
}

// AddReaction adds (emoji, userID) to the message's reaction set. Adding a
// pair that is already present leaves the document unchanged.
func (r *messageRepo) AddReaction(ctx context.Context, messageID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Message, error) {
	// Fast path: the emoji group already exists, add the user to its set.
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": messageID, "reactions.emoji": emoji},
		bson.M{"$addToSet": bson.M{"reactions.$.user_ids": userID}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add reaction: %w", err)
	}

	if res.MatchedCount == 0 {
		// No group for this emoji yet. The $ne guard keeps a concurrent
		// writer from creating the group twice.
		_, err = r.collection.UpdateOne(ctx,
			bson.M{"_id": messageID, "reactions.emoji": bson.M{"$ne": emoji}},
			bson.M{"$push": bson.M{"reactions": models.Reaction{
				Emoji:   emoji,
				UserIDs: []primitive.ObjectID{userID},
			}}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to add reaction: %w", err)
		}
	}

	return r.GetByID(ctx, messageID)
}

// RemoveReaction removes (emoji, userID); removing a pair that does not
// exist is a no-op. Emptied emoji groups are dropped.
func (r *messageRepo) RemoveReaction(ctx context.Context, messageID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Message, error) {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": messageID, "reactions.emoji": emoji},
		bson.M{"$pull": bson.M{"reactions.$.user_ids": userID}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to remove reaction: %w", err)
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$pull": bson.M{"reactions": bson.M{"user_ids": bson.M{"$size": 0}}}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to prune empty reactions: %w", err)
	}

	return r.GetByID(ctx, messageID)
}

// FilterIDsInChannel returns the subset of ids that reference live messages
// in channelID. Read receipts use it to silently skip cross-channel ids.
func (r *messageRepo) FilterIDsInChannel(ctx context.Context, channelID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{
		"_id":        bson.M{"$in": ids},
		"channel_id": channelID,
		"is_deleted": false,
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to filter message ids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	valid := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		valid[i] = d.ID
	}
	return valid, nil
}

// MarkRead records the read receipt once per user. Returns false when the
// user had already marked the message read.
func (r *messageRepo) MarkRead(ctx context.Context, messageID, userID primitive.ObjectID, readAt time.Time) (bool, error) {
	filter := bson.M{
		"_id":             messageID,
		"read_by.user_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{"read_by": models.ReadReceipt{UserID: userID, ReadAt: readAt}},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark read: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *messageRepo) UpdateContent(ctx context.Context, messageID primitive.ObjectID, content string) (*models.Message, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"content":    content,
			"is_edited":  true,
			"edited_at":  now,
			"updated_at": now,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var message models.Message
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": messageID, "is_deleted": false}, update, opts).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return &message, nil
}

func (r *messageRepo) SoftDelete(ctx context.Context, messageID primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{
			"is_deleted": true,
			"updated_at": time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": messageID}, update)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}
