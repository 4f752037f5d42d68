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

	"github.com/velora/chat-core/internal/models"
)

type ChannelRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Channel, error)
	GetChannelsForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Channel, error)
	IncrementStats(ctx context.Context, channelID primitive.ObjectID) error
	UpdateMemberLastSeen(ctx context.Context, channelID, userID primitive.ObjectID) error
}

type channelRepo struct {
	collection *mongo.Collection
}

func NewChannelRepository(db *DB) ChannelRepository {
	return &channelRepo{
		collection: db.Database.Collection("channels"),
	}
}

func (r *channelRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Channel, error) {
	var channel models.Channel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&channel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

func (r *channelRepo) GetChannelsForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Channel, error) {
	filter := bson.M{"members.user_id": userID}
	opts := options.Find().SetSort(bson.D{{Key: "stats.last_activity", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get user channels: %w", err)
	}
	defer cursor.Close(ctx)

	var channels []*models.Channel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return channels, nil
}

func (r *channelRepo) IncrementStats(ctx context.Context, channelID primitive.ObjectID) error {
	update := bson.M{
		"$inc": bson.M{"stats.total_messages": 1},
		"$set": bson.M{
			"stats.last_activity": time.Now(),
			"updated_at":          time.Now(),
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": channelID}, update)
	if err != nil {
		return fmt.Errorf("failed to update channel stats: %w", err)
	}
	return nil
}

func (r *channelRepo) UpdateMemberLastSeen(ctx context.Context, channelID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":             channelID,
		"members.user_id": userID,
	}
	update := bson.M{
		"$set": bson.M{"members.$.last_seen_at": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update member last seen: %w", err)
	}
	return nil
}
