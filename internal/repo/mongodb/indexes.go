package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the hot query paths depend on. Safe to
// call on every startup; mongo treats existing definitions as a no-op.
func EnsureIndexes(ctx context.Context, db *DB) error {
	messageIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "channel_id", Value: 1},
				{Key: "_id", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "channel_id", Value: 1},
				{Key: "sender_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}
	if _, err := db.Database.Collection("messages").Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	channelIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "members.user_id", Value: 1}},
		},
	}
	if _, err := db.Database.Collection("channels").Indexes().CreateMany(ctx, channelIndexes); err != nil {
		return fmt.Errorf("failed to create channel indexes: %w", err)
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Database.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}
