// internal/database/mongodb.go
package database

import (
	"context"
	"fmt"
	"time"

	"adboard-backend/internal/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(cfg *config.Config) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MongoTimeout)*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logrus.WithField("database", cfg.DatabaseName).Info("connected to MongoDB")

	return &MongoDB{
		Client:   client,
		Database: client.Database(cfg.DatabaseName),
	}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// CreateIndexes creates the indexes every collection relies on. The unique
// indexes here are load-bearing: fcm_token uniqueness resolves concurrent
// registrations of the same token to a single document, and the
// (billboard_id, actor) uniqueness on leads and views closes the
// check-then-insert race in duplicate suppression.
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := m.Database.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	billboardIndexes := []mongo.IndexModel{
		{
			// Compound index for the public map query.
			Keys: bson.D{
				{Key: "approval_status", Value: 1},
				{Key: "is_active", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "city", Value: 1},
				{Key: "is_active", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_active", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "leads", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("billboards").Indexes().CreateMany(ctx, billboardIndexes); err != nil {
		return fmt.Errorf("failed to create billboard indexes: %w", err)
	}

	// Leads and views share the same dedup shape.
	for _, name := range []string{"leads", "views"} {
		indexes := []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "billboard_id", Value: 1},
					{Key: "actor", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "created_at", Value: -1}},
			},
		}
		if _, err := m.Database.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}

	wishlistIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "billboard_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "billboard_id", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("wishlists").Indexes().CreateMany(ctx, wishlistIndexes); err != nil {
		return fmt.Errorf("failed to create wishlist indexes: %w", err)
	}

	deviceTokenIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fcm_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_active", Value: 1},
			},
		},
	}
	if _, err := m.Database.Collection("device_tokens").Indexes().CreateMany(ctx, deviceTokenIndexes); err != nil {
		return fmt.Errorf("failed to create device token indexes: %w", err)
	}

	preferenceIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Database.Collection("notification_preferences").Indexes().CreateMany(ctx, preferenceIndexes); err != nil {
		return fmt.Errorf("failed to create preference indexes: %w", err)
	}

	pushIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "sent_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "opened", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "fcm_token", Value: 1},
				{Key: "delivered", Value: 1},
			},
		},
	}
	if _, err := m.Database.Collection("push_notifications").Indexes().CreateMany(ctx, pushIndexes); err != nil {
		return fmt.Errorf("failed to create push notification indexes: %w", err)
	}

	logrus.Info("MongoDB indexes created")
	return nil
}
