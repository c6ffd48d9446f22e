// internal/services/preferences.go
package services

import (
	"context"
	"fmt"
	"time"

	"adboard-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PreferenceService stores per-user notification preferences, one document
// per user (unique user_id index).
type PreferenceService struct {
	collection *mongo.Collection
}

func NewPreferenceService(collection *mongo.Collection) *PreferenceService {
	return &PreferenceService{collection: collection}
}

// GetOrCreate returns the user's preferences, creating the default document
// on first access. The upsert is atomic per user: concurrent first accesses
// resolve to a single document through the unique user_id index.
func (s *PreferenceService) GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error) {
	defaults := models.DefaultNotificationPreference(userID)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var pref models.NotificationPreference
	err := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": defaults},
		opts,
	).Decode(&pref)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification preferences: %w", err)
	}

	return &pref, nil
}

// Update applies the given field changes and returns the resulting document.
func (s *PreferenceService) Update(ctx context.Context, userID primitive.ObjectID, fields bson.M) (*models.NotificationPreference, error) {
	// Ensure the document exists before updating it.
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	fields["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var pref models.NotificationPreference
	err := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": fields},
		opts,
	).Decode(&pref)
	if err != nil {
		return nil, fmt.Errorf("failed to update notification preferences: %w", err)
	}

	return &pref, nil
}
