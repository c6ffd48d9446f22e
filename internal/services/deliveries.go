// internal/services/deliveries.go
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

// DeliveryService persists one record per (notification, device) attempt.
// Records are append-only from the pipeline's point of view: status fields
// only ever move forward and nothing here deletes them.
type DeliveryService struct {
	collection *mongo.Collection
}

func NewDeliveryService(collection *mongo.Collection) *DeliveryService {
	return &DeliveryService{collection: collection}
}

func (s *DeliveryService) Create(ctx context.Context, record *models.PushNotification) error {
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}
	return nil
}

func (s *DeliveryService) MarkDelivered(ctx context.Context, id, messageID string) error {
	now := time.Now()
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"delivered":    true,
			"delivered_at": now,
			"message_id":   messageID,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark delivery record as delivered: %w", err)
	}
	return nil
}

func (s *DeliveryService) MarkFailed(ctx context.Context, id, errorMessage string) error {
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{"error_message": errorMessage},
			"$inc": bson.M{"retry_count": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to mark delivery record as failed: %w", err)
	}
	return nil
}

// MarkOpened marks one record opened, scoped to its recipient. Returns false
// when no matching record exists.
func (s *DeliveryService) MarkOpened(ctx context.Context, id string, userID primitive.ObjectID) (bool, error) {
	result, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "recipient_id": userID},
		bson.M{"$set": bson.M{"opened": true, "opened_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as opened: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// MarkAllOpened marks every unopened record for the user and returns how many
// changed. Calling it again is a no-op.
func (s *DeliveryService) MarkAllOpened(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	result, err := s.collection.UpdateMany(
		ctx,
		bson.M{"recipient_id": userID, "opened": false},
		bson.M{"$set": bson.M{"opened": true, "opened_at": time.Now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as opened: %w", err)
	}
	return result.ModifiedCount, nil
}

// ListForUser returns the user's records most-recent-first.
func (s *DeliveryService) ListForUser(ctx context.Context, userID primitive.ObjectID, page, limit int, unopenedOnly bool) ([]models.PushNotification, int64, error) {
	filter := bson.M{"recipient_id": userID}
	if unopenedOnly {
		filter["opened"] = false
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(skip)).
		SetSort(bson.D{{Key: "sent_at", Value: -1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.PushNotification
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}

	return records, total, nil
}

// Stats summarizes a user's notification history.
type DeliveryStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	Delivered  int64            `json:"delivered"`
	Failed     int64            `json:"failed"`
	ByCategory map[string]int64 `json:"by_category"`
}

// failedDeliveryFilter matches records whose send attempt recorded an error.
// Successful records omit error_message entirely, and a bare $ne would match
// the missing field, so the filter requires it to exist.
func failedDeliveryFilter(userID primitive.ObjectID) bson.M {
	return bson.M{
		"recipient_id":  userID,
		"error_message": bson.M{"$exists": true, "$ne": ""},
	}
}

func (s *DeliveryService) Stats(ctx context.Context, userID primitive.ObjectID) (*DeliveryStats, error) {
	stats := &DeliveryStats{ByCategory: make(map[string]int64)}

	var err error
	if stats.Total, err = s.collection.CountDocuments(ctx, bson.M{"recipient_id": userID}); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if stats.Unread, err = s.collection.CountDocuments(ctx, bson.M{"recipient_id": userID, "opened": false}); err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	if stats.Delivered, err = s.collection.CountDocuments(ctx, bson.M{"recipient_id": userID, "delivered": true}); err != nil {
		return nil, fmt.Errorf("failed to count delivered notifications: %w", err)
	}
	if stats.Failed, err = s.collection.CountDocuments(ctx, failedDeliveryFilter(userID)); err != nil {
		return nil, fmt.Errorf("failed to count failed notifications: %w", err)
	}

	pipeline := []bson.M{
		{"$match": bson.M{"recipient_id": userID}},
		{"$group": bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		stats.ByCategory[row.ID] = row.Count
	}

	return stats, cursor.Err()
}
