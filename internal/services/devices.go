// internal/services/devices.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adboard-backend/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceService manages FCM device registrations. Tokens are globally
// unique; all writes are keyed by fcm_token.
type DeviceService struct {
	collection *mongo.Collection
	log        *logrus.Logger
}

func NewDeviceService(collection *mongo.Collection, log *logrus.Logger) *DeviceService {
	return &DeviceService{collection: collection, log: log}
}

// RegisterInput carries the device metadata sent by the client.
type RegisterInput struct {
	Token      string
	Platform   string
	DeviceID   string
	AppVersion string
	OSVersion  string
}

// applyRegistration computes the document to store for a registration. A
// fresh token starts active and owned by the caller; a re-registration keeps
// the document identity and creation time, reactivates it, and moves it to
// the registering user with last-writer-wins metadata. The second return
// reports an ownership change.
func applyRegistration(existing *models.DeviceToken, userID primitive.ObjectID, in RegisterInput, now time.Time) (models.DeviceToken, bool) {
	token := models.DeviceToken{
		UserID:     userID,
		Token:      in.Token,
		Platform:   in.Platform,
		DeviceID:   in.DeviceID,
		AppVersion: in.AppVersion,
		OSVersion:  in.OSVersion,
		IsActive:   true,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if existing == nil {
		return token, false
	}

	token.ID = existing.ID
	token.CreatedAt = existing.CreatedAt
	return token, existing.UserID != userID
}

// Register upserts a registration keyed by token. A token registered by a
// different user moves to the caller and is reactivated; last writer wins on
// metadata. Ownership changes are logged for support audits.
func (s *DeviceService) Register(ctx context.Context, userID primitive.ObjectID, in RegisterInput) (*models.DeviceToken, error) {
	now := time.Now()

	var existing *models.DeviceToken
	var current models.DeviceToken
	err := s.collection.FindOne(ctx, bson.M{"fcm_token": in.Token}).Decode(&current)
	switch {
	case err == nil:
		existing = &current
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("failed to check device token: %w", err)
	}

	token, reassigned := applyRegistration(existing, userID, in, now)
	if reassigned {
		s.log.WithFields(logrus.Fields{
			"previous_user": existing.UserID.Hex(),
			"new_user":      userID.Hex(),
		}).Warn("device token reassigned to a different user")
	}

	_, err = s.collection.ReplaceOne(ctx, bson.M{"fcm_token": in.Token}, token,
		options.Replace().SetUpsert(true))
	if err != nil {
		// A concurrent insert of the same token can race the upsert; retry
		// once as a plain replace against the now-existing document.
		if mongo.IsDuplicateKeyError(err) {
			_, err = s.collection.ReplaceOne(ctx, bson.M{"fcm_token": in.Token}, token)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to register device token: %w", err)
		}
	}

	return &token, nil
}

// Unregister deactivates a token. Unknown tokens are a no-op.
func (s *DeviceService) Unregister(ctx context.Context, token string) error {
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"fcm_token": token},
		bson.M{"$set": bson.M{"is_active": false, "last_used_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to unregister device token: %w", err)
	}
	return nil
}

// ActiveDevicesFor returns every active registration for the user.
func (s *DeviceService) ActiveDevicesFor(ctx context.Context, userID primitive.ObjectID) ([]models.DeviceToken, error) {
	cursor, err := s.collection.Find(ctx, bson.M{
		"user_id":   userID,
		"is_active": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active devices: %w", err)
	}
	defer cursor.Close(ctx)

	var devices []models.DeviceToken
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}

	return devices, nil
}

// Deactivate marks a token inactive after the transport reported it as
// permanently invalid.
func (s *DeviceService) Deactivate(ctx context.Context, token string) error {
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"fcm_token": token},
		bson.M{"$set": bson.M{"is_active": false, "last_used_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}

	s.log.WithField("token_prefix", tokenPrefix(token)).Info("deactivated invalid device token")
	return nil
}

// AllActiveTokens returns every active token across all users, for the
// broadcast multicast path.
func (s *DeviceService) AllActiveTokens(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var tokens []string
	for cursor.Next(ctx) {
		var device models.DeviceToken
		if err := cursor.Decode(&device); err != nil {
			continue
		}
		tokens = append(tokens, device.Token)
	}

	return tokens, cursor.Err()
}

func tokenPrefix(token string) string {
	if len(token) > 20 {
		return token[:20]
	}
	return token
}
