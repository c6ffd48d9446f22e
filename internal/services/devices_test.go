// internal/services/devices_test.go
package services

import (
	"testing"
	"time"

	"adboard-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestApplyRegistrationNewToken(t *testing.T) {
	userID := primitive.NewObjectID()
	now := time.Now()

	token, reassigned := applyRegistration(nil, userID, RegisterInput{
		Token:    "fcm-token-1",
		Platform: models.PlatformAndroid,
		DeviceID: "pixel-8",
	}, now)

	assert.False(t, reassigned)
	assert.Equal(t, userID, token.UserID)
	assert.Equal(t, "fcm-token-1", token.Token)
	assert.True(t, token.IsActive)
	assert.Equal(t, now, token.CreatedAt)
	assert.Equal(t, now, token.LastUsedAt)
}

func TestApplyRegistrationReassignsToken(t *testing.T) {
	previousOwner := primitive.NewObjectID()
	newOwner := primitive.NewObjectID()
	createdAt := time.Now().Add(-48 * time.Hour)
	existing := &models.DeviceToken{
		ID:        primitive.NewObjectID(),
		UserID:    previousOwner,
		Token:     "fcm-token-1",
		Platform:  models.PlatformIOS,
		IsActive:  false,
		CreatedAt: createdAt,
	}

	now := time.Now()
	token, reassigned := applyRegistration(existing, newOwner, RegisterInput{
		Token:    "fcm-token-1",
		Platform: models.PlatformAndroid,
	}, now)

	assert.True(t, reassigned, "a token registered by a different user changes hands")
	assert.Equal(t, newOwner, token.UserID)
	assert.True(t, token.IsActive, "re-registration reactivates the token")
	assert.Equal(t, existing.ID, token.ID, "document identity survives the handover")
	assert.Equal(t, createdAt, token.CreatedAt, "creation time survives the handover")
	assert.Equal(t, models.PlatformAndroid, token.Platform, "metadata is last writer wins")
	assert.Equal(t, now, token.LastUsedAt)
}

func TestApplyRegistrationSameUserReactivates(t *testing.T) {
	owner := primitive.NewObjectID()
	existing := &models.DeviceToken{
		ID:        primitive.NewObjectID(),
		UserID:    owner,
		Token:     "fcm-token-1",
		IsActive:  false,
		CreatedAt: time.Now().Add(-time.Hour),
	}

	token, reassigned := applyRegistration(existing, owner, RegisterInput{Token: "fcm-token-1"}, time.Now())

	assert.False(t, reassigned, "same owner is not a handover")
	assert.True(t, token.IsActive)
	assert.Equal(t, owner, token.UserID)
}
