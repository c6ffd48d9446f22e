// internal/services/triggers_test.go
package services

import (
	"context"
	"testing"

	"adboard-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sentNotification struct {
	userID   primitive.ObjectID
	category string
	title    string
	body     string
	data     map[string]string
	related  *models.RelatedEntity
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) Send(
	ctx context.Context,
	userID primitive.ObjectID,
	category, title, body string,
	data map[string]string,
	related *models.RelatedEntity,
) ([]models.PushNotification, error) {
	f.sent = append(f.sent, sentNotification{
		userID:   userID,
		category: category,
		title:    title,
		body:     body,
		data:     data,
		related:  related,
	})
	return nil, nil
}

func testBillboard() *models.Billboard {
	return &models.Billboard{
		ID:     primitive.NewObjectID(),
		UserID: primitive.NewObjectID(),
		City:   "Mumbai",
	}
}

func TestLeadCreatedTrigger(t *testing.T) {
	notifier := &fakeNotifier{}
	triggers := NewNotificationTriggers(notifier, testLogger())
	billboard := testBillboard()

	triggers.LeadCreated(context.Background(), billboard, 5)

	require.Len(t, notifier.sent, 1)
	sent := notifier.sent[0]
	assert.Equal(t, billboard.UserID, sent.userID)
	assert.Equal(t, models.CategoryNewLead, sent.category)
	assert.Equal(t, "New Lead! 🎉", sent.title)
	assert.Contains(t, sent.body, "Mumbai")
	assert.Equal(t, "5", sent.data["lead_count"])
	require.NotNil(t, sent.related)
	assert.Equal(t, "billboard", sent.related.EntityType)
	assert.Equal(t, billboard.ID.Hex(), sent.related.EntityID)
}

func TestViewMilestoneTrigger(t *testing.T) {
	notifier := &fakeNotifier{}
	triggers := NewNotificationTriggers(notifier, testLogger())
	billboard := testBillboard()

	triggers.ViewMilestone(context.Background(), billboard, 20)

	require.Len(t, notifier.sent, 1)
	sent := notifier.sent[0]
	assert.Equal(t, models.CategoryNewView, sent.category)
	assert.Equal(t, "Views Milestone! 👀", sent.title)
	assert.Contains(t, sent.body, "20 views")
	assert.Equal(t, "20", sent.data["view_count"])
}

func TestBillboardRejectedTrigger(t *testing.T) {
	t.Run("with reason", func(t *testing.T) {
		notifier := &fakeNotifier{}
		triggers := NewNotificationTriggers(notifier, testLogger())
		billboard := testBillboard()
		billboard.RejectionReason = "blurry photos"

		triggers.BillboardRejected(context.Background(), billboard)

		require.Len(t, notifier.sent, 1)
		assert.Equal(t, models.CategoryBillboardRejected, notifier.sent[0].category)
		assert.Contains(t, notifier.sent[0].body, "blurry photos")
	})

	t.Run("without reason", func(t *testing.T) {
		notifier := &fakeNotifier{}
		triggers := NewNotificationTriggers(notifier, testLogger())

		triggers.BillboardRejected(context.Background(), testBillboard())

		require.Len(t, notifier.sent, 1)
		assert.Equal(t, "Your billboard in Mumbai was not approved", notifier.sent[0].body)
	})
}

func TestStateTriggers(t *testing.T) {
	notifier := &fakeNotifier{}
	triggers := NewNotificationTriggers(notifier, testLogger())
	billboard := testBillboard()

	triggers.BillboardApproved(context.Background(), billboard)
	triggers.BillboardActivated(context.Background(), billboard)
	triggers.BillboardDeactivated(context.Background(), billboard)
	triggers.WishlistAdded(context.Background(), billboard)

	require.Len(t, notifier.sent, 4)
	assert.Equal(t, models.CategoryBillboardApproved, notifier.sent[0].category)
	assert.Equal(t, models.CategoryBillboardActivated, notifier.sent[1].category)
	assert.Equal(t, models.CategoryBillboardDeactivated, notifier.sent[2].category)
	assert.Equal(t, models.CategoryWishlistAdded, notifier.sent[3].category)

	for _, sent := range notifier.sent {
		assert.Equal(t, billboard.UserID, sent.userID)
	}
}

func TestWelcomeTrigger(t *testing.T) {
	notifier := &fakeNotifier{}
	triggers := NewNotificationTriggers(notifier, testLogger())

	user := &models.User{
		ID:   primitive.NewObjectID(),
		Name: "Asha",
	}
	triggers.Welcome(context.Background(), user)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.CategoryWelcome, notifier.sent[0].category)
	assert.Contains(t, notifier.sent[0].body, "Asha")
	assert.Nil(t, notifier.sent[0].related)
}
