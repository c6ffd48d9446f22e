// internal/services/push_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"adboard-backend/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakePreferenceStore struct {
	pref *models.NotificationPreference
	err  error
}

func (f *fakePreferenceStore) GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pref, nil
}

type fakeDeviceRegistry struct {
	mu          sync.Mutex
	devices     []models.DeviceToken
	deactivated []string
}

func (f *fakeDeviceRegistry) ActiveDevicesFor(ctx context.Context, userID primitive.ObjectID) ([]models.DeviceToken, error) {
	return f.devices, nil
}

func (f *fakeDeviceRegistry) Deactivate(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, token)
	return nil
}

type fakeDeliveryStore struct {
	mu        sync.Mutex
	created   []string
	delivered map[string]string
	failed    map[string]string
}

func newFakeDeliveryStore() *fakeDeliveryStore {
	return &fakeDeliveryStore{
		delivered: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (f *fakeDeliveryStore) Create(ctx context.Context, record *models.PushNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, record.ID)
	return nil
}

func (f *fakeDeliveryStore) MarkDelivered(ctx context.Context, id, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[id] = messageID
	return nil
}

func (f *fakeDeliveryStore) MarkFailed(ctx context.Context, id, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errorMessage
	return nil
}

// fakeTransport fails tokens listed in unregistered with ErrUnregistered and
// tokens in broken with a generic error.
type fakeTransport struct {
	mu           sync.Mutex
	sent         []string
	unregistered map[string]bool
	broken       map[string]bool
}

func (f *fakeTransport) SendSingle(ctx context.Context, token, title, body string, data map[string]string, platform string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, token)
	f.mu.Unlock()

	if f.unregistered[token] {
		return "", ErrUnregistered
	}
	if f.broken[token] {
		return "", errors.New("connection reset")
	}
	return "msg-" + token, nil
}

func (f *fakeTransport) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error) {
	result := &MulticastResult{}
	for _, token := range tokens {
		if f.unregistered[token] {
			result.FailureCount++
			result.InvalidTokens = append(result.InvalidTokens, token)
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func device(token string) models.DeviceToken {
	return models.DeviceToken{
		Token:    token,
		Platform: models.PlatformAndroid,
		IsActive: true,
	}
}

func TestSendSkipsWhenPushDisabled(t *testing.T) {
	userID := primitive.NewObjectID()
	pref := models.DefaultNotificationPreference(userID)
	pref.PushEnabled = false

	deliveries := newFakeDeliveryStore()
	transport := &fakeTransport{}
	svc := NewPushService(
		&fakePreferenceStore{pref: pref},
		&fakeDeviceRegistry{devices: []models.DeviceToken{device("t1")}},
		deliveries,
		transport,
		nil,
		4,
		testLogger(),
	)

	records, err := svc.Send(context.Background(), userID, models.CategoryNewLead, "title", "body", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, deliveries.created)
	assert.Empty(t, transport.sent)
}

func TestSendSkipsDisabledCategory(t *testing.T) {
	userID := primitive.NewObjectID()
	pref := models.DefaultNotificationPreference(userID)
	pref.NewViewsEnabled = false

	deliveries := newFakeDeliveryStore()
	svc := NewPushService(
		&fakePreferenceStore{pref: pref},
		&fakeDeviceRegistry{devices: []models.DeviceToken{device("t1")}},
		deliveries,
		&fakeTransport{},
		nil,
		4,
		testLogger(),
	)

	records, err := svc.Send(context.Background(), userID, models.CategoryNewView, "title", "body", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, deliveries.created)
}

func TestSendSkipsDuringQuietHours(t *testing.T) {
	userID := primitive.NewObjectID()
	pref := models.DefaultNotificationPreference(userID)
	pref.QuietHoursEnabled = true
	pref.QuietHoursStart = "00:00"
	pref.QuietHoursEnd = "23:59"

	deliveries := newFakeDeliveryStore()
	svc := NewPushService(
		&fakePreferenceStore{pref: pref},
		&fakeDeviceRegistry{devices: []models.DeviceToken{device("t1")}},
		deliveries,
		&fakeTransport{},
		nil,
		4,
		testLogger(),
	)

	records, err := svc.Send(context.Background(), userID, models.CategoryNewLead, "title", "body", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, deliveries.created)
}

func TestSendNoDevices(t *testing.T) {
	userID := primitive.NewObjectID()
	deliveries := newFakeDeliveryStore()
	svc := NewPushService(
		&fakePreferenceStore{pref: models.DefaultNotificationPreference(userID)},
		&fakeDeviceRegistry{},
		deliveries,
		&fakeTransport{},
		nil,
		4,
		testLogger(),
	)

	records, err := svc.Send(context.Background(), userID, models.CategoryNewLead, "title", "body", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, deliveries.created)
}

func TestSendFanOut(t *testing.T) {
	userID := primitive.NewObjectID()
	registry := &fakeDeviceRegistry{devices: []models.DeviceToken{
		device("t1"), device("t2"), device("t3"),
	}}
	deliveries := newFakeDeliveryStore()
	transport := &fakeTransport{unregistered: map[string]bool{"t2": true}}

	svc := NewPushService(
		&fakePreferenceStore{pref: models.DefaultNotificationPreference(userID)},
		registry,
		deliveries,
		transport,
		nil,
		4,
		testLogger(),
	)

	related := &models.RelatedEntity{EntityType: "billboard", EntityID: primitive.NewObjectID().Hex()}
	records, err := svc.Send(context.Background(), userID, models.CategoryNewLead,
		"New Lead! 🎉", "Someone is interested", map[string]string{"lead_count": "1"}, related)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Records come back in device order regardless of send completion order.
	assert.Equal(t, "t1", records[0].FCMToken)
	assert.Equal(t, "t2", records[1].FCMToken)
	assert.Equal(t, "t3", records[2].FCMToken)

	assert.True(t, records[0].Delivered)
	assert.NotNil(t, records[0].DeliveredAt)
	assert.Equal(t, "msg-t1", records[0].MessageID)

	assert.False(t, records[1].Delivered)
	assert.Equal(t, "Token unregistered", records[1].ErrorMessage)
	assert.Equal(t, []string{"t2"}, registry.deactivated)

	assert.True(t, records[2].Delivered)

	assert.Len(t, deliveries.created, 3)
	assert.Len(t, deliveries.delivered, 2)
	assert.Len(t, deliveries.failed, 1)

	for _, r := range records {
		assert.Equal(t, userID, r.Recipient)
		assert.Equal(t, models.CategoryNewLead, r.Category)
		assert.Equal(t, related, r.Related)
		assert.Equal(t, 3, r.MaxRetries)
		assert.False(t, r.Opened)
	}
}

func TestSendTransientFailureKeepsDeviceActive(t *testing.T) {
	userID := primitive.NewObjectID()
	registry := &fakeDeviceRegistry{devices: []models.DeviceToken{device("t1")}}
	deliveries := newFakeDeliveryStore()
	transport := &fakeTransport{broken: map[string]bool{"t1": true}}

	svc := NewPushService(
		&fakePreferenceStore{pref: models.DefaultNotificationPreference(userID)},
		registry,
		deliveries,
		transport,
		nil,
		4,
		testLogger(),
	)

	records, err := svc.Send(context.Background(), userID, models.CategoryNewLead, "title", "body", nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.False(t, records[0].Delivered)
	assert.Equal(t, "connection reset", records[0].ErrorMessage)
	assert.Equal(t, 1, records[0].RetryCount)
	assert.Empty(t, registry.deactivated)
}

type fakeSink struct {
	mu      sync.Mutex
	records []*models.PushNotification
}

func (f *fakeSink) NotifyUser(userID primitive.ObjectID, record *models.PushNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
}

func TestSendPublishesToSink(t *testing.T) {
	userID := primitive.NewObjectID()
	sink := &fakeSink{}

	svc := NewPushService(
		&fakePreferenceStore{pref: models.DefaultNotificationPreference(userID)},
		&fakeDeviceRegistry{devices: []models.DeviceToken{device("t1"), device("t2")}},
		newFakeDeliveryStore(),
		&fakeTransport{},
		sink,
		4,
		testLogger(),
	)

	_, err := svc.Send(context.Background(), userID, models.CategoryNewLead, "title", "body", nil, nil)
	require.NoError(t, err)
	assert.Len(t, sink.records, 2)
}

func TestSendToTokens(t *testing.T) {
	registry := &fakeDeviceRegistry{}
	transport := &fakeTransport{unregistered: map[string]bool{"bad": true}}

	svc := NewPushService(
		&fakePreferenceStore{},
		registry,
		newFakeDeliveryStore(),
		transport,
		nil,
		4,
		testLogger(),
	)

	result, err := svc.SendToTokens(context.Background(), []string{"a", "bad", "c"}, "title", "body", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, []string{"bad"}, registry.deactivated)
}

func TestSendToTokensEmpty(t *testing.T) {
	svc := NewPushService(
		&fakePreferenceStore{},
		&fakeDeviceRegistry{},
		newFakeDeliveryStore(),
		&fakeTransport{},
		nil,
		4,
		testLogger(),
	)

	result, err := svc.SendToTokens(context.Background(), nil, "title", "body", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
}
