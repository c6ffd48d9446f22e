// internal/services/push.go
package services

import (
	"context"
	"errors"
	"time"

	"adboard-backend/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const defaultMaxRetries = 3

// Store seams consumed by the dispatcher. The Mongo-backed services satisfy
// them in production; tests substitute fakes.

type PreferenceStore interface {
	GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error)
}

type DeviceRegistry interface {
	ActiveDevicesFor(ctx context.Context, userID primitive.ObjectID) ([]models.DeviceToken, error)
	Deactivate(ctx context.Context, token string) error
}

type DeliveryStore interface {
	Create(ctx context.Context, record *models.PushNotification) error
	MarkDelivered(ctx context.Context, id, messageID string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
}

// EventSink receives each created delivery record, e.g. to feed the in-app
// websocket stream. May be nil.
type EventSink interface {
	NotifyUser(userID primitive.ObjectID, record *models.PushNotification)
}

// PushService fans one logical notification out to every active device of a
// user, consulting preferences first and recording one delivery record per
// device. It never retries: retry_count/max_retries are bookkeeping for an
// external job.
type PushService struct {
	prefs      PreferenceStore
	devices    DeviceRegistry
	deliveries DeliveryStore
	transport  Transport
	sink       EventSink
	workers    int
	log        *logrus.Logger

	// now is swappable in tests to pin quiet-hour checks.
	now func() time.Time
}

func NewPushService(
	prefs PreferenceStore,
	devices DeviceRegistry,
	deliveries DeliveryStore,
	transport Transport,
	sink EventSink,
	workers int,
	log *logrus.Logger,
) *PushService {
	if workers <= 0 {
		workers = 8
	}
	return &PushService{
		prefs:      prefs,
		devices:    devices,
		deliveries: deliveries,
		transport:  transport,
		sink:       sink,
		workers:    workers,
		log:        log,
		now:        time.Now,
	}
}

// Send dispatches one notification to every active device of the user.
// Preference gates (push disabled, quiet hours, category opt-out) and the
// no-devices case return an empty result with no records created; these are
// skips, not failures. The returned slice is ordered by device registration
// order regardless of completion order.
func (s *PushService) Send(
	ctx context.Context,
	userID primitive.ObjectID,
	category, title, body string,
	data map[string]string,
	related *models.RelatedEntity,
) ([]models.PushNotification, error) {
	pref, err := s.prefs.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !pref.PushEnabled || pref.IsQuietHours(s.now()) || !pref.IsCategoryAllowed(category) {
		s.log.WithFields(logrus.Fields{
			"user_id":  userID.Hex(),
			"category": category,
		}).Debug("notification skipped by preferences")
		return nil, nil
	}

	devices, err := s.devices.ActiveDevicesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		s.log.WithField("user_id", userID.Hex()).Debug("no active devices for user")
		return nil, nil
	}

	records := make([]*models.PushNotification, len(devices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, device := range devices {
		// Abort not-yet-started sends when the caller cancels.
		if ctx.Err() != nil {
			records = records[:i]
			break
		}

		i, device := i, device
		g.Go(func() error {
			records[i] = s.sendToDevice(gctx, userID, category, title, body, data, related, device)
			return nil
		})
	}

	// Worker errors land on the individual records, never here.
	_ = g.Wait()

	result := make([]models.PushNotification, 0, len(records))
	for _, r := range records {
		if r != nil {
			result = append(result, *r)
		}
	}

	return result, nil
}

func (s *PushService) sendToDevice(
	ctx context.Context,
	userID primitive.ObjectID,
	category, title, body string,
	data map[string]string,
	related *models.RelatedEntity,
	device models.DeviceToken,
) *models.PushNotification {
	record := &models.PushNotification{
		ID:         uuid.New().String(),
		Recipient:  userID,
		Category:   category,
		Title:      title,
		Body:       body,
		FCMToken:   device.Token,
		Platform:   device.Platform,
		Related:    related,
		Data:       data,
		SentAt:     s.now(),
		MaxRetries: defaultMaxRetries,
	}

	if err := s.deliveries.Create(ctx, record); err != nil {
		s.log.WithError(err).Error("failed to persist delivery record")
		record.ErrorMessage = err.Error()
		record.RetryCount = 1
		return record
	}

	payload := make(map[string]string, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["notification_id"] = record.ID
	payload["category"] = category

	messageID, err := s.transport.SendSingle(ctx, device.Token, title, body, payload, device.Platform)
	switch {
	case err == nil:
		now := s.now()
		record.Delivered = true
		record.DeliveredAt = &now
		record.MessageID = messageID
		if err := s.deliveries.MarkDelivered(ctx, record.ID, messageID); err != nil {
			s.log.WithError(err).Error("failed to mark delivery record as delivered")
		}

	case errors.Is(err, ErrUnregistered):
		record.ErrorMessage = "Token unregistered"
		record.RetryCount = 1
		if err := s.devices.Deactivate(ctx, device.Token); err != nil {
			s.log.WithError(err).Error("failed to deactivate device token")
		}
		if err := s.deliveries.MarkFailed(ctx, record.ID, record.ErrorMessage); err != nil {
			s.log.WithError(err).Error("failed to mark delivery record as failed")
		}

	default:
		record.ErrorMessage = err.Error()
		record.RetryCount = 1
		if err := s.deliveries.MarkFailed(ctx, record.ID, record.ErrorMessage); err != nil {
			s.log.WithError(err).Error("failed to mark delivery record as failed")
		}
	}

	if s.sink != nil {
		s.sink.NotifyUser(userID, record)
	}

	return record
}

// SendToTokens is the bulk broadcast path: one multicast per batch, aggregate
// counts only, no per-recipient delivery records. Tokens the provider reports
// as unregistered are deactivated.
func (s *PushService) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error) {
	if len(tokens) == 0 {
		return &MulticastResult{}, nil
	}

	result, err := s.transport.SendMulticast(ctx, tokens, title, body, data)
	if err != nil {
		return nil, err
	}

	for _, token := range result.InvalidTokens {
		if err := s.devices.Deactivate(ctx, token); err != nil {
			s.log.WithError(err).Error("failed to deactivate device token")
		}
	}

	s.log.WithFields(logrus.Fields{
		"sent":   result.SuccessCount,
		"failed": result.FailureCount,
		"total":  len(tokens),
	}).Info("bulk notification dispatched")

	return result, nil
}
