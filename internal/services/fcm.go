// internal/services/fcm.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	fcmEndpoint       = "https://fcm.googleapis.com/fcm/send"
	fcmMulticastBatch = 1000 // FCM limit per multicast request
)

// Transport failure kinds. ErrUnregistered means the token is permanently
// invalid and the device should be deactivated; everything else is treated
// as transient and only recorded.
var (
	ErrUnregistered  = errors.New("token unregistered")
	ErrNotConfigured = errors.New("FCM server key is not configured")
)

// Transport sends push messages to devices. Implemented by FCMClient;
// faked in tests.
type Transport interface {
	SendSingle(ctx context.Context, token, title, body string, data map[string]string, platform string) (string, error)
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error)
}

// MulticastResult aggregates the outcome of one bulk send.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
	// InvalidTokens are tokens the provider reported as unregistered.
	InvalidTokens []string
}

type fcmMessage struct {
	To              string            `json:"to,omitempty"`
	RegistrationIDs []string          `json:"registration_ids,omitempty"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
	Priority        string            `json:"priority"`
	TimeToLive      int               `json:"time_to_live,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type fcmResponse struct {
	MulticastID int64       `json:"multicast_id"`
	Success     int         `json:"success"`
	Failure     int         `json:"failure"`
	Results     []fcmResult `json:"results"`
}

type fcmResult struct {
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FCMClient talks to the Firebase Cloud Messaging HTTP endpoint. A missing
// server key does not prevent construction: every send then fails with
// ErrNotConfigured so the pipeline degrades instead of crashing per request.
type FCMClient struct {
	serverKey string
	endpoint  string
	client    *resty.Client
	log       *logrus.Logger
}

func NewFCMClient(serverKey string, timeout time.Duration, log *logrus.Logger) *FCMClient {
	if serverKey == "" {
		log.Warn("FCM server key is not configured, push delivery is disabled")
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &FCMClient{
		serverKey: serverKey,
		endpoint:  fcmEndpoint,
		client:    client,
		log:       log,
	}
}

// SendSingle delivers one message to one token and returns the provider
// message id.
func (f *FCMClient) SendSingle(ctx context.Context, token, title, body string, data map[string]string, platform string) (string, error) {
	if f.serverKey == "" {
		return "", ErrNotConfigured
	}

	message := fcmMessage{
		To: token,
		Notification: fcmNotification{
			Title: title,
			Body:  body,
			Sound: "default",
		},
		Data:       data,
		Priority:   "high",
		TimeToLive: 3600,
	}

	resp, err := f.send(ctx, message)
	if err != nil {
		return "", err
	}

	if len(resp.Results) == 0 {
		return "", fmt.Errorf("empty FCM response")
	}

	result := resp.Results[0]
	if result.Error != "" {
		if isUnregistered(result.Error) {
			return "", ErrUnregistered
		}
		return "", fmt.Errorf("FCM error: %s", result.Error)
	}

	return result.MessageID, nil
}

// SendMulticast delivers one message to many tokens, batching to the FCM
// limit, and returns aggregate counts plus the tokens reported invalid.
func (f *FCMClient) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error) {
	if f.serverKey == "" {
		return nil, ErrNotConfigured
	}

	total := &MulticastResult{}

	for i := 0; i < len(tokens); i += fcmMulticastBatch {
		end := i + fcmMulticastBatch
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[i:end]

		message := fcmMessage{
			RegistrationIDs: batch,
			Notification: fcmNotification{
				Title: title,
				Body:  body,
				Sound: "default",
			},
			Data:       data,
			Priority:   "high",
			TimeToLive: 3600,
		}

		resp, err := f.send(ctx, message)
		if err != nil {
			return total, err
		}

		total.SuccessCount += resp.Success
		total.FailureCount += resp.Failure

		for idx, result := range resp.Results {
			if idx >= len(batch) {
				break
			}
			if isUnregistered(result.Error) {
				total.InvalidTokens = append(total.InvalidTokens, batch[idx])
			}
		}
	}

	return total, nil
}

func (f *FCMClient) send(ctx context.Context, message fcmMessage) (*fcmResponse, error) {
	var fcmResp fcmResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "key="+f.serverKey).
		SetBody(message).
		SetResult(&fcmResp).
		Post(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("FCM request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("FCM request failed with status %d", resp.StatusCode())
	}

	return &fcmResp, nil
}

func isUnregistered(errCode string) bool {
	return errCode == "NotRegistered" || errCode == "InvalidRegistration"
}
