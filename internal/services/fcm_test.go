// internal/services/fcm_test.go
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFCMClient(t *testing.T, handler http.HandlerFunc) (*FCMClient, *httptest.Server) {
	t.Helper()
	// Declare the content type up front; without it the response body is
	// sniffed as text/plain and the client never decodes it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewFCMClient("test-server-key", 5*time.Second, testLogger())
	client.endpoint = srv.URL
	return client, srv
}

func TestSendSingleSuccess(t *testing.T) {
	var received fcmMessage
	client, _ := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=test-server-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(fcmResponse{
			Success: 1,
			Results: []fcmResult{{MessageID: "0:12345"}},
		})
	})

	messageID, err := client.SendSingle(context.Background(), "token-1", "Hello", "World",
		map[string]string{"k": "v"}, "android")
	require.NoError(t, err)
	assert.Equal(t, "0:12345", messageID)

	assert.Equal(t, "token-1", received.To)
	assert.Equal(t, "Hello", received.Notification.Title)
	assert.Equal(t, "high", received.Priority)
	assert.Equal(t, "v", received.Data["k"])
}

func TestSendSingleUnregistered(t *testing.T) {
	tests := []struct {
		name    string
		fcmErr  string
		wantErr error
	}{
		{"not registered", "NotRegistered", ErrUnregistered},
		{"invalid registration", "InvalidRegistration", ErrUnregistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(fcmResponse{
					Failure: 1,
					Results: []fcmResult{{Error: tt.fcmErr}},
				})
			})

			_, err := client.SendSingle(context.Background(), "stale-token", "t", "b", nil, "ios")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSendSingleTransientError(t *testing.T) {
	client, _ := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fcmResponse{
			Failure: 1,
			Results: []fcmResult{{Error: "Unavailable"}},
		})
	})

	_, err := client.SendSingle(context.Background(), "token", "t", "b", nil, "android")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnregistered)
}

func TestSendSingleServerError(t *testing.T) {
	client, _ := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SendSingle(context.Background(), "token", "t", "b", nil, "android")
	assert.Error(t, err)
}

func TestSendMulticast(t *testing.T) {
	client, _ := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		var msg fcmMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		require.Len(t, msg.RegistrationIDs, 3)

		json.NewEncoder(w).Encode(fcmResponse{
			Success: 2,
			Failure: 1,
			Results: []fcmResult{
				{MessageID: "m1"},
				{Error: "NotRegistered"},
				{MessageID: "m3"},
			},
		})
	})

	result, err := client.SendMulticast(context.Background(), []string{"a", "b", "c"}, "t", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, []string{"b"}, result.InvalidTokens)
}

func TestMissingServerKey(t *testing.T) {
	client := NewFCMClient("", 5*time.Second, testLogger())

	_, err := client.SendSingle(context.Background(), "token", "t", "b", nil, "android")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = client.SendMulticast(context.Background(), []string{"token"}, "t", "b", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
