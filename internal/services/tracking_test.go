// internal/services/tracking_test.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"adboard-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name         string
		forwardedFor string
		remoteAddr   string
		want         string
	}{
		{"no forwarding header", "", "203.0.113.7:54321", "203.0.113.7"},
		{"single forwarded hop", "198.51.100.1", "10.0.0.1:80", "198.51.100.1"},
		{"multiple hops takes first", "198.51.100.1, 10.0.0.2, 10.0.0.3", "10.0.0.1:80", "198.51.100.1"},
		{"forwarded with spaces", "  198.51.100.1 , 10.0.0.2", "10.0.0.1:80", "198.51.100.1"},
		{"remote addr without port", "", "203.0.113.7", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.forwardedFor, tt.remoteAddr))
		})
	}
}

func TestActorIdentity(t *testing.T) {
	t.Run("authenticated actor uses user id", func(t *testing.T) {
		userID := primitive.NewObjectID()
		actor := ActorInfo{UserID: &userID, IP: "203.0.113.7"}
		assert.Equal(t, userID.Hex(), actor.Actor())
	})

	t.Run("anonymous actor uses ip", func(t *testing.T) {
		actor := ActorInfo{IP: "203.0.113.7"}
		assert.Equal(t, "203.0.113.7", actor.Actor())
	})
}

// fakeInteractionStore keeps leads and views in memory with the same
// per-actor uniqueness the unique index enforces in Mongo.
type fakeInteractionStore struct {
	billboard  *models.Billboard
	leadActors map[string]bool
	viewActors map[string]bool
}

func newFakeInteractionStore(billboard *models.Billboard) *fakeInteractionStore {
	return &fakeInteractionStore{
		billboard:  billboard,
		leadActors: make(map[string]bool),
		viewActors: make(map[string]bool),
	}
}

func (f *fakeInteractionStore) FindBillboard(_ context.Context, id primitive.ObjectID) (*models.Billboard, error) {
	if f.billboard == nil || f.billboard.ID != id {
		return nil, ErrBillboardNotFound
	}
	copied := *f.billboard
	return &copied, nil
}

func (f *fakeInteractionStore) InsertLead(_ context.Context, lead *models.Lead) error {
	if f.leadActors[lead.Actor] {
		return ErrDuplicateInteraction
	}
	f.leadActors[lead.Actor] = true
	return nil
}

func (f *fakeInteractionStore) InsertView(_ context.Context, view *models.View) error {
	if f.viewActors[view.Actor] {
		return ErrDuplicateInteraction
	}
	f.viewActors[view.Actor] = true
	return nil
}

func (f *fakeInteractionStore) IncrementCounter(_ context.Context, _ primitive.ObjectID, field string) (int, error) {
	if field == "leads" {
		f.billboard.Leads++
		return f.billboard.Leads, nil
	}
	f.billboard.Views++
	return f.billboard.Views, nil
}

// fakeTrackingNotifier records the counts each trigger fired with.
type fakeTrackingNotifier struct {
	leadCounts      []int
	milestoneCounts []int
}

func (f *fakeTrackingNotifier) LeadCreated(_ context.Context, _ *models.Billboard, leadCount int) {
	f.leadCounts = append(f.leadCounts, leadCount)
}

func (f *fakeTrackingNotifier) ViewMilestone(_ context.Context, _ *models.Billboard, viewCount int) {
	f.milestoneCounts = append(f.milestoneCounts, viewCount)
}

func trackingFixture(views, leads int) (*models.Billboard, *fakeInteractionStore, *fakeTrackingNotifier, *TrackingService) {
	billboard := &models.Billboard{
		ID:     primitive.NewObjectID(),
		UserID: primitive.NewObjectID(),
		Views:  views,
		Leads:  leads,
	}
	store := newFakeInteractionStore(billboard)
	notifier := &fakeTrackingNotifier{}
	svc := newTrackingService(store, notifier, testLogger())
	return billboard, store, notifier, svc
}

func anonymousActor(ip string) ActorInfo {
	return ActorInfo{IP: ip, UserAgent: "test-agent"}
}

func TestTrackLeadSuppressedForOwner(t *testing.T) {
	billboard, _, notifier, svc := trackingFixture(0, 4)

	result, err := svc.TrackLead(context.Background(), billboard.ID, ActorInfo{UserID: &billboard.UserID})
	require.NoError(t, err)

	assert.False(t, result.Counted)
	assert.Equal(t, ReasonOwner, result.Reason)
	assert.Equal(t, 4, result.Count, "owner requests report the current count unchanged")
	assert.Empty(t, notifier.leadCounts)
}

func TestTrackLeadSuppressedForRepeatActor(t *testing.T) {
	billboard, _, notifier, svc := trackingFixture(0, 0)
	actor := anonymousActor("203.0.113.7")

	first, err := svc.TrackLead(context.Background(), billboard.ID, actor)
	require.NoError(t, err)
	assert.True(t, first.Counted)
	assert.Equal(t, 1, first.Count)

	second, err := svc.TrackLead(context.Background(), billboard.ID, actor)
	require.NoError(t, err)
	assert.False(t, second.Counted)
	assert.Equal(t, ReasonDuplicate, second.Reason)
	assert.Equal(t, 1, second.Count)

	assert.Equal(t, []int{1}, notifier.leadCounts, "only the counted lead notifies the owner")
}

func TestTrackViewSuppressedForOwnerAndRepeatActor(t *testing.T) {
	billboard, _, notifier, svc := trackingFixture(7, 0)

	owner, err := svc.TrackView(context.Background(), billboard.ID, ActorInfo{UserID: &billboard.UserID})
	require.NoError(t, err)
	assert.False(t, owner.Counted)
	assert.Equal(t, ReasonOwner, owner.Reason)

	actor := anonymousActor("198.51.100.1")
	counted, err := svc.TrackView(context.Background(), billboard.ID, actor)
	require.NoError(t, err)
	assert.True(t, counted.Counted)
	assert.Equal(t, 8, counted.Count)

	repeat, err := svc.TrackView(context.Background(), billboard.ID, actor)
	require.NoError(t, err)
	assert.False(t, repeat.Counted)
	assert.Equal(t, ReasonDuplicate, repeat.Reason)
	assert.Empty(t, notifier.milestoneCounts)
}

func TestTrackLeadUnknownBillboard(t *testing.T) {
	_, _, _, svc := trackingFixture(0, 0)

	_, err := svc.TrackLead(context.Background(), primitive.NewObjectID(), anonymousActor("203.0.113.7"))
	assert.ErrorIs(t, err, ErrBillboardNotFound)
}

func TestTrackViewMilestoneFiresOnlyOnBoundary(t *testing.T) {
	billboard, _, notifier, svc := trackingFixture(8, 0)

	for i, wantCount := range []int{9, 10, 11} {
		actor := anonymousActor(fmt.Sprintf("203.0.113.%d", i))
		result, err := svc.TrackView(context.Background(), billboard.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, wantCount, result.Count)
	}
	assert.Equal(t, []int{10}, notifier.milestoneCounts, "only the 10th view fires")

	billboard2, _, notifier2, svc2 := trackingFixture(19, 0)
	result, err := svc2.TrackView(context.Background(), billboard2.ID, anonymousActor("203.0.113.50"))
	require.NoError(t, err)
	assert.Equal(t, 20, result.Count)
	assert.Equal(t, []int{20}, notifier2.milestoneCounts)
}

func TestIsViewMilestone(t *testing.T) {
	tests := []struct {
		count int
		want  bool
	}{
		{0, false},
		{1, false},
		{9, false},
		{10, true},
		{11, false},
		{19, false},
		{20, true},
		{100, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isViewMilestone(tt.count), "count %d", tt.count)
	}
}

func TestTrackResultWireFormat(t *testing.T) {
	payload, err := json.Marshal(TrackResult{Counted: true, Count: 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"counted":true,"currentCount":10}`, string(payload))

	payload, err = json.Marshal(TrackResult{Counted: false, Count: 3, Reason: ReasonDuplicate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"counted":false,"currentCount":3,"reason":"duplicate"}`, string(payload))
}
