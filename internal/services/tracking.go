// internal/services/tracking.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"adboard-backend/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Suppression reasons returned when an interaction is not counted.
const (
	ReasonOwner     = "owner"
	ReasonDuplicate = "duplicate"
)

// TrackResult reports the outcome of a tracking request. Suppressed
// interactions are results, not errors: the endpoint still returns 200.
type TrackResult struct {
	Counted bool   `json:"counted"`
	Count   int    `json:"currentCount"`
	Reason  string `json:"reason,omitempty"`
}

// ActorInfo identifies who performed an interaction.
type ActorInfo struct {
	UserID    *primitive.ObjectID
	IP        string
	UserAgent string
}

// Actor returns the dedup key: the user id in hex for authenticated
// requests, the client IP otherwise.
func (a ActorInfo) Actor() string {
	if a.UserID != nil {
		return a.UserID.Hex()
	}
	return a.IP
}

// ClientIP extracts the caller's address for anonymous actor identity: the
// first hop of X-Forwarded-For when present, the remote address otherwise.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		if idx := strings.Index(forwardedFor, ","); idx >= 0 {
			forwardedFor = forwardedFor[:idx]
		}
		return strings.TrimSpace(forwardedFor)
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx >= 0 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}

// TrackingNotifier receives tracking events that warrant a push to the
// billboard owner.
type TrackingNotifier interface {
	LeadCreated(ctx context.Context, billboard *models.Billboard, leadCount int)
	ViewMilestone(ctx context.Context, billboard *models.Billboard, viewCount int)
}

var (
	ErrBillboardNotFound = errors.New("billboard not found")

	// ErrDuplicateInteraction signals the actor already interacted with the
	// billboard; the unique (billboard_id, actor) index is the authority.
	ErrDuplicateInteraction = errors.New("interaction already recorded")
)

// InteractionStore persists leads and views and maintains the denormalized
// counters on the billboard document. Inserting a repeat interaction for the
// same actor returns ErrDuplicateInteraction.
type InteractionStore interface {
	FindBillboard(ctx context.Context, id primitive.ObjectID) (*models.Billboard, error)
	InsertLead(ctx context.Context, lead *models.Lead) error
	InsertView(ctx context.Context, view *models.View) error
	IncrementCounter(ctx context.Context, id primitive.ObjectID, field string) (int, error)
}

// TrackingService records leads and views with at-most-once-per-actor
// semantics and keeps the denormalized counters on the billboard document.
type TrackingService struct {
	store    InteractionStore
	notifier TrackingNotifier
	log      *logrus.Logger
}

func NewTrackingService(db *mongo.Database, notifier TrackingNotifier, log *logrus.Logger) *TrackingService {
	store := &mongoInteractionStore{
		billboards: db.Collection("billboards"),
		leads:      db.Collection("leads"),
		views:      db.Collection("views"),
	}
	return newTrackingService(store, notifier, log)
}

func newTrackingService(store InteractionStore, notifier TrackingNotifier, log *logrus.Logger) *TrackingService {
	return &TrackingService{store: store, notifier: notifier, log: log}
}

// TrackLead records a lead for the billboard unless the actor is the owner
// or has already left one. On a counted lead the owner is notified.
func (s *TrackingService) TrackLead(ctx context.Context, billboardID primitive.ObjectID, actor ActorInfo) (*TrackResult, error) {
	billboard, err := s.store.FindBillboard(ctx, billboardID)
	if err != nil {
		return nil, err
	}

	if actor.UserID != nil && billboard.IsOwnedBy(*actor.UserID) {
		return &TrackResult{Counted: false, Count: billboard.Leads, Reason: ReasonOwner}, nil
	}

	lead := models.Lead{
		BillboardID: billboardID,
		Actor:       actor.Actor(),
		UserID:      actor.UserID,
		UserIP:      actor.IP,
		UserAgent:   actor.UserAgent,
		CreatedAt:   time.Now(),
	}

	if err := s.store.InsertLead(ctx, &lead); err != nil {
		if errors.Is(err, ErrDuplicateInteraction) {
			return &TrackResult{Counted: false, Count: billboard.Leads, Reason: ReasonDuplicate}, nil
		}
		return nil, err
	}

	count, err := s.store.IncrementCounter(ctx, billboardID, "leads")
	if err != nil {
		return nil, err
	}
	billboard.Leads = count

	s.log.WithFields(logrus.Fields{
		"billboard_id": billboardID.Hex(),
		"lead_count":   count,
	}).Info("lead recorded")

	if s.notifier != nil {
		s.notifier.LeadCreated(ctx, billboard, count)
	}

	return &TrackResult{Counted: true, Count: count}, nil
}

// TrackView records a view, deduplicated per actor. Every 10th view fires a
// milestone notification to the owner.
func (s *TrackingService) TrackView(ctx context.Context, billboardID primitive.ObjectID, actor ActorInfo) (*TrackResult, error) {
	billboard, err := s.store.FindBillboard(ctx, billboardID)
	if err != nil {
		return nil, err
	}

	if actor.UserID != nil && billboard.IsOwnedBy(*actor.UserID) {
		return &TrackResult{Counted: false, Count: billboard.Views, Reason: ReasonOwner}, nil
	}

	view := models.View{
		BillboardID: billboardID,
		Actor:       actor.Actor(),
		UserID:      actor.UserID,
		UserIP:      actor.IP,
		UserAgent:   actor.UserAgent,
		CreatedAt:   time.Now(),
	}

	if err := s.store.InsertView(ctx, &view); err != nil {
		if errors.Is(err, ErrDuplicateInteraction) {
			return &TrackResult{Counted: false, Count: billboard.Views, Reason: ReasonDuplicate}, nil
		}
		return nil, err
	}

	count, err := s.store.IncrementCounter(ctx, billboardID, "views")
	if err != nil {
		return nil, err
	}
	billboard.Views = count

	if s.notifier != nil && isViewMilestone(count) {
		s.notifier.ViewMilestone(ctx, billboard, count)
	}

	return &TrackResult{Counted: true, Count: count}, nil
}

// isViewMilestone reports whether the counter just landed on a multiple of
// ten. Only the view that crosses the boundary qualifies.
func isViewMilestone(count int) bool {
	return count > 0 && count%10 == 0
}

// mongoInteractionStore is the production InteractionStore.
type mongoInteractionStore struct {
	billboards *mongo.Collection
	leads      *mongo.Collection
	views      *mongo.Collection
}

func (m *mongoInteractionStore) FindBillboard(ctx context.Context, id primitive.ObjectID) (*models.Billboard, error) {
	var billboard models.Billboard
	err := m.billboards.FindOne(ctx, bson.M{"_id": id}).Decode(&billboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBillboardNotFound
		}
		return nil, err
	}
	return &billboard, nil
}

func (m *mongoInteractionStore) InsertLead(ctx context.Context, lead *models.Lead) error {
	return m.insert(ctx, m.leads, lead)
}

func (m *mongoInteractionStore) InsertView(ctx context.Context, view *models.View) error {
	return m.insert(ctx, m.views, view)
}

func (m *mongoInteractionStore) insert(ctx context.Context, collection *mongo.Collection, doc interface{}) error {
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateInteraction
		}
		return err
	}
	return nil
}

// IncrementCounter bumps the named counter and returns its new value.
func (m *mongoInteractionStore) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string) (int, error) {
	var updated models.Billboard
	err := m.billboards.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{field: 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return 0, err
	}

	switch field {
	case "leads":
		return updated.Leads, nil
	default:
		return updated.Views, nil
	}
}
