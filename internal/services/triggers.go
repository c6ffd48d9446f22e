// internal/services/triggers.go
package services

import (
	"context"
	"fmt"

	"adboard-backend/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is the dispatch seam the triggers publish through. PushService
// satisfies it.
type Notifier interface {
	Send(
		ctx context.Context,
		userID primitive.ObjectID,
		category, title, body string,
		data map[string]string,
		related *models.RelatedEntity,
	) ([]models.PushNotification, error)
}

// NotificationTriggers maps domain events to concrete notifications. Every
// trigger is fire-and-forget from the caller's point of view: a failed push
// is logged and never propagates into the triggering operation.
type NotificationTriggers struct {
	notifier Notifier
	log      *logrus.Logger
}

func NewNotificationTriggers(notifier Notifier, log *logrus.Logger) *NotificationTriggers {
	return &NotificationTriggers{notifier: notifier, log: log}
}

func (t *NotificationTriggers) send(
	ctx context.Context,
	userID primitive.ObjectID,
	category, title, body string,
	data map[string]string,
	related *models.RelatedEntity,
) {
	if _, err := t.notifier.Send(ctx, userID, category, title, body, data, related); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID.Hex(),
			"category": category,
		}).Error("failed to send notification")
	}
}

func billboardRelated(b *models.Billboard) *models.RelatedEntity {
	return &models.RelatedEntity{EntityType: "billboard", EntityID: b.ID.Hex()}
}

// LeadCreated notifies the billboard owner about a new lead.
func (t *NotificationTriggers) LeadCreated(ctx context.Context, billboard *models.Billboard, leadCount int) {
	t.send(ctx, billboard.UserID,
		models.CategoryNewLead,
		"New Lead! 🎉",
		fmt.Sprintf("Someone is interested in your billboard in %s", billboard.City),
		map[string]string{
			"billboard_id": billboard.ID.Hex(),
			"lead_count":   fmt.Sprintf("%d", leadCount),
		},
		billboardRelated(billboard),
	)
}

// ViewMilestone notifies the owner when the view counter crosses a multiple
// of ten. The caller decides when a count is a milestone.
func (t *NotificationTriggers) ViewMilestone(ctx context.Context, billboard *models.Billboard, viewCount int) {
	t.send(ctx, billboard.UserID,
		models.CategoryNewView,
		"Views Milestone! 👀",
		fmt.Sprintf("Your billboard in %s reached %d views", billboard.City, viewCount),
		map[string]string{
			"billboard_id": billboard.ID.Hex(),
			"view_count":   fmt.Sprintf("%d", viewCount),
		},
		billboardRelated(billboard),
	)
}

// WishlistAdded notifies the owner that someone saved their billboard. The
// caller must not invoke it when the saver is the owner.
func (t *NotificationTriggers) WishlistAdded(ctx context.Context, billboard *models.Billboard) {
	t.send(ctx, billboard.UserID,
		models.CategoryWishlistAdded,
		"Added to Wishlist! ❤️",
		fmt.Sprintf("Someone added your billboard in %s to their wishlist", billboard.City),
		map[string]string{"billboard_id": billboard.ID.Hex()},
		billboardRelated(billboard),
	)
}

// BillboardApproved notifies the owner that moderation approved their
// billboard.
func (t *NotificationTriggers) BillboardApproved(ctx context.Context, billboard *models.Billboard) {
	t.send(ctx, billboard.UserID,
		models.CategoryBillboardApproved,
		"Billboard Approved! ✅",
		fmt.Sprintf("Your billboard in %s has been approved and is now live", billboard.City),
		map[string]string{"billboard_id": billboard.ID.Hex()},
		billboardRelated(billboard),
	)
}

// BillboardRejected notifies the owner about a rejection, including the
// moderator's reason when present.
func (t *NotificationTriggers) BillboardRejected(ctx context.Context, billboard *models.Billboard) {
	body := fmt.Sprintf("Your billboard in %s was not approved", billboard.City)
	if billboard.RejectionReason != "" {
		body = fmt.Sprintf("Your billboard in %s was not approved: %s", billboard.City, billboard.RejectionReason)
	}
	t.send(ctx, billboard.UserID,
		models.CategoryBillboardRejected,
		"Billboard Rejected ❌",
		body,
		map[string]string{"billboard_id": billboard.ID.Hex()},
		billboardRelated(billboard),
	)
}

// BillboardActivated notifies the owner that their billboard went live.
func (t *NotificationTriggers) BillboardActivated(ctx context.Context, billboard *models.Billboard) {
	t.send(ctx, billboard.UserID,
		models.CategoryBillboardActivated,
		"Billboard Activated",
		fmt.Sprintf("Your billboard in %s is now active", billboard.City),
		map[string]string{"billboard_id": billboard.ID.Hex()},
		billboardRelated(billboard),
	)
}

// BillboardDeactivated notifies the owner that their billboard was taken
// offline.
func (t *NotificationTriggers) BillboardDeactivated(ctx context.Context, billboard *models.Billboard) {
	t.send(ctx, billboard.UserID,
		models.CategoryBillboardDeactivated,
		"Billboard Deactivated",
		fmt.Sprintf("Your billboard in %s has been deactivated", billboard.City),
		map[string]string{"billboard_id": billboard.ID.Hex()},
		billboardRelated(billboard),
	)
}

// Welcome greets a freshly registered user.
func (t *NotificationTriggers) Welcome(ctx context.Context, user *models.User) {
	t.send(ctx, user.ID,
		models.CategoryWelcome,
		"Welcome to AdBoard! 🎊",
		fmt.Sprintf("Hi %s, start exploring billboards near you", user.Name),
		nil,
		nil,
	)
}
