// internal/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification categories. Leads, views, wishlist and system messages can be
// switched off per user; the remaining categories are delivered whenever push
// is enabled at all.
const (
	CategoryNewLead              = "new_lead"
	CategoryNewView              = "new_view"
	CategoryWishlistAdded        = "wishlist_added"
	CategoryBillboardActivated   = "billboard_activated"
	CategoryBillboardDeactivated = "billboard_deactivated"
	CategoryPriceUpdate          = "price_update"
	CategorySystemMessage        = "system_message"
	CategoryWelcome              = "welcome"
	CategoryBillboardApproved    = "billboard_approved"
	CategoryBillboardRejected    = "billboard_rejected"
)

// Platforms accepted for device registrations.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// NotificationCategories lists every known category.
var NotificationCategories = []string{
	CategoryNewLead,
	CategoryNewView,
	CategoryWishlistAdded,
	CategoryBillboardActivated,
	CategoryBillboardDeactivated,
	CategoryPriceUpdate,
	CategorySystemMessage,
	CategoryWelcome,
	CategoryBillboardApproved,
	CategoryBillboardRejected,
}

// IsValidCategory reports whether category is one of the known values.
func IsValidCategory(category string) bool {
	for _, c := range NotificationCategories {
		if c == category {
			return true
		}
	}
	return false
}

// DeviceToken is one FCM registration. The token itself is globally unique:
// registering a token that already exists reassigns it to the registering
// user and reactivates it.
type DeviceToken struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Token      string             `bson:"fcm_token" json:"fcm_token"`
	Platform   string             `bson:"platform" json:"platform"`
	DeviceID   string             `bson:"device_id,omitempty" json:"device_id,omitempty"`
	AppVersion string             `bson:"app_version,omitempty" json:"app_version,omitempty"`
	OSVersion  string             `bson:"os_version,omitempty" json:"os_version,omitempty"`
	IsActive   bool               `bson:"is_active" json:"is_active"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	LastUsedAt time.Time          `bson:"last_used_at" json:"last_used_at"`
}

// NotificationPreference holds per-user notification settings, one document
// per user. Created lazily with all defaults enabled.
type NotificationPreference struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	PushEnabled      bool `bson:"push_enabled" json:"push_enabled"`
	SoundEnabled     bool `bson:"sound_enabled" json:"sound_enabled"`
	VibrationEnabled bool `bson:"vibration_enabled" json:"vibration_enabled"`

	NewLeadsEnabled        bool `bson:"new_leads_enabled" json:"new_leads_enabled"`
	NewViewsEnabled        bool `bson:"new_views_enabled" json:"new_views_enabled"`
	WishlistUpdatesEnabled bool `bson:"wishlist_updates_enabled" json:"wishlist_updates_enabled"`
	SystemMessagesEnabled  bool `bson:"system_messages_enabled" json:"system_messages_enabled"`

	// Quiet hours in "HH:MM" 24-hour format, empty when unset.
	QuietHoursEnabled bool   `bson:"quiet_hours_enabled" json:"quiet_hours_enabled"`
	QuietHoursStart   string `bson:"quiet_hours_start,omitempty" json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     string `bson:"quiet_hours_end,omitempty" json:"quiet_hours_end,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DefaultNotificationPreference returns the preferences a user gets on first
// access: everything enabled, quiet hours off.
func DefaultNotificationPreference(userID primitive.ObjectID) *NotificationPreference {
	now := time.Now()
	return &NotificationPreference{
		UserID:                 userID,
		PushEnabled:            true,
		SoundEnabled:           true,
		VibrationEnabled:       true,
		NewLeadsEnabled:        true,
		NewViewsEnabled:        true,
		WishlistUpdatesEnabled: true,
		SystemMessagesEnabled:  true,
		QuietHoursEnabled:      false,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// IsQuietHours reports whether now falls inside the configured quiet window.
// A window with start > end spans midnight.
func (p *NotificationPreference) IsQuietHours(now time.Time) bool {
	if !p.QuietHoursEnabled || p.QuietHoursStart == "" || p.QuietHoursEnd == "" {
		return false
	}

	start, err := parseClock(p.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(p.QuietHoursEnd)
	if err != nil {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if start <= end {
		return minute >= start && minute <= end
	}
	// Window spans midnight.
	return minute >= start || minute <= end
}

// IsCategoryAllowed reports whether the user accepts pushes of the given
// category. Categories without a dedicated toggle are allowed whenever push
// is enabled.
func (p *NotificationPreference) IsCategoryAllowed(category string) bool {
	if !p.PushEnabled {
		return false
	}

	switch category {
	case CategoryNewLead:
		return p.NewLeadsEnabled
	case CategoryNewView:
		return p.NewViewsEnabled
	case CategoryWishlistAdded:
		return p.WishlistUpdatesEnabled
	case CategorySystemMessage:
		return p.SystemMessagesEnabled
	default:
		return true
	}
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// RelatedEntity links a notification to the domain object it was fired for.
type RelatedEntity struct {
	EntityType string `bson:"entity_type" json:"entity_type"`
	EntityID   string `bson:"entity_id" json:"entity_id"`
}

// PushNotification is the persisted outcome of one attempted send to one
// device. The delivery fields only ever move forward: pending to delivered,
// pending to failed, delivered to opened. Records are never deleted by the
// pipeline.
type PushNotification struct {
	ID        string             `bson:"_id" json:"id"`
	Recipient primitive.ObjectID `bson:"recipient_id" json:"recipient_id"`
	Category  string             `bson:"category" json:"category"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`

	FCMToken string `bson:"fcm_token" json:"fcm_token"`
	Platform string `bson:"platform" json:"platform"`

	Related *RelatedEntity    `bson:"related,omitempty" json:"related,omitempty"`
	Data    map[string]string `bson:"data,omitempty" json:"data,omitempty"`

	MessageID   string     `bson:"message_id,omitempty" json:"message_id,omitempty"`
	SentAt      time.Time  `bson:"sent_at" json:"sent_at"`
	Delivered   bool       `bson:"delivered" json:"delivered"`
	DeliveredAt *time.Time `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	Opened      bool       `bson:"opened" json:"opened"`
	OpenedAt    *time.Time `bson:"opened_at,omitempty" json:"opened_at,omitempty"`

	ErrorMessage string `bson:"error_message,omitempty" json:"error_message,omitempty"`
	RetryCount   int    `bson:"retry_count" json:"retry_count"`
	MaxRetries   int    `bson:"max_retries" json:"max_retries"`
}
