// internal/models/billboard.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Approval workflow states.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type Billboard struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	City        string `bson:"city" json:"city" validate:"required,min=2,max=100"`
	Description string `bson:"description,omitempty" json:"description,omitempty" validate:"max=2000"`
	RoadName    string `bson:"road_name,omitempty" json:"road_name,omitempty"`
	Address     string `bson:"address,omitempty" json:"address,omitempty"`

	CompanyName  string  `bson:"company_name,omitempty" json:"company_name,omitempty"`
	OOHMediaType string  `bson:"ooh_media_type" json:"ooh_media_type" validate:"required"`
	PriceRange   string  `bson:"price_range,omitempty" json:"price_range,omitempty"`
	Images       []string `bson:"images,omitempty" json:"images,omitempty"`

	Latitude  float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`

	// Counters maintained by the tracking service via atomic $inc.
	Views int `bson:"views" json:"views"`
	Leads int `bson:"leads" json:"leads"`

	IsActive bool `bson:"is_active" json:"is_active"`

	ApprovalStatus  string              `bson:"approval_status" json:"approval_status"`
	ApprovedAt      *time.Time          `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedBy      *primitive.ObjectID `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	RejectedAt      *time.Time          `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectedBy      *primitive.ObjectID `bson:"rejected_by,omitempty" json:"rejected_by,omitempty"`
	RejectionReason string              `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsVisible reports whether the billboard shows up on the public map.
func (b *Billboard) IsVisible() bool {
	return b.IsActive && b.ApprovalStatus == ApprovalApproved
}

// IsOwnedBy reports whether userID owns this billboard.
func (b *Billboard) IsOwnedBy(userID primitive.ObjectID) bool {
	return b.UserID == userID
}

// Lead is one recorded lead interaction (phone/WhatsApp click). The actor
// field is the authenticated user id in hex, or the client IP for anonymous
// visitors; a unique (billboard_id, actor) index makes the record
// at-most-once per actor per billboard.
type Lead struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	BillboardID primitive.ObjectID  `bson:"billboard_id" json:"billboard_id"`
	Actor       string              `bson:"actor" json:"actor"`
	UserID      *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	UserIP      string              `bson:"user_ip,omitempty" json:"user_ip,omitempty"`
	UserAgent   string              `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}

// View is one recorded view interaction, deduplicated like Lead.
type View struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	BillboardID primitive.ObjectID  `bson:"billboard_id" json:"billboard_id"`
	Actor       string              `bson:"actor" json:"actor"`
	UserID      *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	UserIP      string              `bson:"user_ip,omitempty" json:"user_ip,omitempty"`
	UserAgent   string              `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}

// Wishlist links a user to a saved billboard, unique per pair.
type Wishlist struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	BillboardID primitive.ObjectID `bson:"billboard_id" json:"billboard_id"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
