// internal/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string             `bson:"email" json:"email" validate:"required,email"`
	Name         string             `bson:"name" json:"name" validate:"required,min=2,max=100"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty" validate:"omitempty,min=10,max=15"`
	PasswordHash string             `bson:"password_hash" json:"-"`

	IsAdmin  bool `bson:"is_admin" json:"is_admin"`
	IsActive bool `bson:"is_active" json:"is_active"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}
