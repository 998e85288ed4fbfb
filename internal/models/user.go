package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account record. RefreshToken mirrors the only refresh token
// currently accepted for this user; it is empty when every session is closed.
type User struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                  string             `bson:"email" json:"email"`
	Name                   string             `bson:"name" json:"name"`
	PasswordHash           string             `bson:"passwordHash,omitempty" json:"-"`
	Role                   string             `bson:"role" json:"role"`
	RefreshToken           string             `bson:"refreshToken,omitempty" json:"-"`
	IsVerified             bool               `bson:"isVerified" json:"isVerified"`
	GoogleID               string             `bson:"googleId,omitempty" json:"-"`
	ResetPasswordTokenHash string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpiresAt *time.Time         `bson:"resetPasswordExpire,omitempty" json:"-"`
	CreatedAt              time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
