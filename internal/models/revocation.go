package models

import "time"

// RevocationEntry blocks one access token until ExpiresAt, which mirrors
// the token's own expiry.
type RevocationEntry struct {
	JTI       string    `bson:"jti" json:"jti"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
