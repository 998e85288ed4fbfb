package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DownloadGrant authorizes up to MaxDownloads redemptions of one file until
// ExpiresAt. The opaque Token is the only credential needed to redeem it.
type DownloadGrant struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Token         string              `bson:"token" json:"token"`
	FileID        string              `bson:"fileId" json:"fileId"`
	FileName      string              `bson:"fileName" json:"fileName"`
	Storage       string              `bson:"storage" json:"storage"`
	ContentType   string              `bson:"contentType,omitempty" json:"contentType,omitempty"`
	ProductID     *primitive.ObjectID `bson:"productId,omitempty" json:"productId,omitempty"`
	OwnerID       *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	OrderID       *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	MaxDownloads  int                 `bson:"maxDownloads" json:"maxDownloads"`
	DownloadCount int                 `bson:"downloadCount" json:"downloadCount"`
	ExpiresAt     time.Time           `bson:"expiresAt" json:"expiresAt"`
	Revoked       bool                `bson:"revoked" json:"revoked"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
}

func (g DownloadGrant) File() FileRef {
	return FileRef{ID: g.FileID, Name: g.FileName, Storage: g.Storage, ContentType: g.ContentType}
}

// Remaining is the number of redemptions left, never negative.
func (g DownloadGrant) Remaining() int {
	if left := g.MaxDownloads - g.DownloadCount; left > 0 {
		return left
	}
	return 0
}

// ExpiredAt reports whether now is past the expiry. The expiry instant
// itself is still redeemable.
func (g DownloadGrant) ExpiredAt(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
