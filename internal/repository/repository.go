// Package repository defines the persistence contracts of the store and
// their MongoDB implementations. Lookups that find nothing return
// common.ErrNotFound.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/models"
)

// ErrNoMatch is returned by GrantRepository.Redeem when no grant satisfied
// the redemption conditions. The caller decides why by reading the grant.
var ErrNoMatch = errors.New("no redeemable grant")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)

	// SetRefreshToken overwrites the stored refresh token unconditionally.
	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	// SwapRefreshToken replaces current with next only if current is still
	// the stored value, and reports whether it did.
	SwapRefreshToken(ctx context.Context, id primitive.ObjectID, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error

	UpdateProfile(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error)
	// UpdatePassword also drops the refresh token and any pending reset token.
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error
	LinkGoogleID(ctx context.Context, id primitive.ObjectID, googleID string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type RevocationRepository interface {
	// Add is idempotent: an already listed jti is not an error.
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	// Exists ignores entries whose expiry has passed.
	Exists(ctx context.Context, jti string) (bool, error)
}

type GrantRepository interface {
	Create(ctx context.Context, grant *models.DownloadGrant) error
	FindByToken(ctx context.Context, token string) (*models.DownloadGrant, error)
	// Redeem increments downloadCount in a single conditional update that
	// only matches a live grant with quota left, and returns the result.
	Redeem(ctx context.Context, token string, now time.Time) (*models.DownloadGrant, error)
	Revoke(ctx context.Context, token string) error
	ResetCount(ctx context.Context, token string) error
	List(ctx context.Context) ([]models.DownloadGrant, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.DownloadGrant, error)
	ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.DownloadGrant, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	// MarkPaid moves a pending order to confirmed. Anything else yields
	// common.ErrOrderNotPending.
	MarkPaid(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
}

// ProductFilter narrows catalog listings. Zero Page or Limit returns everything.
type ProductFilter struct {
	Category string
	Search   string
	Page     int64
	Limit    int64
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	// FindByIDs returns the active products among ids.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
}
