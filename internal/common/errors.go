// Package common holds the error values shared by the service layers and
// the HTTP edge.
package common

import "errors"

// Authentication
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenReused        = errors.New("refresh token reused")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

// Accounts
var (
	ErrNotFound          = errors.New("not found")
	ErrEmailExists       = errors.New("email already registered")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrUnknownProvider   = errors.New("unknown identity provider")
	ErrInvalidProfile    = errors.New("incomplete identity profile")
	ErrInvalidIDToken    = errors.New("invalid identity token")
)

// Download grants
var (
	ErrGrantNotFound       = errors.New("download link not found")
	ErrGrantRevoked        = errors.New("download link revoked")
	ErrGrantExpired        = errors.New("download link expired")
	ErrQuotaExhausted      = errors.New("download limit reached")
	ErrOrderNotPaid        = errors.New("order is not paid")
	ErrOrderNotPending     = errors.New("order is not pending")
	ErrInvalidGrantOptions = errors.New("invalid download link options")
)

// Catalog and orders
var (
	ErrInvalidOrder   = errors.New("invalid order")
	ErrInvalidProduct = errors.New("invalid product")
)
