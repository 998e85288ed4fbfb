// Package tokens mints, verifies and rotates the access/refresh token pair.
//
// Access tokens are short-lived and carry a unique jti so that a single
// token can be blocklisted on logout. Refresh tokens are signed with a
// separate secret and are only accepted while they equal the value stored
// on the user record: rotating overwrites that value, and presenting any
// other value is treated as theft and closes every session of the user.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/obs"
	"filemart/internal/repository"
)

// DefaultRefreshTTL is the refresh token lifetime when Config leaves it unset.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// Config holds the signing secrets and lifetimes. Zero TTLs fall back to
// 15 minutes for access tokens and DefaultRefreshTTL for refresh tokens.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the payload of both token kinds.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return primitive.NilObjectID, common.ErrInvalidToken
	}
	return id, nil
}

// ExpiresAtTime returns the expiry, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Pair is a freshly minted access/refresh token pair with their expiries.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service issues and verifies tokens against the user store and the
// revocation ledger.
type Service struct {
	users       repository.UserRepository
	revocations repository.RevocationRepository
	cfg         Config
	log         logging.Logger
	now         func() time.Time
}

func NewService(users repository.UserRepository, revocations repository.RevocationRepository, cfg Config, log logging.Logger) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Service{
		users:       users,
		revocations: revocations,
		cfg:         cfg,
		log:         log.With("component", "TOKENS"),
		now:         time.Now,
	}
}

// WithClock replaces the time source used for minting and verification.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) RefreshTTL() time.Duration {
	return s.cfg.RefreshTTL
}

// IssueTokenPair mints a pair for user and stores the refresh token on the
// user record, replacing any previous one.
func (s *Service) IssueTokenPair(ctx context.Context, user *models.User) (*Pair, error) {
	pair, err := s.mint(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	user.RefreshToken = pair.RefreshToken
	return pair, nil
}

func (s *Service) mint(userID primitive.ObjectID, role string) (*Pair, error) {
	now := s.now()
	accessExp := now.Add(s.cfg.AccessTTL)
	refreshExp := now.Add(s.cfg.RefreshTTL)

	access, err := sign(s.cfg.AccessSecret, userID, role, now, accessExp)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := sign(s.cfg.RefreshSecret, userID, role, now, refreshExp)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func sign(secret string, userID primitive.ObjectID, role string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyAccess checks signature and expiry only; the blocklist is consulted
// separately through IsRevoked.
func (s *Service) VerifyAccess(token string) (*Claims, error) {
	return s.parse(token, s.cfg.AccessSecret)
}

func (s *Service) VerifyRefresh(token string) (*Claims, error) {
	return s.parse(token, s.cfg.RefreshSecret)
}

func (s *Service) parse(token, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Rotate exchanges a current refresh token for a new pair.
func (s *Service) Rotate(ctx context.Context, presented string) (*Pair, error) {
	if presented == "" {
		obs.ObserveRefresh("missing")
		return nil, common.ErrUnauthenticated
	}

	claims, err := s.VerifyRefresh(presented)
	if err != nil {
		obs.ObserveRefresh("invalid")
		return nil, common.ErrInvalidToken
	}
	userID, _ := claims.UserID()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		obs.ObserveRefresh("invalid")
		return nil, err
	}

	if user.RefreshToken != presented {
		return nil, s.reuseDetected(ctx, user.ID)
	}

	pair, err := s.mint(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	swapped, err := s.users.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		return nil, s.reuseDetected(ctx, user.ID)
	}

	obs.ObserveRefresh("rotated")
	return pair, nil
}

func (s *Service) reuseDetected(ctx context.Context, userID primitive.ObjectID) error {
	obs.ObserveRefresh("reused")
	s.log.Warn(ctx, "refresh token reuse detected, closing all sessions", "userId", userID.Hex())
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		s.log.Error(ctx, "clearing refresh token after reuse failed", "userId", userID.Hex(), "err", err)
	}
	return common.ErrTokenReused
}

// RevokeAccessToken blocklists jti until expiresAt. Revoking twice is fine.
func (s *Service) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	if err := s.revocations.Add(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revocations.Exists(ctx, jti)
}

// Logout blocklists the presented access token and drops the user's
// refresh token.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if err := s.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return err
	}
	userID, err := claims.UserID()
	if err != nil {
		return err
	}
	return s.users.ClearRefreshToken(ctx, userID)
}
