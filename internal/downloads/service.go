// Package downloads issues and redeems bounded-use, expiring download
// grants.
//
// A grant is redeemed with one conditional increment in the store, so
// concurrent redemptions can never exceed MaxDownloads. The count is
// consumed before the file is resolved: a delivery that fails afterwards
// still costs one download.
package downloads

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/obs"
	"filemart/internal/repository"
)

const (
	DefaultExpiryDays   = 7
	DefaultMaxDownloads = 3
	MaxExpiryDays       = 365
	MaxDownloadsLimit   = 100
)

type Config struct {
	BaseURL             string
	DefaultExpiryDays   int
	DefaultMaxDownloads int
}

// GrantOptions tune a single grant. Zero values fall back to the
// configured defaults.
type GrantOptions struct {
	OwnerID      *primitive.ObjectID
	ProductID    *primitive.ObjectID
	OrderID      *primitive.ObjectID
	ExpiryDays   int
	MaxDownloads int
}

type IssuedGrant struct {
	Grant       models.DownloadGrant
	DownloadURL string
}

type Redemption struct {
	Grant     models.DownloadGrant
	Delivery  *Delivery
	Remaining int
}

type Service struct {
	grants   repository.GrantRepository
	resolver FileResolver
	cfg      Config
	log      logging.Logger
	now      func() time.Time
}

func NewService(grants repository.GrantRepository, resolver FileResolver, cfg Config, log logging.Logger) *Service {
	if cfg.DefaultExpiryDays <= 0 {
		cfg.DefaultExpiryDays = DefaultExpiryDays
	}
	if cfg.DefaultMaxDownloads <= 0 {
		cfg.DefaultMaxDownloads = DefaultMaxDownloads
	}
	return &Service{
		grants:   grants,
		resolver: resolver,
		cfg:      cfg,
		log:      log.With("component", "DOWNLOAD"),
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) IssueGrant(ctx context.Context, file models.FileRef, opts GrantOptions) (*IssuedGrant, error) {
	if opts.ExpiryDays < 0 || opts.MaxDownloads < 0 || opts.ExpiryDays > MaxExpiryDays || opts.MaxDownloads > MaxDownloadsLimit {
		return nil, common.ErrInvalidGrantOptions
	}
	if file.ID == "" {
		return nil, common.ErrInvalidGrantOptions
	}
	expiryDays := opts.ExpiryDays
	if expiryDays == 0 {
		expiryDays = s.cfg.DefaultExpiryDays
	}
	maxDownloads := opts.MaxDownloads
	if maxDownloads == 0 {
		maxDownloads = s.cfg.DefaultMaxDownloads
	}
	if file.Storage == "" {
		file.Storage = models.StorageLocal
	}

	token, err := newGrantToken()
	if err != nil {
		return nil, fmt.Errorf("generate grant token: %w", err)
	}

	now := s.now()
	grant := models.DownloadGrant{
		Token:        token,
		FileID:       file.ID,
		FileName:     file.Name,
		Storage:      file.Storage,
		ContentType:  file.ContentType,
		ProductID:    opts.ProductID,
		OwnerID:      opts.OwnerID,
		OrderID:      opts.OrderID,
		MaxDownloads: maxDownloads,
		ExpiresAt:    now.AddDate(0, 0, expiryDays),
		CreatedAt:    now,
	}
	if err := s.grants.Create(ctx, &grant); err != nil {
		return nil, fmt.Errorf("store grant: %w", err)
	}

	obs.ObserveGrantsIssued(1)
	s.log.Info(ctx, "download link issued", "fileId", file.ID, "maxDownloads", maxDownloads, "expiresAt", grant.ExpiresAt)
	return &IssuedGrant{Grant: grant, DownloadURL: s.DownloadURL(token)}, nil
}

func (s *Service) DownloadURL(token string) string {
	return s.cfg.BaseURL + "/downloads/" + token
}

// IssueGrantsForOrder issues one grant per file of every purchased item,
// owned by the buyer. Files that already have a grant for this order are
// skipped, so an interrupted run can be repeated; only new grants are returned.
func (s *Service) IssueGrantsForOrder(ctx context.Context, order *models.Order) ([]IssuedGrant, error) {
	if !order.Paid() {
		return nil, common.ErrOrderNotPaid
	}

	existing, err := s.grants.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load grants for order %s: %w", order.OrderNumber, err)
	}
	type itemFile struct {
		product primitive.ObjectID
		file    string
	}
	granted := make(map[itemFile]bool, len(existing))
	for _, g := range existing {
		if g.ProductID != nil {
			granted[itemFile{*g.ProductID, g.FileID}] = true
		}
	}

	owner := order.UserID
	orderID := order.ID
	issued := make([]IssuedGrant, 0)
	for _, item := range order.Items {
		productID := item.ProductID
		for _, file := range item.Files {
			if granted[itemFile{productID, file.ID}] {
				continue
			}
			g, err := s.IssueGrant(ctx, file, GrantOptions{
				OwnerID:   &owner,
				ProductID: &productID,
				OrderID:   &orderID,
			})
			if err != nil {
				return issued, fmt.Errorf("issue grant for order %s: %w", order.OrderNumber, err)
			}
			issued = append(issued, *g)
		}
	}
	return issued, nil
}

// Redeem consumes one download of token and resolves its file.
func (s *Service) Redeem(ctx context.Context, token string) (*Redemption, error) {
	now := s.now()
	grant, err := s.grants.Redeem(ctx, token, now)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			reason := s.classify(ctx, token, now)
			obs.ObserveRedemption(redemptionResult(reason))
			return nil, reason
		}
		obs.ObserveRedemption("error")
		return nil, fmt.Errorf("redeem grant: %w", err)
	}

	delivery, err := s.resolver.Resolve(ctx, grant.File())
	if err != nil {
		obs.ObserveRedemption("unresolved")
		s.log.Error(ctx, "file resolution failed after redemption", "fileId", grant.FileID, "err", err)
		// Not wrapped: a resolver ErrNotFound is a server fault here, not a grant outcome.
		return nil, fmt.Errorf("resolve file %s: %v", grant.FileID, err)
	}

	obs.ObserveRedemption("ok")
	s.log.Info(ctx, "download link redeemed", "fileId", grant.FileID, "count", grant.DownloadCount, "max", grant.MaxDownloads)
	return &Redemption{Grant: *grant, Delivery: delivery, Remaining: grant.Remaining()}, nil
}

// classify explains why a redemption matched nothing.
func (s *Service) classify(ctx context.Context, token string, now time.Time) error {
	grant, err := s.grants.FindByToken(ctx, token)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return common.ErrGrantNotFound
	case err != nil:
		return fmt.Errorf("load grant: %w", err)
	case grant.Revoked:
		return common.ErrGrantRevoked
	case grant.ExpiredAt(now):
		return common.ErrGrantExpired
	default:
		return common.ErrQuotaExhausted
	}
}

func redemptionResult(err error) string {
	switch {
	case errors.Is(err, common.ErrGrantNotFound):
		return "not_found"
	case errors.Is(err, common.ErrGrantRevoked):
		return "revoked"
	case errors.Is(err, common.ErrGrantExpired):
		return "expired"
	case errors.Is(err, common.ErrQuotaExhausted):
		return "quota_exhausted"
	default:
		return "error"
	}
}

// Revoke disables token. Revoking an already revoked grant succeeds.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if err := s.grants.Revoke(ctx, token); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrGrantNotFound
		}
		return fmt.Errorf("revoke grant: %w", err)
	}
	s.log.Info(ctx, "download link revoked", "token", tokenPrefix(token))
	return nil
}

func (s *Service) ResetCount(ctx context.Context, token string) error {
	if err := s.grants.ResetCount(ctx, token); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrGrantNotFound
		}
		return fmt.Errorf("reset grant: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]models.DownloadGrant, error) {
	return s.grants.List(ctx)
}

func (s *Service) ListForOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.DownloadGrant, error) {
	return s.grants.ListByOwner(ctx, ownerID)
}

func newGrantToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
