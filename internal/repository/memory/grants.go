package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/models"
	"filemart/internal/repository"
)

type Grants struct {
	mu     sync.Mutex
	grants map[string]models.DownloadGrant
}

func NewGrants() *Grants {
	return &Grants{grants: make(map[string]models.DownloadGrant)}
}

func (s *Grants) Create(_ context.Context, grant *models.DownloadGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[grant.Token]; ok {
		return common.ErrInvalidGrantOptions
	}
	if grant.ID.IsZero() {
		grant.ID = primitive.NewObjectID()
	}
	s.grants[grant.Token] = *grant
	return nil
}

func (s *Grants) FindByToken(_ context.Context, token string) (*models.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &grant, nil
}

func (s *Grants) Redeem(_ context.Context, token string, now time.Time) (*models.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[token]
	if !ok || grant.Revoked || now.After(grant.ExpiresAt) || grant.DownloadCount >= grant.MaxDownloads {
		return nil, repository.ErrNoMatch
	}
	grant.DownloadCount++
	s.grants[token] = grant
	return &grant, nil
}

func (s *Grants) Revoke(_ context.Context, token string) error {
	return s.update(token, func(g *models.DownloadGrant) { g.Revoked = true })
}

func (s *Grants) ResetCount(_ context.Context, token string) error {
	return s.update(token, func(g *models.DownloadGrant) { g.DownloadCount = 0 })
}

func (s *Grants) update(token string, mutate func(*models.DownloadGrant)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[token]
	if !ok {
		return common.ErrNotFound
	}
	mutate(&grant)
	s.grants[token] = grant
	return nil
}

func (s *Grants) List(_ context.Context) ([]models.DownloadGrant, error) {
	return s.filter(func(models.DownloadGrant) bool { return true }), nil
}

func (s *Grants) ListByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.DownloadGrant, error) {
	return s.filter(func(g models.DownloadGrant) bool {
		return g.OwnerID != nil && *g.OwnerID == ownerID
	}), nil
}

func (s *Grants) ListByOrder(_ context.Context, orderID primitive.ObjectID) ([]models.DownloadGrant, error) {
	return s.filter(func(g models.DownloadGrant) bool {
		return g.OrderID != nil && *g.OrderID == orderID
	}), nil
}

func (s *Grants) filter(keep func(models.DownloadGrant) bool) []models.DownloadGrant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.DownloadGrant, 0, len(s.grants))
	for _, g := range s.grants {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
