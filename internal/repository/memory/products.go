package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/models"
	"filemart/internal/repository"
)

type Products struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
}

func NewProducts() *Products {
	return &Products{products: make(map[primitive.ObjectID]models.Product)}
}

func (s *Products) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	s.products[product.ID] = *product
	return nil
}

func (s *Products) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.IsActive && !p.IsDeleted {
			p.Normalize()
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Products) List(_ context.Context, f repository.ProductFilter) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	category := strings.TrimSpace(f.Category)

	out := make([]models.Product, 0)
	for _, p := range s.products {
		if !p.IsActive || p.IsDeleted {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if category != "" && !contains(p.Category, category) {
			continue
		}
		p.Normalize()
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Page > 0 && f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start >= int64(len(out)) {
			return []models.Product{}, nil
		}
		end := start + f.Limit
		if end > int64(len(out)) {
			end = int64(len(out))
		}
		out = out[start:end]
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
