// Package orders places orders against the catalog and releases their
// files once paid.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/downloads"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/repository"
)

type GrantIssuer interface {
	IssueGrantsForOrder(ctx context.Context, order *models.Order) ([]downloads.IssuedGrant, error)
}

// ProductNotFoundError names a requested product that is missing or inactive.
type ProductNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID.Hex())
}

func (e ProductNotFoundError) Unwrap() error {
	return common.ErrInvalidOrder
}

type Service struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	grants   GrantIssuer
	log      logging.Logger
	now      func() time.Time
}

func NewService(orders repository.OrderRepository, products repository.ProductRepository, grants GrantIssuer, log logging.Logger) *Service {
	return &Service{
		orders:   orders,
		products: products,
		grants:   grants,
		log:      log.With("component", "ORDER"),
		now:      time.Now,
	}
}

// Create prices productIDs from the catalog and stores a pending order.
// Repeated ids are bought once.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, productIDs []primitive.ObjectID) (*models.Order, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("no products: %w", common.ErrInvalidOrder)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, ProductNotFoundError{ProductID: id}
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.EffectivePrice(),
			Files:     p.Files,
		})
	}

	order := models.NewOrder(userID, items, s.now())
	if err := s.orders.Create(ctx, &order); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}
	s.log.Info(ctx, "order created", "orderNumber", order.OrderNumber, "userId", userID.Hex(), "total", order.TotalPrice)
	return &order, nil
}

// MarkPaid confirms a pending order and issues its download grants.
// Calling it again for a confirmed order issues whatever grants an earlier
// call failed to create; once every file is covered it reports
// common.ErrOrderNotPending.
func (s *Service) MarkPaid(ctx context.Context, id primitive.ObjectID) (*models.Order, []downloads.IssuedGrant, error) {
	order, err := s.orders.MarkPaid(ctx, id, s.now())
	resumed := false
	if errors.Is(err, common.ErrOrderNotPending) {
		order, err = s.orders.FindByID(ctx, id)
		if err == nil && !order.Paid() {
			err = common.ErrOrderNotPending
		}
		resumed = true
	}
	if err != nil {
		return nil, nil, err
	}

	issued, err := s.grants.IssueGrantsForOrder(ctx, order)
	if err != nil {
		s.log.Error(ctx, "issuing grants for paid order failed", "orderNumber", order.OrderNumber, "issued", len(issued), "err", err)
		return order, issued, err
	}
	if resumed {
		if len(issued) == 0 {
			return nil, nil, common.ErrOrderNotPending
		}
		s.log.Warn(ctx, "completed grant issuance for paid order", "orderNumber", order.OrderNumber, "grants", len(issued))
		return order, issued, nil
	}
	s.log.Info(ctx, "order paid", "orderNumber", order.OrderNumber, "grants", len(issued))
	return order, issued, nil
}

func (s *Service) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
