package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/models"
)

type Orders struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]models.Order
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[primitive.ObjectID]models.Order)}
}

func (s *Orders) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders[order.ID] = *order
	return nil
}

func (s *Orders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &order, nil
}

func (s *Orders) MarkPaid(_ context.Context, id primitive.ObjectID, now time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if order.Status != models.OrderStatusPending {
		return nil, common.ErrOrderNotPending
	}
	order.Status = models.OrderStatusConfirmed
	order.IsPaid = true
	order.PaidAt = &now
	order.UpdatedAt = now
	s.orders[id] = order
	return &order, nil
}

func (s *Orders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
