package models

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

// OrderItem is a purchased product. Files is a snapshot of the product's
// deliverables taken when the order is placed.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Files     []FileRef          `bson:"files" json:"files"`
}

// Order defines the persisted order document.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Items       []OrderItem        `bson:"items" json:"items"`
	TotalPrice  float64            `bson:"totalPrice" json:"totalPrice"`
	Status      string             `bson:"status" json:"status"`
	IsPaid      bool               `bson:"isPaid" json:"isPaid"`
	PaidAt      *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewOrder builds a pending order, computing its total and order number.
func NewOrder(userID primitive.ObjectID, items []OrderItem, now time.Time) Order {
	var total float64
	for _, item := range items {
		total += item.Price
	}
	return Order{
		OrderNumber: newOrderNumber(now),
		UserID:      userID,
		Items:       items,
		TotalPrice:  total,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Paid reports whether the order may release its files.
func (o Order) Paid() bool {
	return o.IsPaid && o.Status == OrderStatusConfirmed
}

// newOrderNumber renders ORD-<unix millis>-<5 uppercase chars>.
func newOrderNumber(now time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), id[len(id)-5:])
}
