package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"filemart/internal/common"
	"filemart/internal/models"
	"filemart/internal/repository"
)

// Catalog lists and creates the products orders are placed against.
type Catalog struct {
	products repository.ProductRepository
	now      func() time.Time
}

func NewCatalog(products repository.ProductRepository) *Catalog {
	return &Catalog{products: products, now: time.Now}
}

func (c *Catalog) List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	return c.products.List(ctx, filter)
}

func (c *Catalog) Create(ctx context.Context, p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required: %w", common.ErrInvalidProduct)
	}
	if p.Price < 0 {
		return fmt.Errorf("price must not be negative: %w", common.ErrInvalidProduct)
	}
	if err := models.ValidateSale(p.Price, p.SaleEnabled, p.SalePrice); err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrInvalidProduct)
	}
	for i := range p.Files {
		if strings.TrimSpace(p.Files[i].ID) == "" {
			return fmt.Errorf("file %d has no id: %w", i, common.ErrInvalidProduct)
		}
		if p.Files[i].Storage == "" {
			p.Files[i].Storage = models.StorageLocal
		}
	}
	if p.Category == nil {
		p.Category = models.StringList{}
	}
	p.CreatedAt = c.now()
	if err := c.products.Create(ctx, p); err != nil {
		return fmt.Errorf("store product: %w", err)
	}
	p.Normalize()
	return nil
}
