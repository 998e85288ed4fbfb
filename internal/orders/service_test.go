package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/downloads"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/repository"
	"filemart/internal/repository/memory"
)

type fixture struct {
	svc       *Service
	catalog   *Catalog
	downloads *downloads.Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithGrants(t, memory.NewGrants())
}

func newFixtureWithGrants(t *testing.T, grants repository.GrantRepository) *fixture {
	t.Helper()
	products := memory.NewProducts()
	dl := downloads.NewService(grants, downloads.NewMultiResolver(), downloads.Config{BaseURL: "http://localhost"}, logging.Nop())
	return &fixture{
		svc:       NewService(memory.NewOrders(), products, dl, logging.Nop()),
		catalog:   NewCatalog(products),
		downloads: dl,
	}
}

func (f *fixture) product(t *testing.T, p models.Product) primitive.ObjectID {
	t.Helper()
	p.IsActive = true
	require.NoError(t, f.catalog.Create(context.Background(), &p))
	return p.ID
}

func TestCreate_PricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.product(t, models.Product{Name: "Book", Price: 20, SaleEnabled: true, SalePrice: 15,
		Files: []models.FileRef{{ID: "book.pdf", Name: "book.pdf"}}})
	course := f.product(t, models.Product{Name: "Course", Price: 40})
	user := primitive.NewObjectID()

	order, err := f.svc.Create(ctx, user, []primitive.ObjectID{book, course, book})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.False(t, order.IsPaid)
	assert.Equal(t, 55.0, order.TotalPrice)
	require.Len(t, order.Items, 2)
	assert.Equal(t, models.StorageLocal, order.Items[0].Files[0].Storage)
	assert.Regexp(t, `^ORD-\d+-[0-9A-Z]{5}$`, order.OrderNumber)

	mine, err := f.svc.ListMine(ctx, user)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreate_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, primitive.NewObjectID(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidOrder)

	missing := primitive.NewObjectID()
	_, err = f.svc.Create(ctx, primitive.NewObjectID(), []primitive.ObjectID{missing})
	var notFound ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.ProductID)
	assert.ErrorIs(t, err, common.ErrInvalidOrder)
}

func TestMarkPaid_IssuesOneGrantPerFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bundle := f.product(t, models.Product{Name: "Bundle", Price: 10, Files: []models.FileRef{
		{ID: "a.zip", Name: "a.zip"},
		{ID: "b.zip", Name: "b.zip"},
	}})
	user := primitive.NewObjectID()
	order, err := f.svc.Create(ctx, user, []primitive.ObjectID{bundle})
	require.NoError(t, err)

	paid, issued, err := f.svc.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid())
	require.NotNil(t, paid.PaidAt)
	assert.Len(t, issued, 2)

	_, _, err = f.svc.MarkPaid(ctx, order.ID)
	assert.ErrorIs(t, err, common.ErrOrderNotPending)

	grants, err := f.downloads.ListForOwner(ctx, user)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

// failingGrants stores the first ok grants and rejects every later write
// until healed.
type failingGrants struct {
	*memory.Grants
	ok     int
	writes int
	healed bool
}

func (g *failingGrants) Create(ctx context.Context, grant *models.DownloadGrant) error {
	g.writes++
	if !g.healed && g.writes > g.ok {
		return errors.New("write concern timeout")
	}
	return g.Grants.Create(ctx, grant)
}

func TestMarkPaid_RetryCompletesInterruptedIssuance(t *testing.T) {
	grants := &failingGrants{Grants: memory.NewGrants(), ok: 1}
	f := newFixtureWithGrants(t, grants)
	ctx := context.Background()
	bundle := f.product(t, models.Product{Name: "Bundle", Price: 10, Files: []models.FileRef{
		{ID: "a.zip", Name: "a.zip"},
		{ID: "b.zip", Name: "b.zip"},
	}})
	user := primitive.NewObjectID()
	order, err := f.svc.Create(ctx, user, []primitive.ObjectID{bundle})
	require.NoError(t, err)

	_, issued, err := f.svc.MarkPaid(ctx, order.ID)
	require.Error(t, err)
	assert.Len(t, issued, 1)

	grants.healed = true
	paid, issued, err := f.svc.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid())
	require.Len(t, issued, 1)
	assert.Equal(t, "b.zip", issued[0].Grant.FileID)

	mine, err := f.downloads.ListForOwner(ctx, user)
	require.NoError(t, err)
	assert.Len(t, mine, 2, "one grant per file, none duplicated")

	_, _, err = f.svc.MarkPaid(ctx, order.ID)
	assert.ErrorIs(t, err, common.ErrOrderNotPending)
}

func TestMarkPaid_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.MarkPaid(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCatalog_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		p    models.Product
	}{
		{"blank name", models.Product{Name: "  ", Price: 1}},
		{"negative price", models.Product{Name: "x", Price: -1}},
		{"sale not cheaper", models.Product{Name: "x", Price: 10, SaleEnabled: true, SalePrice: 10}},
		{"file without id", models.Product{Name: "x", Price: 10, Files: []models.FileRef{{Name: "a"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.p
			assert.ErrorIs(t, f.catalog.Create(ctx, &p), common.ErrInvalidProduct)
		})
	}

	p := models.Product{Name: "Guide", Price: 10, SaleEnabled: true, SalePrice: 8, IsActive: true}
	require.NoError(t, f.catalog.Create(ctx, &p))
	assert.True(t, p.IsOnSale)
	assert.WithinDuration(t, time.Now(), p.CreatedAt, time.Minute)
}
