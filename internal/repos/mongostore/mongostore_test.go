package mongostore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repos/mongostore"
	"storefront/internal/services"
)

// Runs against a live replica set, e.g.
// STOREFRONT_TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func openStores(t *testing.T) services.Stores {
	t.Helper()
	uri := os.Getenv("STOREFRONT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STOREFRONT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db, err := mongostore.Connect(ctx, uri, "storefront_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = db.Close(ctx)
	})
	return mongostore.Stores(db)
}

func newProduct(t *testing.T, st services.Stores, name string, price string, stock int) *domain.Product {
	t.Helper()
	at := time.Now().UTC()
	p := &domain.Product{
		ID: uuid.NewString(), Name: name, Price: decimal.RequireFromString(price),
		Category: domain.CategoryOther, Stock: stock, CreatedAt: at, UpdatedAt: at,
	}
	require.NoError(t, st.Products.Create(context.Background(), p))
	return p
}

func TestProductStockAndPrice(t *testing.T) {
	st := openStores(t)
	ctx := context.Background()
	p := newProduct(t, st, "Lamp", "19.99", 2)

	got, err := st.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("19.99")))

	require.NoError(t, st.Products.DecrementStock(ctx, p.ID, 2))
	err = st.Products.DecrementStock(ctx, p.ID, 1)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.True(t, errors.Is(st.Products.DecrementStock(ctx, "missing", 1), domain.ErrNotFound))

	lo := decimal.NewFromInt(10)
	items, total, err := st.Products.List(ctx, domain.ProductFilter{MinPrice: &lo, PageRequest: domain.PageRequest{}.Normalize()})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, p.ID, items[0].ID)
}

func TestOrderRollsBackWithStock(t *testing.T) {
	st := openStores(t)
	ctx := context.Background()
	p := newProduct(t, st, "Mug", "5", 3)

	boom := errors.New("boom")
	err := st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := st.Products.DecrementStock(ctx, p.ID, 3); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)
	got, err := st.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestAccountWishlistAndViews(t *testing.T) {
	st := openStores(t)
	ctx := context.Background()
	at := time.Now().UTC()
	a := &domain.Account{ID: uuid.NewString(), Username: "Ada", Email: "ada@shop.test", Hash: "x", Role: domain.RoleCustomer, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, st.Accounts.Create(ctx, a))

	dup := *a
	dup.ID, dup.Email = uuid.NewString(), "other@shop.test"
	dup.Username = "ADA"
	assert.True(t, errors.Is(st.Accounts.Create(ctx, &dup), domain.ErrConflict))

	added, err := st.Accounts.AddToWishlist(ctx, a.ID, "p1")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = st.Accounts.AddToWishlist(ctx, a.ID, "p1")
	require.NoError(t, err)
	assert.False(t, added)

	for i := 0; i < domain.RecentViewLimit+3; i++ {
		require.NoError(t, st.Accounts.RecordView(ctx, a.ID, fmt.Sprintf("p%d", i), at.Add(time.Duration(i)*time.Second)))
	}
	got, err := st.Accounts.ByUsername(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, got.RecentlyViewed, domain.RecentViewLimit)
	assert.Equal(t, fmt.Sprintf("p%d", domain.RecentViewLimit+2), got.RecentlyViewed[0].ProductID)
	assert.Equal(t, []string{"p1"}, got.Wishlist)
}

func TestTicketThread(t *testing.T) {
	st := openStores(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)
	tk := &domain.Ticket{
		ID: uuid.NewString(), UserID: "u1", Subject: "Help", Description: "d",
		Status: domain.TicketOpen, Priority: domain.PriorityLow, Category: domain.TicketCatOther,
		CreatedAt: at, UpdatedAt: at,
	}
	require.NoError(t, st.Tickets.Create(ctx, tk))
	for i, body := range []string{"first", "second"} {
		require.NoError(t, st.Tickets.AddMessage(ctx, &domain.TicketMessage{
			ID: uuid.NewString(), TicketID: tk.ID, SenderID: "u1", SenderRole: domain.RoleCustomer,
			Body: body, CreatedAt: at.Add(time.Duration(i) * time.Second),
		}))
	}
	got, err := st.Tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)

	msgs, total, err := st.Tickets.Messages(ctx, tk.ID, domain.PageRequest{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "first", msgs[0].Body)
}
