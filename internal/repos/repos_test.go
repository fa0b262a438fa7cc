package repos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedProduct(t *testing.T, r *repos.ProductRepo, name, desc string, stock int) *domain.Product {
	t.Helper()
	at := time.Now().UTC()
	p := &domain.Product{
		ID: uuid.NewString(), Name: name, Description: desc,
		Price: decimal.RequireFromString("9.99"), Category: domain.CategoryOther, Stock: stock,
		CreatedAt: at, UpdatedAt: at,
	}
	require.NoError(t, r.Create(context.Background(), p))
	return p
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openDB(t)
	require.NoError(t, repos.Migrate(db))
}

func TestDecrementStockIsConditional(t *testing.T) {
	ctx := context.Background()
	r := repos.NewProductRepo(openDB(t))
	p := seedProduct(t, r, "Lamp", "", 2)

	require.NoError(t, r.DecrementStock(ctx, p.ID, 2))

	err := r.DecrementStock(ctx, p.ID, 1)
	require.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)
	msg, ok := domain.PublicMessage(err)
	require.True(t, ok)
	assert.Contains(t, msg, "Lamp")

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	assert.True(t, errors.Is(r.DecrementStock(ctx, "missing", 1), domain.ErrNotFound))
	require.NoError(t, r.IncrementStock(ctx, p.ID, 4))
	got, _ = r.Get(ctx, p.ID)
	assert.Equal(t, 4, got.Stock)
}

func TestTxRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	r := repos.NewProductRepo(db)
	p := seedProduct(t, r, "Mug", "", 3)

	boom := errors.New("boom")
	err := repos.NewTxManager(db).WithinTx(ctx, func(ctx context.Context) error {
		if err := r.DecrementStock(ctx, p.ID, 3); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	r := repos.NewProductRepo(openDB(t))
	cotton := seedProduct(t, r, "100% Cotton Tee", "", 1)
	seedProduct(t, r, "1000 Thread Sheets", "", 1)
	seedProduct(t, r, "snake_case mug", "", 1)
	seedProduct(t, r, "Blue Cup", "", 1)

	got, total, err := r.Search(ctx, "100%", domain.PageRequest{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, cotton.ID, got[0].ID)

	_, total, err = r.Search(ctx, "e_c", domain.PageRequest{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 1, total, "underscore must not match any single character")
}

func TestGetManyKeepsRequestOrder(t *testing.T) {
	ctx := context.Background()
	r := repos.NewProductRepo(openDB(t))
	a := seedProduct(t, r, "A", "", 1)
	b := seedProduct(t, r, "B", "", 1)

	got, err := r.GetMany(ctx, []string{b.ID, "gone", a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	r := repos.NewUserRepo(openDB(t))
	at := time.Now().UTC()
	acc := func(username, email string) *domain.Account {
		return &domain.Account{ID: uuid.NewString(), Username: username, Email: email, Hash: "x", Role: domain.RoleCustomer, CreatedAt: at, UpdatedAt: at}
	}
	require.NoError(t, r.Create(ctx, acc("Ada", "ada@shop.test")))

	assert.True(t, errors.Is(r.Create(ctx, acc("other", "ada@shop.test")), domain.ErrConflict))
	assert.True(t, errors.Is(r.Create(ctx, acc("ADA", "new@shop.test")), domain.ErrConflict))

	got, err := r.ByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Username)
	assert.NotNil(t, got.Addresses)

	_, err = r.ByEmail(ctx, "ghost@shop.test")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTicketThread(t *testing.T) {
	ctx := context.Background()
	r := repos.NewTicketRepo(openDB(t))
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tk := &domain.Ticket{
		ID: uuid.NewString(), UserID: "u1", Subject: "Help", Description: "d",
		Status: domain.TicketOpen, Priority: domain.PriorityLow, Category: domain.TicketCatOther,
		CreatedAt: at, UpdatedAt: at,
	}
	require.NoError(t, r.Create(ctx, tk))

	for i, body := range []string{"first", "second", "third"} {
		require.NoError(t, r.AddMessage(ctx, &domain.TicketMessage{
			ID: uuid.NewString(), TicketID: tk.ID, SenderID: "u1", SenderRole: domain.RoleCustomer,
			Body: body, CreatedAt: at.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := r.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MessageCount)
	assert.True(t, got.UpdatedAt.Equal(at.Add(2*time.Second)))
	assert.Nil(t, got.ResolvedAt)

	msgs, total, err := r.Messages(ctx, tk.ID, domain.PageRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, "third", msgs[0].Body)
	assert.Equal(t, []string{}, msgs[0].Attachments)

	err = r.AddMessage(ctx, &domain.TicketMessage{ID: uuid.NewString(), TicketID: "missing", Body: "x", CreatedAt: at})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	got.SetStatus(domain.TicketResolved, at.Add(time.Hour))
	require.NoError(t, r.Update(ctx, got))
	again, err := r.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ResolvedAt)
	assert.True(t, again.ResolvedAt.Equal(at.Add(time.Hour)))
}
