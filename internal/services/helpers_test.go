package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/messaging"
	"storefront/internal/repos"
	"storefront/internal/services"
)

type env struct {
	st       services.Stores
	events   *messaging.Recorder
	auth     *services.AuthService
	accounts *services.AccountService
	catalog  *services.CatalogService
	orders   *services.OrderService
	support  *services.SupportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := repos.Stores(db)
	rec := &messaging.Recorder{}
	authSvc := services.NewAuthService(st.Accounts, auth.NewTokens("test-secret", time.Hour), rec)
	authSvc.Cost = bcrypt.MinCost
	return &env{
		st:       st,
		events:   rec,
		auth:     authSvc,
		accounts: services.NewAccountService(st.Accounts, st.Products, authSvc),
		catalog:  services.NewCatalogService(st.Products, st.Accounts),
		orders:   services.NewOrderService(st, rec),
		support:  services.NewSupportService(st, rec),
	}
}

func (e *env) customer(t *testing.T, username string) *domain.Account {
	t.Helper()
	sess, err := e.auth.Register(context.Background(), services.RegisterInput{
		Username: username,
		Email:    username + "@shop.test",
		Password: "Passw0rd1",
	})
	require.NoError(t, err)
	return sess.User
}

func (e *env) admin(t *testing.T) *domain.Account {
	t.Helper()
	a, err := e.accounts.EnsureAdmin(context.Background(), "root@shop.test", "Adm1nPass")
	require.NoError(t, err)
	return a
}

func (e *env) product(t *testing.T, name, price string, discount, stock int) *domain.Product {
	t.Helper()
	p, err := e.catalog.Create(context.Background(), services.ProductInput{
		Name:     name,
		Category: "electronics",
		Price:    decimal.RequireFromString(price),
		Discount: discount,
		Stock:    stock,
		Images:   []string{"/img/" + strings.ReplaceAll(strings.ToLower(name), " ", "-") + ".jpg"},
	})
	require.NoError(t, err)
	return p
}

func (e *env) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := e.st.Products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

var homeAddress = &domain.Address{
	FullName:   "Ada Buyer",
	Street:     "1 Main St",
	City:       "Springfield",
	PostalCode: "12345",
	Country:    "US",
}
