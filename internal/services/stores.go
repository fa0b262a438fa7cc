package services

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// AccountStore persists accounts with their addresses, wishlist and view log.
type AccountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	ByID(ctx context.Context, id string) (*domain.Account, error)
	ByEmail(ctx context.Context, email string) (*domain.Account, error)
	ByUsername(ctx context.Context, username string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, a *domain.Account) error
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	SaveAddresses(ctx context.Context, id string, list []domain.Address) error
	AddToWishlist(ctx context.Context, id, productID string) (bool, error)
	RemoveFromWishlist(ctx context.Context, id, productID string) (bool, error)
	RecordView(ctx context.Context, id, productID string, at time.Time) error
	List(ctx context.Context, req domain.PageRequest) ([]domain.Account, int, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ProductStore persists the catalog. DecrementStock must be a single
// conditional update that fails with ErrInsufficientStock instead of going negative.
type ProductStore interface {
	Create(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, id string) (*domain.Product, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error)
	Search(ctx context.Context, query string, req domain.PageRequest) ([]domain.Product, int, error)
	SetStock(ctx context.Context, id string, stock int) error
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
	AddReview(ctx context.Context, rv *domain.Review) error
	Reviews(ctx context.Context, productID string, req domain.PageRequest) ([]domain.Review, int, error)
	Count(ctx context.Context) (int, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, o *domain.Order) error
}

type TicketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, int, error)
	Update(ctx context.Context, t *domain.Ticket) error
	AddMessage(ctx context.Context, m *domain.TicketMessage) error
	Messages(ctx context.Context, ticketID string, req domain.PageRequest) ([]domain.TicketMessage, int, error)
}

// TxRunner runs fn in one storage transaction; store calls made with the
// context passed to fn take part in it.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores bundles one backend's implementations.
type Stores struct {
	Accounts AccountStore
	Products ProductStore
	Orders   OrderStore
	Tickets  TicketStore
	Tx       TxRunner
}
