package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/services"
)

func place(e *env, userID string, lines ...domain.CartLine) (*domain.Order, error) {
	return e.orders.Place(context.Background(), services.PlaceOrderInput{
		UserID:          userID,
		Items:           lines,
		ShippingAddress: homeAddress,
		PaymentMethod:   "credit_card",
	})
}

func TestPlaceOrder_SnapshotsPriceAndDecrementsStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.customer(t, "ada")
	p := e.product(t, "headphones", "100.00", 25, 5)

	o, err := place(e, buyer.ID, domain.CartLine{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderProcessing, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.RequireFromString("75")))
	assert.Equal(t, "headphones", o.Items[0].Name)
	assert.Equal(t, "/img/headphones.jpg", o.Items[0].Image)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, 3, e.stock(t, p.ID))

	// Later price edits do not reach the stored order.
	_, err = e.catalog.Update(ctx, p.ID, services.ProductInput{
		Name: "headphones", Category: "electronics", Price: decimal.RequireFromString("500"), Stock: 3,
	})
	require.NoError(t, err)

	first, err := e.orders.Get(ctx, buyer, o.ID)
	require.NoError(t, err)
	second, err := e.orders.Get(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, first.Items[0].UnitPrice.Equal(decimal.RequireFromString("75")))

	assert.Equal(t, []string{"account.registered", "order.placed"}, e.events.Types())
}

func TestPlaceOrder_InsufficientStockChangesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.customer(t, "ada")
	a := e.product(t, "keyboard", "50", 0, 10)
	b := e.product(t, "mouse", "20", 0, 1)

	_, err := place(e, buyer.ID,
		domain.CartLine{ProductID: a.ID, Quantity: 3},
		domain.CartLine{ProductID: b.ID, Quantity: 2},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	msg, ok := domain.PublicMessage(err)
	require.True(t, ok)
	assert.Contains(t, msg, "mouse")

	assert.Equal(t, 10, e.stock(t, a.ID), "earlier line must be rolled back")
	assert.Equal(t, 1, e.stock(t, b.ID))

	page, err := e.orders.ListMine(ctx, buyer.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestPlaceOrder_ConcurrentBuyersLastUnit(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "last-one", "10", 0, 1)
	buyers := []*domain.Account{e.customer(t, "ada"), e.customer(t, "bob")}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for _, b := range buyers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := place(e, id, domain.CartLine{ProductID: p.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}(b.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], domain.ErrInsufficientStock))
	assert.Equal(t, 0, e.stock(t, p.ID))
}

func TestPlaceOrder_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.customer(t, "ada")
	p := e.product(t, "cable", "5", 0, 10)

	cases := map[string]services.PlaceOrderInput{
		"empty":       {UserID: buyer.ID, ShippingAddress: homeAddress, PaymentMethod: "paypal"},
		"zero qty":    {UserID: buyer.ID, Items: []domain.CartLine{{ProductID: p.ID}}, ShippingAddress: homeAddress, PaymentMethod: "paypal"},
		"bad method":  {UserID: buyer.ID, Items: []domain.CartLine{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: homeAddress, PaymentMethod: "bitcoin"},
		"no address":  {UserID: buyer.ID, Items: []domain.CartLine{{ProductID: p.ID, Quantity: 1}}, PaymentMethod: "paypal"},
		"merged >100": {UserID: buyer.ID, Items: []domain.CartLine{{ProductID: p.ID, Quantity: 60}, {ProductID: p.ID, Quantity: 60}}, ShippingAddress: homeAddress, PaymentMethod: "paypal"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.orders.Place(ctx, in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
		})
	}

	_, err := place(e, buyer.ID, domain.CartLine{ProductID: "missing", Quantity: 1})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 10, e.stock(t, p.ID))
}

func TestPlaceOrder_UsesDefaultAddress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.customer(t, "ada")
	p := e.product(t, "lamp", "12", 0, 4)

	_, err := e.accounts.AddAddress(ctx, buyer.ID, *homeAddress)
	require.NoError(t, err)

	o, err := e.orders.Place(ctx, services.PlaceOrderInput{
		UserID:        buyer.ID,
		Items:         []domain.CartLine{{ProductID: p.ID, Quantity: 1}, {ProductID: p.ID, Quantity: 1}},
		PaymentMethod: "cash_on_delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, "Springfield", o.ShippingAddress.City)
	require.Len(t, o.Items, 1, "repeated product lines are merged")
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, 2, e.stock(t, p.ID))
}

func TestOrderStatusTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	buyer := e.customer(t, "ada")
	p := e.product(t, "desk", "300", 0, 2)

	o, err := place(e, buyer.ID, domain.CartLine{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = e.orders.UpdateStatus(ctx, admin, o.ID, "delivered", "")
	assert.True(t, errors.Is(err, domain.ErrValidation), "processing -> delivered is not allowed")

	o, err = e.orders.UpdateStatus(ctx, admin, o.ID, "shipped", "TRK-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, o.Status)
	assert.Equal(t, "TRK-1", o.TrackingNumber)

	same, err := e.orders.UpdateStatus(ctx, admin, o.ID, "shipped", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, same.Status)
	assert.Equal(t, "TRK-1", same.TrackingNumber)

	fixed, err := e.orders.UpdateStatus(ctx, admin, o.ID, "shipped", "TRK-2")
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", fixed.TrackingNumber)
	stored, err := e.orders.Get(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, stored.Status)
	assert.Equal(t, "TRK-2", stored.TrackingNumber)

	_, err = e.orders.UpdateStatus(ctx, admin, o.ID, "cancelled", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	o, err = e.orders.UpdateStatus(ctx, admin, o.ID, "delivered", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, o.Status)

	_, err = e.orders.UpdateStatus(ctx, admin, o.ID, "bogus", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = e.orders.UpdateStatus(ctx, admin, "nope", "shipped", "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCancelRestoresStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	buyer := e.customer(t, "ada")
	other := e.customer(t, "bob")
	p := e.product(t, "chair", "80", 0, 5)

	o, err := place(e, buyer.ID, domain.CartLine{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 2, e.stock(t, p.ID))

	_, err = e.orders.Cancel(ctx, other, o.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	o, err = e.orders.Cancel(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)
	assert.Equal(t, 5, e.stock(t, p.ID))

	// Cancelling twice is a no-op and does not restock again.
	_, err = e.orders.Cancel(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, e.stock(t, p.ID))

	shipped, err := place(e, buyer.ID, domain.CartLine{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = e.orders.UpdateStatus(ctx, admin, shipped.ID, "shipped", "")
	require.NoError(t, err)
	_, err = e.orders.Cancel(ctx, buyer, shipped.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.Contains(t, e.events.Types(), "order.cancelled")
}

func TestPaymentTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	buyer := e.customer(t, "ada")
	p := e.product(t, "pen", "2", 0, 5)
	o, err := place(e, buyer.ID, domain.CartLine{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = e.orders.UpdatePayment(ctx, admin, o.ID, "refunded")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	for _, st := range []string{"failed", "pending", "paid", "refunded"} {
		o, err = e.orders.UpdatePayment(ctx, admin, o.ID, st)
		require.NoError(t, err, st)
		assert.Equal(t, domain.PaymentStatus(st), o.PaymentStatus)
	}
	_, err = e.orders.UpdatePayment(ctx, admin, o.ID, "paid")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestListOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	ada := e.customer(t, "ada")
	bob := e.customer(t, "bob")
	p := e.product(t, "mug", "8", 0, 50)

	for i := 0; i < 3; i++ {
		_, err := place(e, ada.ID, domain.CartLine{ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
	}
	bobs, err := place(e, bob.ID, domain.CartLine{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = e.orders.UpdateStatus(ctx, admin, bobs.ID, "shipped", "")
	require.NoError(t, err)

	mine, err := e.orders.ListMine(ctx, ada.ID, domain.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, mine.Total)
	assert.Equal(t, 2, mine.Pages)
	assert.Len(t, mine.Items, 2)

	all, err := e.orders.ListAll(ctx, "", domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)

	shipped, err := e.orders.ListAll(ctx, "shipped", domain.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, shipped.Total)
	assert.Equal(t, bobs.ID, shipped.Items[0].ID)

	_, err = e.orders.Get(ctx, ada, bobs.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}
