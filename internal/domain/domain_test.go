package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestEffectivePrice(t *testing.T) {
	cases := []struct {
		price    string
		discount int
		want     string
	}{
		{"100", 0, "100"},
		{"100", 25, "75"},
		{"19.99", 10, "17.99"},
		{"49.95", 100, "0"},
		{"10.005", 0, "10.01"},
	}
	for _, c := range cases {
		got := domain.EffectivePrice(decimal.RequireFromString(c.price), c.discount)
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "price %s discount %d: got %s want %s", c.price, c.discount, got, c.want)
	}
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, domain.OrderProcessing.CanTransition(domain.OrderShipped))
	assert.True(t, domain.OrderProcessing.CanTransition(domain.OrderCancelled))
	assert.True(t, domain.OrderShipped.CanTransition(domain.OrderDelivered))
	assert.False(t, domain.OrderDelivered.CanTransition(domain.OrderProcessing))
	assert.False(t, domain.OrderCancelled.CanTransition(domain.OrderShipped))
	assert.False(t, domain.OrderShipped.CanTransition(domain.OrderCancelled))

	_, ok := domain.ParseOrderStatus("lost")
	assert.False(t, ok)
}

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, domain.PaymentPending.CanTransition(domain.PaymentPaid))
	assert.True(t, domain.PaymentFailed.CanTransition(domain.PaymentPending))
	assert.True(t, domain.PaymentPaid.CanTransition(domain.PaymentRefunded))
	assert.False(t, domain.PaymentRefunded.CanTransition(domain.PaymentPaid))
	assert.False(t, domain.PaymentPending.CanTransition(domain.PaymentRefunded))
}

func TestTicketResolvedAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tk := &domain.Ticket{Status: domain.TicketOpen}

	tk.SetStatus(domain.TicketInProgress, now)
	assert.Nil(t, tk.ResolvedAt)

	tk.SetStatus(domain.TicketResolved, now)
	require.NotNil(t, tk.ResolvedAt)
	assert.Equal(t, now, *tk.ResolvedAt)

	tk.SetStatus(domain.TicketOpen, now.Add(time.Hour))
	assert.Nil(t, tk.ResolvedAt)

	assert.False(t, domain.TicketClosed.CanTransition(domain.TicketOpen))
}

func TestNormalizeAddresses(t *testing.T) {
	list := domain.NormalizeAddresses([]domain.Address{{ID: "a"}, {ID: "b", IsDefault: true}, {ID: "c", IsDefault: true}})
	assert.False(t, list[0].IsDefault)
	assert.True(t, list[1].IsDefault)
	assert.False(t, list[2].IsDefault)

	list = domain.NormalizeAddresses([]domain.Address{{ID: "a"}, {ID: "b"}})
	assert.True(t, list[0].IsDefault)
}

func TestErrorTaxonomy(t *testing.T) {
	err := errors.Wrap(domain.Invalid("quantity must be at least 1"), "place order")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	msg, ok := domain.PublicMessage(err)
	require.True(t, ok)
	assert.Equal(t, "quantity must be at least 1", msg)

	err = domain.InsufficientStock("Lamp", 1, 3)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.False(t, errors.Is(err, domain.ErrValidation))
}

func TestPage(t *testing.T) {
	req := domain.PageRequest{Page: 0, Limit: 500}.Normalize()
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, domain.MaxPageSize, req.Limit)

	huge := domain.PageRequest{Page: math.MaxInt, Limit: domain.MaxPageSize}.Normalize()
	assert.Equal(t, domain.MaxPage, huge.Page)
	assert.Positive(t, huge.Offset())

	p := domain.NewPage[int](nil, 25, domain.PageRequest{Page: 2, Limit: 10})
	assert.Equal(t, 3, p.Pages)
	assert.NotNil(t, p.Items)
}
