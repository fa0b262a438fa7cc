package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/messaging"
	"storefront/internal/validate"
)

const MaxOrderLines = 50

type OrderService struct {
	Products ProductStore
	Orders   OrderStore
	Accounts AccountStore
	Tx       TxRunner
	Events   messaging.Publisher
}

func NewOrderService(st Stores, events messaging.Publisher) *OrderService {
	return &OrderService{Products: st.Products, Orders: st.Orders, Accounts: st.Accounts, Tx: st.Tx, Events: events}
}

type PlaceOrderInput struct {
	UserID          string            `json:"-"`
	Items           []domain.CartLine `json:"items"`
	ShippingAddress *domain.Address   `json:"shipping_address"`
	AddressID       string            `json:"address_id"`
	PaymentMethod   string            `json:"payment_method"`
}

// Place reserves stock and records the order in one transaction. Either every
// line is decremented and the order exists, or nothing changed.
func (s *OrderService) Place(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}
	method, ok := domain.ParsePaymentMethod(strings.TrimSpace(in.PaymentMethod))
	if !ok {
		return nil, domain.Invalid("unknown payment method")
	}
	ship, err := s.shippingAddress(ctx, in)
	if err != nil {
		return nil, err
	}

	at := now()
	o := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		ShippingAddress: ship,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentPending,
		Status:          domain.OrderProcessing,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		total := decimal.Zero
		items := make([]domain.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, err := s.Products.Get(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < l.Quantity {
				return domain.InsufficientStock(p.Name, p.Stock, l.Quantity)
			}
			it := domain.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  l.Quantity,
				UnitPrice: p.EffectivePrice(),
			}
			if len(p.Images) > 0 {
				it.Image = p.Images[0]
			}
			// The conditional decrement is what actually guards concurrent buyers.
			if err := s.Products.DecrementStock(ctx, p.ID, l.Quantity); err != nil {
				return err
			}
			total = total.Add(it.Subtotal())
			items = append(items, it)
		}
		o.Items = items
		o.Total = total.Round(2)
		return s.Orders.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, domain.OrderPlaced{OrderID: o.ID, UserID: o.UserID, Items: o.Items, Total: o.Total, At: at})
	return o, nil
}

// mergeLines validates the cart and folds repeated products into one line.
func mergeLines(in []domain.CartLine) ([]domain.CartLine, error) {
	if len(in) == 0 {
		return nil, domain.Invalid("order must contain at least one item")
	}
	if len(in) > MaxOrderLines {
		return nil, domain.Invalidf("order may contain at most %d items", MaxOrderLines)
	}
	out := make([]domain.CartLine, 0, len(in))
	pos := map[string]int{}
	for _, l := range in {
		id, ok := validate.ID(l.ProductID)
		if !ok {
			return nil, domain.Invalid("invalid product id")
		}
		if !validate.Qty(l.Quantity) {
			return nil, domain.Invalid("quantity must be between 1 and 100")
		}
		if i, seen := pos[id]; seen {
			out[i].Quantity += l.Quantity
			if !validate.Qty(out[i].Quantity) {
				return nil, domain.Invalid("quantity must be between 1 and 100")
			}
			continue
		}
		pos[id] = len(out)
		out = append(out, domain.CartLine{ProductID: id, Quantity: l.Quantity})
	}
	return out, nil
}

// shippingAddress picks the inline address, then the saved one by id, then the default.
func (s *OrderService) shippingAddress(ctx context.Context, in PlaceOrderInput) (domain.Address, error) {
	if in.ShippingAddress != nil {
		addr, field := validate.Address(*in.ShippingAddress)
		if field != "" {
			return domain.Address{}, domain.Invalidf("invalid shipping address %s", field)
		}
		addr.ID, addr.IsDefault = "", false
		return addr, nil
	}
	a, err := s.Accounts.ByID(ctx, in.UserID)
	if err != nil {
		return domain.Address{}, err
	}
	var (
		addr domain.Address
		ok   bool
	)
	if in.AddressID != "" {
		addr, ok = a.Address(in.AddressID)
		if !ok {
			return domain.Address{}, domain.NotFound("address")
		}
	} else if addr, ok = a.DefaultAddress(); !ok {
		return domain.Address{}, domain.Invalid("shipping address is required")
	}
	addr.IsDefault = false
	return addr, nil
}

// Get returns the order to its owner or an admin.
func (s *OrderService) Get(ctx context.Context, actor *domain.Account, id string) (*domain.Order, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.ID && !actor.IsAdmin() {
		return nil, domain.Forbidden("not your order")
	}
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID string, req domain.PageRequest) (domain.Page[domain.Order], error) {
	return s.list(ctx, domain.OrderFilter{UserID: userID, PageRequest: req})
}

func (s *OrderService) ListAll(ctx context.Context, status string, req domain.PageRequest) (domain.Page[domain.Order], error) {
	f := domain.OrderFilter{PageRequest: req}
	if status != "" {
		st, ok := domain.ParseOrderStatus(status)
		if !ok {
			return domain.Page[domain.Order]{}, domain.Invalid("unknown order status")
		}
		f.Status = st
	}
	return s.list(ctx, f)
}

func (s *OrderService) list(ctx context.Context, f domain.OrderFilter) (domain.Page[domain.Order], error) {
	f.PageRequest = f.PageRequest.Normalize()
	items, total, err := s.Orders.List(ctx, f)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.NewPage(items, total, f.PageRequest), nil
}

// UpdateStatus moves an order along its transition table. Cancelling puts
// every line's quantity back on the shelf in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *domain.Account, id, status, tracking string) (*domain.Order, error) {
	next, ok := domain.ParseOrderStatus(strings.TrimSpace(status))
	if !ok {
		return nil, domain.Invalid("unknown order status")
	}
	tracking, ok = validate.Text(tracking, 0, 100)
	if !ok {
		return nil, domain.Invalid("tracking number is too long")
	}
	var (
		o    *domain.Order
		prev domain.OrderStatus
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.Orders.Get(ctx, id); err != nil {
			return err
		}
		prev = o.Status
		if prev == next {
			// re-sending shipped corrects the tracking number
			if next == domain.OrderShipped && tracking != "" && tracking != o.TrackingNumber {
				o.TrackingNumber = tracking
				o.UpdatedAt = now()
				return s.Orders.UpdateStatus(ctx, o)
			}
			return nil
		}
		if !prev.CanTransition(next) {
			return domain.Invalidf("cannot change order status from %s to %s", prev, next)
		}
		if next == domain.OrderCancelled {
			if err := s.restock(ctx, o); err != nil {
				return err
			}
		}
		if next == domain.OrderShipped && tracking != "" {
			o.TrackingNumber = tracking
		}
		o.Status = next
		o.UpdatedAt = now()
		return s.Orders.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if prev != next {
		publish(ctx, s.Events, domain.OrderStatusChanged{OrderID: o.ID, OldStatus: prev, NewStatus: next, By: actor.ID, At: o.UpdatedAt})
		if next == domain.OrderCancelled {
			publish(ctx, s.Events, domain.OrderCancelledEvent{OrderID: o.ID, By: actor.ID, At: o.UpdatedAt})
		}
	}
	return o, nil
}

// Cancel lets the owner (or an admin) cancel while the order is still processing.
func (s *OrderService) Cancel(ctx context.Context, actor *domain.Account, id string) (*domain.Order, error) {
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.OrderCancelled {
		return o, nil
	}
	if o.Status != domain.OrderProcessing {
		return nil, domain.Invalidf("order can no longer be cancelled (status %s)", o.Status)
	}
	return s.UpdateStatus(ctx, actor, id, string(domain.OrderCancelled), "")
}

func (s *OrderService) UpdatePayment(ctx context.Context, actor *domain.Account, id, status string) (*domain.Order, error) {
	next, ok := domain.ParsePaymentStatus(strings.TrimSpace(status))
	if !ok {
		return nil, domain.Invalid("unknown payment status")
	}
	var (
		o    *domain.Order
		prev domain.PaymentStatus
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.Orders.Get(ctx, id); err != nil {
			return err
		}
		prev = o.PaymentStatus
		if prev == next {
			return nil
		}
		if !prev.CanTransition(next) {
			return domain.Invalidf("cannot change payment status from %s to %s", prev, next)
		}
		o.PaymentStatus = next
		o.UpdatedAt = now()
		return s.Orders.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if prev != next {
		publish(ctx, s.Events, domain.OrderPaymentChanged{OrderID: o.ID, OldStatus: prev, NewStatus: next, By: actor.ID, At: o.UpdatedAt})
	}
	return o, nil
}

func (s *OrderService) restock(ctx context.Context, o *domain.Order) error {
	for _, it := range o.Items {
		err := s.Products.IncrementStock(ctx, it.ProductID, it.Quantity)
		if errors.Is(err, domain.ErrNotFound) {
			applog.L().WithField("product_id", it.ProductID).Warn("order.restock.product_gone")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
