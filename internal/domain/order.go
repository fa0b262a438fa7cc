package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  nil,
	OrderCancelled:  nil,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	v := OrderStatus(s)
	_, ok := orderTransitions[v]
	return v, ok
}

// CanTransition reports whether the order status may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentFailed:   {PaymentPending, PaymentPaid},
	PaymentPaid:     {PaymentRefunded},
	PaymentRefunded: nil,
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	v := PaymentStatus(s)
	_, ok := paymentTransitions[v]
	return v, ok
}

func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, to := range paymentTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PayCreditCard     PaymentMethod = "credit_card"
	PayDebitCard      PaymentMethod = "debit_card"
	PayPal            PaymentMethod = "paypal"
	PayCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch v := PaymentMethod(s); v {
	case PayCreditCard, PayDebitCard, PayPal, PayCashOnDelivery:
		return v, true
	}
	return "", false
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Status          OrderStatus     `json:"status"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is a point-in-time snapshot: UnitPrice, Name and Image do not
// follow later product edits.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// CartLine is one requested product/quantity pair of an order placement.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
	PageRequest
}
