package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a domain fact published after a successful state change.
type Event interface {
	Type() string
	// Aggregate names the stream ("order", "ticket", "account") and AggregateID keys it.
	Aggregate() string
	AggregateID() string
}

type AccountRegistered struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	At        time.Time `json:"at"`
}

func (AccountRegistered) Type() string          { return "account.registered" }
func (AccountRegistered) Aggregate() string     { return "account" }
func (e AccountRegistered) AggregateID() string { return e.AccountID }

type OrderPlaced struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []OrderItem     `json:"items"`
	Total   decimal.Decimal `json:"total"`
	At      time.Time       `json:"at"`
}

func (OrderPlaced) Type() string          { return "order.placed" }
func (OrderPlaced) Aggregate() string     { return "order" }
func (e OrderPlaced) AggregateID() string { return e.OrderID }

type OrderStatusChanged struct {
	OrderID   string      `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	By        string      `json:"by"`
	At        time.Time   `json:"at"`
}

func (OrderStatusChanged) Type() string          { return "order.status_changed" }
func (OrderStatusChanged) Aggregate() string     { return "order" }
func (e OrderStatusChanged) AggregateID() string { return e.OrderID }

type OrderPaymentChanged struct {
	OrderID   string        `json:"order_id"`
	OldStatus PaymentStatus `json:"old_status"`
	NewStatus PaymentStatus `json:"new_status"`
	By        string        `json:"by"`
	At        time.Time     `json:"at"`
}

func (OrderPaymentChanged) Type() string          { return "order.payment_changed" }
func (OrderPaymentChanged) Aggregate() string     { return "order" }
func (e OrderPaymentChanged) AggregateID() string { return e.OrderID }

type OrderCancelledEvent struct {
	OrderID string    `json:"order_id"`
	By      string    `json:"by"`
	At      time.Time `json:"at"`
}

func (OrderCancelledEvent) Type() string          { return "order.cancelled" }
func (OrderCancelledEvent) Aggregate() string     { return "order" }
func (e OrderCancelledEvent) AggregateID() string { return e.OrderID }

type TicketOpened struct {
	TicketID string         `json:"ticket_id"`
	UserID   string         `json:"user_id"`
	Category TicketCategory `json:"category"`
	Priority TicketPriority `json:"priority"`
	At       time.Time      `json:"at"`
}

func (TicketOpened) Type() string          { return "ticket.opened" }
func (TicketOpened) Aggregate() string     { return "ticket" }
func (e TicketOpened) AggregateID() string { return e.TicketID }

type TicketMessageAdded struct {
	TicketID  string    `json:"ticket_id"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	At        time.Time `json:"at"`
}

func (TicketMessageAdded) Type() string          { return "ticket.message_added" }
func (TicketMessageAdded) Aggregate() string     { return "ticket" }
func (e TicketMessageAdded) AggregateID() string { return e.TicketID }

type TicketStatusChanged struct {
	TicketID  string       `json:"ticket_id"`
	OldStatus TicketStatus `json:"old_status"`
	NewStatus TicketStatus `json:"new_status"`
	By        string       `json:"by"`
	At        time.Time    `json:"at"`
}

func (TicketStatusChanged) Type() string          { return "ticket.status_changed" }
func (TicketStatusChanged) Aggregate() string     { return "ticket" }
func (e TicketStatusChanged) AggregateID() string { return e.TicketID }
