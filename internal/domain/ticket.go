package domain

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketOpen:       {TicketInProgress, TicketResolved, TicketClosed},
	TicketInProgress: {TicketOpen, TicketResolved, TicketClosed},
	TicketResolved:   {TicketOpen, TicketClosed},
	TicketClosed:     nil,
}

func ParseTicketStatus(s string) (TicketStatus, bool) {
	v := TicketStatus(s)
	_, ok := ticketTransitions[v]
	return v, ok
}

func (s TicketStatus) CanTransition(next TicketStatus) bool {
	for _, to := range ticketTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

func ParseTicketPriority(s string) (TicketPriority, bool) {
	switch v := TicketPriority(s); v {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return v, true
	}
	return "", false
}

type TicketCategory string

const (
	TicketCatOrder    TicketCategory = "order"
	TicketCatProduct  TicketCategory = "product"
	TicketCatPayment  TicketCategory = "payment"
	TicketCatShipping TicketCategory = "shipping"
	TicketCatAccount  TicketCategory = "account"
	TicketCatOther    TicketCategory = "other"
)

func ParseTicketCategory(s string) (TicketCategory, bool) {
	switch v := TicketCategory(s); v {
	case TicketCatOrder, TicketCatProduct, TicketCatPayment, TicketCatShipping, TicketCatAccount, TicketCatOther:
		return v, true
	}
	return "", false
}

type Ticket struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Subject      string          `json:"subject"`
	Description  string          `json:"description"`
	Status       TicketStatus    `json:"status"`
	Priority     TicketPriority  `json:"priority"`
	Category     TicketCategory  `json:"category"`
	OrderID      string          `json:"order_id,omitempty"`
	ProductID    string          `json:"product_id,omitempty"`
	AssignedTo   string          `json:"assigned_to,omitempty"`
	MessageCount int             `json:"message_count"`
	Messages     []TicketMessage `json:"messages,omitempty"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SetStatus applies a status change and keeps ResolvedAt in step with it.
func (t *Ticket) SetStatus(next TicketStatus, now time.Time) {
	switch {
	case next == TicketResolved:
		t.ResolvedAt = &now
	case next == TicketOpen || next == TicketInProgress:
		t.ResolvedAt = nil
	}
	t.Status = next
	t.UpdatedAt = now
}

type TicketMessage struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	SenderID    string    `json:"sender_id"`
	SenderRole  Role      `json:"sender_role"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

type TicketFilter struct {
	UserID     string
	Status     TicketStatus
	Priority   TicketPriority
	AssignedTo string
	PageRequest
}
