package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"storefront/internal/domain"
	"storefront/internal/messaging"
	"storefront/internal/validate"
)

const MaxAttachments = 5

func checkAttachments(list []string) ([]string, error) {
	if len(list) > MaxAttachments {
		return nil, domain.Invalidf("at most %d attachment URLs are allowed", MaxAttachments)
	}
	out, ok := validate.URLs(list)
	if !ok {
		return nil, domain.Invalid("attachments must be http(s) URLs or absolute paths without spaces")
	}
	return out, nil
}

type SupportService struct {
	Tickets  TicketStore
	Orders   OrderStore
	Products ProductStore
	Accounts AccountStore
	Tx       TxRunner
	Events   messaging.Publisher
}

func NewSupportService(st Stores, events messaging.Publisher) *SupportService {
	return &SupportService{
		Tickets:  st.Tickets,
		Orders:   st.Orders,
		Products: st.Products,
		Accounts: st.Accounts,
		Tx:       st.Tx,
		Events:   events,
	}
}

type CreateTicketInput struct {
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	OrderID     string   `json:"order_id"`
	ProductID   string   `json:"product_id"`
	Attachments []string `json:"attachments"`
}

// Create opens a ticket; the description becomes the first message of the thread.
func (s *SupportService) Create(ctx context.Context, actor *domain.Account, in CreateTicketInput) (*domain.Ticket, error) {
	subject, ok := validate.Text(in.Subject, 3, 200)
	if !ok {
		return nil, domain.Invalid("subject must be 3-200 characters")
	}
	desc, ok := validate.Text(in.Description, 1, 5000)
	if !ok {
		return nil, domain.Invalid("description must be 1-5000 characters")
	}
	cat, ok := domain.ParseTicketCategory(strings.TrimSpace(in.Category))
	if !ok {
		return nil, domain.Invalid("unknown ticket category")
	}
	prio := domain.PriorityMedium
	if p := strings.TrimSpace(in.Priority); p != "" {
		if prio, ok = domain.ParseTicketPriority(p); !ok {
			return nil, domain.Invalid("unknown ticket priority")
		}
	}
	attachments, err := checkAttachments(in.Attachments)
	if err != nil {
		return nil, err
	}
	orderID, ok := validate.OptionalID(in.OrderID)
	if !ok {
		return nil, domain.Invalid("invalid order id")
	}
	productID, ok := validate.OptionalID(in.ProductID)
	if !ok {
		return nil, domain.Invalid("invalid product id")
	}
	if orderID != "" {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.UserID != actor.ID {
			return nil, domain.Invalid("referenced order does not belong to you")
		}
	}
	if productID != "" {
		if _, err := s.Products.Get(ctx, productID); err != nil {
			return nil, err
		}
	}

	at := now()
	t := &domain.Ticket{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		Subject:     subject,
		Description: desc,
		Status:      domain.TicketOpen,
		Priority:    prio,
		Category:    cat,
		OrderID:     orderID,
		ProductID:   productID,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	first := &domain.TicketMessage{
		ID:          uuid.NewString(),
		TicketID:    t.ID,
		SenderID:    actor.ID,
		SenderRole:  actor.Role,
		Body:        desc,
		Attachments: attachments,
		CreatedAt:   at,
	}
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Tickets.Create(ctx, t); err != nil {
			return err
		}
		return s.Tickets.AddMessage(ctx, first)
	})
	if err != nil {
		return nil, err
	}
	t.MessageCount = 1
	t.Messages = []domain.TicketMessage{*first}
	publish(ctx, s.Events, domain.TicketOpened{TicketID: t.ID, UserID: t.UserID, Category: t.Category, Priority: t.Priority, At: at})
	return t, nil
}

type TicketQuery struct {
	Status     string
	Priority   string
	AssignedTo string
	domain.PageRequest
}

// List scopes customers to their own tickets; admins may filter freely.
func (s *SupportService) List(ctx context.Context, actor *domain.Account, q TicketQuery) (domain.Page[domain.Ticket], error) {
	f := domain.TicketFilter{PageRequest: q.PageRequest.Normalize()}
	var ok bool
	if q.Status != "" {
		if f.Status, ok = domain.ParseTicketStatus(q.Status); !ok {
			return domain.Page[domain.Ticket]{}, domain.Invalid("unknown ticket status")
		}
	}
	if q.Priority != "" {
		if f.Priority, ok = domain.ParseTicketPriority(q.Priority); !ok {
			return domain.Page[domain.Ticket]{}, domain.Invalid("unknown ticket priority")
		}
	}
	if actor.IsAdmin() {
		f.AssignedTo = q.AssignedTo
	} else {
		f.UserID = actor.ID
	}
	items, total, err := s.Tickets.List(ctx, f)
	if err != nil {
		return domain.Page[domain.Ticket]{}, err
	}
	return domain.NewPage(items, total, f.PageRequest), nil
}

// Get returns the ticket with the first page of its thread.
func (s *SupportService) Get(ctx context.Context, actor *domain.Account, id string) (*domain.Ticket, error) {
	t, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	msgs, _, err := s.Tickets.Messages(ctx, t.ID, domain.PageRequest{}.Normalize())
	if err != nil {
		return nil, err
	}
	t.Messages = msgs
	return t, nil
}

func (s *SupportService) Messages(ctx context.Context, actor *domain.Account, id string, req domain.PageRequest) (domain.Page[domain.TicketMessage], error) {
	t, err := s.visible(ctx, actor, id)
	if err != nil {
		return domain.Page[domain.TicketMessage]{}, err
	}
	req = req.Normalize()
	items, total, err := s.Tickets.Messages(ctx, t.ID, req)
	if err != nil {
		return domain.Page[domain.TicketMessage]{}, err
	}
	return domain.NewPage(items, total, req), nil
}

// AddMessage appends to the thread. A customer replying to a resolved
// ticket reopens it.
func (s *SupportService) AddMessage(ctx context.Context, actor *domain.Account, id, body string, attachments []string) (*domain.Ticket, error) {
	body, ok := validate.Text(body, 1, 5000)
	if !ok {
		return nil, domain.Invalid("message must be 1-5000 characters")
	}
	attachments, err := checkAttachments(attachments)
	if err != nil {
		return nil, err
	}
	t, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketClosed {
		return nil, domain.Invalid("ticket is closed")
	}

	at := now()
	m := &domain.TicketMessage{
		ID:          uuid.NewString(),
		TicketID:    t.ID,
		SenderID:    actor.ID,
		SenderRole:  actor.Role,
		Body:        body,
		Attachments: attachments,
		CreatedAt:   at,
	}
	prev := t.Status
	reopen := prev == domain.TicketResolved && !actor.IsAdmin()
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Tickets.AddMessage(ctx, m); err != nil {
			return err
		}
		if !reopen {
			return nil
		}
		t.SetStatus(domain.TicketOpen, at)
		return s.Tickets.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, domain.TicketMessageAdded{TicketID: t.ID, MessageID: m.ID, SenderID: actor.ID, At: at})
	if reopen {
		publish(ctx, s.Events, domain.TicketStatusChanged{TicketID: t.ID, OldStatus: prev, NewStatus: domain.TicketOpen, By: actor.ID, At: at})
	}
	return s.withLatest(ctx, t.ID)
}

// withLatest reloads the ticket with the last page of its thread.
func (s *SupportService) withLatest(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := s.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req := domain.PageRequest{}.Normalize()
	if t.MessageCount > req.Limit {
		req.Page = (t.MessageCount + req.Limit - 1) / req.Limit
	}
	msgs, _, err := s.Tickets.Messages(ctx, id, req)
	if err != nil {
		return nil, err
	}
	t.Messages = msgs
	return t, nil
}

func (s *SupportService) UpdateStatus(ctx context.Context, actor *domain.Account, id, status string) (*domain.Ticket, error) {
	next, ok := domain.ParseTicketStatus(strings.TrimSpace(status))
	if !ok {
		return nil, domain.Invalid("unknown ticket status")
	}
	var (
		t    *domain.Ticket
		prev domain.TicketStatus
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if t, err = s.Tickets.Get(ctx, id); err != nil {
			return err
		}
		prev = t.Status
		if prev == next {
			return nil
		}
		if !prev.CanTransition(next) {
			return domain.Invalidf("cannot change ticket status from %s to %s", prev, next)
		}
		t.SetStatus(next, now())
		return s.Tickets.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	if prev != next {
		publish(ctx, s.Events, domain.TicketStatusChanged{TicketID: t.ID, OldStatus: prev, NewStatus: next, By: actor.ID, At: t.UpdatedAt})
	}
	return t, nil
}

func (s *SupportService) UpdatePriority(ctx context.Context, id, priority string) (*domain.Ticket, error) {
	p, ok := domain.ParseTicketPriority(strings.TrimSpace(priority))
	if !ok {
		return nil, domain.Invalid("unknown ticket priority")
	}
	t, err := s.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Priority == p {
		return t, nil
	}
	t.Priority = p
	t.UpdatedAt = now()
	return t, s.Tickets.Update(ctx, t)
}

// Assign hands the ticket to an admin; an empty assignee unassigns it.
func (s *SupportService) Assign(ctx context.Context, id, assigneeID string) (*domain.Ticket, error) {
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID != "" {
		a, err := s.Accounts.ByID(ctx, assigneeID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.Invalid("assignee does not exist")
			}
			return nil, err
		}
		if !a.IsAdmin() {
			return nil, domain.Invalid("tickets can only be assigned to admins")
		}
	}
	t, err := s.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.AssignedTo = assigneeID
	t.UpdatedAt = now()
	return t, s.Tickets.Update(ctx, t)
}

// visible loads a ticket owned by the actor, or any ticket for an admin.
func (s *SupportService) visible(ctx context.Context, actor *domain.Account, id string) (*domain.Ticket, error) {
	t, err := s.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != actor.ID && !actor.IsAdmin() {
		return nil, domain.Forbidden("not your ticket")
	}
	return t, nil
}
