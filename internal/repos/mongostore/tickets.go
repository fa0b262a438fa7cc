package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"storefront/internal/domain"
)

type TicketStore struct{ d *DB }

type ticketDoc struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"user_id"`
	Subject      string     `bson:"subject"`
	Description  string     `bson:"description"`
	Status       string     `bson:"status"`
	Priority     string     `bson:"priority"`
	Category     string     `bson:"category"`
	OrderID      string     `bson:"order_id"`
	ProductID    string     `bson:"product_id"`
	AssignedTo   string     `bson:"assigned_to"`
	MessageCount int        `bson:"message_count"`
	ResolvedAt   *time.Time `bson:"resolved_at"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func (doc ticketDoc) toDomain() domain.Ticket {
	t := domain.Ticket{
		ID:           doc.ID,
		UserID:       doc.UserID,
		Subject:      doc.Subject,
		Description:  doc.Description,
		Status:       domain.TicketStatus(doc.Status),
		Priority:     domain.TicketPriority(doc.Priority),
		Category:     domain.TicketCategory(doc.Category),
		OrderID:      doc.OrderID,
		ProductID:    doc.ProductID,
		AssignedTo:   doc.AssignedTo,
		MessageCount: doc.MessageCount,
		CreatedAt:    utc(doc.CreatedAt),
		UpdatedAt:    utc(doc.UpdatedAt),
	}
	if doc.ResolvedAt != nil {
		at := utc(*doc.ResolvedAt)
		t.ResolvedAt = &at
	}
	return t
}

type messageDoc struct {
	ID          string    `bson:"_id"`
	TicketID    string    `bson:"ticket_id"`
	SenderID    string    `bson:"sender_id"`
	SenderRole  string    `bson:"sender_role"`
	Body        string    `bson:"body"`
	Attachments []string  `bson:"attachments"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (s *TicketStore) Create(ctx context.Context, t *domain.Ticket) error {
	_, err := s.d.tickets().InsertOne(ctx, ticketDoc{
		ID:           t.ID,
		UserID:       t.UserID,
		Subject:      t.Subject,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Category:     string(t.Category),
		OrderID:      t.OrderID,
		ProductID:    t.ProductID,
		AssignedTo:   t.AssignedTo,
		MessageCount: t.MessageCount,
		ResolvedAt:   t.ResolvedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	})
	return errors.Wrap(err, "insert ticket")
}

func (s *TicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var doc ticketDoc
	if err := s.d.tickets().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "ticket")
	}
	t := doc.toDomain()
	return &t, nil
}

func (s *TicketStore) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, int, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	if f.AssignedTo != "" {
		filter["assigned_to"] = f.AssignedTo
	}
	coll := s.d.tickets()
	total, err := count(ctx, coll, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, filter, pageOpts(f.PageRequest, bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list tickets")
	}
	var docs []ticketDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decode tickets")
	}
	out := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, total, nil
}

func (s *TicketStore) Update(ctx context.Context, t *domain.Ticket) error {
	res, err := s.d.tickets().UpdateByID(ctx, t.ID, bson.M{"$set": bson.M{
		"status":      string(t.Status),
		"priority":    string(t.Priority),
		"assigned_to": t.AssignedTo,
		"resolved_at": t.ResolvedAt,
		"updated_at":  t.UpdatedAt,
	}})
	if err != nil {
		return errors.Wrap(err, "update ticket")
	}
	return mustMatch(res, "ticket")
}

// AddMessage appends to the thread and bumps the ticket's counters together.
func (s *TicketStore) AddMessage(ctx context.Context, m *domain.TicketMessage) error {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	tx := &TxManager{client: s.d.client}
	return tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.d.tickets().UpdateByID(ctx, m.TicketID, bson.M{
			"$inc": bson.M{"message_count": 1},
			"$set": bson.M{"updated_at": m.CreatedAt},
		})
		if err != nil {
			return errors.Wrap(err, "bump ticket")
		}
		if err := mustMatch(res, "ticket"); err != nil {
			return err
		}
		_, err = s.d.messages().InsertOne(ctx, messageDoc{
			ID: m.ID, TicketID: m.TicketID, SenderID: m.SenderID, SenderRole: string(m.SenderRole),
			Body: m.Body, Attachments: attachments, CreatedAt: m.CreatedAt,
		})
		return errors.Wrap(err, "insert ticket message")
	})
}

// Messages returns one page of the thread, oldest first.
func (s *TicketStore) Messages(ctx context.Context, ticketID string, req domain.PageRequest) ([]domain.TicketMessage, int, error) {
	coll := s.d.messages()
	filter := bson.M{"ticket_id": ticketID}
	total, err := count(ctx, coll, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, filter, pageOpts(req, bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list messages")
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decode messages")
	}
	out := make([]domain.TicketMessage, 0, len(docs))
	for _, d := range docs {
		m := domain.TicketMessage{
			ID: d.ID, TicketID: d.TicketID, SenderID: d.SenderID, SenderRole: domain.Role(d.SenderRole),
			Body: d.Body, Attachments: d.Attachments, CreatedAt: utc(d.CreatedAt),
		}
		if m.Attachments == nil {
			m.Attachments = []string{}
		}
		out = append(out, m)
	}
	return out, total, nil
}
