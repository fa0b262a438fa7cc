package repos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/internal/domain"
)

type TicketRepo struct{ db *sqlx.DB }

func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

type ticketRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Subject      string         `db:"subject"`
	Description  string         `db:"description"`
	Status       string         `db:"status"`
	Priority     string         `db:"priority"`
	Category     string         `db:"category"`
	OrderID      string         `db:"order_id"`
	ProductID    string         `db:"product_id"`
	AssignedTo   string         `db:"assigned_to"`
	MessageCount int            `db:"message_count"`
	ResolvedAt   sql.NullString `db:"resolved_at"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

const ticketCols = `id, user_id, subject, description, status, priority, category, order_id, product_id,
    assigned_to, message_count, resolved_at, created_at, updated_at`

func (r ticketRow) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:           r.ID,
		UserID:       r.UserID,
		Subject:      r.Subject,
		Description:  r.Description,
		Status:       domain.TicketStatus(r.Status),
		Priority:     domain.TicketPriority(r.Priority),
		Category:     domain.TicketCategory(r.Category),
		OrderID:      r.OrderID,
		ProductID:    r.ProductID,
		AssignedTo:   r.AssignedTo,
		MessageCount: r.MessageCount,
		ResolvedAt:   parseNullTS(r.ResolvedAt),
		CreatedAt:    parseTS(r.CreatedAt),
		UpdatedAt:    parseTS(r.UpdatedAt),
	}
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	_, err := ext(ctx, r.db).ExecContext(ctx, `
		INSERT INTO tickets(`+ticketCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, t.ID, t.UserID, t.Subject, t.Description, string(t.Status), string(t.Priority), string(t.Category),
		t.OrderID, t.ProductID, t.AssignedTo, t.MessageCount, nullTS(t.ResolvedAt), ts(t.CreatedAt), ts(t.UpdatedAt))
	return errors.Wrap(err, "insert ticket")
}

func (r *TicketRepo) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var row ticketRow
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `SELECT `+ticketCols+` FROM tickets WHERE id=?`, id); err != nil {
		return nil, notFound(err, "ticket")
	}
	t := row.toDomain()
	return &t, nil
}

func (r *TicketRepo) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, int, error) {
	where := []string{`1=1`}
	args := []any{}
	if f.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, `priority = ?`)
		args = append(args, string(f.Priority))
	}
	if f.AssignedTo != "" {
		where = append(where, `assigned_to = ?`)
		args = append(args, f.AssignedTo)
	}
	cond := strings.Join(where, ` AND `)

	q := ext(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM tickets WHERE `+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count tickets")
	}
	var rows []ticketRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+ticketCols+` FROM tickets
		WHERE `+cond+`
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "list tickets")
	}
	out := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

// Update persists status, priority, assignee and resolution time.
func (r *TicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		UPDATE tickets SET status=?, priority=?, assigned_to=?, resolved_at=?, updated_at=? WHERE id=?
	`, string(t.Status), string(t.Priority), t.AssignedTo, nullTS(t.ResolvedAt), ts(t.UpdatedAt), t.ID)
	if err != nil {
		return errors.Wrap(err, "update ticket")
	}
	return mustAffect(res, "ticket")
}

// AddMessage appends to the thread and bumps the ticket's counters.
func (r *TicketRepo) AddMessage(ctx context.Context, m *domain.TicketMessage) error {
	att, err := toJSON(orEmpty(m.Attachments))
	if err != nil {
		return err
	}
	return inTx(ctx, r.db, func(ctx context.Context) error {
		q := ext(ctx, r.db)
		res, err := q.ExecContext(ctx, `
			UPDATE tickets SET message_count = message_count + 1, updated_at = ? WHERE id = ?
		`, ts(m.CreatedAt), m.TicketID)
		if err != nil {
			return errors.Wrap(err, "bump ticket")
		}
		if err := mustAffect(res, "ticket"); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO ticket_messages(id, ticket_id, sender_id, sender_role, body, attachments_json, created_at)
			VALUES(?,?,?,?,?,?,?)
		`, m.ID, m.TicketID, m.SenderID, string(m.SenderRole), m.Body, att, ts(m.CreatedAt))
		return errors.Wrap(err, "insert ticket message")
	})
}

// Messages returns one page of the thread, oldest first.
func (r *TicketRepo) Messages(ctx context.Context, ticketID string, req domain.PageRequest) ([]domain.TicketMessage, int, error) {
	q := ext(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM ticket_messages WHERE ticket_id=?`, ticketID); err != nil {
		return nil, 0, errors.Wrap(err, "count messages")
	}
	var rows []struct {
		ID          string `db:"id"`
		TicketID    string `db:"ticket_id"`
		SenderID    string `db:"sender_id"`
		SenderRole  string `db:"sender_role"`
		Body        string `db:"body"`
		Attachments string `db:"attachments_json"`
		CreatedAt   string `db:"created_at"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT id, ticket_id, sender_id, sender_role, body, attachments_json, created_at
		FROM ticket_messages WHERE ticket_id=?
		ORDER BY created_at, rowid
		LIMIT ? OFFSET ?
	`, ticketID, req.Limit, req.Offset()); err != nil {
		return nil, 0, errors.Wrap(err, "list messages")
	}
	out := make([]domain.TicketMessage, 0, len(rows))
	for _, row := range rows {
		m := domain.TicketMessage{
			ID:         row.ID,
			TicketID:   row.TicketID,
			SenderID:   row.SenderID,
			SenderRole: domain.Role(row.SenderRole),
			Body:       row.Body,
			CreatedAt:  parseTS(row.CreatedAt),
		}
		if err := fromJSON(row.Attachments, &m.Attachments); err != nil {
			return nil, 0, err
		}
		if m.Attachments == nil {
			m.Attachments = []string{}
		}
		out = append(out, m)
	}
	return out, total, nil
}
