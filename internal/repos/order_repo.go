package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type orderRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	ItemsJSON      string          `db:"items_json"`
	Total          decimal.Decimal `db:"total"`
	ShippingJSON   string          `db:"shipping_json"`
	PaymentMethod  string          `db:"payment_method"`
	PaymentStatus  string          `db:"payment_status"`
	Status         string          `db:"status"`
	TrackingNumber string          `db:"tracking_number"`
	CreatedAt      string          `db:"created_at"`
	UpdatedAt      string          `db:"updated_at"`
}

const orderCols = `id, user_id, items_json, total, shipping_json, payment_method, payment_status, status,
    tracking_number, created_at, updated_at`

func (r orderRow) toDomain() (domain.Order, error) {
	o := domain.Order{
		ID:             r.ID,
		UserID:         r.UserID,
		Total:          r.Total,
		PaymentMethod:  domain.PaymentMethod(r.PaymentMethod),
		PaymentStatus:  domain.PaymentStatus(r.PaymentStatus),
		Status:         domain.OrderStatus(r.Status),
		TrackingNumber: r.TrackingNumber,
		CreatedAt:      parseTS(r.CreatedAt),
		UpdatedAt:      parseTS(r.UpdatedAt),
	}
	if err := fromJSON(r.ItemsJSON, &o.Items); err != nil {
		return o, err
	}
	if err := fromJSON(r.ShippingJSON, &o.ShippingAddress); err != nil {
		return o, err
	}
	return o, nil
}

// Create inserts the order document: header, line items and address snapshot.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	items, err := toJSON(o.Items)
	if err != nil {
		return err
	}
	ship, err := toJSON(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = ext(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO orders(`+orderCols+`)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?)
	`, o.ID, o.UserID, items, o.Total, ship, string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		o.TrackingNumber, ts(o.CreatedAt), ts(o.UpdatedAt))
	return errors.Wrap(err, "insert order")
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `SELECT `+orderCols+` FROM orders WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "order")
	}
	o, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns orders newest first, optionally scoped to one account and status.
func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
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
	cond := strings.Join(where, ` AND `)

	q := ext(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM orders WHERE `+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+orderCols+`
		FROM orders
		WHERE `+cond+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, nil
}

// UpdateStatus persists the mutable state fields of an order.
func (r *OrderRepo) UpdateStatus(ctx context.Context, o *domain.Order) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		UPDATE orders SET status = ?, payment_status = ?, tracking_number = ?, updated_at = ? WHERE id = ?
	`, string(o.Status), string(o.PaymentStatus), o.TrackingNumber, ts(o.UpdatedAt), o.ID)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	return mustAffect(res, "order")
}
