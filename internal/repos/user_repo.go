package repos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/internal/domain"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

type userRow struct {
	ID            string `db:"id"`
	Username      string `db:"username"`
	Email         string `db:"email"`
	Hash          string `db:"password_hash"`
	Role          string `db:"role"`
	FirstName     string `db:"first_name"`
	LastName      string `db:"last_name"`
	Phone         string `db:"phone"`
	AddressesJSON string `db:"addresses_json"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

const userCols = `id, username, email, password_hash, role, first_name, last_name, phone, addresses_json, created_at, updated_at`

func (r userRow) toDomain() (*domain.Account, error) {
	a := &domain.Account{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Hash:      r.Hash,
		Role:      domain.Role(r.Role),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		CreatedAt: parseTS(r.CreatedAt),
		UpdatedAt: parseTS(r.UpdatedAt),
	}
	if err := fromJSON(r.AddressesJSON, &a.Addresses); err != nil {
		return nil, err
	}
	if a.Addresses == nil {
		a.Addresses = []domain.Address{}
	}
	return a, nil
}

func (r *UserRepo) Create(ctx context.Context, a *domain.Account) error {
	addrs, err := toJSON(nonNilAddrs(a.Addresses))
	if err != nil {
		return err
	}
	_, err = ext(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO users(`+userCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
	`, a.ID, a.Username, strings.ToLower(a.Email), a.Hash, string(a.Role), a.FirstName, a.LastName, a.Phone, addrs, ts(a.CreatedAt), ts(a.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.Conflict("email or username already registered")
	}
	return errors.Wrap(err, "insert user")
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) ByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE LOWER(username)=LOWER(?)`, strings.TrimSpace(username))
}

func (r *UserRepo) one(ctx context.Context, query string, arg any) (*domain.Account, error) {
	q := ext(ctx, r.DB)
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, query, arg); err != nil {
		return nil, notFound(err, "account")
	}
	a, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	a.Wishlist = []string{}
	if err := sqlx.SelectContext(ctx, q, &a.Wishlist, `
		SELECT product_id FROM wishlist_items WHERE user_id=? ORDER BY created_at, rowid
	`, a.ID); err != nil {
		return nil, errors.Wrap(err, "load wishlist")
	}
	var views []struct {
		ProductID string `db:"product_id"`
		ViewedAt  string `db:"viewed_at"`
	}
	if err := sqlx.SelectContext(ctx, q, &views, `
		SELECT product_id, viewed_at FROM recent_views WHERE user_id=? ORDER BY viewed_at DESC LIMIT ?
	`, a.ID, domain.RecentViewLimit); err != nil {
		return nil, errors.Wrap(err, "load recent views")
	}
	for _, v := range views {
		a.RecentlyViewed = append(a.RecentlyViewed, domain.RecentView{ProductID: v.ProductID, ViewedAt: parseTS(v.ViewedAt)})
	}
	return a, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, a *domain.Account) error {
	res, err := ext(ctx, r.DB).ExecContext(ctx, `
		UPDATE users SET first_name=?, last_name=?, phone=?, updated_at=? WHERE id=?
	`, a.FirstName, a.LastName, a.Phone, ts(a.UpdatedAt), a.ID)
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	return mustAffect(res, "account")
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := ext(ctx, r.DB).ExecContext(ctx, `
		UPDATE users SET password_hash=?, updated_at=? WHERE id=?
	`, hash, ts(time.Now()), id)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	return mustAffect(res, "account")
}

func (r *UserRepo) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	res, err := ext(ctx, r.DB).ExecContext(ctx, `
		UPDATE users SET role=?, updated_at=? WHERE id=?
	`, string(role), ts(time.Now()), id)
	if err != nil {
		return errors.Wrap(err, "update role")
	}
	return mustAffect(res, "account")
}

func (r *UserRepo) SaveAddresses(ctx context.Context, id string, list []domain.Address) error {
	addrs, err := toJSON(nonNilAddrs(list))
	if err != nil {
		return err
	}
	res, err := ext(ctx, r.DB).ExecContext(ctx, `
		UPDATE users SET addresses_json=?, updated_at=? WHERE id=?
	`, addrs, ts(time.Now()), id)
	if err != nil {
		return errors.Wrap(err, "save addresses")
	}
	return mustAffect(res, "account")
}

// AddToWishlist reports false when the product was already saved.
func (r *UserRepo) AddToWishlist(ctx context.Context, id, productID string) (bool, error) {
	res, err := ext(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO wishlist_items(user_id, product_id, created_at)
		VALUES(?, ?, ?)
		ON CONFLICT(user_id, product_id) DO NOTHING
	`, id, productID, ts(time.Now()))
	if err != nil {
		return false, errors.Wrap(err, "add wishlist item")
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *UserRepo) RemoveFromWishlist(ctx context.Context, id, productID string) (bool, error) {
	res, err := ext(ctx, r.DB).ExecContext(ctx, `DELETE FROM wishlist_items WHERE user_id=? AND product_id=?`, id, productID)
	if err != nil {
		return false, errors.Wrap(err, "remove wishlist item")
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordView moves productID to the front of the recency log and trims it to
// domain.RecentViewLimit entries.
func (r *UserRepo) RecordView(ctx context.Context, id, productID string, at time.Time) error {
	return inTx(ctx, r.DB, func(ctx context.Context) error {
		q := ext(ctx, r.DB)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO recent_views(user_id, product_id, viewed_at)
			VALUES(?, ?, ?)
			ON CONFLICT(user_id, product_id) DO UPDATE SET viewed_at=excluded.viewed_at
		`, id, productID, ts(at)); err != nil {
			return errors.Wrap(err, "record view")
		}
		_, err := q.ExecContext(ctx, `
			DELETE FROM recent_views
			WHERE user_id=? AND product_id NOT IN (
				SELECT product_id FROM recent_views WHERE user_id=? ORDER BY viewed_at DESC LIMIT ?
			)
		`, id, id, domain.RecentViewLimit)
		return errors.Wrap(err, "trim recent views")
	})
}

func (r *UserRepo) List(ctx context.Context, req domain.PageRequest) ([]domain.Account, int, error) {
	q := ext(ctx, r.DB)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}
	var rows []userRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+userCols+` FROM users ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
	`, req.Limit, req.Offset()); err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	out := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, nil
}

// Delete removes the account; wishlist and recency rows cascade. Orders and
// tickets are kept for audit.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := ext(ctx, r.DB).ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	return mustAffect(res, "account")
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, ext(ctx, r.DB), &n, `SELECT COUNT(*) FROM users`)
	return n, errors.Wrap(err, "count users")
}

func nonNilAddrs(list []domain.Address) []domain.Address {
	if list == nil {
		return []domain.Address{}
	}
	return list
}
