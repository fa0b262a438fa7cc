package repos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

type productRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Brand        string          `db:"brand"`
	Price        decimal.Decimal `db:"price"`
	Discount     int             `db:"discount"`
	Category     string          `db:"category"`
	Stock        int             `db:"stock"`
	Rating       float64         `db:"rating"`
	NumReviews   int             `db:"num_reviews"`
	ImagesJSON   string          `db:"images_json"`
	VariantsJSON string          `db:"variants_json"`
	SpecsJSON    string          `db:"specs_json"`
	CreatedAt    string          `db:"created_at"`
	UpdatedAt    string          `db:"updated_at"`
}

const productCols = `id, name, description, brand, price, discount, category, stock, rating, num_reviews,
    images_json, variants_json, specs_json, created_at, updated_at`

func (r productRow) toDomain() (domain.Product, error) {
	p := domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Brand:       r.Brand,
		Price:       r.Price,
		Discount:    r.Discount,
		Category:    domain.Category(r.Category),
		Stock:       r.Stock,
		Rating:      r.Rating,
		NumReviews:  r.NumReviews,
		CreatedAt:   parseTS(r.CreatedAt),
		UpdatedAt:   parseTS(r.UpdatedAt),
	}
	if err := fromJSON(r.ImagesJSON, &p.Images); err != nil {
		return p, err
	}
	if err := fromJSON(r.VariantsJSON, &p.Variants); err != nil {
		return p, err
	}
	if err := fromJSON(r.SpecsJSON, &p.Specifications); err != nil {
		return p, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Variants == nil {
		p.Variants = []domain.Variant{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	return p, nil
}

func toProducts(rows []productRow) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func productJSON(p *domain.Product) (images, variants, specs string, err error) {
	if images, err = toJSON(orEmpty(p.Images)); err != nil {
		return
	}
	vs := p.Variants
	if vs == nil {
		vs = []domain.Variant{}
	}
	if variants, err = toJSON(vs); err != nil {
		return
	}
	sp := p.Specifications
	if sp == nil {
		sp = map[string]string{}
	}
	specs, err = toJSON(sp)
	return
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	images, variants, specs, err := productJSON(p)
	if err != nil {
		return err
	}
	_, err = ext(ctx, r.db).ExecContext(ctx, `
		INSERT INTO products(`+productCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, p.ID, p.Name, p.Description, p.Brand, p.Price, p.Discount, string(p.Category), p.Stock, p.Rating, p.NumReviews,
		images, variants, specs, ts(p.CreatedAt), ts(p.UpdatedAt))
	return errors.Wrap(err, "insert product")
}

func (r *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `SELECT `+productCols+` FROM products WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "product")
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetMany returns the products that exist among ids, in the order of ids.
func (r *ProductRepo) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+productCols+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	q := ext(ctx, r.db)
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	found, err := toProducts(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	images, variants, specs, err := productJSON(p)
	if err != nil {
		return err
	}
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET name=?, description=?, brand=?, price=?, discount=?, category=?, stock=?,
		  images_json=?, variants_json=?, specs_json=?, updated_at=?
		WHERE id=?
	`, p.Name, p.Description, p.Brand, p.Price, p.Discount, string(p.Category), p.Stock,
		images, variants, specs, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	return mustAffect(res, "product")
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	return mustAffect(res, "product")
}

var productOrder = map[domain.ProductSort]string{
	domain.SortNewest:    `created_at DESC, rowid DESC`,
	domain.SortPriceAsc:  `price ASC, rowid`,
	domain.SortPriceDesc: `price DESC, rowid`,
	domain.SortRating:    `rating DESC, num_reviews DESC, rowid`,
	domain.SortName:      `LOWER(name) ASC, rowid`,
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	where := []string{`1=1`}
	args := []any{}
	if f.Category != "" {
		where = append(where, `category = ?`)
		args = append(args, string(f.Category))
	}
	if f.MinPrice != nil {
		where = append(where, `price >= ?`)
		args = append(args, f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		where = append(where, `price <= ?`)
		args = append(args, f.MaxPrice.InexactFloat64())
	}
	if f.InStock {
		where = append(where, `stock > 0`)
	}
	cond := strings.Join(where, ` AND `)
	order, ok := productOrder[f.Sort]
	if !ok {
		order = productOrder[domain.SortNewest]
	}

	q := ext(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM products WHERE `+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+productCols+`
		FROM products
		WHERE `+cond+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	out, err := toProducts(rows)
	return out, total, err
}

// Search ranks name matches above description matches, then by rating.
func (r *ProductRepo) Search(ctx context.Context, query string, req domain.PageRequest) ([]domain.Product, int, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []domain.Product{}, 0, nil
	}
	var match, score []string
	var matchArgs, scoreArgs []any
	for _, t := range terms {
		like := "%" + escapeLike(t) + "%"
		match = append(match, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(brand) LIKE ? ESCAPE '\')`)
		matchArgs = append(matchArgs, like, like, like)
		score = append(score,
			`(CASE WHEN LOWER(name) LIKE ? ESCAPE '\' THEN 3 ELSE 0 END)`,
			`(CASE WHEN LOWER(brand) LIKE ? ESCAPE '\' THEN 2 ELSE 0 END)`,
			`(CASE WHEN LOWER(description) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`)
		scoreArgs = append(scoreArgs, like, like, like)
	}
	cond := strings.Join(match, ` OR `)

	q := ext(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM products WHERE `+cond, matchArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "count search")
	}
	args := append(append([]any{}, scoreArgs...), matchArgs...)
	args = append(args, req.Limit, req.Offset())
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+productCols+` FROM (
		  SELECT rowid AS rid, *, (`+strings.Join(score, ` + `)+`) AS score
		  FROM products
		  WHERE `+cond+`
		)
		ORDER BY score DESC, rating DESC, rid
		LIMIT ? OFFSET ?
	`, args...); err != nil {
		return nil, 0, errors.Wrap(err, "search products")
	}
	out, err := toProducts(rows)
	return out, total, err
}

func (r *ProductRepo) SetStock(ctx context.Context, id string, stock int) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `UPDATE products SET stock=?, updated_at=? WHERE id=?`, stock, ts(time.Now()), id)
	if err != nil {
		return errors.Wrap(err, "set stock")
	}
	return mustAffect(res, "product")
}

// DecrementStock atomically subtracts qty if enough stock exists.
func (r *ProductRepo) DecrementStock(ctx context.Context, id string, qty int) error {
	q := ext(ctx, r.db)
	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = ?
		WHERE id = ? AND stock >= ?
	`, qty, ts(time.Now()), id, qty)
	if err != nil {
		return errors.Wrap(err, "decrement stock")
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}
	var row struct {
		Name  string `db:"name"`
		Stock int    `db:"stock"`
	}
	if err := sqlx.GetContext(ctx, q, &row, `SELECT name, stock FROM products WHERE id=?`, id); err != nil {
		return notFound(err, "product")
	}
	return domain.InsufficientStock(row.Name, row.Stock, qty)
}

func (r *ProductRepo) IncrementStock(ctx context.Context, id string, qty int) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?
	`, qty, ts(time.Now()), id)
	if err != nil {
		return errors.Wrap(err, "increment stock")
	}
	return mustAffect(res, "product")
}

// AddReview inserts the review and refreshes the product's rating aggregate.
func (r *ProductRepo) AddReview(ctx context.Context, rv *domain.Review) error {
	return inTx(ctx, r.db, func(ctx context.Context) error {
		q := ext(ctx, r.db)
		_, err := q.ExecContext(ctx, `
			INSERT INTO reviews(id, product_id, user_id, username, rating, comment, created_at)
			VALUES(?,?,?,?,?,?,?)
		`, rv.ID, rv.ProductID, rv.UserID, rv.Username, rv.Rating, rv.Comment, ts(rv.CreatedAt))
		if isUniqueViolation(err) {
			return domain.Conflict("you have already reviewed this product")
		}
		if err != nil {
			return errors.Wrap(err, "insert review")
		}
		res, err := q.ExecContext(ctx, `
			UPDATE products SET
			  rating = (SELECT ROUND(AVG(rating), 2) FROM reviews WHERE product_id = ?),
			  num_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = ?)
			WHERE id = ?
		`, rv.ProductID, rv.ProductID, rv.ProductID)
		if err != nil {
			return errors.Wrap(err, "refresh rating")
		}
		return mustAffect(res, "product")
	})
}

func (r *ProductRepo) Reviews(ctx context.Context, productID string, req domain.PageRequest) ([]domain.Review, int, error) {
	q := ext(ctx, r.db)
	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM reviews WHERE product_id=?`, productID); err != nil {
		return nil, 0, errors.Wrap(err, "count reviews")
	}
	var rows []struct {
		ID        string `db:"id"`
		ProductID string `db:"product_id"`
		UserID    string `db:"user_id"`
		Username  string `db:"username"`
		Rating    int    `db:"rating"`
		Comment   string `db:"comment"`
		CreatedAt string `db:"created_at"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT id, product_id, user_id, username, rating, comment, created_at
		FROM reviews WHERE product_id=?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, productID, req.Limit, req.Offset()); err != nil {
		return nil, 0, errors.Wrap(err, "list reviews")
	}
	out := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Review{
			ID: row.ID, ProductID: row.ProductID, UserID: row.UserID, Username: row.Username,
			Rating: row.Rating, Comment: row.Comment, CreatedAt: parseTS(row.CreatedAt),
		})
	}
	return out, total, nil
}

func (r *ProductRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &n, `SELECT COUNT(*) FROM products`)
	return n, errors.Wrap(err, "count products")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
