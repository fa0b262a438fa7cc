package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

const MaxImages = 10

type CatalogService struct {
	Products ProductStore
	Accounts AccountStore
}

func NewCatalogService(products ProductStore, accounts AccountStore) *CatalogService {
	return &CatalogService{Products: products, Accounts: accounts}
}

func (s *CatalogService) Categories() []domain.Category { return domain.Categories }

func (s *CatalogService) List(ctx context.Context, f domain.ProductFilter) (domain.Page[domain.Product], error) {
	f.PageRequest = f.PageRequest.Normalize()
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return domain.Page[domain.Product]{}, domain.Invalid("min_price must not exceed max_price")
	}
	items, total, err := s.Products.List(ctx, f)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.NewPage(items, total, f.PageRequest), nil
}

func (s *CatalogService) Search(ctx context.Context, q string, req domain.PageRequest) (domain.Page[domain.Product], error) {
	q, ok := validate.Q(q)
	if !ok {
		return domain.Page[domain.Product]{}, domain.Invalid("search query is required")
	}
	req = req.Normalize()
	items, total, err := s.Products.Search(ctx, q, req)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.NewPage(items, total, req), nil
}

// Get returns the product and, for a signed-in viewer, records the view.
func (s *CatalogService) Get(ctx context.Context, id, viewerID string) (*domain.Product, error) {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewerID != "" {
		if err := s.Accounts.RecordView(ctx, viewerID, p.ID, now()); err != nil {
			applog.L().WithError(err).WithField("product_id", p.ID).Warn("catalog.view.record.fail")
		}
	}
	return p, nil
}

func (s *CatalogService) Availability(ctx context.Context, id string) (domain.Availability, error) {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.AvailabilityOf(p.Stock), nil
}

type ProductInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Brand          string            `json:"brand"`
	Price          decimal.Decimal   `json:"price"`
	Discount       int               `json:"discount"`
	Category       string            `json:"category"`
	Stock          int               `json:"stock"`
	Images         []string          `json:"images"`
	Variants       []domain.Variant  `json:"variants"`
	Specifications map[string]string `json:"specifications"`
}

func (in ProductInput) apply(p *domain.Product) error {
	var ok bool
	if p.Name, ok = validate.Text(in.Name, 1, 200); !ok {
		return domain.Invalid("name must be 1-200 characters")
	}
	if p.Description, ok = validate.Text(in.Description, 0, 5000); !ok {
		return domain.Invalid("description must be at most 5000 characters")
	}
	if p.Brand, ok = validate.Text(in.Brand, 0, 100); !ok {
		return domain.Invalid("brand must be at most 100 characters")
	}
	if in.Price.IsNegative() {
		return domain.Invalid("price must not be negative")
	}
	p.Price = in.Price.Round(2)
	if in.Discount < 0 || in.Discount > 100 {
		return domain.Invalid("discount must be between 0 and 100")
	}
	p.Discount = in.Discount
	if p.Category, ok = domain.ParseCategory(strings.TrimSpace(in.Category)); !ok {
		return domain.Invalid("unknown category")
	}
	if in.Stock < 0 {
		return domain.Invalid("stock must not be negative")
	}
	p.Stock = in.Stock
	if len(in.Images) > MaxImages {
		return domain.Invalidf("at most %d images are allowed", MaxImages)
	}
	if p.Images, ok = validate.URLs(in.Images); !ok {
		return domain.Invalid("images must be http(s) URLs or absolute paths without spaces")
	}
	p.Variants = in.Variants
	if p.Variants == nil {
		p.Variants = []domain.Variant{}
	}
	p.Specifications = in.Specifications
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	at := now()
	p := &domain.Product{ID: uuid.NewString(), CreatedAt: at, UpdatedAt: at}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.Products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces every editable field. Rating aggregates are kept.
func (s *CatalogService) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = now()
	if err := s.Products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	return s.Products.Delete(ctx, id)
}

func (s *CatalogService) SetStock(ctx context.Context, id string, stock int) (*domain.Product, error) {
	if stock < 0 {
		return nil, domain.Invalid("stock must not be negative")
	}
	if err := s.Products.SetStock(ctx, id, stock); err != nil {
		return nil, err
	}
	return s.Products.Get(ctx, id)
}

func (s *CatalogService) Reviews(ctx context.Context, productID string, req domain.PageRequest) (domain.Page[domain.Review], error) {
	if _, err := s.Products.Get(ctx, productID); err != nil {
		return domain.Page[domain.Review]{}, err
	}
	req = req.Normalize()
	items, total, err := s.Products.Reviews(ctx, productID, req)
	if err != nil {
		return domain.Page[domain.Review]{}, err
	}
	return domain.NewPage(items, total, req), nil
}

// AddReview stores the review; the store refreshes rating and num_reviews atomically.
func (s *CatalogService) AddReview(ctx context.Context, author *domain.Account, productID string, rating int, comment string) (*domain.Review, error) {
	if !validate.Rating(rating) {
		return nil, domain.Invalid("rating must be between 1 and 5")
	}
	comment, ok := validate.Text(comment, 0, 2000)
	if !ok {
		return nil, domain.Invalid("comment must be at most 2000 characters")
	}
	if _, err := s.Products.Get(ctx, productID); err != nil {
		return nil, err
	}
	rv := &domain.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    author.ID,
		Username:  author.Username,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now(),
	}
	if err := s.Products.AddReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}
