package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

var demoCatalog = []ProductInput{
	{
		Name: "Wireless Noise-Cancelling Headphones", Brand: "Sonora", Category: "electronics",
		Description: "Over-ear headphones with 30 hour battery and active noise cancelling.",
		Price:       decimal.RequireFromString("199.99"), Discount: 15, Stock: 25,
		Images:         []string{"/images/products/headphones.jpg"},
		Variants:       []domain.Variant{{Name: "color", Options: []string{"black", "silver"}}},
		Specifications: map[string]string{"battery": "30h", "bluetooth": "5.3"},
	},
	{
		Name: "Mechanical Keyboard", Brand: "Keyforge", Category: "electronics",
		Description: "Tenkeyless mechanical keyboard with hot-swappable switches.",
		Price:       decimal.RequireFromString("89.50"), Stock: 40,
		Images:   []string{"/images/products/keyboard.jpg"},
		Variants: []domain.Variant{{Name: "switch", Options: []string{"red", "brown", "blue"}}},
	},
	{
		Name: "Organic Cotton T-Shirt", Brand: "Loomwell", Category: "clothing",
		Description: "Classic crew neck tee made from organic cotton.",
		Price:       decimal.RequireFromString("24.00"), Discount: 10, Stock: 120,
		Images:   []string{"/images/products/tshirt.jpg"},
		Variants: []domain.Variant{{Name: "size", Options: []string{"S", "M", "L", "XL"}}},
	},
	{
		Name: "The Pragmatic Gardener", Brand: "Fernleaf Press", Category: "books",
		Description: "A practical guide to growing vegetables in small spaces.",
		Price:       decimal.RequireFromString("18.75"), Stock: 3,
		Images: []string{"/images/products/gardener.jpg"},
	},
	{
		Name: "Cast Iron Skillet", Brand: "Hearthstone", Category: "home",
		Description: "Pre-seasoned 12 inch cast iron skillet.",
		Price:       decimal.RequireFromString("39.90"), Stock: 18,
		Images: []string{"/images/products/skillet.jpg"},
	},
	{
		Name: "Yoga Mat", Brand: "Stillpoint", Category: "sports",
		Description: "Non-slip 6mm yoga mat with carry strap.",
		Price:       decimal.RequireFromString("29.99"), Discount: 20, Stock: 0,
		Images: []string{"/images/products/yogamat.jpg"},
	},
}

// SeedCatalog inserts the demo catalog into an empty product store and
// reports how many products it added.
func SeedCatalog(ctx context.Context, products ProductStore) (int, error) {
	n, err := products.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	applog.L().Info("seed.catalog")
	for _, in := range demoCatalog {
		at := now()
		p := &domain.Product{ID: uuid.NewString(), CreatedAt: at, UpdatedAt: at}
		if err := in.apply(p); err != nil {
			return 0, errors.Wrapf(err, "seed %s", in.Name)
		}
		if err := products.Create(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(demoCatalog), nil
}
