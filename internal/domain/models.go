package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategoryBeauty      Category = "beauty"
	CategorySports      Category = "sports"
	CategoryToys        Category = "toys"
	CategoryGrocery     Category = "grocery"
	CategoryOther       Category = "other"
)

// Categories lists the closed product category enum in display order.
var Categories = []Category{
	CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHome,
	CategoryBeauty, CategorySports, CategoryToys, CategoryGrocery, CategoryOther,
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Product struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Brand          string            `json:"brand,omitempty"`
	Price          decimal.Decimal   `json:"price"`
	Discount       int               `json:"discount"` // percent, 0-100
	Category       Category          `json:"category"`
	Stock          int               `json:"stock"`
	Rating         float64           `json:"rating"`
	NumReviews     int               `json:"num_reviews"`
	Images         []string          `json:"images"`
	Variants       []Variant         `json:"variants"`
	Specifications map[string]string `json:"specifications"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type Variant struct {
	Name    string   `json:"name" bson:"name"`
	Options []string `json:"options" bson:"options"`
}

var hundred = decimal.NewFromInt(100)

// EffectivePrice is the unit price after the percentage discount, rounded to cents.
func (p Product) EffectivePrice() decimal.Decimal {
	return EffectivePrice(p.Price, p.Discount)
}

func EffectivePrice(price decimal.Decimal, discount int) decimal.Decimal {
	if discount <= 0 {
		return price.Round(2)
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(discount))).Div(hundred)
	return price.Mul(factor).Round(2)
}

// Summary is the display projection used by wishlists and recently-viewed lists.
func (p Product) Summary() ProductSummary {
	s := ProductSummary{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		Discount:       p.Discount,
		EffectivePrice: p.EffectivePrice(),
		Rating:         p.Rating,
		InStock:        p.Stock > 0,
	}
	if len(p.Images) > 0 {
		s.Image = p.Images[0]
	}
	return s
}

type ProductSummary struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Image          string          `json:"image,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Discount       int             `json:"discount"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Rating         float64         `json:"rating"`
	InStock        bool            `json:"in_stock"`
}

// ProductSort is the closed set of catalog orderings.
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortRating    ProductSort = "rating"
	SortName      ProductSort = "name"
)

func ParseProductSort(s string) (ProductSort, bool) {
	switch v := ProductSort(s); v {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortRating, SortName:
		return v, true
	case "":
		return SortNewest, true
	}
	return "", false
}

type ProductFilter struct {
	Category Category
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
	Sort     ProductSort
	PageRequest
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// LowStockThreshold is the quantity below which a product reports LOW_STOCK.
const LowStockThreshold = 5

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

func AvailabilityOf(stock int) Availability {
	switch {
	case stock >= LowStockThreshold:
		return Availability{Status: "IN_STOCK", Qty: stock}
	case stock > 0:
		return Availability{Status: "LOW_STOCK", Qty: stock}
	}
	return Availability{Status: "OUT_OF_STOCK", Qty: 0}
}
