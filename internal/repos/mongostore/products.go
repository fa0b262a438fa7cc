package mongostore

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
)

type ProductStore struct{ d *DB }

type productDoc struct {
	ID             string               `bson:"_id"`
	Name           string               `bson:"name"`
	Description    string               `bson:"description"`
	Brand          string               `bson:"brand"`
	Price          primitive.Decimal128 `bson:"price"`
	Discount       int                  `bson:"discount"`
	Category       string               `bson:"category"`
	Stock          int                  `bson:"stock"`
	Rating         float64              `bson:"rating"`
	NumReviews     int                  `bson:"num_reviews"`
	Images         []string             `bson:"images"`
	Variants       []domain.Variant     `bson:"variants"`
	Specifications map[string]string    `bson:"specifications"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

func newProductDoc(p *domain.Product) productDoc {
	doc := productDoc{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Brand:          p.Brand,
		Price:          toDec128(p.Price),
		Discount:       p.Discount,
		Category:       string(p.Category),
		Stock:          p.Stock,
		Rating:         p.Rating,
		NumReviews:     p.NumReviews,
		Images:         p.Images,
		Variants:       p.Variants,
		Specifications: p.Specifications,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if doc.Images == nil {
		doc.Images = []string{}
	}
	if doc.Variants == nil {
		doc.Variants = []domain.Variant{}
	}
	if doc.Specifications == nil {
		doc.Specifications = map[string]string{}
	}
	return doc
}

func (doc productDoc) toDomain() domain.Product {
	p := domain.Product{
		ID:             doc.ID,
		Name:           doc.Name,
		Description:    doc.Description,
		Brand:          doc.Brand,
		Price:          fromDec128(doc.Price),
		Discount:       doc.Discount,
		Category:       domain.Category(doc.Category),
		Stock:          doc.Stock,
		Rating:         doc.Rating,
		NumReviews:     doc.NumReviews,
		Images:         doc.Images,
		Variants:       doc.Variants,
		Specifications: doc.Specifications,
		CreatedAt:      utc(doc.CreatedAt),
		UpdatedAt:      utc(doc.UpdatedAt),
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
	return p
}

func decodeProducts(ctx context.Context, cur *mongo.Cursor) ([]domain.Product, error) {
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (s *ProductStore) Create(ctx context.Context, p *domain.Product) error {
	_, err := s.d.products().InsertOne(ctx, newProductDoc(p))
	return errors.Wrap(err, "insert product")
}

func (s *ProductStore) Get(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDoc
	if err := s.d.products().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "product")
	}
	p := doc.toDomain()
	return &p, nil
}

// GetMany returns the products that exist among ids, in the order of ids.
func (s *ProductStore) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	cur, err := s.d.products().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	found, err := decodeProducts(ctx, cur)
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

func (s *ProductStore) Update(ctx context.Context, p *domain.Product) error {
	doc := newProductDoc(p)
	res, err := s.d.products().UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"name":           doc.Name,
		"description":    doc.Description,
		"brand":          doc.Brand,
		"price":          doc.Price,
		"discount":       doc.Discount,
		"category":       doc.Category,
		"stock":          doc.Stock,
		"images":         doc.Images,
		"variants":       doc.Variants,
		"specifications": doc.Specifications,
		"updated_at":     doc.UpdatedAt,
	}})
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	return mustMatch(res, "product")
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	res, err := s.d.products().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound("product")
	}
	_, err = s.d.reviews().DeleteMany(ctx, bson.M{"product_id": id})
	return errors.Wrap(err, "delete reviews")
}

var productSort = map[domain.ProductSort]bson.D{
	domain.SortNewest:    {{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}},
	domain.SortPriceAsc:  {{Key: "price", Value: 1}, {Key: "_id", Value: 1}},
	domain.SortPriceDesc: {{Key: "price", Value: -1}, {Key: "_id", Value: 1}},
	domain.SortRating:    {{Key: "rating", Value: -1}, {Key: "num_reviews", Value: -1}, {Key: "_id", Value: 1}},
	domain.SortName:      {{Key: "name", Value: 1}, {Key: "_id", Value: 1}},
}

func (s *ProductStore) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = toDec128(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		price["$lte"] = toDec128(*f.MaxPrice)
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if f.InStock {
		filter["stock"] = bson.M{"$gt": 0}
	}
	sort, ok := productSort[f.Sort]
	if !ok {
		sort = productSort[domain.SortNewest]
	}

	coll := s.d.products()
	total, err := count(ctx, coll, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := pageOpts(f.PageRequest, sort)
	if f.Sort == domain.SortName {
		// Strength 2 compares case-insensitively.
		opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
	}
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	out, err := decodeProducts(ctx, cur)
	return out, total, err
}

// Search uses the weighted text index: name outranks brand, brand outranks
// description. Matching is by word stem rather than substring.
func (s *ProductStore) Search(ctx context.Context, query string, req domain.PageRequest) ([]domain.Product, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Product{}, 0, nil
	}
	filter := bson.M{"$text": bson.M{"$search": query}}
	coll := s.d.products()
	total, err := count(ctx, coll, filter)
	if err != nil {
		return nil, 0, err
	}
	score := bson.M{"$meta": "textScore"}
	opts := pageOpts(req, bson.D{{Key: "score", Value: score}, {Key: "rating", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"score": score})
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "search products")
	}
	out, err := decodeProducts(ctx, cur)
	return out, total, err
}

func (s *ProductStore) SetStock(ctx context.Context, id string, stock int) error {
	res, err := s.d.products().UpdateByID(ctx, id, bson.M{"$set": bson.M{"stock": stock, "updated_at": time.Now().UTC()}})
	if err != nil {
		return errors.Wrap(err, "set stock")
	}
	return mustMatch(res, "product")
}

// DecrementStock only matches while stock covers qty, so concurrent buyers
// can never drive it negative.
func (s *ProductStore) DecrementStock(ctx context.Context, id string, qty int) error {
	coll := s.d.products()
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errors.Wrap(err, "decrement stock")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	var doc struct {
		Name  string `bson:"name"`
		Stock int    `bson:"stock"`
	}
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return notFound(err, "product")
	}
	return domain.InsufficientStock(doc.Name, doc.Stock, qty)
}

func (s *ProductStore) IncrementStock(ctx context.Context, id string, qty int) error {
	res, err := s.d.products().UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"stock": qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return errors.Wrap(err, "increment stock")
	}
	return mustMatch(res, "product")
}

type reviewDoc struct {
	ID        string    `bson:"_id"`
	ProductID string    `bson:"product_id"`
	UserID    string    `bson:"user_id"`
	Username  string    `bson:"username"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
}

// AddReview inserts the review and refreshes the product's rating aggregate
// in one transaction.
func (s *ProductStore) AddReview(ctx context.Context, rv *domain.Review) error {
	tx := &TxManager{client: s.d.client}
	return tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.d.reviews().InsertOne(ctx, reviewDoc{
			ID: rv.ID, ProductID: rv.ProductID, UserID: rv.UserID, Username: rv.Username,
			Rating: rv.Rating, Comment: rv.Comment, CreatedAt: rv.CreatedAt,
		})
		if mongo.IsDuplicateKeyError(err) {
			return domain.Conflict("you have already reviewed this product")
		}
		if err != nil {
			return errors.Wrap(err, "insert review")
		}
		cur, err := s.d.reviews().Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"product_id": rv.ProductID}}},
			{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$rating"}, "n": bson.M{"$sum": 1}}}},
		})
		if err != nil {
			return errors.Wrap(err, "aggregate rating")
		}
		var agg []struct {
			Avg float64 `bson:"avg"`
			N   int     `bson:"n"`
		}
		if err := cur.All(ctx, &agg); err != nil {
			return errors.Wrap(err, "decode rating")
		}
		var avg float64
		var n int
		if len(agg) > 0 {
			avg, n = math.Round(agg[0].Avg*100)/100, agg[0].N
		}
		res, err := s.d.products().UpdateByID(ctx, rv.ProductID, bson.M{"$set": bson.M{"rating": avg, "num_reviews": n}})
		if err != nil {
			return errors.Wrap(err, "refresh rating")
		}
		return mustMatch(res, "product")
	})
}

func (s *ProductStore) Reviews(ctx context.Context, productID string, req domain.PageRequest) ([]domain.Review, int, error) {
	coll := s.d.reviews()
	filter := bson.M{"product_id": productID}
	total, err := count(ctx, coll, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, filter, pageOpts(req, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list reviews")
	}
	var docs []reviewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decode reviews")
	}
	out := make([]domain.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Review{
			ID: d.ID, ProductID: d.ProductID, UserID: d.UserID, Username: d.Username,
			Rating: d.Rating, Comment: d.Comment, CreatedAt: utc(d.CreatedAt),
		})
	}
	return out, total, nil
}

func (s *ProductStore) Count(ctx context.Context) (int, error) {
	return count(ctx, s.d.products(), bson.M{})
}
