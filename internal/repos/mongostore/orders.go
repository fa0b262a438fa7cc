package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

type OrderStore struct{ d *DB }

type orderItemDoc struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Image     string               `bson:"image,omitempty"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"user_id"`
	Items           []orderItemDoc       `bson:"items"`
	Total           primitive.Decimal128 `bson:"total"`
	ShippingAddress domain.Address       `bson:"shipping_address"`
	PaymentMethod   string               `bson:"payment_method"`
	PaymentStatus   string               `bson:"payment_status"`
	Status          string               `bson:"status"`
	TrackingNumber  string               `bson:"tracking_number"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func (doc orderDoc) toDomain() domain.Order {
	o := domain.Order{
		ID:              doc.ID,
		UserID:          doc.UserID,
		Items:           make([]domain.OrderItem, 0, len(doc.Items)),
		Total:           fromDec128(doc.Total),
		ShippingAddress: doc.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		Status:          domain.OrderStatus(doc.Status),
		TrackingNumber:  doc.TrackingNumber,
		CreatedAt:       utc(doc.CreatedAt),
		UpdatedAt:       utc(doc.UpdatedAt),
	}
	for _, it := range doc.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: it.ProductID, Name: it.Name, Image: it.Image,
			Quantity: it.Quantity, UnitPrice: fromDec128(it.UnitPrice),
		})
	}
	return o
}

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	doc := orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           make([]orderItemDoc, 0, len(o.Items)),
		Total:           toDec128(o.Total),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		TrackingNumber:  o.TrackingNumber,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		doc.Items = append(doc.Items, orderItemDoc{
			ProductID: it.ProductID, Name: it.Name, Image: it.Image,
			Quantity: it.Quantity, UnitPrice: toDec128(it.UnitPrice),
		})
	}
	_, err := s.d.orders().InsertOne(ctx, doc)
	return errors.Wrap(err, "insert order")
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	if err := s.d.orders().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "order")
	}
	o := doc.toDomain()
	return &o, nil
}

// List returns orders newest first, optionally scoped to one account and status.
func (s *OrderStore) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	coll := s.d.orders()
	total, err := count(ctx, coll, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, filter, pageOpts(f.PageRequest, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decode orders")
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, total, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, o *domain.Order) error {
	res, err := s.d.orders().UpdateByID(ctx, o.ID, bson.M{"$set": bson.M{
		"status":          string(o.Status),
		"payment_status":  string(o.PaymentStatus),
		"tracking_number": o.TrackingNumber,
		"updated_at":      o.UpdatedAt,
	}})
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	return mustMatch(res, "order")
}
