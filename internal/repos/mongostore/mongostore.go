// Package mongostore implements the storage ports on MongoDB. Multi-document
// transactions need a replica set (a single-node one is enough).
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
	"storefront/internal/services"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the primary and ensures indexes on dbName.
func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}
	d := &DB{client: client, db: client.Database(dbName)}
	if err := d.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return d, nil
}

func (d *DB) Close(ctx context.Context) error { return d.client.Disconnect(ctx) }

func (d *DB) users() *mongo.Collection    { return d.db.Collection("users") }
func (d *DB) products() *mongo.Collection { return d.db.Collection("products") }
func (d *DB) reviews() *mongo.Collection  { return d.db.Collection("reviews") }
func (d *DB) orders() *mongo.Collection   { return d.db.Collection("orders") }
func (d *DB) tickets() *mongo.Collection  { return d.db.Collection("tickets") }
func (d *DB) messages() *mongo.Collection { return d.db.Collection("ticket_messages") }

// Drop removes the whole database. Used by tests.
func (d *DB) Drop(ctx context.Context) error { return d.db.Drop(ctx) }

func (d *DB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	plan := map[*mongo.Collection][]mongo.IndexModel{
		d.users(): {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "username_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		d.products(): {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "price", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "name", Value: "text"}, {Key: "brand", Value: "text"}, {Key: "description", Value: "text"}},
				Options: options.Index().SetWeights(bson.D{{Key: "name", Value: 3}, {Key: "brand", Value: 2}, {Key: "description", Value: 1}}),
			},
		},
		d.reviews(): {
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		d.orders(): {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		d.tickets(): {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
			{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		},
		d.messages(): {
			{Keys: bson.D{{Key: "ticket_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
	for coll, models := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "indexes on %s", coll.Name())
		}
	}
	return nil
}

// TxManager runs fn inside a session transaction. Store calls pick the session
// up from the context they are given.
type TxManager struct{ client *mongo.Client }

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Stores wires the MongoDB stores behind the service ports.
func Stores(d *DB) services.Stores {
	return services.Stores{
		Accounts: &AccountStore{d: d},
		Products: &ProductStore{d: d},
		Orders:   &OrderStore{d: d},
		Tickets:  &TicketStore{d: d},
		Tx:       &TxManager{client: d.client},
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NotFound(what)
	}
	return err
}

func mustMatch(res *mongo.UpdateResult, what string) error {
	if res.MatchedCount == 0 {
		return domain.NotFound(what)
	}
	return nil
}

func toDec128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDec128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// pageOpts applies skip/limit for req on top of the given sort.
func pageOpts(req domain.PageRequest, sort bson.D) *options.FindOptions {
	return options.Find().SetSort(sort).SetSkip(int64(req.Offset())).SetLimit(int64(req.Limit))
}

func count(ctx context.Context, coll *mongo.Collection, filter bson.M) (int, error) {
	n, err := coll.CountDocuments(ctx, filter)
	return int(n), errors.Wrapf(err, "count %s", coll.Name())
}

func utc(t time.Time) time.Time { return t.UTC() }
