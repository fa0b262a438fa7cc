package mongostore

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/domain"
)

type AccountStore struct{ d *DB }

type viewDoc struct {
	ProductID string    `bson:"product_id"`
	ViewedAt  time.Time `bson:"viewed_at"`
}

type accountDoc struct {
	ID             string           `bson:"_id"`
	Username       string           `bson:"username"`
	UsernameLower  string           `bson:"username_lower"`
	Email          string           `bson:"email"`
	Hash           string           `bson:"password_hash"`
	Role           string           `bson:"role"`
	FirstName      string           `bson:"first_name"`
	LastName       string           `bson:"last_name"`
	Phone          string           `bson:"phone"`
	Addresses      []domain.Address `bson:"addresses"`
	Wishlist       []string         `bson:"wishlist"`
	RecentlyViewed []viewDoc        `bson:"recently_viewed"`
	CreatedAt      time.Time        `bson:"created_at"`
	UpdatedAt      time.Time        `bson:"updated_at"`
}

func (doc accountDoc) toDomain() *domain.Account {
	a := &domain.Account{
		ID:        doc.ID,
		Username:  doc.Username,
		Email:     doc.Email,
		Hash:      doc.Hash,
		Role:      domain.Role(doc.Role),
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Phone:     doc.Phone,
		Addresses: doc.Addresses,
		Wishlist:  doc.Wishlist,
		CreatedAt: utc(doc.CreatedAt),
		UpdatedAt: utc(doc.UpdatedAt),
	}
	if a.Addresses == nil {
		a.Addresses = []domain.Address{}
	}
	if a.Wishlist == nil {
		a.Wishlist = []string{}
	}
	for _, v := range doc.RecentlyViewed {
		a.RecentlyViewed = append(a.RecentlyViewed, domain.RecentView{ProductID: v.ProductID, ViewedAt: utc(v.ViewedAt)})
	}
	return a
}

func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	doc := accountDoc{
		ID:             a.ID,
		Username:       a.Username,
		UsernameLower:  strings.ToLower(a.Username),
		Email:          strings.ToLower(a.Email),
		Hash:           a.Hash,
		Role:           string(a.Role),
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Phone:          a.Phone,
		Addresses:      a.Addresses,
		Wishlist:       []string{},
		RecentlyViewed: []viewDoc{},
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if doc.Addresses == nil {
		doc.Addresses = []domain.Address{}
	}
	_, err := s.d.users().InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return domain.Conflict("email or username already registered")
	}
	return errors.Wrap(err, "insert user")
}

func (s *AccountStore) one(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDoc
	if err := s.d.users().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err, "account")
	}
	return doc.toDomain(), nil
}

func (s *AccountStore) ByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.one(ctx, bson.M{"_id": id})
}

func (s *AccountStore) ByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.one(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *AccountStore) ByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.one(ctx, bson.M{"username_lower": strings.ToLower(strings.TrimSpace(username))})
}

func (s *AccountStore) set(ctx context.Context, id string, fields bson.M) error {
	res, err := s.d.users().UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	return mustMatch(res, "account")
}

func (s *AccountStore) UpdateProfile(ctx context.Context, a *domain.Account) error {
	return s.set(ctx, a.ID, bson.M{
		"first_name": a.FirstName,
		"last_name":  a.LastName,
		"phone":      a.Phone,
		"updated_at": a.UpdatedAt,
	})
}

func (s *AccountStore) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.set(ctx, id, bson.M{"password_hash": hash, "updated_at": time.Now().UTC()})
}

func (s *AccountStore) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return s.set(ctx, id, bson.M{"role": string(role), "updated_at": time.Now().UTC()})
}

func (s *AccountStore) SaveAddresses(ctx context.Context, id string, list []domain.Address) error {
	if list == nil {
		list = []domain.Address{}
	}
	return s.set(ctx, id, bson.M{"addresses": list, "updated_at": time.Now().UTC()})
}

func (s *AccountStore) AddToWishlist(ctx context.Context, id, productID string) (bool, error) {
	res, err := s.d.users().UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"wishlist": productID}})
	if err != nil {
		return false, errors.Wrap(err, "add wishlist item")
	}
	if err := mustMatch(res, "account"); err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *AccountStore) RemoveFromWishlist(ctx context.Context, id, productID string) (bool, error) {
	res, err := s.d.users().UpdateByID(ctx, id, bson.M{"$pull": bson.M{"wishlist": productID}})
	if err != nil {
		return false, errors.Wrap(err, "remove wishlist item")
	}
	if err := mustMatch(res, "account"); err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// RecordView drops any earlier entry for productID, then pushes the new one
// keeping the log sorted newest first and capped.
func (s *AccountStore) RecordView(ctx context.Context, id, productID string, at time.Time) error {
	coll := s.d.users()
	if _, err := coll.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"recently_viewed": bson.M{"product_id": productID}},
	}); err != nil {
		return errors.Wrap(err, "record view")
	}
	res, err := coll.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"recently_viewed": bson.M{
			"$each":  []viewDoc{{ProductID: productID, ViewedAt: at.UTC()}},
			"$sort":  bson.M{"viewed_at": -1},
			"$slice": domain.RecentViewLimit,
		}},
	})
	if err != nil {
		return errors.Wrap(err, "record view")
	}
	return mustMatch(res, "account")
}

func (s *AccountStore) List(ctx context.Context, req domain.PageRequest) ([]domain.Account, int, error) {
	coll := s.d.users()
	total, err := count(ctx, coll, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, bson.M{}, pageOpts(req, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decode users")
	}
	out := make([]domain.Account, 0, len(docs))
	for _, doc := range docs {
		out = append(out, *doc.toDomain())
	}
	return out, total, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	res, err := s.d.users().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound("account")
	}
	return nil
}

func (s *AccountStore) Count(ctx context.Context) (int, error) {
	return count(ctx, s.d.users(), bson.M{})
}
