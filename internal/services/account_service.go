package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

// MaxAddresses bounds the saved address book.
const MaxAddresses = 10

type AccountService struct {
	Accounts AccountStore
	Products ProductStore
	Auth     *AuthService
}

func NewAccountService(accounts AccountStore, products ProductStore, authSvc *AuthService) *AccountService {
	return &AccountService{Accounts: accounts, Products: products, Auth: authSvc}
}

type ProfileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*domain.Account, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var ok bool
	if a.FirstName, ok = validate.Name(in.FirstName); !ok {
		return nil, domain.Invalid("first_name is too long")
	}
	if a.LastName, ok = validate.Name(in.LastName); !ok {
		return nil, domain.Invalid("last_name is too long")
	}
	if a.Phone, ok = validate.Phone(in.Phone); !ok {
		return nil, domain.Invalid("invalid phone")
	}
	a.UpdatedAt = now()
	if err := s.Accounts.UpdateProfile(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, id, current, next string) error {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(current)) != nil {
		return domain.Invalid("current password is incorrect")
	}
	if !validate.Password(next) {
		return domain.Invalid("password must be 8-72 characters and contain a letter and a digit")
	}
	hash, err := s.Auth.hash(next)
	if err != nil {
		return err
	}
	return s.Accounts.UpdatePassword(ctx, id, hash)
}

// Addresses

func (s *AccountService) Addresses(ctx context.Context, id string) ([]domain.Address, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Addresses, nil
}

func (s *AccountService) AddAddress(ctx context.Context, id string, in domain.Address) ([]domain.Address, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(a.Addresses) >= MaxAddresses {
		return nil, domain.Invalidf("at most %d addresses can be saved", MaxAddresses)
	}
	addr, field := validate.Address(in)
	if field != "" {
		return nil, domain.Invalidf("invalid address %s", field)
	}
	addr.ID = uuid.NewString()
	list := a.Addresses
	if addr.IsDefault {
		for i := range list {
			list[i].IsDefault = false
		}
	}
	list = domain.NormalizeAddresses(append(list, addr))
	return list, s.Accounts.SaveAddresses(ctx, id, list)
}

func (s *AccountService) UpdateAddress(ctx context.Context, id, addressID string, in domain.Address) ([]domain.Address, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := addressIndex(a.Addresses, addressID)
	if idx < 0 {
		return nil, domain.NotFound("address")
	}
	addr, field := validate.Address(in)
	if field != "" {
		return nil, domain.Invalidf("invalid address %s", field)
	}
	addr.ID = addressID
	list := a.Addresses
	if addr.IsDefault {
		for i := range list {
			list[i].IsDefault = false
		}
	} else {
		// Unflagging is done by promoting another address, not by update.
		addr.IsDefault = list[idx].IsDefault
	}
	list[idx] = addr
	list = domain.NormalizeAddresses(list)
	return list, s.Accounts.SaveAddresses(ctx, id, list)
}

func (s *AccountService) DeleteAddress(ctx context.Context, id, addressID string) ([]domain.Address, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := addressIndex(a.Addresses, addressID)
	if idx < 0 {
		return nil, domain.NotFound("address")
	}
	list := append(a.Addresses[:idx:idx], a.Addresses[idx+1:]...)
	list = domain.NormalizeAddresses(list)
	return list, s.Accounts.SaveAddresses(ctx, id, list)
}

func (s *AccountService) SetDefaultAddress(ctx context.Context, id, addressID string) ([]domain.Address, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := addressIndex(a.Addresses, addressID)
	if idx < 0 {
		return nil, domain.NotFound("address")
	}
	for i := range a.Addresses {
		a.Addresses[i].IsDefault = i == idx
	}
	return a.Addresses, s.Accounts.SaveAddresses(ctx, id, a.Addresses)
}

func addressIndex(list []domain.Address, id string) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Wishlist

// Wishlist expands saved ids into summaries; ids of deleted products are skipped.
func (s *AccountService) Wishlist(ctx context.Context, id string) ([]domain.ProductSummary, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, a.Wishlist)
}

func (s *AccountService) AddToWishlist(ctx context.Context, id, productID string) ([]domain.ProductSummary, error) {
	if _, err := s.Products.Get(ctx, productID); err != nil {
		return nil, err
	}
	added, err := s.Accounts.AddToWishlist(ctx, id, productID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, domain.Invalid("already in wishlist")
	}
	return s.Wishlist(ctx, id)
}

func (s *AccountService) RemoveFromWishlist(ctx context.Context, id, productID string) ([]domain.ProductSummary, error) {
	removed, err := s.Accounts.RemoveFromWishlist(ctx, id, productID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, domain.NotFound("wishlist item")
	}
	return s.Wishlist(ctx, id)
}

// RecentlyViewed returns summaries, most recent first.
func (s *AccountService) RecentlyViewed(ctx context.Context, id string) ([]domain.ProductSummary, error) {
	a, err := s.Accounts.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(a.RecentlyViewed))
	for _, v := range a.RecentlyViewed {
		ids = append(ids, v.ProductID)
	}
	return s.summaries(ctx, ids)
}

func (s *AccountService) summaries(ctx context.Context, ids []string) ([]domain.ProductSummary, error) {
	products, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProductSummary, 0, len(products))
	for _, p := range products {
		out = append(out, p.Summary())
	}
	return out, nil
}

// Admin

func (s *AccountService) List(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Account], error) {
	req = req.Normalize()
	items, total, err := s.Accounts.List(ctx, req)
	if err != nil {
		return domain.Page[domain.Account]{}, err
	}
	return domain.NewPage(items, total, req), nil
}

func (s *AccountService) SetRole(ctx context.Context, actor *domain.Account, id, role string) (*domain.Account, error) {
	r, ok := domain.ParseRole(role)
	if !ok {
		return nil, domain.Invalid("role must be customer or admin")
	}
	if actor.ID == id && r != domain.RoleAdmin {
		return nil, domain.Invalid("you cannot remove your own admin role")
	}
	if err := s.Accounts.UpdateRole(ctx, id, r); err != nil {
		return nil, err
	}
	return s.Accounts.ByID(ctx, id)
}

func (s *AccountService) Delete(ctx context.Context, actor *domain.Account, id string) error {
	if actor.ID == id {
		return domain.Invalid("you cannot delete your own account")
	}
	return s.Accounts.Delete(ctx, id)
}

// EnsureAdmin creates the bootstrap admin, or promotes an existing account
// with that email. It is idempotent.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (*domain.Account, error) {
	a, err := s.Accounts.ByEmail(ctx, email)
	switch {
	case err == nil:
		if a.Role != domain.RoleAdmin {
			if err := s.Accounts.UpdateRole(ctx, a.ID, domain.RoleAdmin); err != nil {
				return nil, err
			}
			a.Role = domain.RoleAdmin
			applog.L().WithField("email", a.Email).Info("admin.promote")
		}
		return a, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	username := "admin"
	if _, err := s.Accounts.ByUsername(ctx, username); err == nil {
		username = "admin-" + uuid.NewString()[:8]
	}
	sess, err := s.Auth.Register(ctx, RegisterInput{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, errors.Wrap(err, "create admin")
	}
	if err := s.Accounts.UpdateRole(ctx, sess.User.ID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	sess.User.Role = domain.RoleAdmin
	applog.L().WithField("email", sess.User.Email).Info("admin.create")
	return sess.User, nil
}
