package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/messaging"
	"storefront/internal/validate"
)

// ErrBadCreds is the single answer to every failed login.
var ErrBadCreds = &domain.PublicError{Kind: domain.ErrUnauthenticated, Msg: "invalid email or password"}

type AuthService struct {
	Accounts AccountStore
	Tokens   *auth.Tokens
	Events   messaging.Publisher
	Cost     int
}

func NewAuthService(accounts AccountStore, tokens *auth.Tokens, events messaging.Publisher) *AuthService {
	return &AuthService{Accounts: accounts, Tokens: tokens, Events: events, Cost: bcrypt.DefaultCost}
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Session is what register and login hand back to the client.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *domain.Account `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username, ok := validate.Username(in.Username)
	if !ok {
		return nil, domain.Invalid("username must be 3-30 characters of letters, digits, '.', '_' or '-'")
	}
	email, ok := validate.Email(in.Email)
	if !ok {
		return nil, domain.Invalid("invalid email")
	}
	if !validate.Password(in.Password) {
		return nil, domain.Invalid("password must be 8-72 characters and contain a letter and a digit")
	}
	first, ok := validate.Name(in.FirstName)
	if !ok {
		return nil, domain.Invalid("first_name is too long")
	}
	last, ok := validate.Name(in.LastName)
	if !ok {
		return nil, domain.Invalid("last_name is too long")
	}

	if err := s.ensureUnique(ctx, email, username); err != nil {
		return nil, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	at := now()
	a := &domain.Account{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Hash:      hash,
		Role:      domain.RoleCustomer,
		FirstName: first,
		LastName:  last,
		Addresses: []domain.Address{},
		Wishlist:  []string{},
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.Accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, domain.AccountRegistered{AccountID: a.ID, Email: a.Email, Username: a.Username, At: at})
	return s.session(a)
}

// ensureUnique gives the precise duplicate message; the store's unique index
// still guards the race between this check and the insert.
func (s *AuthService) ensureUnique(ctx context.Context, email, username string) error {
	if _, err := s.Accounts.ByEmail(ctx, email); err == nil {
		return domain.Conflict("email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.Accounts.ByUsername(ctx, username); err == nil {
		return domain.Conflict("username already taken")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	a, err := s.Accounts.ByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	return s.session(a)
}

// Authenticate resolves a bearer token to its stored account. The role is
// taken from the store, not the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Account, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	a, err := s.Accounts.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrap(domain.ErrUnauthenticated, "account no longer exists")
		}
		return nil, err
	}
	return a, nil
}

func (s *AuthService) Me(ctx context.Context, id string) (*domain.Account, error) {
	return s.Accounts.ByID(ctx, id)
}

func (s *AuthService) session(a *domain.Account) (*Session, error) {
	tok, exp, err := s.Tokens.Issue(a.ID, a.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: a}, nil
}

func (s *AuthService) hash(password string) (string, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}
