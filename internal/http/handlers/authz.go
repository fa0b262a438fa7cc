package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

const (
	localUser   = "user"
	localUserID = "user_id"
)

func bearer(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func attach(c *fiber.Ctx, u *domain.Account) {
	c.Locals(localUser, u)
	c.Locals(localUserID, u.ID)
}

var errNoToken = &domain.PublicError{Kind: domain.ErrUnauthenticated, Msg: "authentication required"}

// identify resolves the bearer token to its account, reusing one attached earlier in the chain.
func identify(c *fiber.Ctx, auth *services.AuthService) (*domain.Account, error) {
	if u := current(c); u != nil {
		return u, nil
	}
	tok := bearer(c)
	if tok == "" {
		return nil, errNoToken
	}
	u, err := auth.Authenticate(c.UserContext(), tok)
	if err != nil {
		return nil, err
	}
	attach(c, u)
	return u, nil
}

// RequireUser rejects requests without a valid bearer token for a live account.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := identify(c, auth); err != nil {
			return fail(c, "auth.token", err)
		}
		return c.Next()
	}
}

// RequireAdmin authenticates like RequireUser and then insists on the admin role.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := identify(c, auth)
		if err != nil {
			return fail(c, "auth.token", err)
		}
		if !u.IsAdmin() {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}

// OptionalUser attaches the caller when a valid token is present and ignores it otherwise.
func OptionalUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tok := bearer(c); tok != "" {
			if u, err := auth.Authenticate(c.UserContext(), tok); err == nil {
				attach(c, u)
			}
		}
		return c.Next()
	}
}

func current(c *fiber.Ctx) *domain.Account {
	u, _ := c.Locals(localUser).(*domain.Account)
	return u
}
