package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	sess, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return fail(c, "auth.register", err)
	}
	attach(c, sess.User)
	log.Audit(c, "auth.register", map[string]any{"email": sess.User.Email})
	return c.Status(fiber.StatusCreated).JSON(sess)
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in loginInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	email, ok := validate.Email(in.Email)
	if !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": in.Email, "reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": services.ErrBadCreds.Msg})
	}
	sess, err := h.Auth.Login(c.UserContext(), email, in.Password)
	if err != nil {
		if err == services.ErrBadCreds {
			log.Security(c, "auth.login.fail", map[string]any{"email": email})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": services.ErrBadCreds.Msg})
		}
		return fail(c, "auth.login", err)
	}
	attach(c, sess.User)
	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.JSON(sess)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Auth.Me(c.UserContext(), current(c).ID)
	if err != nil {
		return fail(c, "auth.me", err)
	}
	return c.JSON(u)
}
