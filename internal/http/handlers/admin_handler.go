package handlers

import (
	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler manages accounts. Order and catalog administration live on
// their own handlers behind the same RequireAdmin guard.
type AdminHandler struct {
	Accounts *services.AccountService
}

// GET /api/admin/users
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	page, err := h.Accounts.List(c.UserContext(), pageRequest(c))
	if err != nil {
		return fail(c, "admin.users.list", err)
	}
	return c.JSON(page)
}

type roleInput struct {
	Role string `json:"role"`
}

// PUT /api/admin/users/:id/role
func (h *AdminHandler) SetRole(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid user id")
	}
	var in roleInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	u, err := h.Accounts.SetRole(c.UserContext(), current(c), id, in.Role)
	if err != nil {
		return fail(c, "admin.users.role", err)
	}
	applog.Audit(c, "admin.users.role", map[string]any{"target": id, "role": u.Role})
	return c.JSON(u)
}

// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid user id")
	}
	if err := h.Accounts.Delete(c.UserContext(), current(c), id); err != nil {
		return fail(c, "admin.users.delete", err)
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"target": id})
	return c.SendStatus(fiber.StatusNoContent)
}
