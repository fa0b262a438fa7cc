package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type WishlistHandler struct {
	Accounts *services.AccountService
}

func (h *WishlistHandler) List(c *fiber.Ctx) error {
	items, err := h.Accounts.Wishlist(c.UserContext(), current(c).ID)
	if err != nil {
		return fail(c, "wishlist.list", err)
	}
	return c.JSON(items)
}

func (h *WishlistHandler) Save(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("productId"))
	if !ok {
		return badRequest(c, "productId", "invalid product id")
	}
	items, err := h.Accounts.AddToWishlist(c.UserContext(), current(c).ID, pid)
	if err != nil {
		return fail(c, "wishlist.save", err)
	}
	applog.Audit(c, "wishlist.save", map[string]any{"product": pid})
	return c.JSON(items)
}

func (h *WishlistHandler) Unsave(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("productId"))
	if !ok {
		return badRequest(c, "productId", "invalid product id")
	}
	items, err := h.Accounts.RemoveFromWishlist(c.UserContext(), current(c).ID, pid)
	if err != nil {
		return fail(c, "wishlist.unsave", err)
	}
	applog.Audit(c, "wishlist.unsave", map[string]any{"product": pid})
	return c.JSON(items)
}
