package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
	"storefront/internal/validate"
)

// InventoryHandler answers stock-level probes without exposing exact counts
// above the low-stock threshold.
type InventoryHandler struct {
	Catalog *services.CatalogService
}

func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid product id")
	}
	avail, err := h.Catalog.Availability(c.UserContext(), id)
	if err != nil {
		return fail(c, "availability", err)
	}
	return c.JSON(avail)
}
