package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var in services.PlaceOrderInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.UserID = current(c).ID
	o, err := h.Orders.Place(c.UserContext(), in)
	if err != nil {
		return fail(c, "order.place", err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id": o.ID,
		"items":    len(o.Items),
		"total":    o.Total.StringFixed(2),
	})
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *OrderHandler) Mine(c *fiber.Ctx) error {
	page, err := h.Orders.ListMine(c.UserContext(), current(c).ID, pageRequest(c))
	if err != nil {
		return fail(c, "orders.history", err)
	}
	return c.JSON(page)
}

// All is the admin listing, optionally narrowed to one status.
func (h *OrderHandler) All(c *fiber.Ctx) error {
	page, err := h.Orders.ListAll(c.UserContext(), c.Query("status"), pageRequest(c))
	if err != nil {
		return fail(c, "admin.orders.list", err)
	}
	return c.JSON(page)
}

func (h *OrderHandler) View(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}
	o, err := h.Orders.Get(c.UserContext(), current(c), id)
	if err != nil {
		return fail(c, "order.view", err)
	}
	return c.JSON(o)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid order id")
	}
	o, err := h.Orders.Cancel(c.UserContext(), current(c), id)
	if err != nil {
		return fail(c, "order.cancel", err)
	}
	applog.Audit(c, "order.cancel", map[string]any{"order_id": o.ID})
	return c.JSON(o)
}

type orderStatusInput struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid order id")
	}
	var in orderStatusInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), current(c), id, in.Status, in.TrackingNumber)
	if err != nil {
		return fail(c, "admin.orders.update", err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": o.ID, "status": o.Status})
	return c.JSON(o)
}

type paymentInput struct {
	PaymentStatus string `json:"payment_status"`
}

func (h *OrderHandler) UpdatePayment(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid order id")
	}
	var in paymentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.UpdatePayment(c.UserContext(), current(c), id, in.PaymentStatus)
	if err != nil {
		return fail(c, "admin.orders.payment", err)
	}
	applog.Audit(c, "admin.orders.payment", map[string]any{"order_id": o.ID, "payment_status": o.PaymentStatus})
	return c.JSON(o)
}
