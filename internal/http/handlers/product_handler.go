package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	f := domain.ProductFilter{PageRequest: pageRequest(c)}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		cat, ok := domain.ParseCategory(raw)
		if !ok {
			return badRequest(c, "category", "unknown category")
		}
		f.Category = cat
	}
	var ok bool
	if f.MinPrice, ok = priceQuery(c.Query("min_price")); !ok {
		return badRequest(c, "min_price", "min_price must be a non-negative number")
	}
	if f.MaxPrice, ok = priceQuery(c.Query("max_price")); !ok {
		return badRequest(c, "max_price", "max_price must be a non-negative number")
	}
	if raw := c.Query("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "in_stock", "in_stock must be true or false")
		}
		f.InStock = v
	}
	if f.Sort, ok = domain.ParseProductSort(c.Query("sort")); !ok {
		return badRequest(c, "sort", "unknown sort")
	}
	page, err := h.Catalog.List(c.UserContext(), f)
	if err != nil {
		return fail(c, "catalog.list", err)
	}
	return c.JSON(page)
}

// priceQuery parses an optional price bound; empty means unbounded.
func priceQuery(raw string) (*decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, false
	}
	return &d, true
}

func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "This item is no longer available"})
	}
	var viewer string
	if u := current(c); u != nil {
		viewer = u.ID
	}
	p, err := h.Catalog.Get(c.UserContext(), id, viewer)
	if err != nil {
		return fail(c, "product.view", err)
	}
	return c.JSON(p)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := h.Catalog.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "admin.product.create", err)
	}
	log.Audit(c, "admin.product.create", map[string]any{"product": p.ID, "stock": p.Stock})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid product id")
	}
	var in services.ProductInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := h.Catalog.Update(c.UserContext(), id, in)
	if err != nil {
		return fail(c, "admin.product.update", err)
	}
	log.Audit(c, "admin.product.update", map[string]any{"product": p.ID})
	return c.JSON(p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid product id")
	}
	if err := h.Catalog.Delete(c.UserContext(), id); err != nil {
		return fail(c, "admin.product.delete", err)
	}
	log.Audit(c, "admin.product.delete", map[string]any{"product": id})
	return c.SendStatus(fiber.StatusNoContent)
}

type stockInput struct {
	Stock *int `json:"stock"`
}

func (h *ProductHandler) SetStock(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid product id")
	}
	var in stockInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if in.Stock == nil {
		return badRequest(c, "stock", "stock is required")
	}
	p, err := h.Catalog.SetStock(c.UserContext(), id, *in.Stock)
	if err != nil {
		return fail(c, "admin.inventory.update", err)
	}
	log.Audit(c, "admin.inventory.update", map[string]any{"product": id, "stock": p.Stock})
	return c.JSON(p)
}

func (h *ProductHandler) Reviews(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid product id")
	}
	page, err := h.Catalog.Reviews(c.UserContext(), id, pageRequest(c))
	if err != nil {
		return fail(c, "product.reviews", err)
	}
	return c.JSON(page)
}

type reviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ProductHandler) AddReview(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid product id")
	}
	var in reviewInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	r, err := h.Catalog.AddReview(c.UserContext(), current(c), id, in.Rating, in.Comment)
	if err != nil {
		return fail(c, "product.review", err)
	}
	log.Audit(c, "product.review", map[string]any{"product": id, "rating": r.Rating})
	return c.Status(fiber.StatusCreated).JSON(r)
}
