package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "storefront/internal/log"
)

type RateRule struct {
	Max    int
	Window time.Duration
}

type Limits struct {
	Global       RateRule
	Login        RateRule
	Search       RateRule
	Availability RateRule
}

func DefaultLimits() Limits {
	return Limits{
		Global:       RateRule{Max: 60, Window: time.Minute},
		Login:        RateRule{Max: 5, Window: 10 * time.Minute},
		Search:       RateRule{Max: 20, Window: time.Minute},
		Availability: RateRule{Max: 15, Window: 30 * time.Second},
	}
}

type Options struct {
	BodyLimit int
	Limits    Limits
	// Storage backs every limiter; nil keeps fiber's per-process memory store.
	Storage fiber.Storage
}

// limit builds a limiter whose counters live under their own key suffix, so
// several limiters can share one Storage without counting each other's hits.
func limit(rule RateRule, store fiber.Storage, suffix, action string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rule.Max,
		Expiration: rule.Window,
		Storage:    store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + suffix
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, action, nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
}

// NewApp assembles middleware and routes. It does not listen.
func NewApp(d *Deps, opts Options) *fiber.App {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1 << 20
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		BodyLimit:    opts.BodyLimit,
		ErrorHandler: ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(fiberrecover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: applog.Writer()}))
	app.Use(helmet.New())
	app.Use(limit(opts.Limits.Global, opts.Storage, "global", "rate.global.hit"))

	auth := d.Auth
	user := RequireUser(auth)
	admin := RequireAdmin(auth)

	api := app.Group("/api")

	// Auth (login throttled)
	a := api.Group("/auth")
	a.Post("/register", d.AuthHandler.Register)
	a.Post("/login", limit(opts.Limits.Login, opts.Storage, "login", "rate.login.hit"), d.AuthHandler.Login)
	a.Get("/me", user, d.AuthHandler.Me)

	// Account
	u := api.Group("/users", user)
	u.Put("/profile", d.UserHandler.UpdateProfile)
	u.Put("/password", d.UserHandler.ChangePassword)
	u.Get("/addresses", d.UserHandler.Addresses)
	u.Post("/addresses", d.UserHandler.AddAddress)
	u.Put("/addresses/:addressId", d.UserHandler.UpdateAddress)
	u.Delete("/addresses/:addressId", d.UserHandler.DeleteAddress)
	u.Put("/addresses/:addressId/default", d.UserHandler.SetDefaultAddress)
	u.Get("/wishlist", d.WishlistHandler.List)
	u.Post("/wishlist/:productId", d.WishlistHandler.Save)
	u.Delete("/wishlist/:productId", d.WishlistHandler.Unsave)
	u.Get("/recently-viewed", d.UserHandler.RecentlyViewed)

	// Catalog; fixed paths before /:id
	p := api.Group("/products")
	p.Get("/", d.ProductHandler.List)
	p.Get("/search", limit(opts.Limits.Search, opts.Storage, "search", "rate.search.hit"), d.SearchHandler.Search)
	p.Get("/categories", d.CategoryHandler.List)
	p.Post("/", admin, d.ProductHandler.Create)
	p.Get("/:id", OptionalUser(auth), d.ProductHandler.Detail)
	p.Put("/:id", admin, d.ProductHandler.Update)
	p.Delete("/:id", admin, d.ProductHandler.Delete)
	p.Put("/:id/stock", admin, d.ProductHandler.SetStock)
	p.Get("/:id/availability", limit(opts.Limits.Availability, opts.Storage, "avail", "rate.availability.hit"), d.InventoryHandler.Check)
	p.Get("/:id/reviews", d.ProductHandler.Reviews)
	p.Post("/:id/reviews", user, d.ProductHandler.AddReview)

	// Orders
	o := api.Group("/orders", user)
	o.Post("/", d.OrderHandler.Place)
	o.Get("/", admin, d.OrderHandler.All)
	o.Get("/mine", d.OrderHandler.Mine)
	o.Get("/:id", d.OrderHandler.View)
	o.Post("/:id/cancel", d.OrderHandler.Cancel)
	o.Put("/:id/status", admin, d.OrderHandler.UpdateStatus)
	o.Put("/:id/payment", admin, d.OrderHandler.UpdatePayment)

	// Support
	s := api.Group("/support", user)
	s.Post("/", d.SupportHandler.Create)
	s.Get("/", d.SupportHandler.List)
	s.Get("/:id", d.SupportHandler.View)
	s.Get("/:id/messages", d.SupportHandler.Messages)
	s.Post("/:id/messages", d.SupportHandler.Reply)
	s.Put("/:id/status", admin, d.SupportHandler.UpdateStatus)
	s.Put("/:id/priority", admin, d.SupportHandler.UpdatePriority)
	s.Put("/:id/assign", admin, d.SupportHandler.Assign)

	// Admin
	adm := api.Group("/admin", admin)
	adm.Get("/users", d.AdminHandler.Users)
	adm.Put("/users/:id/role", d.AdminHandler.SetRole)
	adm.Delete("/users/:id", d.AdminHandler.DeleteUser)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})
	return app
}
