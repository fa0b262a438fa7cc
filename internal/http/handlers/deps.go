package handlers

import (
	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/messaging"
	"storefront/internal/services"
)

type Deps struct {
	Auth     *services.AuthService
	Accounts *services.AccountService
	Catalog  *services.CatalogService
	Orders   *services.OrderService
	Support  *services.SupportService

	AuthHandler      *AuthHandler
	UserHandler      *UserHandler
	WishlistHandler  *WishlistHandler
	CategoryHandler  *CategoryHandler
	ProductHandler   *ProductHandler
	SearchHandler    *SearchHandler
	InventoryHandler *InventoryHandler
	OrderHandler     *OrderHandler
	SupportHandler   *SupportHandler
	AdminHandler     *AdminHandler
}

func NewDeps(st services.Stores, cfg config.Config, events messaging.Publisher) *Deps {
	authSvc := services.NewAuthService(st.Accounts, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), events)
	accountSvc := services.NewAccountService(st.Accounts, st.Products, authSvc)
	catalogSvc := services.NewCatalogService(st.Products, st.Accounts)
	orderSvc := services.NewOrderService(st, events)
	supportSvc := services.NewSupportService(st, events)

	return &Deps{
		Auth:     authSvc,
		Accounts: accountSvc,
		Catalog:  catalogSvc,
		Orders:   orderSvc,
		Support:  supportSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc},
		UserHandler:      &UserHandler{Accounts: accountSvc},
		WishlistHandler:  &WishlistHandler{Accounts: accountSvc},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc},
		SearchHandler:    &SearchHandler{Catalog: catalogSvc},
		InventoryHandler: &InventoryHandler{Catalog: catalogSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc},
		SupportHandler:   &SupportHandler{Support: supportSvc},
		AdminHandler:     &AdminHandler{Accounts: accountSvc},
	}
}
