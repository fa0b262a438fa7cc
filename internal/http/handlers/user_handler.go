package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

// UserHandler serves the signed-in account's own profile, password,
// address book and browsing history.
type UserHandler struct {
	Accounts *services.AccountService
}

func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	var in services.ProfileInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	a, err := h.Accounts.UpdateProfile(c.UserContext(), current(c).ID, in)
	if err != nil {
		return fail(c, "user.profile.update", err)
	}
	return c.JSON(a)
}

type passwordInput struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var in passwordInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := h.Accounts.ChangePassword(c.UserContext(), current(c).ID, in.Current, in.New); err != nil {
		return fail(c, "user.password.change", err)
	}
	applog.Audit(c, "user.password.change", nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) Addresses(c *fiber.Ctx) error {
	list, err := h.Accounts.Addresses(c.UserContext(), current(c).ID)
	if err != nil {
		return fail(c, "user.addresses.list", err)
	}
	return c.JSON(list)
}

func (h *UserHandler) AddAddress(c *fiber.Ctx) error {
	var in domain.Address
	if err := parseBody(c, &in); err != nil {
		return err
	}
	list, err := h.Accounts.AddAddress(c.UserContext(), current(c).ID, in)
	if err != nil {
		return fail(c, "user.addresses.add", err)
	}
	return c.Status(fiber.StatusCreated).JSON(list)
}

func (h *UserHandler) UpdateAddress(c *fiber.Ctx) error {
	var in domain.Address
	if err := parseBody(c, &in); err != nil {
		return err
	}
	list, err := h.Accounts.UpdateAddress(c.UserContext(), current(c).ID, c.Params("addressId"), in)
	if err != nil {
		return fail(c, "user.addresses.update", err)
	}
	return c.JSON(list)
}

func (h *UserHandler) DeleteAddress(c *fiber.Ctx) error {
	list, err := h.Accounts.DeleteAddress(c.UserContext(), current(c).ID, c.Params("addressId"))
	if err != nil {
		return fail(c, "user.addresses.delete", err)
	}
	return c.JSON(list)
}

func (h *UserHandler) SetDefaultAddress(c *fiber.Ctx) error {
	list, err := h.Accounts.SetDefaultAddress(c.UserContext(), current(c).ID, c.Params("addressId"))
	if err != nil {
		return fail(c, "user.addresses.default", err)
	}
	return c.JSON(list)
}

func (h *UserHandler) RecentlyViewed(c *fiber.Ctx) error {
	list, err := h.Accounts.RecentlyViewed(c.UserContext(), current(c).ID)
	if err != nil {
		return fail(c, "user.recently_viewed", err)
	}
	return c.JSON(list)
}
