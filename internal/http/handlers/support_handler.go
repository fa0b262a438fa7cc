package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

// SupportHandler exposes the ticket desk. Customers see their own tickets;
// triage (priority, assignment) is admin-only and enforced at routing.
type SupportHandler struct {
	Support *services.SupportService
}

func ticketID(c *fiber.Ctx) (string, bool) {
	return validate.ID(c.Params("id"))
}

func (h *SupportHandler) Create(c *fiber.Ctx) error {
	var in services.CreateTicketInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	t, err := h.Support.Create(c.UserContext(), current(c), in)
	if err != nil {
		return fail(c, "ticket.open", err)
	}
	applog.Audit(c, "ticket.open", map[string]any{"ticket_id": t.ID, "category": t.Category, "priority": t.Priority})
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *SupportHandler) List(c *fiber.Ctx) error {
	q := services.TicketQuery{
		Status:      c.Query("status"),
		Priority:    c.Query("priority"),
		AssignedTo:  c.Query("assigned_to"),
		PageRequest: pageRequest(c),
	}
	page, err := h.Support.List(c.UserContext(), current(c), q)
	if err != nil {
		return fail(c, "ticket.list", err)
	}
	return c.JSON(page)
}

func (h *SupportHandler) View(c *fiber.Ctx) error {
	id, ok := ticketID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ticket not found"})
	}
	t, err := h.Support.Get(c.UserContext(), current(c), id)
	if err != nil {
		return fail(c, "ticket.view", err)
	}
	return c.JSON(t)
}

func (h *SupportHandler) Messages(c *fiber.Ctx) error {
	id, ok := ticketID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ticket not found"})
	}
	page, err := h.Support.Messages(c.UserContext(), current(c), id, pageRequest(c))
	if err != nil {
		return fail(c, "ticket.messages", err)
	}
	return c.JSON(page)
}

type messageInput struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

func (h *SupportHandler) Reply(c *fiber.Ctx) error {
	id, ok := ticketID(c)
	if !ok {
		return badRequest(c, "id", "invalid ticket id")
	}
	var in messageInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	t, err := h.Support.AddMessage(c.UserContext(), current(c), id, in.Body, in.Attachments)
	if err != nil {
		return fail(c, "ticket.reply", err)
	}
	applog.Audit(c, "ticket.reply", map[string]any{"ticket_id": t.ID, "status": t.Status})
	return c.JSON(t)
}

type ticketStatusInput struct {
	Status string `json:"status"`
}

func (h *SupportHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := ticketID(c)
	if !ok {
		return badRequest(c, "id", "invalid ticket id")
	}
	var in ticketStatusInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	t, err := h.Support.UpdateStatus(c.UserContext(), current(c), id, in.Status)
	if err != nil {
		return fail(c, "ticket.status", err)
	}
	applog.Audit(c, "ticket.status", map[string]any{"ticket_id": t.ID, "status": t.Status})
	return c.JSON(t)
}

type priorityInput struct {
	Priority string `json:"priority"`
}

func (h *SupportHandler) UpdatePriority(c *fiber.Ctx) error {
	id, ok := ticketID(c)
	if !ok {
		return badRequest(c, "id", "invalid ticket id")
	}
	var in priorityInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	t, err := h.Support.UpdatePriority(c.UserContext(), id, in.Priority)
	if err != nil {
		return fail(c, "admin.ticket.priority", err)
	}
	applog.Audit(c, "admin.ticket.priority", map[string]any{"ticket_id": t.ID, "priority": t.Priority})
	return c.JSON(t)
}

type assignInput struct {
	AssigneeID string `json:"assignee_id"`
}

func (h *SupportHandler) Assign(c *fiber.Ctx) error {
	id, ok := ticketID(c)
	if !ok {
		return badRequest(c, "id", "invalid ticket id")
	}
	var in assignInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	t, err := h.Support.Assign(c.UserContext(), id, in.AssigneeID)
	if err != nil {
		return fail(c, "admin.ticket.assign", err)
	}
	applog.Audit(c, "admin.ticket.assign", map[string]any{"ticket_id": t.ID, "assignee": t.AssignedTo})
	return c.JSON(t)
}
