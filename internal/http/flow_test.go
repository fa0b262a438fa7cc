package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/http/handlers"
)

func stockOf(t *testing.T, h *harness, pid string) int {
	t.Helper()
	resp := h.call(t, "GET", "/api/products/"+pid, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[domain.Product](t, resp).Stock
}

func TestOrderLifecycle(t *testing.T) {
	h := newHarness(t, handlers.Options{})
	admin := h.adminToken(t)
	cust, _ := h.register(t, "buyer")
	lamp := h.product(t, admin, "Desk Lamp", "25.00", 3)
	mug := h.product(t, admin, "Mug", "8.50", 10)

	// one short line fails the whole order
	resp := h.call(t, "POST", "/api/orders", cust, map[string]any{
		"items": []map[string]any{
			{"product_id": mug, "quantity": 2},
			{"product_id": lamp, "quantity": 4},
		},
		"shipping_address": shipTo,
		"payment_method":   "paypal",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 10, stockOf(t, h, mug))
	assert.Equal(t, 3, stockOf(t, h, lamp))

	resp = h.call(t, "POST", "/api/orders", cust, map[string]any{
		"items": []map[string]any{
			{"product_id": mug, "quantity": 2},
			{"product_id": lamp, "quantity": 1},
			{"product_id": mug, "quantity": 1},
		},
		"shipping_address": shipTo,
		"payment_method":   "paypal",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[domain.Order](t, resp)
	assert.Len(t, order.Items, 2, "repeated products are merged")
	assert.Equal(t, "50.5", order.Total.String())
	assert.Equal(t, 7, stockOf(t, h, mug))
	assert.Equal(t, 2, stockOf(t, h, lamp))

	resp = h.call(t, "GET", "/api/products/"+lamp+"/availability", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "LOW_STOCK", decode[domain.Availability](t, resp).Status)

	// shipped orders cannot be cancelled by the customer
	resp = h.call(t, "PUT", "/api/orders/"+order.ID+"/status", admin, map[string]string{"status": "shipped", "tracking_number": "1Z999"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1Z999", decode[domain.Order](t, resp).TrackingNumber)
	resp = h.call(t, "POST", "/api/orders/"+order.ID+"/cancel", cust, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// illegal transition
	resp = h.call(t, "PUT", "/api/orders/"+order.ID+"/status", admin, map[string]string{"status": "processing"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.call(t, "PUT", "/api/orders/"+order.ID+"/payment", admin, map[string]string{"payment_status": "paid"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.PaymentPaid, decode[domain.Order](t, resp).PaymentStatus)

	second := placeOrder(t, h, cust, mug, 5)
	assert.Equal(t, 2, stockOf(t, h, mug))
	resp = h.call(t, "POST", "/api/orders/"+second.ID+"/cancel", cust, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.OrderCancelled, decode[domain.Order](t, resp).Status)
	assert.Equal(t, 7, stockOf(t, h, mug), "cancel restocks")

	resp = h.call(t, "GET", "/api/orders/mine", cust, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[domain.Page[domain.Order]](t, resp).Total)

	assert.Contains(t, h.events.Types(), "order.placed")
	assert.Contains(t, h.events.Types(), "order.cancelled")
}

func TestCatalogBrowsing(t *testing.T) {
	h := newHarness(t, handlers.Options{})
	admin := h.adminToken(t)
	cust, _ := h.register(t, "browser")
	cheap := h.product(t, admin, "Cheap Cable", "4.00", 0)
	h.product(t, admin, "Fancy Headphones", "199.00", 8)

	resp := h.call(t, "GET", "/api/products/categories", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode[[]string](t, resp), "electronics")

	resp = h.call(t, "GET", "/api/products?in_stock=true&sort=price_asc", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[domain.Page[domain.Product]](t, resp)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Fancy Headphones", page.Items[0].Name)

	resp = h.call(t, "GET", "/api/products?max_price=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = decode[domain.Page[domain.Product]](t, resp)
	require.Len(t, page.Items, 1)
	assert.Equal(t, cheap, page.Items[0].ID)

	resp = h.call(t, "GET", "/api/products/search?q=headphones", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[domain.Page[domain.Product]](t, resp).Total)

	resp = h.call(t, "GET", "/api/products/"+cheap+"/availability", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OUT_OF_STOCK", decode[domain.Availability](t, resp).Status)

	// signed-in views are remembered, anonymous ones are not
	h.call(t, "GET", "/api/products/"+cheap, cust, nil)
	resp = h.call(t, "GET", "/api/users/recently-viewed", cust, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	viewed := decode[[]domain.ProductSummary](t, resp)
	require.Len(t, viewed, 1)
	assert.Equal(t, cheap, viewed[0].ID)

	resp = h.call(t, "POST", "/api/products/"+cheap+"/reviews", cust, map[string]any{"rating": 4, "comment": "does the job"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = h.call(t, "POST", "/api/products/"+cheap+"/reviews", cust, map[string]any{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = h.call(t, "GET", "/api/products/"+cheap+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[domain.Page[domain.Review]](t, resp).Total)

	resp = h.call(t, "PUT", "/api/products/"+cheap+"/stock", admin, map[string]int{"stock": 40})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 40, decode[domain.Product](t, resp).Stock)

	resp = h.call(t, "DELETE", "/api/products/"+cheap, admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.call(t, "GET", "/api/products/"+cheap, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAccountEndpoints(t *testing.T) {
	h := newHarness(t, handlers.Options{})
	admin := h.adminToken(t)
	tok, _ := h.register(t, "homebody")
	pid := h.product(t, admin, "Blanket", "30.00", 4)

	resp := h.call(t, "PUT", "/api/users/profile", tok, map[string]string{"first_name": "Home", "last_name": "Body"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Home", decode[domain.Account](t, resp).FirstName)

	resp = h.call(t, "POST", "/api/users/addresses", tok, shipTo)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	addrs := decode[[]domain.Address](t, resp)
	require.Len(t, addrs, 1)
	assert.True(t, addrs[0].IsDefault, "first address becomes the default")

	// order using the saved default address
	resp = h.call(t, "POST", "/api/orders", tok, map[string]any{
		"items":          []map[string]any{{"product_id": pid, "quantity": 1}},
		"payment_method": "cash_on_delivery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "London", decode[domain.Order](t, resp).ShippingAddress.City)

	resp = h.call(t, "POST", "/api/users/wishlist/"+pid, tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.ProductSummary](t, resp), 1)
	resp = h.call(t, "DELETE", "/api/users/wishlist/"+pid, tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]domain.ProductSummary](t, resp))

	resp = h.call(t, "PUT", "/api/users/password", tok, map[string]string{"current_password": "wrong-one1", "new_password": "N3wPassword"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = h.call(t, "PUT", "/api/users/password", tok, map[string]string{"current_password": "Passw0rd1", "new_password": "N3wPassword"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.call(t, "POST", "/api/auth/login", "", map[string]string{"email": "homebody@shop.test", "password": "N3wPassword"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSupportDesk(t *testing.T) {
	h := newHarness(t, handlers.Options{})
	admin := h.adminToken(t)
	cust, _ := h.register(t, "needshelp")
	other, _ := h.register(t, "nosy")

	resp := h.call(t, "POST", "/api/support", cust, map[string]string{
		"subject":     "Parcel never arrived",
		"description": "Tracking has not moved for a week.",
		"category":    "shipping",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := decode[domain.Ticket](t, resp)
	assert.Equal(t, domain.TicketOpen, ticket.Status)
	assert.Equal(t, 1, ticket.MessageCount)

	resp = h.call(t, "GET", "/api/support/"+ticket.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = h.call(t, "GET", "/api/support", other, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[domain.Page[domain.Ticket]](t, resp).Items)

	resp = h.call(t, "POST", "/api/support/"+ticket.ID+"/messages", admin, map[string]string{"body": "Looking into it."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[domain.Ticket](t, resp).MessageCount)

	resp = h.call(t, "PUT", "/api/support/"+ticket.ID+"/status", cust, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = h.call(t, "PUT", "/api/support/"+ticket.ID+"/priority", admin, map[string]string{"priority": "urgent"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.PriorityUrgent, decode[domain.Ticket](t, resp).Priority)

	resp = h.call(t, "PUT", "/api/support/"+ticket.ID+"/status", admin, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, decode[domain.Ticket](t, resp).ResolvedAt)

	resp = h.call(t, "GET", "/api/support/"+ticket.ID+"/messages", cust, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[domain.Page[domain.TicketMessage]](t, resp)
	assert.Equal(t, 2, msgs.Total)

	resp = h.call(t, "PUT", "/api/support/"+ticket.ID+"/status", admin, map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.call(t, "POST", "/api/support/"+ticket.ID+"/messages", cust, map[string]string{"body": "Still nothing"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Contains(t, h.events.Types(), "ticket.opened")
	assert.Contains(t, h.events.Types(), "ticket.status_changed")
}
