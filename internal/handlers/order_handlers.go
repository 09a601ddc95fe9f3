package handlers

import (
	"net/http"

	"github.com/01moynul/storefront-go/internal/middleware"
	"github.com/01moynul/storefront-go/internal/order"
	"github.com/01moynul/storefront-go/internal/payment"
	"github.com/gin-gonic/gin"
)

//
// --- Order Handlers (Login Required) ---
//

// Checkout is the handler for POST /v1/checkout
// It charges the stored cart and places the order.
func (h *Handlers) Checkout(c *gin.Context) {
	// 1. --- Get User ---
	user := middleware.CurrentUser(c)

	// 2. --- Bind Input ---
	var input payment.CheckoutRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	// 3. --- Pay & Place ---
	orderID, err := h.Payment.Checkout(c.Request.Context(), user, input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 4. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  order.OrderPlacedMessage(orderID),
		"order_id": orderID,
	})
}

// GetMyOrders is the handler for GET /v1/orders
func (h *Handlers) GetMyOrders(c *gin.Context) {
	from, to, ok := pageRange(c)
	if !ok {
		return
	}

	orders, err := h.Orders.Orders(c.Request.Context(), middleware.CurrentUser(c).ID, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// GetOrderDetails is the handler for GET /v1/orders/:id
// Orders of other users answer 404.
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	o, err := h.Orders.Get(c.Request.Context(), middleware.CurrentUser(c).ID, orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}
