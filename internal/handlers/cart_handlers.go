package handlers

import (
	"net/http"

	"github.com/01moynul/storefront-go/internal/cart"
	"github.com/01moynul/storefront-go/internal/middleware"
	"github.com/gin-gonic/gin"
)

//
// --- Cart Handlers (Login Required) ---
//

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}

// UpdateCartItemInput moves a line's quantity up or down.
type UpdateCartItemInput struct {
	Delta int `json:"delta" binding:"required"`
}

// GetCart is the handler for GET /v1/cart
// ?shipping_method= selects the fee used in the totals.
func (h *Handlers) GetCart(c *gin.Context) {
	// 1. --- Get User ---
	user := middleware.CurrentUser(c)

	// 2. --- Load Lines ---
	lines, err := h.Cart.List(c.Request.Context(), user.ID)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", user.ID).Msg("load cart")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": cart.MsgCartUnavailable})
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   lines,
		"totals":  cart.Compute(lines, c.Query("shipping_method")),
	})
}

// AddToCart is the handler for POST /v1/cart/items
func (h *Handlers) AddToCart(c *gin.Context) {
	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	res := h.Cart.Add(c.Request.Context(), middleware.CurrentUser(c).ID, input.ProductID)
	status := http.StatusOK
	if res.Message == cart.MsgAdded {
		status = http.StatusCreated
	}
	respondResult(c, res, status)
}

// UpdateCartItem is the handler for PATCH /v1/cart/items/:product_id
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	// 1. --- Get IDs ---
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}

	// 2. --- Bind Input ---
	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	// 3. --- Apply ---
	res := h.Cart.AdjustQuantity(c.Request.Context(), middleware.CurrentUser(c).ID, productID, input.Delta)
	respondResult(c, res, http.StatusOK)
}

// DeleteCartItem is the handler for DELETE /v1/cart/items/:id
// The id is the cart line id.
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	lineID, ok := idParam(c, "id")
	if !ok {
		return
	}

	res := h.Cart.Remove(c.Request.Context(), middleware.CurrentUser(c).ID, lineID)
	respondResult(c, res, http.StatusOK)
}
