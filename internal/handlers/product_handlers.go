package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//
// --- Product Handlers (Public) ---
//

// GetProducts is the handler for GET /v1/products
// Optional ?brand= may be repeated or comma separated.
func (h *Handlers) GetProducts(c *gin.Context) {
	// 1. --- Parse Filters ---
	from, to, ok := pageRange(c)
	if !ok {
		return
	}
	var brands []string
	for _, raw := range c.QueryArray("brand") {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brands = append(brands, b)
			}
		}
	}

	// 2. --- Query Catalog ---
	products, err := h.Catalog.List(c.Request.Context(), brands, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

// SearchProducts is the handler for GET /v1/products/search?q=
func (h *Handlers) SearchProducts(c *gin.Context) {
	from, to, ok := pageRange(c)
	if !ok {
		return
	}

	products, err := h.Catalog.Search(c.Request.Context(), c.Query("q"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

// GetProduct is the handler for GET /v1/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	product, err := h.Catalog.Detail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}
