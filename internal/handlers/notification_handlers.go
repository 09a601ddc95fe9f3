package handlers

import (
	"net/http"

	"github.com/01moynul/storefront-go/internal/middleware"
	"github.com/gin-gonic/gin"
)

//
// --- Notification Handlers ---
//

// GetMyNotifications is the handler for GET /v1/notifications
// It retrieves the logged-in user's notifications, newest first.
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	from, to, ok := pageRange(c)
	if !ok {
		return
	}

	notifications, err := h.Notifications.List(c.Request.Context(), middleware.CurrentUser(c).ID, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": notifications})
}

// MarkNotificationAsRead is the handler for PATCH /v1/notifications/:id/read
func (h *Handlers) MarkNotificationAsRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	res := h.Notifications.MarkRead(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	respondResult(c, res, http.StatusOK)
}
