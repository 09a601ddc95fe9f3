package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/01moynul/storefront-go/internal/identity"
	"github.com/01moynul/storefront-go/internal/middleware"
	"github.com/gin-gonic/gin"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// GetMyProfile is the handler for GET /v1/profile/me
func (h *Handlers) GetMyProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": middleware.CurrentUser(c)})
}

// AuthEvent is the session change posted by the auth provider.
type AuthEvent struct {
	Event       identity.EventKind `json:"event" binding:"required"`
	SessionID   string             `json:"session_id" binding:"required"`
	AccessToken string             `json:"access_token"`
}

// ReceiveAuthEvent is the handler for POST /v1/auth/events
// It forwards sign-in and sign-out events to the session manager.
func (h *Handlers) ReceiveAuthEvent(c *gin.Context) {
	// 1. --- Check Shared Secret ---
	got := c.GetHeader(WebhookSecretHeader)
	if h.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Invalid webhook secret"})
		return
	}

	// 2. --- Bind & Validate JSON ---
	var input AuthEvent
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}
	if input.Event != identity.SignedIn && input.Event != identity.SignedOut {
		badRequest(c, "Unsupported event")
		return
	}

	// 3. --- Publish ---
	err := h.Broker.Publish(c.Request.Context(), identity.Event{
		Kind:       input.Event,
		SessionID:  input.SessionID,
		Credential: input.AccessToken,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Event not delivered"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Event accepted"})
}
