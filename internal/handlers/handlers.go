package handlers

import (
	"net/http"
	"strconv"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/cart"
	"github.com/01moynul/storefront-go/internal/catalog"
	"github.com/01moynul/storefront-go/internal/identity"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/01moynul/storefront-go/internal/notification"
	"github.com/01moynul/storefront-go/internal/order"
	"github.com/01moynul/storefront-go/internal/payment"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Catalog       *catalog.Reader
	Cart          *cart.Manager
	Orders        *order.Orchestrator
	Payment       *payment.Bridge
	Notifications *notification.Reader
	Broker        *identity.Broker
	WebhookSecret string
	Logger        zerolog.Logger
}

// respondError writes the caller-facing message of err with its mapped
// status. Causes are logged, never returned.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "message": apperr.Message(err)})
}

// resultStatus maps a failed mutation message onto an HTTP status.
// cart and notification share the "User not logged in" text.
func resultStatus(res models.Result) int {
	switch res.Message {
	case cart.MsgNotLoggedIn:
		return http.StatusUnauthorized
	case cart.MsgProductNotFound, cart.MsgNotInCart, notification.MsgNotFound:
		return http.StatusNotFound
	case cart.MsgQuantityTooLow:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondResult(c *gin.Context, res models.Result, okStatus int) {
	if res.Success {
		c.JSON(okStatus, res)
		return
	}
	c.JSON(resultStatus(res), res)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

// maxPageSize bounds the number of rows one page may ask for.
const maxPageSize = 100

// pageRange reads the inclusive from/to query parameters.
func pageRange(c *gin.Context) (int, int, bool) {
	from, err := strconv.Atoi(c.DefaultQuery("from", strconv.Itoa(catalog.DefaultFrom)))
	if err != nil || from < 0 {
		badRequest(c, "Invalid 'from' parameter")
		return 0, 0, false
	}
	to, err := strconv.Atoi(c.DefaultQuery("to", strconv.Itoa(catalog.DefaultTo)))
	if err != nil || to < from {
		badRequest(c, "Invalid 'to' parameter")
		return 0, 0, false
	}
	if to-from+1 > maxPageSize {
		badRequest(c, "Page range exceeds "+strconv.Itoa(maxPageSize)+" rows")
		return 0, 0, false
	}
	return from, to, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
