package routes

import (
	"net/http"

	"github.com/01moynul/storefront-go/internal/handlers"
	"github.com/01moynul/storefront-go/internal/middleware"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware tells the browser which origin may call the API.
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Allow the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)

		// 2. Credentials are only allowed for a named origin
		if allowedOrigin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		// 3. Allow the headers we actually use
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID, X-Session-ID")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE, PATCH")

		// 5. Handle the "Preflight" OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Options are the router settings that come from configuration.
type Options struct {
	AllowedOrigin string
	Resolver      middleware.IdentityResolver
	Sessions      middleware.SessionLookup
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()

	// CORS must run before anything can abort the request.
	router.Use(CORSMiddleware(opts.AllowedOrigin))
	router.Use(middleware.RequestID(), middleware.Logger(h.Logger), gin.Recovery())

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Public Product Routes ---
		v1.GET("/products", h.GetProducts)
		v1.GET("/products/search", h.SearchProducts)
		v1.GET("/products/:id", h.GetProduct)

		// --- Auth Provider Webhook ---
		v1.POST("/auth/events", h.ReceiveAuthEvent)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(opts.Resolver, opts.Sessions))
		{
			auth.GET("/profile/me", h.GetMyProfile)

			auth.GET("/cart", h.GetCart)
			auth.POST("/cart/items", h.AddToCart)
			auth.PATCH("/cart/items/:product_id", h.UpdateCartItem)
			auth.DELETE("/cart/items/:id", h.DeleteCartItem)

			auth.POST("/checkout", h.Checkout)

			auth.GET("/orders", h.GetMyOrders)
			auth.GET("/orders/:id", h.GetOrderDetails)

			auth.GET("/notifications", h.GetMyNotifications)
			auth.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)
		}
	}

	return router
}
