package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/01moynul/storefront-go/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	// UserKey is the gin context key holding the resolved *models.User.
	UserKey = "user"

	SessionHeader = "X-Session-ID"
)

// IdentityResolver turns a bearer credential into a user.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*models.User, error)
}

// SessionLookup returns the user of a signed-in session, or nil.
type SessionLookup interface {
	Current(sessionID string) *models.User
}

// AuthMiddleware creates a gin.HandlerFunc that admits a request carrying
// either a bearer credential or the id of a signed-in session.
func AuthMiddleware(resolver IdentityResolver, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Bearer Credential ---
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				abortUnauthorized(c, "Invalid token format (must be Bearer)")
				return
			}

			user, err := resolver.Resolve(c.Request.Context(), parts[1])
			if err != nil || user == nil {
				abortUnauthorized(c, "Invalid or expired token")
				return
			}
			setUser(c, user)
			return
		}

		// 2. --- Session Id ---
		if sessionID := c.GetHeader(SessionHeader); sessionID != "" {
			user := sessions.Current(sessionID)
			if user == nil {
				abortUnauthorized(c, "Session is not signed in")
				return
			}
			setUser(c, user)
			return
		}

		abortUnauthorized(c, "Authorization header required")
	}
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(UserKey, user)
	c.Next()
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}

// CurrentUser returns the user set by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
