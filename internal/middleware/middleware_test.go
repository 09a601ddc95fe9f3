package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/01moynul/storefront-go/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]*models.User

func (f fakeResolver) Resolve(_ context.Context, credential string) (*models.User, error) {
	if u, ok := f[credential]; ok {
		return u, nil
	}
	return nil, errors.New("bad credential")
}

type fakeSessions map[string]*models.User

func (f fakeSessions) Current(id string) *models.User { return f[id] }

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(logger zerolog.Logger) *gin.Engine {
	jane := &models.User{ID: "u-1", Email: "jane@example.com"}
	r := gin.New()
	r.Use(RequestID(), Logger(logger))
	r.GET("/me", AuthMiddleware(fakeResolver{"good": jane}, fakeSessions{"s-1": jane}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"bearer", map[string]string{"Authorization": "Bearer good"}, http.StatusOK},
		{"session", map[string]string{SessionHeader: "s-1"}, http.StatusOK},
		{"no credential", nil, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "Basic good"}, http.StatusUnauthorized},
		{"bad token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"unknown session", map[string]string{SessionHeader: "s-2"}, http.StatusUnauthorized},
		{"bearer wins over session", map[string]string{"Authorization": "Bearer nope", SessionHeader: "s-1"}, http.StatusUnauthorized},
	}
	r := newRouter(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.status == http.StatusOK {
				assert.Equal(t, "u-1", body["id"])
			} else {
				assert.Equal(t, false, body["success"])
				assert.NotEmpty(t, body["message"])
			}
		})
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-7", w.Header().Get(RequestIDHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-7", line["request_id"])
	assert.Equal(t, "u-1", line["user_id"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Equal(t, "info", line["level"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}
