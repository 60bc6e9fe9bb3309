package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupAPIKeyRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewAPIKeyMiddleware(key).Required())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setAuth  func(*http.Request)
		wantCode int
	}{
		{
			name:     "no key configured allows all",
			key:      "",
			setAuth:  func(*http.Request) {},
			wantCode: http.StatusOK,
		},
		{
			name:     "valid header key",
			key:      "secret-key",
			setAuth:  func(r *http.Request) { r.Header.Set("X-API-Key", "secret-key") },
			wantCode: http.StatusOK,
		},
		{
			name:     "valid bearer token",
			key:      "secret-key",
			setAuth:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-key") },
			wantCode: http.StatusOK,
		},
		{
			name:     "missing key rejected",
			key:      "secret-key",
			setAuth:  func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong key rejected",
			key:      "secret-key",
			setAuth:  func(r *http.Request) { r.Header.Set("X-API-Key", "guess") },
			wantCode: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupAPIKeyRouter(tt.key)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.setAuth(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAPIKeyMiddleware_QueryParam(t *testing.T) {
	router := setupAPIKeyRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/protected?api_key=secret-key", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
