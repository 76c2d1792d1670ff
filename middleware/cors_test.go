package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"traffic-counts-api/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SetupCORS(config.CORSConfig{AllowedOrigins: origins}))
	r.GET("/api/hourly_data", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSetupCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    string
		origin     string
		wantStatus int
		wantHeader string
	}{
		{"listed origin", "http://localhost:3000, https://dash.example.com", "https://dash.example.com", http.StatusOK, "https://dash.example.com"},
		{"unlisted origin", "http://localhost:3000", "https://evil.example.com", http.StatusForbidden, ""},
		{"wildcard", "*", "https://anything.example.com", http.StatusOK, "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(tt.origins)
			req := httptest.NewRequest(http.MethodGet, "/api/hourly_data", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantHeader, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestSetupCORSPreflight(t *testing.T) {
	r := newRouter("http://localhost:3000")
	req := httptest.NewRequest(http.MethodOptions, "/api/hourly_data", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	allow := w.Header().Get("Access-Control-Allow-Methods")
	assert.Contains(t, allow, "GET")
	assert.NotContains(t, allow, "DELETE")
}
