package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestEngine mounts handlers in front of a GET and POST /api/v1/charge
// route answering "ok".
func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/api/v1/charge", ok)
	r.POST("/api/v1/charge", ok)
	r.OPTIONS("/api/v1/charge", ok)
	return r
}

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, "/api/v1/charge", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	newTestEngine(CORS(cfg)).ServeHTTP(w, r)
	return w
}

func withOrigins(origins ...string) CORSConfig {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins
	return cfg
}

func TestCORS_Preflight(t *testing.T) {
	w := corsRequest(t, withOrigins("https://app.example.com"), http.MethodOptions, "https://app.example.com")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Body.String())
}

func TestCORS_OriginMatching(t *testing.T) {
	wildcardSub := withOrigins("*.example.com")
	wildcardSub.AllowWildcard = true
	literalSub := withOrigins("*.example.com")

	tests := []struct {
		name   string
		cfg    CORSConfig
		origin string
		want   string
	}{
		{"exact", withOrigins("https://a.com", "https://b.com"), "https://b.com", "https://b.com"},
		{"case insensitive", withOrigins("https://App.Example.com"), "https://app.example.com", "https://app.example.com"},
		{"disallowed", withOrigins("https://allowed.com"), "https://evil.com", ""},
		{"any origin", withOrigins("*"), "https://anywhere.org", "*"},
		{"subdomain pattern", wildcardSub, "https://app.example.com", "https://app.example.com"},
		{"subdomain pattern miss", wildcardSub, "https://other.com", ""},
		{"pattern without AllowWildcard", literalSub, "https://app.example.com", ""},
		{"no origin header", withOrigins("*"), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := corsRequest(t, tt.cfg, http.MethodPost, tt.origin)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ok", w.Body.String())
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_CredentialsEchoOrigin(t *testing.T) {
	cfg := withOrigins("*")
	cfg.AllowCredentials = true

	w := corsRequest(t, cfg, http.MethodGet, "https://specific.com")
	assert.Equal(t, "https://specific.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ExposedAndVaryHeaders(t *testing.T) {
	w := corsRequest(t, withOrigins("https://app.example.com"), http.MethodGet, "https://app.example.com")

	exposed := w.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, RequestIDHeader)
	assert.Contains(t, exposed, "X-RateLimit-Remaining")

	vary := w.Header().Values("Vary")
	assert.Contains(t, vary, "Origin")
	assert.Contains(t, vary, "Access-Control-Request-Method")
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Contains(t, cfg.AllowedMethods, http.MethodPost)
	assert.NotContains(t, cfg.AllowedMethods, http.MethodDelete)
	assert.False(t, cfg.AllowCredentials)
	assert.False(t, cfg.AllowWildcard)
}

//Personal.AI order the ending
