package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds configuration for CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API cross-origin.
	// "*" allows any origin.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	AllowCredentials bool

	// MaxAge is how long, in seconds, preflight results can be cached.
	MaxAge int

	// AllowWildcard enables subdomain patterns such as *.example.com.
	AllowWildcard bool
}

// DefaultCORSConfig returns a CORS configuration that allows no origins.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			RequestIDHeader,
		},
		ExposedHeaders: []string{
			RequestIDHeader,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		MaxAge: 86400,
	}
}

type originMatcher struct {
	allowAll bool
	exact    map[string]bool
	suffixes []string
}

func newOriginMatcher(cfg CORSConfig) originMatcher {
	m := originMatcher{exact: make(map[string]bool, len(cfg.AllowedOrigins))}
	for _, origin := range cfg.AllowedOrigins {
		switch {
		case origin == "*":
			m.allowAll = true
		case cfg.AllowWildcard && strings.HasPrefix(origin, "*."):
			m.suffixes = append(m.suffixes, strings.ToLower(origin[1:]))
		default:
			m.exact[strings.ToLower(origin)] = true
		}
	}
	return m
}

func (m originMatcher) allowed(origin string) bool {
	if m.allowAll {
		return true
	}
	origin = strings.ToLower(origin)
	if m.exact[origin] {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(origin, s) {
			return true
		}
	}
	return false
}

// CORS returns middleware that handles Cross-Origin Resource Sharing.
// Disallowed origins are served without CORS headers; the browser blocks
// the response.
func CORS(config CORSConfig) gin.HandlerFunc {
	allowedMethods := strings.Join(config.AllowedMethods, ", ")
	allowedHeaders := strings.Join(config.AllowedHeaders, ", ")
	exposedHeaders := strings.Join(config.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)
	matcher := newOriginMatcher(config)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !matcher.allowed(origin) {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")

		// A credentialed response must name the origin explicitly.
		if matcher.allowAll && !config.AllowCredentials {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if config.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if exposedHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposedHeaders)
		}
		c.Next()
	}
}

//Personal.AI order the ending
