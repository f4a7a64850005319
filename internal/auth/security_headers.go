package auth

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware sets the response headers of a JSON-only API.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		// Nothing served here is meant to load subresources or be framed
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; form-action 'none'")
		h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}

		c.Next()
	}
}

// StrictTransportSecurityMiddleware adds HSTS to requests that arrived over HTTPS,
// directly or through a TLS-terminating proxy.
func StrictTransportSecurityMiddleware(maxAge int) gin.HandlerFunc {
	value := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"
	return func(c *gin.Context) {
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", value)
		}
		c.Next()
	}
}
