package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// the docs page loads Swagger UI from unpkg and bootstraps it inline
	docsCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; connect-src 'self'; img-src 'self' data: https:; font-src 'self' https://unpkg.com data:; style-src 'self' 'unsafe-inline' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com"

	hstsValue = "max-age=31536000; includeSubDomains"
)

// SecuritySettings selects the per-route header policy.
type SecuritySettings struct {
	// DocsPrefix gets the relaxed CSP needed by Swagger UI.
	DocsPrefix string
	// PrivatePrefix marks routes returning user records. Shared caches must not
	// store them and clients revalidate with the ETag.
	PrivatePrefix string
	HSTS          bool
}

func SecurityHeaders(s SecuritySettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-XSS-Protection", "0")

		if s.DocsPrefix != "" && strings.HasPrefix(path, s.DocsPrefix) {
			h.Set("Content-Security-Policy", docsCSP)
		} else {
			h.Set("Content-Security-Policy", apiCSP)
		}

		if s.PrivatePrefix != "" && strings.HasPrefix(path, s.PrivatePrefix) {
			h.Set("Cache-Control", "private, no-cache")
		}

		if s.HSTS {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		c.Next()
	}
}
