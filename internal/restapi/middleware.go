package restapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit caps request bodies; NewServer applies it to every
// route, the store endpoint included. IngestBodyLimit is a wider cap
// that NewServer does not apply to any route.
const (
	DefaultBodyLimit = 1 << 20  // 1MiB
	IngestBodyLimit  = 8 << 20  // 8MiB
)

// APIKeyAuthMiddleware rejects requests missing a matching Bearer or
// X-API-Key header. A no-op when apiKey is empty, and health checks
// are always exempt so uptime probes don't need credentials.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || c.Request.URL.Path == "/api/v1/health" {
			c.Next()
			return
		}

		supplied := c.GetHeader("X-API-Key")
		if supplied == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				supplied = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if supplied != apiKey {
			UnauthorizedError(c, "missing or invalid API key")
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBodySizeMiddleware rejects request bodies larger than limit
// before a handler ever reads them.
func MaxBodySizeMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			PayloadTooLargeError(c, "request body too large")
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
