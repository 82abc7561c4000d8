package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gomem/gomem/pkg/observability"
)

// unauthorized matches the {code, message} error body the REST surface
// renders for every other failure.
func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHENTICATED",
		"message": message,
	})
}

// Middleware is the gin authentication middleware. It reads the X-Api-Key
// header (header lookup is case-insensitive per HTTP), authenticates it,
// and installs the principal into the request context. Failure aborts with
// 401 and a JSON error body.
func Middleware(authn *Authenticator, logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader(HeaderName)
		if rawKey == "" {
			unauthorized(c, "missing api key")
			return
		}

		principal, err := authn.Authenticate(c.Request.Context(), rawKey)
		if err != nil {
			logger.Warn("authentication failed", map[string]interface{}{
				"ip":   c.ClientIP(),
				"path": c.Request.URL.Path,
			})
			unauthorized(c, "invalid api key")
			return
		}

		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), principal))
		c.Next()
	}
}
