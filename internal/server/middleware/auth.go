package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

// Auth requires the shared token on every request. Anthropic clients send it
// as x-api-key; a Bearer Authorization header is accepted as well.
func Auth(token string) gin.HandlerFunc {
	expected := []byte(token)

	return func(c *gin.Context) {
		presented := credential(c)
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

func credential(c *gin.Context) string {
	if key := c.GetHeader("x-api-key"); key != "" {
		return key
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
