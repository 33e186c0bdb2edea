package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		// backend error payloads go back exactly as received
		var ce *llm.ContentError
		if errors.As(err, &ce) {
			c.Data(ce.ClientStatus(), "application/json", ce.Body())
			c.Abort()
			return
		}

		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Log != nil {
				logger.Warn("Request failed",
					zap.Int("status", apiErr.Status),
					zap.String("path", c.Request.URL.Path),
					zap.Error(apiErr.Log),
				)
			}
			c.JSON(apiErr.Status, apiErr.Response())
			c.Abort()
			return
		}

		logger.Error("Unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
		c.Abort()
	}
}
