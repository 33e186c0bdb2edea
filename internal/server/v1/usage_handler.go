package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/internal/analytics"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

type UsageHandler struct {
	service analytics.Service
}

// NewUsageHandler accepts a nil service when no usage store is configured.
func NewUsageHandler(service analytics.Service) *UsageHandler {
	return &UsageHandler{
		service: service,
	}
}

func (h *UsageHandler) GetUsage(c *gin.Context) {
	if h.service == nil {
		_ = c.Error(api.NotFoundError("usage store is not configured"))
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		_ = c.Error(api.BadRequestError("invalid 'days' parameter", err))
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("failed to fetch usage", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   stats,
	})
}
