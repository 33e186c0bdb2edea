package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/internal/gateway"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListModels lists the canonical models with the active backend's wire ids
// and output ceilings.
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   h.service.Models(),
	})
}
