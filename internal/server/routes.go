package server

import (
	"github.com/nulzo/anthropic-gateway/internal/server/middleware"
	v1 "github.com/nulzo/anthropic-gateway/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.ErrorHandler(s.logger))

	// public liveness probe
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/healthz", healthHandler.Health)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.AuthToken))
	{
		messagesHandler := v1.NewMessagesHandler(s.service, s.bridge, s.logger)
		api.POST("/messages", messagesHandler.CreateMessage)

		modelHandler := v1.NewModelHandler(s.service)
		api.GET("/models", modelHandler.ListModels)

		usageHandler := v1.NewUsageHandler(s.analytics)
		api.GET("/usage", usageHandler.GetUsage)
	}
}
