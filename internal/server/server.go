package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/internal/analytics"
	"github.com/nulzo/anthropic-gateway/internal/bridge"
	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/gateway"
	"github.com/nulzo/anthropic-gateway/internal/server/middleware"
	"github.com/nulzo/anthropic-gateway/internal/server/validator"
	"go.uber.org/zap"
)

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	service   gateway.Service
	analytics analytics.Service
	bridge    *bridge.Bridge
}

// New builds the HTTP surface. usage may be nil when no usage store is
// configured.
func New(cfg *config.Config, logger *zap.Logger, service gateway.Service, usage analytics.Service) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}

	s := &Server{
		router:    engine,
		service:   service,
		analytics: usage,
		bridge:    bridge.New(logger, cfg.Server.KeepAlive),
		logger:    logger,
		config:    cfg,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
