// Package api is the REST adapter: a gin server mapping each route onto one
// service method, converting hex ids and HTTP status codes at the edge.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gomem/gomem/internal/config"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/observability"
)

// Server is the HTTP front of the service.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	logger observability.Logger
}

// NewServer assembles the gin engine, middleware chain, and route table.
func NewServer(cfg config.APIConfig, authn *auth.Authenticator, svcs Services, logger observability.Logger, metrics observability.MetricsClient) *Server {
	if metrics == nil {
		metrics = observability.NoopMetricsClient{}
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(recoveryMiddleware(logger))
	engine.Use(requestMetrics(metrics))
	if cfg.LogRequests {
		engine.Use(requestLogger(logger))
	}
	if cfg.EnableCORS {
		engine.Use(corsMiddleware())
	}
	if cfg.RateLimit.Enabled {
		engine.Use(newRateLimiter(cfg.RateLimit).handler())
	}

	h := handlers{svcs: svcs}

	engine.GET("/healthz", h.healthz)
	if cfg.EnableSwagger {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := engine.Group("/v1")
	v1.POST("/system/init", h.initSystem)

	authed := v1.Group("", auth.Middleware(authn, logger))
	{
		authed.GET("/users/:id", h.getUser)

		authed.POST("/apikeys", h.createApiKey)
		authed.GET("/apikeys", h.listApiKeys)
		authed.PUT("/apikeys/:id", h.updateApiKey)
		authed.DELETE("/apikeys/:id", h.deleteApiKey)

		authed.POST("/embedders", h.createEmbedder)
		authed.GET("/embedders", h.listEmbedders)
		authed.GET("/embedders/:id", h.getEmbedder)
		authed.PUT("/embedders/:id", h.updateEmbedder)
		authed.DELETE("/embedders/:id", h.deleteEmbedder)

		authed.POST("/spaces", h.createSpace)
		authed.GET("/spaces", h.listSpaces)
		authed.GET("/spaces/:id", h.getSpace)
		authed.PUT("/spaces/:id", h.updateSpace)
		authed.DELETE("/spaces/:id", h.deleteSpace)
		authed.GET("/spaces/:id/memories", h.listMemories)

		authed.POST("/memories", h.createMemory)
		authed.GET("/memories/:id", h.getMemory)
		authed.DELETE("/memories/:id", h.deleteMemory)
	}

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Handler exposes the engine for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.srv.Addr,
	})
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new requests and drains in-flight ones until the
// context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
