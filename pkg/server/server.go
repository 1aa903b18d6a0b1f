// Package server assembles the echo application: middleware, error
// handling, and route registration. The deploying binary builds the
// dependency container and passes its attach middleware in.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/banyan/config"
	"github.com/Ramsey-B/banyan/internal/middleware"
	familyroutes "github.com/Ramsey-B/banyan/pkg/routes/family"
	"github.com/Ramsey-B/banyan/pkg/routes/health"
	mergeroutes "github.com/Ramsey-B/banyan/pkg/routes/merge"
	relationshiproutes "github.com/Ramsey-B/banyan/pkg/routes/relationship"
	treelinkroutes "github.com/Ramsey-B/banyan/pkg/routes/treelink"
)

// Server wraps the configured echo instance
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger ectologger.Logger
}

// New builds the echo application. Extra middleware (such as the
// dependency-container attach) runs before any route handler.
func New(cfg *config.Config, logger ectologger.Logger, checker *health.Checker, extra ...echo.MiddlewareFunc) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	for _, m := range extra {
		e.Use(m)
	}
	e.HTTPErrorHandler = middleware.Error(logger)

	// health and metrics stay open; bearer auth guards the API group only
	if checker != nil {
		checker.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		auth, err := middleware.Authentication(logger, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		api.Use(auth)
	}
	familyroutes.Register(api.Group("/families"))
	treelinkroutes.Register(api.Group("/tree-links"))
	mergeroutes.Register(api.Group("/merge-requests"))
	relationshiproutes.Register(api.Group("/relationships"))

	return &Server{
		echo:   e,
		config: cfg,
		logger: logger,
	}, nil
}

// Echo exposes the underlying echo instance for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP until Shutdown or a fatal error
func (s *Server) Start() error {
	s.logger.WithFields(map[string]any{"port": s.config.Port}).Info("Starting HTTP server")
	return s.echo.Start(fmt.Sprintf(":%d", s.config.Port))
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
