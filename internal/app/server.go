package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/iris/pkg/health"
	"github.com/Ramsey-B/iris/pkg/middleware"
	disambiguationroutes "github.com/Ramsey-B/iris/pkg/routes/disambiguation"
	entityroutes "github.com/Ramsey-B/iris/pkg/routes/entity"
)

// Version is reported by the health endpoints. Set with -ldflags at build time.
var Version = "dev"

// NewChecker registers a health check for every started dependency
func (a *App) NewChecker() *health.Checker {
	checker := health.NewChecker(Version)

	if a.db != nil {
		checker.AddCheck(DependencyDatabase, a.db.PingContext)
	}
	if a.graph != nil {
		checker.AddCheck(DependencyGraph, a.graph.VerifyConnectivity)
	}
	if a.redis != nil {
		checker.AddCheck(DependencyRedis, a.redis.Ping)
	}
	if a.service != nil {
		checker.AddCheck(DependencyIndex, func(context.Context) error {
			if loaded, _ := a.service.IndexStatus(); !loaded {
				return errors.New("index not loaded")
			}
			return nil
		})
	}
	return checker
}

// Router builds the echo instance serving the API, health and metrics endpoints
func (a *App) Router(checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	if a.cfg.OtelEnabled {
		e.Use(otelecho.Middleware(a.cfg.AppName))
	}
	e.Use(echomw.Recover())
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	disambiguationroutes.Register(api.Group("/disambiguation"), disambiguationroutes.NewHandler(a.service, a.logger))
	entityroutes.Register(api.Group("/entities"), entityroutes.NewHandler(a.service, a.logger))

	return e
}

// Serve starts the dependencies, serves HTTP until ctx is cancelled, then shuts down
// the server and stops the dependencies.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		_ = a.Stop(stopCtx)
		return err
	}

	checker := a.NewChecker()
	e := a.Router(checker)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	checker.SetReady(true)

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
		a.logger.WithError(serveErr).Error("Server stopped unexpectedly")
	}
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Failed to shut down http server cleanly")
	}
	if err := a.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Failed to stop dependencies cleanly")
	}

	return serveErr
}

func (a *App) shutdownTimeout() time.Duration {
	return time.Duration(a.cfg.ShutdownTimeoutSeconds) * time.Second
}
