package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/logistics-platform/booking-dashboard/internal/api/handlers"
	"github.com/logistics-platform/booking-dashboard/internal/config"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
	"github.com/logistics-platform/booking-dashboard/pkg/metrics"
	"github.com/logistics-platform/booking-dashboard/pkg/middleware"
	"github.com/logistics-platform/booking-dashboard/pkg/tracing"
)

const (
	sessionIdleTimeout  = 30 * time.Minute
	sessionEvictionTick = time.Minute
)

func newServeCommand(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8021)")
	_ = v.BindPFlag("server_addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := newLogger(cfg, os.Stdout)
	logger.SetDefault()
	logger.Info("Starting booking dashboard", "api_base_url", cfg.APIBaseURL)

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(config.ServiceName)
	tracingConfig.OTLPEndpoint = cfg.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.Enabled = cfg.TracingEnabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	comps, err := buildComponents(cfg, logger, m)
	if err != nil {
		return err
	}
	defer comps.sessions.CloseAll()

	dashboardHandler, err := handlers.NewDashboardHandler(comps.sessions, logger)
	if err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(config.ServiceName, logger.Logger)
	middlewareConfig.RequestTimeout = cfg.RequestTimeout * 3
	middlewareConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(config.ServiceName)))
	router.Use(middleware.MetricsMiddleware(m))

	router.NoRoute(middleware.NoRoute())

	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, func() error {
		if comps.breaker != nil && comps.breaker.State() == gobreaker.StateOpen {
			return errors.New("booking API circuit breaker is open")
		}
		return nil
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	dashboardHandler.RegisterRoutes(router.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout*3 + 5*time.Second,
	}

	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go evictIdleSessions(evictCtx, comps, logger.WithComponent("sessions"))

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
	return nil
}

// evictIdleSessions closes sessions nobody has touched for sessionIdleTimeout
func evictIdleSessions(ctx context.Context, comps *components, logger *logging.Logger) {
	ticker := time.NewTicker(sessionEvictionTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := comps.sessions.EvictIdle(sessionIdleTimeout); n > 0 {
				logger.Info("Evicted idle sessions", "count", n, "remaining", comps.sessions.Len())
			}
		}
	}
}
