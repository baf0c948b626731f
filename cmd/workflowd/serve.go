package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/loomworks/workflow-engine/internal/api"
	"github.com/loomworks/workflow-engine/internal/config"
	"github.com/loomworks/workflow-engine/internal/logging"
	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/internal/services"
	"github.com/loomworks/workflow-engine/internal/tls"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow engine HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level)
	logger.Info("starting workflow engine",
		"addr", cfg.Server.Addr,
		"allowed_hosts", len(cfg.Invoker.AllowedHosts),
	)

	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		logger.Error("database initialization failed", "error", err)
		return err
	}
	defer pool.Close()

	store := repository.NewPostgresWorkflowStore(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("migration failed", "error", err)
		return err
	}
	logger.Info("database connected")

	tracker := services.NewExecutionTracker(store)
	allowList := services.NewAllowList(
		cfg.Invoker.AllowedHosts, cfg.Invoker.MinPort, cfg.Invoker.MaxPort)
	invoker := services.NewHTTPStepInvoker(tracker, allowList,
		time.Duration(cfg.Invoker.BackoffCapSeconds)*time.Second, logger)
	executor := services.NewWorkflowExecutor(tracker, invoker, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("workflow-engine"))

	api.NewServer(store, executor, tracker).RegisterRoutes(e)
	logger.Info("API handlers mounted")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) && len(cfg.TLS.Hostnames) > 0 {
				if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
					logger.Error("failed to generate self-signed cert", "error", err)
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			return err
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("server close error", "error", err)
			}
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
