package server

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
	"github.com/spf13/cobra"

	"upkeeper/cmd/root"
	"upkeeper/controllers"
	"upkeeper/internal/config"
	"upkeeper/internal/logger"
	"upkeeper/internal/middleware"
	"upkeeper/services"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the supervision server",
	Long:  `Runs the HTTP API, re-attaches persisted daemons and tunnels, and starts the health monitor loops`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startServer(context.Background()); err != nil {
			logger.Fatal(err)
		}
	},
}

/**
 * Start the supervision server
 * @param {context.Context} ctx - Base context for the server lifetime
 * @returns {error} Error if the engine or listener cannot start
 * @description
 * - Builds the engine, which re-attaches persisted entities and
 *   starts both monitor loops
 * - Registers API routes plus the request metrics middleware
 * - SIGINT/SIGTERM drain the HTTP listener, then shut the engine
 *   down so no child process or tunnel session is orphaned
 */
func startServer(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware())

	engine, err := services.NewEngine(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	apiController := controllers.NewAPIController(engine)
	apiController.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Infof("Server listening on %s", cfg.Server.Address)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		engine.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Infof("Received signal %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	engine.Shutdown()
	return nil
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
}
