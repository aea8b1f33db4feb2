package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go-damage-assessor/internal/config"
	"go-damage-assessor/internal/container"
	"go-damage-assessor/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	c, err := container.NewContainer(ctx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}

	// Write timeout covers synchronous analyses as well as plain requests
	writeTimeout := cfg.RequestTimeout
	if cfg.AnalysisTimeout > writeTimeout {
		writeTimeout = cfg.AnalysisTimeout
	}

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":      cfg.ServerAddress(),
			"timeout":      cfg.RequestTimeout,
			"image_store":  cfg.ImageStore.Driver,
			"result_store": cfg.ResultStore.Driver,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Running analyses are cancelled and end Failed
	if err := c.Close(); err != nil {
		logger.WithError(err).Error("Failed to release dependencies")
	}

	logger.Logger.Info("Server exited")
}
