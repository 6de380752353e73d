package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/api"
	"github.com/stitts-dev/rotation-optimizer/internal/api/handlers"
	"github.com/stitts-dev/rotation-optimizer/internal/app"
	"github.com/stitts-dev/rotation-optimizer/pkg/config"
	"github.com/stitts-dev/rotation-optimizer/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	logger.WithService("rotation-optimizer").WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
		"solver":      cfg.Solver,
	}).Info("Starting rotation optimizer")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, structuredLogger, app.Options{})
	if err != nil {
		logger.WithService("rotation-optimizer").Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	var cachePinger handlers.Pinger
	if a.Redis != nil {
		cachePinger = a.Redis
	}
	var breaker handlers.BreakerReporter
	if a.Fangraphs != nil {
		breaker = a.Fangraphs
	}

	router := api.NewRouter(
		handlers.NewRotationHandler(a.Service, structuredLogger, cfg.RequestTimeout),
		handlers.NewHealthHandler(cachePinger, breaker, structuredLogger),
		a.Metrics,
		structuredLogger,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.WithService("rotation-optimizer").WithField("port", cfg.Port).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("rotation-optimizer").Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService("rotation-optimizer").Info("Shutting down server...")

	// Solves in flight get five seconds to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithService("rotation-optimizer").Fatalf("Server forced to shutdown: %v", err)
	}

	logger.WithService("rotation-optimizer").Info("Server exited")
}
