package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/api/handler"
	"github.com/juanse07/nexa-sub001/internal/api/router"
	"github.com/juanse07/nexa-sub001/internal/app"
	"github.com/juanse07/nexa-sub001/internal/jobs"
	applogger "github.com/juanse07/nexa-sub001/pkg/logger"
)

func main() {
	// 1. load configuration
	cfg, err := config.Load(os.Getenv("NEXA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting nexa",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. stores, adapters, services
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}

	// 4. routes
	h := handler.NewHandler(a.Services)
	engine := router.Setup(cfg, h, a.JWT, a.Redis, logger)

	// 5. background jobs
	runner := jobs.NewRunner(cfg, a.Services.Attendance, a.Services.Organization, logger)
	jobsDone := make(chan struct{})
	go func() {
		defer close(jobsDone)
		runner.Run(ctx)
	}()

	// 6. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	<-jobsDone

	// pending seat syncs finish before the connections close
	a.Close(shutdownCtx)

	logger.Info("server stopped")
}
