package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/handlers"
	"portfolio-tracker/internal/marketstack"
	"portfolio-tracker/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := newLogger(cfg.Logging)

	db, err := database.Open(context.Background(), cfg.Database.Driver, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.Driver, cfg.Database.URL); err != nil {
		logger.Fatalf("migrate failed: %v", err)
	}
	version, dirty, err := database.MigrationVersion(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("read schema version: %v", err)
	}
	if dirty {
		logger.Fatalf("schema version %d is dirty; fix the failed migration before starting", version)
	}
	logger.Infof("schema at version %d", version)

	if cfg.Marketstack.APIKey == "" {
		logger.Warn("MARKETSTACK_API_KEY is not set; /api/stock/price will fail upstream")
	}
	client := marketstack.NewClient(cfg.Marketstack.APIKey,
		marketstack.WithBaseURL(cfg.Marketstack.BaseURL),
		marketstack.WithLogger(logger),
		marketstack.WithRateLimit(cfg.Marketstack.RateLimit),
		marketstack.WithTimeout(cfg.Marketstack.Timeout),
	)

	h := handlers.NewHandler(database.New(db, logger), service.NewPriceResolver(client, logger), logger)

	gin.SetMode(cfg.Server.GinMode)
	rg := gin.New()
	rg.Use(gin.Recovery(), handlers.RequestLogger(logger))
	h.Register(rg)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.CORS(cfg.Server.AllowedOrigins)(rg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("server starting on :%s (store: %s)", cfg.Server.Port, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("forced shutdown: %v", err)
	}
	logger.Info("server exited")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
