package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/avolkov/notes-service/internal/config"
	"github.com/avolkov/notes-service/internal/handler"
	"github.com/avolkov/notes-service/internal/repository"
	"github.com/avolkov/notes-service/internal/service"
	"github.com/avolkov/notes-service/internal/session"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := repository.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize layers
	repo := repository.NewRepository(db, cfg.DBDriver)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		logger.Fatalf("Failed to create schema: %v", err)
	}
	store := session.NewMemoryStore(cfg.SessionTTL)
	svc := service.NewService(repo, logger)
	h := handler.NewHandler(svc, store, logger, cfg)

	// Sweep expired sessions in the background
	c := cron.New()
	if _, err := c.AddFunc("@every 5m", store.PurgeExpired); err != nil {
		logger.Fatalf("Failed to schedule session sweeper: %v", err)
	}
	c.Start()
	defer c.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
