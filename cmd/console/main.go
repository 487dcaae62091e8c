package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Raymond9734/crm-console/internal/backend"
	"github.com/Raymond9734/crm-console/internal/config"
	"github.com/Raymond9734/crm-console/internal/dashboard"
	"github.com/Raymond9734/crm-console/internal/db"
	"github.com/Raymond9734/crm-console/internal/handler"
	"github.com/Raymond9734/crm-console/internal/liststore"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
	"github.com/Raymond9734/crm-console/internal/repository"
	"github.com/Raymond9734/crm-console/internal/view"
	"github.com/Raymond9734/crm-console/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.API.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("starting CRM console server")

	// Connect to the CRM backend
	client, err := backend.New(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		AuthToken: cfg.Backend.AuthToken,
	}, logger)
	if err != nil {
		logger.Error("failed to create backend client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := liststore.NewMetrics(reg)

	storeOpts := liststore.Options{
		CacheSize:    cfg.Store.CacheSize,
		TTL:          cfg.Store.TTL,
		FetchTimeout: cfg.Store.FetchTimeout,
		Metrics:      metrics,
	}

	// Initialize list stores
	customerStore, err := liststore.New[models.Customer](backend.CustomersPath, client.Customers().List, storeOpts, logger)
	if err != nil {
		logger.Error("failed to create customer store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logStore, err := liststore.New[models.Log](backend.LogsPath, client.Logs().List, storeOpts, logger)
	if err != nil {
		logger.Error("failed to create log store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Notification feed
	feed, err := newFeed(cfg.Notify, logger)
	if err != nil {
		logger.Error("failed to create notification feed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer feed.Close()

	logger.Info("notification feed ready", slog.String("backend", cfg.Notify.Backend))

	// Context for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workerDone := make(chan struct{})
	close(workerDone)

	// Optional activity journal
	var (
		notifier     notify.Notifier = feed
		journalRepo  repository.NotificationRepository
		journalCheck handler.Checker
	)
	if cfg.Database.Enabled {
		database, err := db.New(db.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.Close()

		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = database.Migrate(migrateCtx)
		migrateCancel()
		if err != nil {
			logger.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("activity journal enabled")

		journalRepo = repository.NewNotificationRepository(database.DB)
		journalCheck = database

		journal := worker.NewJournalWriter(journalRepo, worker.Config{
			QueueSize:     cfg.Worker.QueueSize,
			MaxRetryCount: cfg.Worker.MaxRetryCount,
			RetryDelay:    cfg.Worker.RetryDelay,
		}, logger)
		notifier = notify.NewFanout(logger, feed, journal)

		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			_ = journal.Run(ctx, 5*time.Second)
		}()
	}

	// Initialize view sessions
	registry := view.NewRegistry(view.Deps{
		Customers:   customerStore,
		Logs:        logStore,
		CustomerAPI: client.Customers(),
		LogAPI:      client.Logs(),
		Dashboard:   dashboard.NewService(customerStore, logStore, logger),
		Notifier:    notifier,
		Feed:        feed,
		Logger:      logger,
	}, cfg.Session.IdleTTL)

	// Initialize handlers
	router := handler.NewRouter(handler.Handlers{
		Views:     handler.NewViewHandler(registry, feed, logger),
		Customers: handler.NewCustomerHandler(registry, cfg.Import.MaxUploadBytes, logger),
		Logs:      handler.NewLogHandler(registry, logger),
		Activity:  handler.NewActivityHandler(journalRepo, logger),
		Health:    handler.NewHealthHandler(handler.CheckerFunc(client.Ping), feed, journalCheck, logger),
	}, reg, logger)

	// Create server
	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("console server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		// Stop the journal writer and let it flush
		cancel()
		<-workerDone

		logger.Info("server stopped gracefully")
	}
}

// newFeed builds the notification feed selected by NOTIFY_BACKEND
func newFeed(cfg config.NotifyConfig, logger *slog.Logger) (notify.Feed, error) {
	if cfg.Backend != "redis" {
		return notify.NewMemoryFeed(cfg.MaxBacklog), nil
	}
	return notify.NewRedisFeed(notify.RedisConfig{
		URL:        cfg.RedisURL,
		KeyPrefix:  cfg.KeyPrefix,
		MaxBacklog: cfg.MaxBacklog,
		TTL:        cfg.FeedTTL,
	}, logger)
}
