package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"journalbot/internal/adapters/config"
	"journalbot/internal/adapters/errors/noop"
	"journalbot/internal/adapters/errors/sentry"
	"journalbot/internal/adapters/kafka"
	"journalbot/internal/adapters/postgres"
	"journalbot/internal/adapters/redis"
	tgadapter "journalbot/internal/adapters/telegram"
	"journalbot/internal/domain/position"
	"journalbot/internal/domain/report"
	"journalbot/internal/domain/trade"
	"journalbot/internal/events"
	"journalbot/internal/export"
	"journalbot/internal/metrics"
	pgrepo "journalbot/internal/repository/postgres"
	redisrepo "journalbot/internal/repository/redis"
	"journalbot/pkg/errors"
	"journalbot/pkg/logger"
	"journalbot/pkg/telegram"
	"journalbot/pkg/templates"
)

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Initialize metrics
	metrics.Init()

	// Initialize databases
	db := initDatabases(cfg, log)
	defer db.Close(log)

	// Initialize event publisher (optional)
	producer, publisher := initPublisher(cfg, log)
	if producer != nil {
		defer producer.Close()
	}

	// Initialize repositories and services
	store := pgrepo.NewTradeEventRepository(db.Postgres.DB())
	cache := redisrepo.NewPositionCache(db.Redis.Client(), cfg.Redis.PositionTTL)
	prices := redisrepo.NewPriceSource(db.Redis.Client())

	ledger := position.NewLedger(store, cache)
	trades := trade.NewService(store, ledger, publisher)
	reports := report.NewGenerator(store, prices)
	exporter := export.NewCSVExporter(trades)

	// Initialize Telegram bot
	bot, handler := initTelegramBot(cfg, trades, ledger, reports, exporter, log)

	log.Info("System initialized successfully")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start all components
	startMetricsServer(cfg, log)
	startBot(ctx, bot, handler, log)
	defer bot.Stop()

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, errorTracker, log)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// Database bundles the storage connections.
type Database struct {
	Postgres *postgres.Client
	Redis    *redis.Client
}

func (d *Database) Close(log *logger.Logger) {
	if err := d.Redis.Close(); err != nil {
		log.Warnf("Failed to close Redis: %v", err)
	}
	if err := d.Postgres.Close(); err != nil {
		log.Warnf("Failed to close PostgreSQL: %v", err)
	}
}

// initDatabases initializes database connections (PostgreSQL, Redis)
func initDatabases(cfg *config.Config, log *logger.Logger) *Database {
	log.Info("Initializing databases...")

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	log.Info("Databases initialized")
	return &Database{
		Postgres: pgClient,
		Redis:    redisClient,
	}
}

// initPublisher initializes Kafka event streaming when enabled
func initPublisher(cfg *config.Config, log *logger.Logger) (*kafka.Producer, trade.Publisher) {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		log.Info("Event streaming disabled")
		return nil, nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	log.Info("Event streaming initialized (Kafka)")
	return producer, events.NewPublisher(producer)
}

// initTelegramBot initializes the Telegram bot with the command registry
func initTelegramBot(
	cfg *config.Config,
	trades *trade.Service,
	ledger *position.Ledger,
	reports *report.Generator,
	exporter *export.CSVExporter,
	log *logger.Logger,
) (*tgadapter.Bot, *tgadapter.Handler) {
	log.Info("Initializing Telegram bot...")

	bot, err := tgadapter.NewBot(tgadapter.Config{
		Token: cfg.Telegram.BotToken,
		Debug: cfg.App.Debug,
	}, log)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}

	registry := telegram.NewCommandRegistry(bot, log)
	registry.Use(telegram.RecoveryMiddleware(log))
	registry.Use(telegram.LoggingMiddleware(log))
	registry.Use(telegram.RateLimitMiddleware(20, log))
	registry.Use(telegram.MetricsMiddleware(func(command string, success bool, _ time.Duration) {
		status := "success"
		if !success {
			status = "error"
		}
		metrics.CommandsHandled.WithLabelValues(command, status).Inc()
	}))

	commands := tgadapter.NewJournalCommands(trades, ledger, reports, exporter, templates.Get(), log)
	commands.Register(registry)

	handler := tgadapter.NewHandler(bot, registry, log)

	log.Info("Telegram bot initialized")
	return bot, handler
}

// startMetricsServer exposes the Prometheus endpoint
func startMetricsServer(cfg *config.Config, log *logger.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	go func() {
		log.Infof("Metrics server listening on %s", cfg.Metrics.Addr)
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
}

// startBot starts the Telegram bot update loop
func startBot(ctx context.Context, bot *tgadapter.Bot, handler *tgadapter.Handler, log *logger.Logger) {
	bot.SetHandler(handler.HandleUpdate)

	log.Info("Starting Telegram bot...")
	go func() {
		if err := bot.Start(ctx); err != nil {
			log.Errorf("Telegram bot error: %v", err)
		}
	}()
	log.Info("Telegram bot started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
