package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/email"
	"github.com/arena-wallet/internal/handler"
	"github.com/arena-wallet/internal/kafka"
	"github.com/arena-wallet/internal/phonepe"
	"github.com/arena-wallet/internal/postgres"
	"github.com/arena-wallet/internal/redis"
	"github.com/arena-wallet/internal/service"
	"github.com/arena-wallet/internal/websocket"
	"github.com/arena-wallet/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run database migrations
	if err := postgres.RunMigrations(cfg.Postgres.ConnectionString()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Redis backs the read cache and the winnings leaderboard. Both are
	// optional; the ledger itself lives in Postgres.
	var (
		cache *redis.Cache
		board *redis.Leaderboard
	)
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without cache", "error", err)
	} else {
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, logger)
		board = redis.NewLeaderboard(redisClient, logger)
		logger.Info("connected to Redis")
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	mailer, err := email.New(&cfg.Email, logger)
	if err != nil {
		logger.Error("invalid email configuration", "error", err)
		os.Exit(1)
	}

	dispatcher := service.NewDispatcher(repo, wsHub, mailer, cfg.Email.AdminAddress, logger)

	// Notification events go through Kafka when it is enabled and reachable,
	// otherwise they are dispatched in-process.
	var (
		publisher     service.Publisher
		kafkaProducer *kafka.Producer
		kafkaConsumer *kafka.Consumer
		inline        *service.InlinePublisher
	)
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka notification bus",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaProducer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, dispatching inline", "error", err)
		} else if kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, dispatcher, logger); err != nil {
			logger.Warn("failed to create Kafka consumer, dispatching inline", "error", err)
			kafkaProducer.Close()
			kafkaProducer = nil
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, dispatching inline", "error", err)
			kafkaProducer.Close()
			kafkaProducer, kafkaConsumer = nil, nil
		} else {
			publisher = kafkaProducer
			logger.Info("Kafka notification bus started")
		}
	}
	if publisher == nil {
		inline = service.NewInlinePublisher(dispatcher, logger)
		publisher = inline
	}

	fx := &service.Effects{Hub: wsHub, Publisher: publisher, Logger: logger}
	if cache != nil {
		fx.Cache = cache
		fx.Board = board
	}
	effects := service.NewEffects(*fx)

	if !cfg.Payment.Configured() {
		logger.Warn("payment gateway credentials missing, gateway deposits will fail")
	}
	gateway := phonepe.NewClient(&cfg.Payment, logger)

	services := handler.Services{
		Tournaments:   service.NewTournamentService(repo, effects, &cfg.Cache, logger),
		Ledger:        service.NewLedgerService(repo, effects, logger),
		Settlement:    service.NewSettlementService(repo, effects, &cfg.Settlement, &cfg.Cache, logger),
		Wallet:        service.NewWalletService(repo, effects, logger),
		Payments:      service.NewPaymentService(repo, gateway, effects, logger),
		Notifications: service.NewNotificationService(repo, effects, mailer, cfg.Email.AdminAddress, logger),
		Users:         service.NewUserService(repo, effects, &cfg.Leaderboard, logger),
	}
	logger.Info("settlement configured", "resubmission_policy", services.Settlement.Policy())

	// Rebuild the winnings leaderboard from approved prize transactions
	var syncWorker *worker.SyncWorker
	if board != nil {
		syncWorker = worker.NewSyncWorker(repo, board, &cfg.Sync, logger)
		logger.Info("syncing winnings leaderboard from database to Redis")
		if err := syncWorker.SyncFromDatabase(ctx); err != nil {
			logger.Warn("failed to sync from database on startup", "error", err)
		}
		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	httpHandler := handler.NewHandler(services, services.Users, repo, wsHub, cfg.Server.AllowedOrigins, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests before tearing down what they depend on
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	wsHub.Stop()

	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}
	if inline != nil {
		inline.Wait()
	}

	logger.Info("server stopped")
}
