package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/kafka"
)

// Publishes a notification event straight onto the notification topic.
// Useful for announcing maintenance without going through the admin API.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated), overrides config")
	topic := flag.String("topic", "", "Kafka topic, overrides config")
	kind := flag.String("kind", string(domain.EventBroadcast), "Event kind: broadcast, admins, admin_email or user")
	userID := flag.String("user", "", "Recipient user id for -kind=user")
	subject := flag.String("subject", "", "Notification title / email subject")
	message := flag.String("message", "", "Notification body")
	level := flag.String("type", string(domain.NotifyInfo), "Notification type: info, success, warning or error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if *brokers != "" {
		cfg.Kafka.Brokers = strings.Split(*brokers, ",")
	}
	if *topic != "" {
		cfg.Kafka.Topic = *topic
	}

	event := domain.NotificationEvent{
		Kind:      domain.EventKind(*kind),
		UserID:    *userID,
		Title:     *subject,
		Message:   *message,
		Type:      domain.NotificationType(*level),
		Timestamp: time.Now().UTC(),
	}
	if !event.Valid() {
		fmt.Fprintln(os.Stderr, "a valid -kind and a -subject or -message are required (-user for kind=user)")
		flag.Usage()
		os.Exit(2)
	}

	producer, err := kafka.NewProducer(&cfg.Kafka, logger)
	if err != nil {
		logger.Error("failed to create producer", "brokers", cfg.Kafka.Brokers, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := producer.Publish(ctx, event); err != nil {
		producer.Close()
		logger.Error("failed to publish event", "error", err)
		os.Exit(1)
	}

	// Close waits for the broker's answer
	producer.Close()
	if producer.Failed() > 0 {
		logger.Error("event was not delivered", "brokers", cfg.Kafka.Brokers)
		os.Exit(1)
	}
	logger.Info("event published", "kind", event.Kind, "topic", cfg.Kafka.Topic)
}
