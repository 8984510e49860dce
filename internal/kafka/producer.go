package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
)

// enqueueTimeout bounds how long Publish waits for room in the producer's
// input buffer when the brokers are not draining it.
const enqueueTimeout = 100 * time.Millisecond

// ErrQueueFull is returned when the producer cannot accept another event
var ErrQueueFull = errors.New("notification queue full")

// Producer publishes notification events to Kafka. Publish only enqueues;
// delivery results are consumed in the background.
type Producer struct {
	topic    string
	producer sarama.AsyncProducer
	logger   *slog.Logger

	wg        sync.WaitGroup
	delivered int64
	failed    int64
}

// NewProducerConfig returns the sarama settings used for notification events
func NewProducerConfig(kc *config.KafkaConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_0_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Retry.Max = kc.RetryAttempts
	cfg.Producer.Retry.Backoff = kc.RetryDelay
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Timeout = 5 * time.Second
	return cfg
}

// NewProducer connects an asynchronous producer to cfg's brokers
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, NewProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return NewProducerWith(producer, cfg.Topic, logger), nil
}

// NewProducerWith wraps an existing sarama producer and starts draining its
// result channels
func NewProducerWith(producer sarama.AsyncProducer, topic string, logger *slog.Logger) *Producer {
	p := &Producer{
		topic:    topic,
		producer: producer,
		logger:   logger,
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for msg := range producer.Successes() {
			atomic.AddInt64(&p.delivered, 1)
			p.logger.Debug("notification event published",
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		}
	}()
	go func() {
		defer p.wg.Done()
		for perr := range producer.Errors() {
			atomic.AddInt64(&p.failed, 1)
			p.logger.Error("failed to publish notification event", "error", perr.Err)
		}
	}()
	return p
}

// Publish enqueues event and returns without waiting for the brokers.
// Events for one user share a partition so they are delivered in order.
func (p *Producer) Publish(ctx context.Context, event domain.NotificationEvent) error {
	if !event.Valid() {
		return domain.InvalidInput("invalid notification event")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding notification event: %w", err)
	}

	key := string(event.Kind)
	if event.UserID != "" {
		key = event.UserID
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: event.Timestamp,
	}

	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrQueueFull
	}
}

// Delivered is the number of events the brokers acknowledged
func (p *Producer) Delivered() int64 {
	return atomic.LoadInt64(&p.delivered)
}

// Failed is the number of events that could not be delivered
func (p *Producer) Failed() int64 {
	return atomic.LoadInt64(&p.failed)
}

// Close flushes pending events, closes the producer and waits for the
// remaining delivery results
func (p *Producer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
