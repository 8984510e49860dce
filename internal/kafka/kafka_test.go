package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKafkaConfig() *config.KafkaConfig {
	return &config.KafkaConfig{
		Topic:         "arena-notifications",
		BatchSize:     2,
		BatchTimeout:  50 * time.Millisecond,
		RetryAttempts: 5,
		RetryDelay:    200 * time.Millisecond,
	}
}

func TestNewProducerConfig(t *testing.T) {
	cfg := NewProducerConfig(testKafkaConfig())
	assert.Equal(t, 5, cfg.Producer.Retry.Max)
	assert.Equal(t, 200*time.Millisecond, cfg.Producer.Retry.Backoff)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.NoError(t, cfg.Validate())
}

func TestProducer_Publish(t *testing.T) {
	kc := testKafkaConfig()
	mock := mocks.NewAsyncProducer(t, NewProducerConfig(kc))
	producer := NewProducerWith(mock, kc.Topic, testLogger())

	mock.ExpectInputWithCheckerFunctionAndSucceed(func(value []byte) error {
		var event domain.NotificationEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.UserID != "u1" || event.Title != "Prize credited" {
			return fmt.Errorf("unexpected event %+v", event)
		}
		if event.Timestamp.IsZero() {
			return errors.New("timestamp not set")
		}
		return nil
	})
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	err := producer.Publish(context.Background(), domain.NotificationEvent{
		Kind:    domain.EventUser,
		UserID:  "u1",
		Title:   "Prize credited",
		Message: "₹530.00 was added",
	})
	require.NoError(t, err)

	// Broker failures surface on the error channel, not to the caller
	err = producer.Publish(context.Background(), domain.NotificationEvent{Kind: domain.EventAdmins, Title: "New deposit"})
	require.NoError(t, err)

	// Invalid events never reach the broker
	err = producer.Publish(context.Background(), domain.NotificationEvent{Kind: domain.EventUser, Title: "no user"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, producer.Close())
	assert.EqualValues(t, 1, producer.Delivered())
	assert.EqualValues(t, 1, producer.Failed())
}

func TestProducer_PublishDoesNotWaitForBroker(t *testing.T) {
	kc := testKafkaConfig()
	mock := mocks.NewAsyncProducer(t, NewProducerConfig(kc))
	producer := NewProducerWith(mock, kc.Topic, testLogger())

	release := make(chan struct{})
	mock.ExpectInputWithCheckerFunctionAndSucceed(func([]byte) error {
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- producer.Publish(context.Background(), domain.NotificationEvent{
			Kind:   domain.EventUser,
			UserID: "u1",
			Title:  "Refund issued",
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on the broker")
	}
	assert.Zero(t, producer.Delivered(), "delivery is still in flight")

	close(release)
	require.NoError(t, producer.Close())
	assert.EqualValues(t, 1, producer.Delivered())
}

func TestDecodeEvent(t *testing.T) {
	event, ok := decodeEvent([]byte(`{"kind":"user","user_id":"u1","title":"hi","message":"there"}`))
	assert.True(t, ok)
	assert.Equal(t, "u1", event.UserID)

	_, ok = decodeEvent([]byte(`{"kind":"user","title":"hi"}`))
	assert.False(t, ok)

	_, ok = decodeEvent([]byte(`not json`))
	assert.False(t, ok)
}

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]domain.NotificationEvent
}

func (h *recordingHandler) HandleEvents(_ context.Context, events []domain.NotificationEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, append([]domain.NotificationEvent(nil), events...))
	return nil
}

func (h *recordingHandler) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, b := range h.batches {
		n += len(b)
	}
	return n
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 {
	return nil
}

func (s *fakeSession) MemberID() string {
	return "member"
}

func (s *fakeSession) GenerationID() int32 {
	return 1
}

func (s *fakeSession) MarkOffset(string, int32, int64, string) {}

func (s *fakeSession) Commit() {}

func (s *fakeSession) ResetOffset(string, int32, int64, string) {}

func (s *fakeSession) Context() context.Context {
	return s.ctx
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "arena-notifications" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim(t *testing.T) {
	handler := &recordingHandler{}
	consumer := &Consumer{config: testKafkaConfig(), handler: handler, logger: testLogger()}
	group := &consumerGroupHandler{consumer: consumer, ready: make(chan bool)}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 8)}
	values := []string{
		`{"kind":"user","user_id":"u1","title":"a"}`,
		`{"kind":"admins","title":"b"}`,
		`garbage`,
		`{"kind":"broadcast","title":"c","message":"d"}`,
	}
	for i, v := range values {
		claim.messages <- &sarama.ConsumerMessage{Offset: int64(i), Value: []byte(v)}
	}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, group.Setup(session))
	require.NoError(t, group.ConsumeClaim(session, claim))

	assert.Equal(t, 3, handler.total())
	require.NotEmpty(t, handler.batches)
	assert.Len(t, handler.batches[0], 2, "full batches are flushed immediately")
	assert.Equal(t, []int64{0, 1, 2, 3}, session.marked, "invalid messages are still marked")
}

func TestConsumeClaimFlushesOnTimer(t *testing.T) {
	handler := &recordingHandler{}
	consumer := &Consumer{config: testKafkaConfig(), handler: handler, logger: testLogger()}
	group := &consumerGroupHandler{consumer: consumer, ready: make(chan bool)}

	ctx, cancel := context.WithCancel(context.Background())
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Value: []byte(`{"kind":"user","user_id":"u1","title":"late"}`)}

	done := make(chan error, 1)
	go func() { done <- group.ConsumeClaim(&fakeSession{ctx: ctx}, claim) }()

	require.Eventually(t, func() bool { return handler.total() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
