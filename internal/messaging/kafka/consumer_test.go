package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return m.topic }
func (m *mockClaim) Partition() int32                         { return m.partition }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

// orderEventMessage собирает сообщение с событием заказа и заданным числом прошлых попыток.
func orderEventMessage(t *testing.T, offset int64, retries int) *sarama.ConsumerMessage {
	t.Helper()

	msg, err := domain.NewOrderEventMessage(domain.EventOrderPlaced, domain.OrderEvent{
		OrderID:   "order-" + strconv.FormatInt(offset, 10),
		ShopName:  "Corner",
		Status:    domain.OrderStatusPending,
		LineCount: 2,
	})
	if err != nil {
		t.Fatalf("build order event: %v", err)
	}
	value, err := json.Marshal(NewEnvelope(msg, time.Now()))
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	out := &sarama.ConsumerMessage{
		Topic:  TopicOrderEvents,
		Offset: offset,
		Key:    []byte(msg.AggregateID),
		Value:  value,
	}
	if retries > 0 {
		out.Headers = []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(retries))}}
	}
	return out
}

func TestNewConsumerErrors(t *testing.T) {
	handler := func(context.Context, *sarama.ConsumerMessage) error { return nil }
	if _, err := NewConsumer([]string{"invalid-broker:9092"}, "orderdesk-test", []string{TopicOrderEvents}, handler); err == nil {
		t.Fatal("expected new consumer error")
	}
	if _, err := NewConsumer([]string{"invalid-broker:9092"}, "orderdesk-test", []string{TopicOrderEvents}, handler,
		WithMaxRetries(5), WithOldestOffset(), WithRetryDelay(time.Millisecond),
		WithConsumerLogger(log.WithField("test", "options"))); err == nil {
		t.Fatal("expected new consumer error with options")
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	var gotTopics []string
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, topics []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			gotTopics = topics
			cancel()
			return errors.New("rebalance")
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := &Consumer{
		consumer:   group,
		topics:     []string{TopicOrderEvents},
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "consumer"),
		maxRetries: 2,
	}

	errorsCh <- errors.New("background error")
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls != 1 {
		t.Fatalf("consume must stop after ctx cancel, got %d calls", consumeCalls)
	}
	if len(gotTopics) != 1 || gotTopics[0] != TopicOrderEvents {
		t.Fatalf("unexpected topics: %v", gotTopics)
	}
}

func TestConsumerStopError(t *testing.T) {
	errorsCh := make(chan error)
	group := &mockConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}
	consumer := &Consumer{consumer: group, logger: log.WithField("test", "stop")}
	if err := consumer.Stop(); err == nil {
		t.Fatal("expected stop error")
	}
}

func TestConsumerSetupCleanup(t *testing.T) {
	consumer := &Consumer{}
	if err := consumer.Setup(nil); err != nil {
		t.Fatalf("setup should return nil: %v", err)
	}
	if err := consumer.Cleanup(nil); err != nil {
		t.Fatalf("cleanup should return nil: %v", err)
	}
}

func TestConsumeClaim_MarksOnlyHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	consumer := &Consumer{
		handler: func(_ context.Context, msg *sarama.ConsumerMessage) error {
			envelope, err := ParseEnvelope(msg)
			if err != nil {
				return err
			}
			seen = append(seen, envelope.AggregateID)
			return nil
		},
		logger:     log.WithField("test", "claim"),
		maxRetries: 1,
	}

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- orderEventMessage(t, 1, 0)
	claim.messages <- &sarama.ConsumerMessage{Topic: TopicOrderEvents, Offset: 2, Value: []byte("{")}
	claim.messages <- orderEventMessage(t, 3, 0)
	close(claim.messages)

	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "order-1" || seen[1] != "order-3" {
		t.Fatalf("unexpected handled orders: %v", seen)
	}
	if len(session.marked) != 2 || session.marked[1].Offset != 3 {
		t.Fatalf("malformed message must stay unmarked, marked=%d", len(session.marked))
	}
}

func TestHandleMessageWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		priorRetries int
		maxRetries   int
		failures     int
		dlq          func(*mocks.SyncProducer)
		wantAttempts int
		wantErr      bool
	}{
		{name: "success", maxRetries: 2, wantAttempts: 1},
		{name: "recovers after retry", maxRetries: 3, failures: 1, wantAttempts: 2},
		{name: "retry below limit", priorRetries: 1, maxRetries: 3, failures: 10, wantAttempts: 2, wantErr: true},
		{name: "max retries without dlq", priorRetries: 3, maxRetries: 3, failures: 10, wantAttempts: 1, wantErr: true},
		{
			name: "max retries with dlq", priorRetries: 3, maxRetries: 3, failures: 10, wantAttempts: 1,
			dlq: func(p *mocks.SyncProducer) { p.ExpectSendMessageAndSucceed() },
		},
		{
			name: "dlq failure", priorRetries: 3, maxRetries: 3, failures: 10, wantAttempts: 1, wantErr: true,
			dlq: func(p *mocks.SyncProducer) { p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			attempts := 0
			consumer := &Consumer{
				handler: func(context.Context, *sarama.ConsumerMessage) error {
					attempts++
					if attempts <= tc.failures {
						return errors.New("projection unavailable")
					}
					return nil
				},
				logger:     log.WithField("test", tc.name),
				maxRetries: tc.maxRetries,
			}

			var mockProducer *mocks.SyncProducer
			if tc.dlq != nil {
				mockProducer = mocks.NewSyncProducer(t, nil)
				tc.dlq(mockProducer)
				consumer.dlqProducer = NewProducerFromSync(mockProducer, log.WithField("test", "dlq"))
			}

			err := consumer.handleMessageWithRetry(context.Background(), orderEventMessage(t, 7, tc.priorRetries))
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if attempts != tc.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, attempts)
			}
			if mockProducer != nil {
				if err := mockProducer.Close(); err != nil {
					t.Fatal(err)
				}
			}
		})
	}
}

func TestHandleMessageWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			cancel()
			return errors.New("temporary")
		},
		logger:     log.WithField("test", "retry-cancel"),
		maxRetries: 5,
		retryDelay: time.Hour,
	}
	if err := consumer.handleMessageWithRetry(ctx, orderEventMessage(t, 1, 0)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGetRetryCount(t *testing.T) {
	consumer := &Consumer{}
	if got := consumer.getRetryCount(orderEventMessage(t, 1, 5)); got != 5 {
		t.Fatalf("unexpected retry count: %d", got)
	}
	invalid := &sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{nil, {Key: []byte(HeaderRetryCount), Value: []byte("bad")}}}
	if got := consumer.getRetryCount(invalid); got != 0 {
		t.Fatalf("invalid retry count should fallback to 0, got %d", got)
	}
}

func TestParseEnvelope(t *testing.T) {
	envelope, err := ParseEnvelope(orderEventMessage(t, 4, 0))
	if err != nil {
		t.Fatalf("ParseEnvelope failed: %v", err)
	}
	if envelope.EventType != domain.EventOrderPlaced || envelope.AggregateType != domain.AggregateOrder {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	event, err := envelope.OrderEvent()
	if err != nil {
		t.Fatalf("OrderEvent failed: %v", err)
	}
	if event.OrderID != "order-4" || event.LineCount != 2 || event.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order event: %+v", event)
	}

	if _, err := ParseEnvelope(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected ParseEnvelope error")
	}
	if _, err := ParseEnvelope(&sarama.ConsumerMessage{Value: []byte(`{"id":"m-2"}`)}); err == nil {
		t.Fatal("expected error for envelope without event type")
	}
	if _, err := (Envelope{Payload: json.RawMessage(`"text"`)}).OrderEvent(); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}

func TestSendToDLQ(t *testing.T) {
	original := orderEventMessage(t, 42, 0)

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		value, _ := msg.Value.Encode()
		if string(value) != string(original.Value) {
			return errors.New("dlq must keep the original value")
		}
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		switch {
		case headers[HeaderOriginalTopic] != TopicOrderEvents:
			return errors.New("original topic header is missing")
		case headers[HeaderErrorMessage] != "boom":
			return errors.New("error header is missing")
		case headers[HeaderRetryCount] != "3":
			return errors.New("retry count header is missing")
		case headers[HeaderFailedAt] == "":
			return errors.New("failed-at header is missing")
		}
		return nil
	})

	consumer := &Consumer{
		dlqProducer: NewProducerFromSync(mockProducer, log.WithField("test", "send-dlq")),
		logger:      log.WithField("test", "consumer-send-dlq"),
	}
	if err := consumer.sendToDLQ(context.Background(), original, errors.New("boom"), 3); err != nil {
		t.Fatalf("sendToDLQ failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "claim-stop"),
		maxRetries: 1,
	}
	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
