package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/polkiloo/agrilink/internal/config"
	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	testhelpers "github.com/polkiloo/agrilink/internal/test"
)

type writerStub struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *writerStub) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *writerStub) Close() error {
	w.closed = true
	return nil
}

type readerStub struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErr  error
	committed []int64
	closed    bool
}

func (r *readerStub) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.fetchErr = nil
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *readerStub) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *readerStub) Close() error {
	r.closed = true
	return nil
}

func (r *readerStub) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type confirmerStub struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (c *confirmerStub) ConfirmDelivery(_ context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, orderID)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return err
	}
	return nil
}

func (c *confirmerStub) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func deliveryMessage(t *testing.T, offset int64, orderID string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(model.DeliveryConfirmation{OrderID: orderID, Courier: "VanLink", ConfirmedAt: time.Now()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Offset: offset, Value: payload}
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	writer := &writerStub{}
	pub := &KafkaPublisher{writer: writer, logger: discardLogger()}

	event := model.NewOrderEvent(model.EventOrderPaid, model.Order{
		ID:               "order-1",
		Status:           model.OrderStatusPaid,
		PaymentStatus:    model.PaymentStatusPaid,
		PaymentReference: "AGRILINK-1-2",
	}, time.Now())

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(writer.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "order-1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "order.paid" {
		t.Fatalf("unexpected headers %v", msg.Headers)
	}

	var decoded model.OrderEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Reference != "AGRILINK-1-2" || decoded.Status != model.OrderStatusPaid {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	if err := pub.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to be closed, err %v", err)
	}
}

func TestNewKafkaPublisherFlushesQuickly(t *testing.T) {
	pub := NewKafkaPublisher([]string{"localhost:9092"}, "events", discardLogger())
	writer, ok := pub.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("unexpected writer %T", pub.writer)
	}
	if writer.BatchTimeout <= 0 || writer.BatchTimeout > publishBatchTimeout {
		t.Fatalf("expected batch timeout within %v, got %v", publishBatchTimeout, writer.BatchTimeout)
	}
	_ = pub.Close()
}

func TestKafkaPublisherError(t *testing.T) {
	var logs bytes.Buffer
	boom := errors.New("broker down")
	pub := &KafkaPublisher{writer: &writerStub{err: boom}, logger: slog.New(slog.NewJSONHandler(&logs, nil))}

	err := pub.Publish(context.Background(), model.OrderEvent{Type: model.EventOrderSubmitted, OrderID: "o"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("publish order event failed")) {
		t.Fatalf("expected error log, got %s", logs.String())
	}
}

func TestNopPublisher(t *testing.T) {
	if err := (NopPublisher{}).Publish(context.Background(), model.OrderEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (NopPublisher{Logger: discardLogger()}).Publish(context.Background(), model.OrderEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeliveryConsumerConfirmsAndCommits(t *testing.T) {
	reader := &readerStub{queue: []kafka.Message{
		deliveryMessage(t, 1, "order-1"),
		{Offset: 2, Value: []byte("not json")},
		deliveryMessage(t, 3, "order-2"),
	}}
	confirmer := &confirmerStub{}
	consumer := newDeliveryConsumer(reader, confirmer, discardLogger())
	consumer.backoff = time.Millisecond

	consumer.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := reader.commits(); len(got) != 3 {
		t.Fatalf("expected all three offsets committed, got %v", got)
	}
	if confirmer.callCount() != 2 || confirmer.calls[0] != "order-1" || confirmer.calls[1] != "order-2" {
		t.Fatalf("unexpected confirmations %v", confirmer.calls)
	}
	if !reader.closed {
		t.Fatal("expected reader to be closed")
	}
}

func TestDeliveryConsumerRetriesTransientFailures(t *testing.T) {
	confirmer := &confirmerStub{errs: []error{
		domainErrors.Transient("confirm delivery", errors.New("db down")),
		nil,
	}}
	consumer := newDeliveryConsumer(&readerStub{}, confirmer, discardLogger())
	consumer.backoff = time.Millisecond

	if !consumer.handle(context.Background(), deliveryMessage(t, 1, "order-1")) {
		t.Fatal("expected message to be settled after retry")
	}
	if confirmer.callCount() != 2 {
		t.Fatalf("expected one retry, got %d calls", confirmer.callCount())
	}
}

func TestDeliveryConsumerSettlement(t *testing.T) {
	transient := domainErrors.Transient("confirm delivery", errors.New("db down"))
	tests := []struct {
		name    string
		errs    []error
		settled bool
		calls   int
	}{
		{"confirmed", nil, true, 1},
		{"already completed", []error{domainErrors.ErrInvalidTransition}, true, 1},
		{"unknown order", []error{domainErrors.ErrNotFound}, true, 1},
		{"store down", []error{transient, transient, transient}, false, maxDeliveryAttempts},
		{"session busy", []error{domainErrors.ErrBusy}, false, 1},
		{"payment unreconciled", []error{domainErrors.ErrPaymentUnreconciled}, false, 1},
		{"unexpected", []error{errors.New("boom")}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmer := &confirmerStub{errs: tt.errs}
			consumer := newDeliveryConsumer(&readerStub{}, confirmer, discardLogger())
			consumer.backoff = time.Millisecond

			if got := consumer.handle(context.Background(), deliveryMessage(t, 1, "order-1")); got != tt.settled {
				t.Fatalf("expected settled=%v, got %v", tt.settled, got)
			}
			if confirmer.callCount() != tt.calls {
				t.Fatalf("expected %d calls, got %d", tt.calls, confirmer.callCount())
			}
		})
	}
}

func TestDeliveryConsumerHoldsOffsetUntilApplied(t *testing.T) {
	transient := domainErrors.Transient("confirm delivery", errors.New("db down"))
	reader := &readerStub{queue: []kafka.Message{deliveryMessage(t, 7, "order-7")}}
	confirmer := &confirmerStub{errs: []error{
		domainErrors.ErrBusy,
		domainErrors.ErrPaymentUnreconciled,
		transient, transient, transient,
	}}
	consumer := newDeliveryConsumer(reader, confirmer, discardLogger())
	consumer.backoff = time.Millisecond

	consumer.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := reader.commits(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected offset 7 committed once, got %v", got)
	}
	if confirmer.callCount() != 6 {
		t.Fatalf("expected redelivery until confirmed, got %d calls", confirmer.callCount())
	}
	for _, id := range confirmer.calls {
		if id != "order-7" {
			t.Fatalf("unexpected confirmation for %q", id)
		}
	}
}

func TestDeliveryConsumerStopsWithoutCommittingPending(t *testing.T) {
	reader := &readerStub{queue: []kafka.Message{deliveryMessage(t, 9, "order-9")}}
	confirmer := &confirmerStub{errs: []error{domainErrors.ErrPaymentUnreconciled}}
	consumer := newDeliveryConsumer(reader, confirmer, discardLogger())
	consumer.backoff = time.Hour

	consumer.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for confirmer.callCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := reader.commits(); len(got) != 0 {
		t.Fatalf("expected nothing committed, got %v", got)
	}
}

func TestDeliveryConsumerSurvivesFetchErrors(t *testing.T) {
	reader := &readerStub{
		fetchErr: errors.New("rebalance"),
		queue:    []kafka.Message{deliveryMessage(t, 7, "order-7")},
	}
	confirmer := &confirmerStub{}
	consumer := newDeliveryConsumer(reader, confirmer, discardLogger())
	consumer.backoff = time.Millisecond

	consumer.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if confirmer.callCount() != 1 {
		t.Fatalf("expected message after fetch error to be handled, got %d", confirmer.callCount())
	}
}

func TestDisabledConsumerIsNoop(t *testing.T) {
	consumer := newDeliveryConsumer(nil, &confirmerStub{}, discardLogger())
	consumer.Start(context.Background())
	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestModuleProviders(t *testing.T) {
	cfg := &config.Config{}
	if _, ok := newPublisher(publisherParams{Config: cfg, Logger: discardLogger()}).(NopPublisher); !ok {
		t.Fatal("expected nop publisher without brokers")
	}
	if c := newConsumer(consumerParams{Config: cfg, Confirmer: &confirmerStub{}, Logger: discardLogger()}); c.reader != nil {
		t.Fatal("expected disabled consumer without brokers")
	}

	cfg = &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaEventsTopic: "events", KafkaDeliveryTopic: "deliveries", KafkaGroupID: "g"}
	if _, ok := newPublisher(publisherParams{Config: cfg, Logger: discardLogger()}).(*KafkaPublisher); !ok {
		t.Fatal("expected kafka publisher with brokers")
	}
	c := newConsumer(consumerParams{Config: cfg, Confirmer: &confirmerStub{}, Logger: discardLogger()})
	if c.reader == nil {
		t.Fatal("expected kafka reader with brokers")
	}
	_ = c.reader.Close()
}

func TestRegisterLifecycleClosesPublisher(t *testing.T) {
	recorder := &testhelpers.LifecycleRecorder{}
	writer := &writerStub{}
	registerLifecycle(lifecycleParams{
		Lifecycle: recorder,
		Context:   context.Background(),
		Consumer:  newDeliveryConsumer(nil, &confirmerStub{}, discardLogger()),
		Publisher: &KafkaPublisher{writer: writer, logger: discardLogger()},
	})
	if len(recorder.Hooks) != 1 {
		t.Fatalf("expected one hook, got %d", len(recorder.Hooks))
	}
	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("on start: %v", err)
	}
	if err := recorder.Stop(context.Background()); err != nil {
		t.Fatalf("on stop: %v", err)
	}
	if !writer.closed {
		t.Fatal("expected publisher to be closed on stop")
	}
}
