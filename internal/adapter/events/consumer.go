package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

// DeliveryConfirmer completes an order once its goods have been delivered.
type DeliveryConfirmer interface {
	ConfirmDelivery(ctx context.Context, orderID string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	maxDeliveryAttempts  = 3
	fetchBackoff         = time.Second
	maxRedeliveryBackoff = 30 * time.Second
)

// DeliveryConsumer reads courier confirmations and completes the matching orders.
type DeliveryConsumer struct {
	reader    messageReader
	confirmer DeliveryConfirmer
	logger    *slog.Logger
	backoff   time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDeliveryConsumer creates a consumer group reader for topic.
func NewDeliveryConsumer(brokers []string, groupID, topic string, confirmer DeliveryConfirmer, logger *slog.Logger) *DeliveryConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return newDeliveryConsumer(reader, confirmer, logger)
}

func newDeliveryConsumer(reader messageReader, confirmer DeliveryConfirmer, logger *slog.Logger) *DeliveryConsumer {
	return &DeliveryConsumer{reader: reader, confirmer: confirmer, logger: logger, backoff: fetchBackoff}
}

// Start launches the consume loop. It is a no-op for a consumer without a reader.
func (c *DeliveryConsumer) Start(ctx context.Context) {
	if c.reader == nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop ends the loop and closes the reader.
func (c *DeliveryConsumer) Stop(ctx context.Context) error {
	if c.reader == nil || c.cancel == nil {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.reader.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DeliveryConsumer) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch delivery message failed", slog.Any("error", err))
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		// The offset only moves past a confirmation that was applied or can never apply.
		wait := c.backoff
		for !c.handle(ctx, msg) {
			if !sleep(ctx, wait) {
				return
			}
			wait = min(2*wait, maxRedeliveryBackoff)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit delivery message failed", slog.Any("error", err))
		}
	}
}

// handle applies one confirmation and reports whether the message is settled.
// Unsettled messages are redelivered by the caller.
func (c *DeliveryConsumer) handle(ctx context.Context, msg kafka.Message) bool {
	var confirmation model.DeliveryConfirmation
	if err := json.Unmarshal(msg.Value, &confirmation); err != nil || confirmation.OrderID == "" {
		c.logger.Warn("skipping malformed delivery message",
			slog.Int64("offset", msg.Offset),
			slog.Any("error", err),
		)
		return true
	}

	for attempt := 1; ; attempt++ {
		err := c.confirmer.ConfirmDelivery(ctx, confirmation.OrderID)
		switch {
		case err == nil:
			c.logger.Info("delivery confirmed",
				slog.String("order_id", confirmation.OrderID),
				slog.String("courier", confirmation.Courier),
			)
			return true
		case errors.Is(err, domainErrors.ErrInvalidTransition), errors.Is(err, domainErrors.ErrNotFound):
			c.logger.Warn("delivery confirmation ignored",
				slog.String("order_id", confirmation.OrderID),
				slog.Any("error", err),
			)
			return true
		case ctx.Err() != nil:
			return false
		case domainErrors.IsRetryable(err) && attempt < maxDeliveryAttempts:
			if !sleep(ctx, c.backoff) {
				return false
			}
		case domainErrors.IsRetryable(err),
			errors.Is(err, domainErrors.ErrBusy),
			errors.Is(err, domainErrors.ErrPaymentUnreconciled):
			c.logger.Warn("delivery confirmation deferred",
				slog.String("order_id", confirmation.OrderID),
				slog.Int("attempts", attempt),
				slog.Any("error", err),
			)
			return false
		default:
			c.logger.Error("delivery confirmation failed",
				slog.String("order_id", confirmation.OrderID),
				slog.Int("attempts", attempt),
				slog.Any("error", err),
			)
			return true
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
