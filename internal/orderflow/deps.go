package orderflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/metrics"
)

// Publisher announces persisted order transitions.
type Publisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

// Recorder counts order flow outcomes.
type Recorder interface {
	OrderTransition(status model.OrderStatus)
	Payment(outcome string)
	Reconciliation(result string)
}

// Deps are the collaborators shared by every session of a manager.
type Deps struct {
	Orders          repository.OrderRepository
	Reconciliations repository.ReconciliationRepository
	Gateway         payment.Gateway
	Events          Publisher
	Metrics         Recorder
	Logger          *slog.Logger
	Currency        string
	Channels        []payment.Channel
	Now             func() time.Time

	// track indexes a session by its order as soon as the order exists.
	track func(orderID string, s *Session)
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// publish emits an event for an already persisted transition. Failures are logged only.
func (d *Deps) publish(ctx context.Context, kind model.OrderEventType, order model.Order) {
	if err := d.Events.Publish(ctx, model.NewOrderEvent(kind, order, d.now())); err != nil {
		d.Logger.Warn("order event not published",
			slog.String("type", string(kind)),
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
	}
}

// enqueueReconciliation records a captured payment that could not be written to its order.
func (d *Deps) enqueueReconciliation(ctx context.Context, order model.Order, reference string, cause error) *domainErrors.ReconciliationError {
	recErr := &domainErrors.ReconciliationError{OrderID: order.ID, Reference: reference, Err: cause}
	d.Logger.Error("payment captured but order not updated",
		slog.String("order_id", order.ID),
		slog.String("reference", reference),
		slog.Any("error", cause),
	)
	if _, err := d.Reconciliations.Enqueue(ctx, order.ID, reference, cause.Error()); err != nil {
		d.Logger.Error("reconciliation not enqueued",
			slog.String("order_id", order.ID),
			slog.String("reference", reference),
			slog.Any("error", err),
		)
	}
	d.Metrics.Reconciliation(metrics.ReconcileQueued)
	order.PaymentReference = reference
	d.publish(ctx, model.EventPaymentUnreconciled, order)
	return recErr
}

// storeError keeps business errors as they are and marks everything else transient.
func storeError(op string, err error) error {
	for _, known := range []error{
		domainErrors.ErrNotFound,
		domainErrors.ErrInvalidTransition,
		domainErrors.ErrConflict,
		domainErrors.ErrQuantityBelowMinimum,
		domainErrors.ErrEmptyDeliveryAddress,
		domainErrors.ErrAlreadyExists,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return domainErrors.Transient(op, err)
}
