package repository

import (
	"context"

	"github.com/polkiloo/agrilink/internal/domain/model"
)

// ReconciliationRepository keeps the queue of captured payments not yet reflected on their orders.
type ReconciliationRepository interface {
	// Enqueue is idempotent per reference.
	Enqueue(ctx context.Context, orderID, reference, reason string) (*model.Reconciliation, error)
	ListOpen(ctx context.Context, limit int) ([]model.Reconciliation, error)
	RecordAttempt(ctx context.Context, id int64, lastErr string) error
	Resolve(ctx context.Context, id int64) error
}
