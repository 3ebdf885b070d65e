package repository

import (
	"context"
	"time"

	"github.com/polkiloo/agrilink/internal/domain/model"
)

// StatusUpdate carries optional fields written together with a status change.
type StatusUpdate struct {
	// PaymentStatus, when set, is moved in the same transaction.
	PaymentStatus *model.PaymentStatus
	// ExpectedVersion, when positive, must match the stored version or the write fails with ErrConflict.
	ExpectedVersion int64
}

// OrderRepository describes persistence operations with orders.
// Every write is atomic per order, checks the transition rules and bumps the order version.
type OrderRepository interface {
	Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error)
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByReference(ctx context.Context, reference string) (*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, update StatusUpdate) (*model.Order, error)
	UpdatePayment(ctx context.Context, id, reference string, status model.PaymentStatus) (*model.Order, error)
	Validate(ctx context.Context, id string, validatorID int64, approved bool, notes string) (*model.Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]model.Order, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]model.Order, error)
	ListPendingValidation(ctx context.Context, limit int) ([]model.Order, error)
	ListStalePendingValidation(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error)
}
