package usecase

import (
	"context"
	"time"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/orderflow"
)

// ExpiredValidationNote is recorded on orders rejected because no officer decided in time.
const ExpiredValidationNote = "validation expired"

const defaultQueueLimit = 50

// ValidationUseCase serves the extension officer queue.
type ValidationUseCase struct {
	orders repository.OrderRepository
	users  repository.UserRepository
	flow   *orderflow.Manager
}

// NewValidationUseCase constructs ValidationUseCase.
func NewValidationUseCase(orders repository.OrderRepository, users repository.UserRepository, flow *orderflow.Manager) *ValidationUseCase {
	return &ValidationUseCase{orders: orders, users: users, flow: flow}
}

// Queue lists orders awaiting validation, oldest first.
func (u *ValidationUseCase) Queue(ctx context.Context, officerID int64, limit int) ([]model.Order, error) {
	if err := u.requireOfficer(ctx, officerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	return u.orders.ListPendingValidation(ctx, limit)
}

// Decide records an officer decision on a pending order.
func (u *ValidationUseCase) Decide(ctx context.Context, officerID int64, orderID string, approved bool, notes string) (*model.Order, error) {
	if err := u.requireOfficer(ctx, officerID); err != nil {
		return nil, err
	}
	return u.flow.Decide(ctx, orderID, orderflow.Decision{OfficerID: officerID, Approved: approved, Notes: notes})
}

// Stale lists pending orders submitted before olderThan.
func (u *ValidationUseCase) Stale(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	return u.orders.ListStalePendingValidation(ctx, olderThan, limit)
}

// Expire rejects a pending order nobody validated in time.
func (u *ValidationUseCase) Expire(ctx context.Context, orderID string) error {
	_, err := u.flow.Decide(ctx, orderID, orderflow.Decision{Notes: ExpiredValidationNote})
	return err
}

func (u *ValidationUseCase) requireOfficer(ctx context.Context, userID int64) error {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Role.CanValidate() {
		return domainErrors.ErrForbidden
	}
	return nil
}
