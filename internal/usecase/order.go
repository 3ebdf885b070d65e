package usecase

import (
	"context"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/orderflow"
)

// OrderUseCase serves the order dashboards and the post-payment steps.
type OrderUseCase struct {
	orders repository.OrderRepository
	users  repository.UserRepository
	flow   *orderflow.Manager
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(orders repository.OrderRepository, users repository.UserRepository, flow *orderflow.Manager) *OrderUseCase {
	return &OrderUseCase{orders: orders, users: users, flow: flow}
}

// Purchases returns the orders placed by buyerID, newest first.
func (u *OrderUseCase) Purchases(ctx context.Context, buyerID int64) ([]model.Order, error) {
	return u.orders.ListByBuyer(ctx, buyerID)
}

// Sales returns the orders received by sellerID, newest first.
func (u *OrderUseCase) Sales(ctx context.Context, sellerID int64) ([]model.Order, error) {
	return u.orders.ListBySeller(ctx, sellerID)
}

// Get returns an order to its buyer, its seller or an extension officer.
func (u *OrderUseCase) Get(ctx context.Context, userID int64, id string) (*model.Order, error) {
	order, err := u.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID == userID || order.SellerID == userID {
		return order, nil
	}
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Role.CanValidate() {
		return nil, domainErrors.ErrNotFound
	}
	return order, nil
}

// Dispatch lets the seller mark a paid order as handed to a courier.
func (u *OrderUseCase) Dispatch(ctx context.Context, sellerID int64, id string) (*model.Order, error) {
	order, err := u.party(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, domainErrors.ErrForbidden
	}
	return u.flow.Dispatch(ctx, id)
}

// ConfirmDelivery lets the buyer confirm receipt, which releases the payment.
func (u *OrderUseCase) ConfirmDelivery(ctx context.Context, buyerID int64, id string) (*model.Order, error) {
	order, err := u.party(ctx, buyerID, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domainErrors.ErrForbidden
	}
	return u.flow.CompleteOrder(ctx, id)
}

func (u *OrderUseCase) party(ctx context.Context, userID int64, id string) (*model.Order, error) {
	order, err := u.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, domainErrors.ErrNotFound
	}
	return order, nil
}
