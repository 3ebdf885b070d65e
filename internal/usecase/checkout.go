package usecase

import (
	"context"
	"log/slog"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/orderflow"
)

// CheckoutUpdate changes the draft. Nil fields are left as they are.
type CheckoutUpdate struct {
	Quantity        *int
	DeliveryAddress *string
}

// CheckoutUseCase drives buyer checkout sessions and payment notifications.
type CheckoutUseCase struct {
	flow    *orderflow.Manager
	gateway payment.Gateway
	logger  *slog.Logger
}

// NewCheckoutUseCase constructs CheckoutUseCase.
func NewCheckoutUseCase(flow *orderflow.Manager, gateway payment.Gateway, logger *slog.Logger) *CheckoutUseCase {
	return &CheckoutUseCase{flow: flow, gateway: gateway, logger: logger}
}

// Start opens a session for buyerID on listingID.
func (u *CheckoutUseCase) Start(ctx context.Context, buyerID, listingID int64) (orderflow.Snapshot, error) {
	s, err := u.flow.Start(ctx, buyerID, listingID)
	if err != nil {
		return orderflow.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Resume returns a session for an order submitted earlier.
func (u *CheckoutUseCase) Resume(ctx context.Context, buyerID int64, orderID string) (orderflow.Snapshot, error) {
	s, err := u.flow.Resume(ctx, buyerID, orderID)
	if err != nil {
		return orderflow.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Get returns the current session state.
func (u *CheckoutUseCase) Get(buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	s, err := u.flow.Session(sessionID, buyerID)
	if err != nil {
		return orderflow.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Update edits the draft quantity and delivery address.
func (u *CheckoutUseCase) Update(buyerID int64, sessionID string, upd CheckoutUpdate) (orderflow.Snapshot, error) {
	s, err := u.flow.Session(sessionID, buyerID)
	if err != nil {
		return orderflow.Snapshot{}, err
	}
	if upd.Quantity != nil {
		if err := s.SetQuantity(*upd.Quantity); err != nil {
			return orderflow.Snapshot{}, err
		}
	}
	if upd.DeliveryAddress != nil {
		if err := s.SetDeliveryAddress(*upd.DeliveryAddress); err != nil {
			return orderflow.Snapshot{}, err
		}
	}
	return s.Snapshot(), nil
}

// Submit sends the draft for validation.
func (u *CheckoutUseCase) Submit(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if _, err := u.flow.Submit(ctx, sessionID, buyerID); err != nil {
		return orderflow.Snapshot{}, err
	}
	return u.Get(buyerID, sessionID)
}

// Pay opens a gateway charge for the approved order.
func (u *CheckoutUseCase) Pay(ctx context.Context, buyerID int64, sessionID string) (*payment.Checkout, error) {
	return u.flow.Pay(ctx, sessionID, buyerID)
}

// CancelPayment closes the open charge after the buyer dismissed the payment dialog.
func (u *CheckoutUseCase) CancelPayment(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if err := u.flow.PaymentCancelled(ctx, sessionID, buyerID); err != nil {
		return orderflow.Snapshot{}, err
	}
	return u.Get(buyerID, sessionID)
}

// Cancel abandons the order before payment.
func (u *CheckoutUseCase) Cancel(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if _, err := u.flow.Cancel(ctx, sessionID, buyerID); err != nil {
		return orderflow.Snapshot{}, err
	}
	return u.Get(buyerID, sessionID)
}

// PaymentCallback handles the success callback of the client checkout widget.
func (u *CheckoutUseCase) PaymentCallback(ctx context.Context, reference, orderID string) error {
	return u.flow.PaymentSucceeded(ctx, reference, orderID)
}

// Webhook verifies and applies a gateway notification. Events other than a captured charge are ignored.
func (u *CheckoutUseCase) Webhook(ctx context.Context, body []byte, signature string) error {
	if !u.gateway.VerifyWebhook(body, signature) {
		return payment.ErrInvalidSignature
	}
	event, err := payment.ParseWebhook(body)
	if err != nil {
		return err
	}
	if event.Event != payment.EventChargeSuccess {
		u.logger.Debug("ignoring webhook event",
			slog.String("event", event.Event),
			slog.String("reference", event.Data.Reference),
		)
		return nil
	}
	return u.flow.PaymentSucceeded(ctx, event.Data.Reference, event.OrderID())
}
