// Package facadestub provides a controllable marketplace facade for HTTP tests.
package facadestub

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/orderflow"
	pkgAuth "github.com/polkiloo/agrilink/internal/pkg/auth"
	"github.com/polkiloo/agrilink/internal/usecase"
)

// Marketplace implements every facade operation used by handlers.
// Nil functions fall back to canned successful answers.
type Marketplace struct {
	RegisterFn     func(context.Context, usecase.RegisterInput) (string, error)
	AuthenticateFn func(context.Context, string, string) (string, error)
	ParseFn        func(string) (pkgAuth.Claims, error)

	CreateListingFn  func(context.Context, int64, usecase.ListingInput) (*model.Listing, error)
	UpdateListingFn  func(context.Context, int64, int64, usecase.ListingInput) (*model.Listing, error)
	DeleteListingFn  func(context.Context, int64, int64) error
	ListingFn        func(context.Context, int64) (*model.Listing, error)
	ListingsFn       func(context.Context, model.ListingFilter) ([]model.Listing, error)
	SellerListingsFn func(context.Context, int64) ([]model.Listing, error)

	StartCheckoutFn  func(context.Context, int64, int64) (orderflow.Snapshot, error)
	ResumeCheckoutFn func(context.Context, int64, string) (orderflow.Snapshot, error)
	CheckoutFn       func(int64, string) (orderflow.Snapshot, error)
	UpdateCheckoutFn func(int64, string, usecase.CheckoutUpdate) (orderflow.Snapshot, error)
	SubmitFn         func(context.Context, int64, string) (orderflow.Snapshot, error)
	PayFn            func(context.Context, int64, string) (*payment.Checkout, error)
	CancelPaymentFn  func(context.Context, int64, string) (orderflow.Snapshot, error)
	CancelCheckoutFn func(context.Context, int64, string) (orderflow.Snapshot, error)

	CallbackFn func(context.Context, string, string) error
	WebhookFn  func(context.Context, []byte, string) error

	PurchasesFn       func(context.Context, int64) ([]model.Order, error)
	SalesFn           func(context.Context, int64) ([]model.Order, error)
	OrderFn           func(context.Context, int64, string) (*model.Order, error)
	DispatchFn        func(context.Context, int64, string) (*model.Order, error)
	ConfirmDeliveryFn func(context.Context, int64, string) (*model.Order, error)

	QueueFn  func(context.Context, int64, int) ([]model.Order, error)
	DecideFn func(context.Context, int64, string, bool, string) (*model.Order, error)

	HealthErr error
}

// DefaultListing is returned by listing lookups unless overridden.
func DefaultListing() model.Listing {
	return model.Listing{
		ID:        1,
		SellerID:  2,
		Title:     "Maize",
		Price:     decimal.NewFromInt(200),
		Unit:      "bag",
		InStock:   true,
		CreatedAt: time.Unix(0, 0).UTC(),
	}
}

// DefaultOrder is returned by order lookups unless overridden.
func DefaultOrder() model.Order {
	q := model.NewQuote(decimal.NewFromInt(200), 50)
	return model.Order{
		ID:              "order-1",
		BuyerID:         1,
		SellerID:        2,
		ListingID:       1,
		Quantity:        50,
		UnitPrice:       q.UnitPrice,
		TotalAmount:     q.TotalAmount,
		EscrowFee:       q.EscrowFee,
		AmountDue:       q.AmountDue,
		DeliveryAddress: "Tamale market",
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
	}
}

// DefaultSnapshot describes a fresh session in the details stage.
func DefaultSnapshot(id string) orderflow.Snapshot {
	listing := DefaultListing()
	return orderflow.Snapshot{
		ID:          id,
		Stage:       orderflow.StageDetails,
		Listing:     listing,
		Quantity:    model.MinOrderQuantity,
		MinQuantity: listing.EffectiveMinOrder(),
		Quote:       model.NewQuote(listing.Price, model.MinOrderQuantity),
	}
}

func (s Marketplace) Register(ctx context.Context, in usecase.RegisterInput) (string, error) {
	if s.RegisterFn != nil {
		return s.RegisterFn(ctx, in)
	}
	return "token", nil
}

func (s Marketplace) Authenticate(ctx context.Context, email, password string) (string, error) {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(ctx, email, password)
	}
	return "token", nil
}

// ParseToken returns a buyer with id 1 unless overridden.
func (s Marketplace) ParseToken(token string) (pkgAuth.Claims, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return pkgAuth.Claims{UserID: 1, Role: string(model.RoleBuyer)}, nil
}

func (s Marketplace) CreateListing(ctx context.Context, sellerID int64, in usecase.ListingInput) (*model.Listing, error) {
	if s.CreateListingFn != nil {
		return s.CreateListingFn(ctx, sellerID, in)
	}
	l := DefaultListing()
	l.SellerID, l.Title, l.Price = sellerID, in.Title, in.Price
	return &l, nil
}

func (s Marketplace) UpdateListing(ctx context.Context, sellerID, id int64, in usecase.ListingInput) (*model.Listing, error) {
	if s.UpdateListingFn != nil {
		return s.UpdateListingFn(ctx, sellerID, id, in)
	}
	l := DefaultListing()
	l.ID, l.SellerID, l.Title, l.Price = id, sellerID, in.Title, in.Price
	return &l, nil
}

func (s Marketplace) DeleteListing(ctx context.Context, sellerID, id int64) error {
	if s.DeleteListingFn != nil {
		return s.DeleteListingFn(ctx, sellerID, id)
	}
	return nil
}

func (s Marketplace) Listing(ctx context.Context, id int64) (*model.Listing, error) {
	if s.ListingFn != nil {
		return s.ListingFn(ctx, id)
	}
	l := DefaultListing()
	l.ID = id
	return &l, nil
}

func (s Marketplace) Listings(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	if s.ListingsFn != nil {
		return s.ListingsFn(ctx, filter)
	}
	return []model.Listing{DefaultListing()}, nil
}

func (s Marketplace) SellerListings(ctx context.Context, sellerID int64) ([]model.Listing, error) {
	if s.SellerListingsFn != nil {
		return s.SellerListingsFn(ctx, sellerID)
	}
	return []model.Listing{DefaultListing()}, nil
}

func (s Marketplace) StartCheckout(ctx context.Context, buyerID, listingID int64) (orderflow.Snapshot, error) {
	if s.StartCheckoutFn != nil {
		return s.StartCheckoutFn(ctx, buyerID, listingID)
	}
	return DefaultSnapshot("session-1"), nil
}

func (s Marketplace) ResumeCheckout(ctx context.Context, buyerID int64, orderID string) (orderflow.Snapshot, error) {
	if s.ResumeCheckoutFn != nil {
		return s.ResumeCheckoutFn(ctx, buyerID, orderID)
	}
	return DefaultSnapshot("session-1"), nil
}

func (s Marketplace) Checkout(buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if s.CheckoutFn != nil {
		return s.CheckoutFn(buyerID, sessionID)
	}
	return DefaultSnapshot(sessionID), nil
}

func (s Marketplace) UpdateCheckout(buyerID int64, sessionID string, upd usecase.CheckoutUpdate) (orderflow.Snapshot, error) {
	if s.UpdateCheckoutFn != nil {
		return s.UpdateCheckoutFn(buyerID, sessionID, upd)
	}
	return DefaultSnapshot(sessionID), nil
}

func (s Marketplace) SubmitCheckout(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if s.SubmitFn != nil {
		return s.SubmitFn(ctx, buyerID, sessionID)
	}
	snap := DefaultSnapshot(sessionID)
	order := DefaultOrder()
	snap.Stage, snap.Validation, snap.Order = orderflow.StageValidation, orderflow.ValidationPending, &order
	return snap, nil
}

func (s Marketplace) Pay(ctx context.Context, buyerID int64, sessionID string) (*payment.Checkout, error) {
	if s.PayFn != nil {
		return s.PayFn(ctx, buyerID, sessionID)
	}
	return &payment.Checkout{Reference: "AGRILINK-order-1-1", Amount: 1_020_000, Currency: "GHS"}, nil
}

func (s Marketplace) CancelPayment(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if s.CancelPaymentFn != nil {
		return s.CancelPaymentFn(ctx, buyerID, sessionID)
	}
	return DefaultSnapshot(sessionID), nil
}

func (s Marketplace) CancelCheckout(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	if s.CancelCheckoutFn != nil {
		return s.CancelCheckoutFn(ctx, buyerID, sessionID)
	}
	snap := DefaultSnapshot(sessionID)
	snap.Stage = orderflow.StageCancelled
	return snap, nil
}

func (s Marketplace) PaymentCallback(ctx context.Context, reference, orderID string) error {
	if s.CallbackFn != nil {
		return s.CallbackFn(ctx, reference, orderID)
	}
	return nil
}

func (s Marketplace) PaymentWebhook(ctx context.Context, body []byte, signature string) error {
	if s.WebhookFn != nil {
		return s.WebhookFn(ctx, body, signature)
	}
	return nil
}

func (s Marketplace) Purchases(ctx context.Context, buyerID int64) ([]model.Order, error) {
	if s.PurchasesFn != nil {
		return s.PurchasesFn(ctx, buyerID)
	}
	return []model.Order{DefaultOrder()}, nil
}

func (s Marketplace) Sales(ctx context.Context, sellerID int64) ([]model.Order, error) {
	if s.SalesFn != nil {
		return s.SalesFn(ctx, sellerID)
	}
	return []model.Order{DefaultOrder()}, nil
}

func (s Marketplace) Order(ctx context.Context, userID int64, id string) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, userID, id)
	}
	o := DefaultOrder()
	o.ID = id
	return &o, nil
}

func (s Marketplace) Dispatch(ctx context.Context, sellerID int64, id string) (*model.Order, error) {
	if s.DispatchFn != nil {
		return s.DispatchFn(ctx, sellerID, id)
	}
	o := DefaultOrder()
	o.ID, o.Status, o.PaymentStatus = id, model.OrderStatusInDelivery, model.PaymentStatusPaid
	return &o, nil
}

func (s Marketplace) ConfirmDelivery(ctx context.Context, buyerID int64, id string) (*model.Order, error) {
	if s.ConfirmDeliveryFn != nil {
		return s.ConfirmDeliveryFn(ctx, buyerID, id)
	}
	o := DefaultOrder()
	o.ID, o.Status, o.PaymentStatus = id, model.OrderStatusCompleted, model.PaymentStatusReleased
	return &o, nil
}

func (s Marketplace) ValidationQueue(ctx context.Context, officerID int64, limit int) ([]model.Order, error) {
	if s.QueueFn != nil {
		return s.QueueFn(ctx, officerID, limit)
	}
	return []model.Order{DefaultOrder()}, nil
}

func (s Marketplace) DecideValidation(ctx context.Context, officerID int64, orderID string, approved bool, notes string) (*model.Order, error) {
	if s.DecideFn != nil {
		return s.DecideFn(ctx, officerID, orderID, approved, notes)
	}
	o := DefaultOrder()
	o.ID, o.ValidatedBy, o.ValidationNotes = orderID, officerID, notes
	o.Status = model.OrderStatusValidated
	return &o, nil
}

func (s Marketplace) Health(ctx context.Context) error {
	return s.HealthErr
}
