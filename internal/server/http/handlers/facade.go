package handlers

import (
	"context"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/orderflow"
	pkgAuth "github.com/polkiloo/agrilink/internal/pkg/auth"
	"github.com/polkiloo/agrilink/internal/usecase"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, in usecase.RegisterInput) (string, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
	ParseToken(token string) (pkgAuth.Claims, error)
}

// ListingFacade exposes the seller catalogue.
type ListingFacade interface {
	CreateListing(ctx context.Context, sellerID int64, in usecase.ListingInput) (*model.Listing, error)
	UpdateListing(ctx context.Context, sellerID, id int64, in usecase.ListingInput) (*model.Listing, error)
	DeleteListing(ctx context.Context, sellerID, id int64) error
	Listing(ctx context.Context, id int64) (*model.Listing, error)
	Listings(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error)
	SellerListings(ctx context.Context, sellerID int64) ([]model.Listing, error)
}

// CheckoutFacade drives buyer checkout sessions.
type CheckoutFacade interface {
	StartCheckout(ctx context.Context, buyerID, listingID int64) (orderflow.Snapshot, error)
	ResumeCheckout(ctx context.Context, buyerID int64, orderID string) (orderflow.Snapshot, error)
	Checkout(buyerID int64, sessionID string) (orderflow.Snapshot, error)
	UpdateCheckout(buyerID int64, sessionID string, upd usecase.CheckoutUpdate) (orderflow.Snapshot, error)
	SubmitCheckout(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error)
	Pay(ctx context.Context, buyerID int64, sessionID string) (*payment.Checkout, error)
	CancelPayment(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error)
	CancelCheckout(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error)
}

// PaymentFacade receives gateway outcomes.
type PaymentFacade interface {
	PaymentCallback(ctx context.Context, reference, orderID string) error
	PaymentWebhook(ctx context.Context, body []byte, signature string) error
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	Purchases(ctx context.Context, buyerID int64) ([]model.Order, error)
	Sales(ctx context.Context, sellerID int64) ([]model.Order, error)
	Order(ctx context.Context, userID int64, id string) (*model.Order, error)
	Dispatch(ctx context.Context, sellerID int64, id string) (*model.Order, error)
	ConfirmDelivery(ctx context.Context, buyerID int64, id string) (*model.Order, error)
}

// ValidationFacade serves extension officers.
type ValidationFacade interface {
	ValidationQueue(ctx context.Context, officerID int64, limit int) ([]model.Order, error)
	DecideValidation(ctx context.Context, officerID int64, orderID string, approved bool, notes string) (*model.Order, error)
}

// HealthFacade reports dependency health.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// MarketplaceFacade aggregates the full set of operations used across handlers.
type MarketplaceFacade interface {
	AuthFacade
	ListingFacade
	CheckoutFacade
	PaymentFacade
	OrderFacade
	ValidationFacade
	HealthFacade
}
