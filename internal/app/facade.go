package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/orderflow"
	pkgAuth "github.com/polkiloo/agrilink/internal/pkg/auth"
	"github.com/polkiloo/agrilink/internal/usecase"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// FacadeDeps are the collaborators of MarketplaceFacade.
type FacadeDeps struct {
	fx.In

	Auth            *usecase.AuthUseCase
	Listings        *usecase.ListingUseCase
	Orders          *usecase.OrderUseCase
	Validations     *usecase.ValidationUseCase
	Checkout        *usecase.CheckoutUseCase
	Flow            *orderflow.Manager
	Reconciliations repository.ReconciliationRepository
	Gateway         payment.Gateway
	Health          HealthChecker
}

// MarketplaceFacade is the single entry point of the HTTP layer and the workers.
type MarketplaceFacade struct {
	deps FacadeDeps
}

func NewMarketplaceFacade(deps FacadeDeps) *MarketplaceFacade {
	return &MarketplaceFacade{deps: deps}
}

func (f *MarketplaceFacade) Register(ctx context.Context, in usecase.RegisterInput) (string, error) {
	_, token, err := f.deps.Auth.Register(ctx, in)
	return token, err
}

func (f *MarketplaceFacade) Authenticate(ctx context.Context, email, password string) (string, error) {
	_, token, err := f.deps.Auth.Authenticate(ctx, email, password)
	return token, err
}

func (f *MarketplaceFacade) ParseToken(token string) (pkgAuth.Claims, error) {
	return f.deps.Auth.ParseToken(token)
}

func (f *MarketplaceFacade) CreateListing(ctx context.Context, sellerID int64, in usecase.ListingInput) (*model.Listing, error) {
	return f.deps.Listings.Create(ctx, sellerID, in)
}

func (f *MarketplaceFacade) UpdateListing(ctx context.Context, sellerID, id int64, in usecase.ListingInput) (*model.Listing, error) {
	return f.deps.Listings.Update(ctx, sellerID, id, in)
}

func (f *MarketplaceFacade) DeleteListing(ctx context.Context, sellerID, id int64) error {
	return f.deps.Listings.Delete(ctx, sellerID, id)
}

func (f *MarketplaceFacade) Listing(ctx context.Context, id int64) (*model.Listing, error) {
	return f.deps.Listings.Get(ctx, id)
}

func (f *MarketplaceFacade) Listings(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	return f.deps.Listings.Browse(ctx, filter)
}

func (f *MarketplaceFacade) SellerListings(ctx context.Context, sellerID int64) ([]model.Listing, error) {
	return f.deps.Listings.BySeller(ctx, sellerID)
}

func (f *MarketplaceFacade) StartCheckout(ctx context.Context, buyerID, listingID int64) (orderflow.Snapshot, error) {
	return f.deps.Checkout.Start(ctx, buyerID, listingID)
}

func (f *MarketplaceFacade) ResumeCheckout(ctx context.Context, buyerID int64, orderID string) (orderflow.Snapshot, error) {
	return f.deps.Checkout.Resume(ctx, buyerID, orderID)
}

func (f *MarketplaceFacade) Checkout(buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	return f.deps.Checkout.Get(buyerID, sessionID)
}

func (f *MarketplaceFacade) UpdateCheckout(buyerID int64, sessionID string, upd usecase.CheckoutUpdate) (orderflow.Snapshot, error) {
	return f.deps.Checkout.Update(buyerID, sessionID, upd)
}

func (f *MarketplaceFacade) SubmitCheckout(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	return f.deps.Checkout.Submit(ctx, buyerID, sessionID)
}

func (f *MarketplaceFacade) Pay(ctx context.Context, buyerID int64, sessionID string) (*payment.Checkout, error) {
	return f.deps.Checkout.Pay(ctx, buyerID, sessionID)
}

func (f *MarketplaceFacade) CancelPayment(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	return f.deps.Checkout.CancelPayment(ctx, buyerID, sessionID)
}

func (f *MarketplaceFacade) CancelCheckout(ctx context.Context, buyerID int64, sessionID string) (orderflow.Snapshot, error) {
	return f.deps.Checkout.Cancel(ctx, buyerID, sessionID)
}

func (f *MarketplaceFacade) PaymentCallback(ctx context.Context, reference, orderID string) error {
	return f.deps.Checkout.PaymentCallback(ctx, reference, orderID)
}

func (f *MarketplaceFacade) PaymentWebhook(ctx context.Context, body []byte, signature string) error {
	return f.deps.Checkout.Webhook(ctx, body, signature)
}

func (f *MarketplaceFacade) Purchases(ctx context.Context, buyerID int64) ([]model.Order, error) {
	return f.deps.Orders.Purchases(ctx, buyerID)
}

func (f *MarketplaceFacade) Sales(ctx context.Context, sellerID int64) ([]model.Order, error) {
	return f.deps.Orders.Sales(ctx, sellerID)
}

func (f *MarketplaceFacade) Order(ctx context.Context, userID int64, id string) (*model.Order, error) {
	return f.deps.Orders.Get(ctx, userID, id)
}

func (f *MarketplaceFacade) Dispatch(ctx context.Context, sellerID int64, id string) (*model.Order, error) {
	return f.deps.Orders.Dispatch(ctx, sellerID, id)
}

func (f *MarketplaceFacade) ConfirmDelivery(ctx context.Context, buyerID int64, id string) (*model.Order, error) {
	return f.deps.Orders.ConfirmDelivery(ctx, buyerID, id)
}

func (f *MarketplaceFacade) ValidationQueue(ctx context.Context, officerID int64, limit int) ([]model.Order, error) {
	return f.deps.Validations.Queue(ctx, officerID, limit)
}

func (f *MarketplaceFacade) DecideValidation(ctx context.Context, officerID int64, orderID string, approved bool, notes string) (*model.Order, error) {
	return f.deps.Validations.Decide(ctx, officerID, orderID, approved, notes)
}

// Health pings the database.
func (f *MarketplaceFacade) Health(ctx context.Context) error {
	return f.deps.Health.HealthCheck(ctx)
}

// The methods below serve the background workers.

func (f *MarketplaceFacade) OpenReconciliations(ctx context.Context, limit int) ([]model.Reconciliation, error) {
	return f.deps.Reconciliations.ListOpen(ctx, limit)
}

func (f *MarketplaceFacade) Reconcile(ctx context.Context, entry model.Reconciliation) (bool, error) {
	return f.deps.Flow.Reconcile(ctx, entry)
}

func (f *MarketplaceFacade) StaleCharges(olderThan time.Duration) []payment.PendingCharge {
	return f.deps.Gateway.Pending(olderThan)
}

func (f *MarketplaceFacade) SettleCharge(ctx context.Context, charge payment.PendingCharge) error {
	return f.deps.Flow.SettleCharge(ctx, charge)
}

func (f *MarketplaceFacade) PruneSessions(maxIdle time.Duration) int {
	return f.deps.Flow.Prune(maxIdle)
}

func (f *MarketplaceFacade) StaleValidations(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	return f.deps.Validations.Stale(ctx, olderThan, limit)
}

func (f *MarketplaceFacade) ExpireValidation(ctx context.Context, orderID string) error {
	return f.deps.Validations.Expire(ctx, orderID)
}
