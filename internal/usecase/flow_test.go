package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/metrics"
	"github.com/polkiloo/agrilink/internal/orderflow"
	testhelpers "github.com/polkiloo/agrilink/internal/test"
)

// flowEnv wires a real order flow manager over in-memory stores.
type flowEnv struct {
	users    *testhelpers.UserRepositoryStub
	listings *testhelpers.ListingRepositoryStub
	orders   *testhelpers.OrderStore
	gateway  *payment.MockGateway
	manager  *orderflow.Manager
	logger   *slog.Logger

	buyer   model.User
	seller  model.User
	officer model.User
	listing model.Listing
}

func newFlowEnv() *flowEnv {
	env := &flowEnv{
		users:    testhelpers.NewUserRepositoryStub(),
		listings: testhelpers.NewListingRepositoryStub(),
		orders:   testhelpers.NewOrderStore(),
		gateway:  payment.NewMockGateway("", "secret"),
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	env.buyer = env.users.Add(model.User{Email: "ama@example.com", Name: "Ama", Role: model.RoleBuyer})
	env.seller = env.users.Add(model.User{Email: "kofi@example.com", Name: "Kofi", Role: model.RoleFarmer})
	env.officer = env.users.Add(model.User{Email: "esi@example.com", Name: "Esi", Role: model.RoleExtensionOfficer})
	env.listing = env.listings.Add(model.Listing{
		SellerID: env.seller.ID,
		Title:    "Cocoa beans",
		Price:    decimal.NewFromInt(200),
		Unit:     "kg",
		InStock:  true,
	})
	env.manager = orderflow.NewManager(orderflow.Deps{
		Orders:          env.orders,
		Reconciliations: &testhelpers.ReconciliationStore{},
		Gateway:         env.gateway,
		Events:          &testhelpers.EventRecorder{},
		Metrics:         metrics.New(),
		Logger:          env.logger,
		Currency:        "GHS",
	}, env.users, env.listings)
	return env
}

// submitted places an order of 50 units and returns its session snapshot.
func (env *flowEnv) submitted(t *testing.T) orderflow.Snapshot {
	t.Helper()
	uc := NewCheckoutUseCase(env.manager, env.gateway, env.logger)
	ctx := context.Background()
	snap, err := uc.Start(ctx, env.buyer.ID, env.listing.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	address := "Adum, Kumasi"
	if _, err := uc.Update(env.buyer.ID, snap.ID, CheckoutUpdate{DeliveryAddress: &address}); err != nil {
		t.Fatalf("update: %v", err)
	}
	snap, err = uc.Submit(ctx, env.buyer.ID, snap.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return snap
}

// paid takes an order through validation and payment.
func (env *flowEnv) paid(t *testing.T) orderflow.Snapshot {
	t.Helper()
	ctx := context.Background()
	snap := env.submitted(t)
	if _, err := env.manager.Decide(ctx, snap.Order.ID, orderflow.Decision{OfficerID: env.officer.ID, Approved: true}); err != nil {
		t.Fatalf("decide: %v", err)
	}
	checkout, err := env.manager.Pay(ctx, snap.ID, env.buyer.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := env.manager.PaymentSucceeded(ctx, checkout.Reference, ""); err != nil {
		t.Fatalf("payment: %v", err)
	}
	s, err := env.manager.Session(snap.ID, env.buyer.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return s.Snapshot()
}
