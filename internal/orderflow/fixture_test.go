package orderflow

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/metrics"
	"github.com/polkiloo/agrilink/internal/test"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixedRefGateway hands out a caller chosen reference.
type fixedRefGateway struct {
	*payment.MockGateway
	ref string
}

func (g *fixedRefGateway) GenerateReference() string { return g.ref }

// statusGateway reports a fixed gateway status.
type statusGateway struct {
	*payment.MockGateway
	status payment.ChargeStatus
}

func (g *statusGateway) Status(context.Context, string) (payment.ChargeStatus, error) {
	return g.status, nil
}

// chargeHookGateway runs hook while a charge is being opened.
type chargeHookGateway struct {
	*payment.MockGateway
	hook func()
}

func (g *chargeHookGateway) Charge(ctx context.Context, req payment.ChargeRequest, callbacks payment.Callbacks) (*payment.Checkout, error) {
	g.hook()
	return g.MockGateway.Charge(ctx, req, callbacks)
}

type publishFunc func(ctx context.Context, event model.OrderEvent) error

func (f publishFunc) Publish(ctx context.Context, event model.OrderEvent) error { return f(ctx, event) }

type fixture struct {
	manager *Manager
	deps    Deps
	orders  *test.OrderStore
	recs    *test.ReconciliationStore
	users   *test.UserRepositoryStub
	lists   *test.ListingRepositoryStub
	gateway *payment.MockGateway
	events  *test.EventRecorder
	clock   *clock
	logs    *bytes.Buffer

	buyer   model.User
	seller  model.User
	officer model.User
	listing model.Listing
}

type fixtureOption func(*fixture)

func withGateway(wrap func(*payment.MockGateway) payment.Gateway) fixtureOption {
	return func(f *fixture) { f.deps.Gateway = wrap(f.gateway) }
}

func withPublisher(p Publisher) fixtureOption {
	return func(f *fixture) { f.deps.Events = p }
}

// within fails the test when fn does not return in time.
func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("call did not return within %v", d)
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		orders:  test.NewOrderStore(),
		recs:    &test.ReconciliationStore{},
		users:   test.NewUserRepositoryStub(),
		lists:   test.NewListingRepositoryStub(),
		gateway: payment.NewMockGateway("", "secret"),
		events:  &test.EventRecorder{},
		clock:   &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		logs:    &bytes.Buffer{},
	}
	f.orders.NowFunc = f.clock.Now

	f.buyer = f.users.Add(model.User{Email: "ama@example.com", Name: "Ama Mensah", Role: model.RoleBuyer})
	f.seller = f.users.Add(model.User{Email: "kofi@example.com", Name: "Kofi Farms", Role: model.RoleFarmer})
	f.officer = f.users.Add(model.User{Email: "officer@example.com", Name: "Officer", Role: model.RoleExtensionOfficer})
	f.listing = f.lists.Add(model.Listing{
		SellerID: f.seller.ID,
		Title:    "White maize",
		Price:    decimal.NewFromInt(1000),
		Unit:     "bag",
		InStock:  true,
	})

	f.deps = Deps{
		Orders:          f.orders,
		Reconciliations: f.recs,
		Gateway:         f.gateway,
		Events:          f.events,
		Metrics:         metrics.New(),
		Logger:          slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Currency:        "GHS",
		Now:             f.clock.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.manager = NewManager(f.deps, f.users, f.lists)
	return f
}

func (f *fixture) start(t *testing.T) *Session {
	t.Helper()
	s, err := f.manager.Start(context.Background(), f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	return s
}

func (f *fixture) submitted(t *testing.T) *Session {
	t.Helper()
	s := f.start(t)
	require.NoError(t, s.SetQuantity(50))
	require.NoError(t, s.SetDeliveryAddress("12 Market Road, Kumasi"))
	_, err := f.manager.Submit(context.Background(), s.ID(), f.buyer.ID)
	require.NoError(t, err)
	return s
}

func (f *fixture) approved(t *testing.T) *Session {
	t.Helper()
	s := f.submitted(t)
	_, err := f.manager.Decide(context.Background(), s.OrderID(), Decision{OfficerID: f.officer.ID, Approved: true, Notes: "ok"})
	require.NoError(t, err)
	return s
}

func (f *fixture) paying(t *testing.T) (*Session, *payment.Checkout) {
	t.Helper()
	s := f.approved(t)
	checkout, err := f.manager.Pay(context.Background(), s.ID(), f.buyer.ID)
	require.NoError(t, err)
	return s, checkout
}

func (f *fixture) paid(t *testing.T) *Session {
	t.Helper()
	s, checkout := f.paying(t)
	require.NoError(t, f.manager.PaymentSucceeded(context.Background(), checkout.Reference, ""))
	return s
}

func (f *fixture) stored(t *testing.T, s *Session) *model.Order {
	t.Helper()
	order, err := f.orders.GetByID(context.Background(), s.OrderID())
	require.NoError(t, err)
	return order
}
