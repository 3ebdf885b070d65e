package payment

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockGateway settles charges in process. It backs local runs without a gateway URL and tests.
type MockGateway struct {
	refs     *ReferenceGenerator
	registry *chargeRegistry
	secret   string

	mu        sync.RWMutex
	statuses  map[string]ChargeStatus
	chargeErr error
	statusErr error
}

// NewMockGateway creates an in-process gateway. secret signs webhooks.
func NewMockGateway(prefix, secret string) *MockGateway {
	return &MockGateway{
		refs:     NewReferenceGenerator(prefix),
		registry: newChargeRegistry(),
		secret:   secret,
		statuses: make(map[string]ChargeStatus),
	}
}

// FailCharges makes subsequent Charge calls return err. A nil err restores normal behaviour.
func (g *MockGateway) FailCharges(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeErr = err
}

// FailStatus makes subsequent Status calls return err.
func (g *MockGateway) FailStatus(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusErr = err
}

// Capture marks a charge as paid on the gateway side without delivering the callback.
func (g *MockGateway) Capture(reference string) {
	g.setStatus(reference, ChargeSuccess)
}

func (g *MockGateway) GenerateReference() string { return g.refs.Next() }

func (g *MockGateway) ToMinorUnits(amount decimal.Decimal) int64 { return ToMinorUnits(amount) }

func (g *MockGateway) FromMinorUnits(amount int64) decimal.Decimal { return FromMinorUnits(amount) }

func (g *MockGateway) Charge(_ context.Context, req ChargeRequest, callbacks Callbacks) (*Checkout, error) {
	g.mu.Lock()
	if g.chargeErr != nil {
		err := g.chargeErr
		g.mu.Unlock()
		return nil, err
	}
	g.statuses[req.Reference] = ChargePending
	g.mu.Unlock()

	g.registry.add(req, callbacks)
	return &Checkout{
		Reference:        req.Reference,
		AuthorizationURL: "mock://checkout/" + req.Reference,
		AccessCode:       req.Reference,
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

func (g *MockGateway) Resolve(ctx context.Context, reference string) error {
	if _, ok := g.registry.peek(reference); !ok {
		return ErrUnknownCharge
	}
	g.setStatus(reference, ChargeSuccess)
	return g.registry.succeed(ctx, reference)
}

func (g *MockGateway) Cancel(ctx context.Context, reference string) error {
	if _, ok := g.registry.peek(reference); !ok {
		return ErrUnknownCharge
	}
	g.setStatus(reference, ChargeAbandoned)
	return g.registry.cancel(ctx, reference)
}

func (g *MockGateway) Expire(ctx context.Context, reference string) error {
	return g.Cancel(ctx, reference)
}

func (g *MockGateway) Status(_ context.Context, reference string) (ChargeStatus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	status, ok := g.statuses[reference]
	if !ok {
		return "", ErrUnknownCharge
	}
	return status, nil
}

func (g *MockGateway) Pending(olderThan time.Duration) []PendingCharge {
	return g.registry.pending(olderThan)
}

func (g *MockGateway) VerifyWebhook(body []byte, signature string) bool {
	return verifySignature(g.secret, body, signature)
}

func (g *MockGateway) setStatus(reference string, status ChargeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[reference] = status
}
