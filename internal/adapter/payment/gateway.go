package payment

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway converts order amounts into gateway charges and reports their outcome.
type Gateway interface {
	GenerateReference() string
	ToMinorUnits(amount decimal.Decimal) int64
	FromMinorUnits(amount int64) decimal.Decimal

	// Charge opens a charge. Its callbacks fire once, through Resolve, Cancel or Expire.
	Charge(ctx context.Context, req ChargeRequest, callbacks Callbacks) (*Checkout, error)
	// Resolve confirms a captured charge and fires OnSuccess.
	Resolve(ctx context.Context, reference string) error
	// Cancel fires OnCancel after the buyer closed the payment dialog.
	Cancel(ctx context.Context, reference string) error
	// Expire fires OnCancel for a charge that never completed.
	Expire(ctx context.Context, reference string) error
	// Status asks the gateway for the authoritative state of a charge.
	Status(ctx context.Context, reference string) (ChargeStatus, error)
	// Pending lists open charges created more than olderThan ago.
	Pending(olderThan time.Duration) []PendingCharge
	// VerifyWebhook checks the signature of a gateway notification.
	VerifyWebhook(body []byte, signature string) bool
}

type openCharge struct {
	PendingCharge
	callbacks Callbacks
}

// chargeRegistry keeps open charges until their single outcome is delivered.
type chargeRegistry struct {
	mu      sync.Mutex
	charges map[string]openCharge
	now     func() time.Time
}

func newChargeRegistry() *chargeRegistry {
	return &chargeRegistry{charges: make(map[string]openCharge), now: time.Now}
}

func (r *chargeRegistry) add(req ChargeRequest, callbacks Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges[req.Reference] = openCharge{
		PendingCharge: PendingCharge{
			Reference: req.Reference,
			OrderID:   req.Metadata.OrderID,
			Amount:    req.Amount,
			CreatedAt: r.now(),
		},
		callbacks: callbacks,
	}
}

func (r *chargeRegistry) peek(reference string) (openCharge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[reference]
	return c, ok
}

// take removes the charge so that only one caller can deliver its outcome.
func (r *chargeRegistry) take(reference string) (openCharge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[reference]
	if ok {
		delete(r.charges, reference)
	}
	return c, ok
}

func (r *chargeRegistry) pending(olderThan time.Duration) []PendingCharge {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-olderThan)
	var result []PendingCharge
	for _, c := range r.charges {
		if !c.CreatedAt.After(cutoff) {
			result = append(result, c.PendingCharge)
		}
	}
	return result
}

func (r *chargeRegistry) succeed(ctx context.Context, reference string) error {
	c, ok := r.take(reference)
	if !ok {
		return ErrUnknownCharge
	}
	if c.callbacks.OnSuccess == nil {
		return nil
	}
	return c.callbacks.OnSuccess(ctx, reference)
}

func (r *chargeRegistry) cancel(ctx context.Context, reference string) error {
	c, ok := r.take(reference)
	if !ok {
		return ErrUnknownCharge
	}
	if c.callbacks.OnCancel == nil {
		return nil
	}
	return c.callbacks.OnCancel(ctx)
}
