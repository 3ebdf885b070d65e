package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

// ReconcileFacadeStub mimics reconciler interactions with the marketplace facade.
// Entries and Charges are handed out once, on the first poll.
type ReconcileFacadeStub struct {
	Entries     []model.Reconciliation
	Charges     []payment.PendingCharge
	FetchErr    error
	ReconcileFn func(context.Context, model.Reconciliation) (bool, error)
	SettleFn    func(context.Context, payment.PendingCharge) error

	Reconciled []string
	Settled    []string
	PruneCalls []time.Duration

	mu      sync.Mutex
	fetched atomic.Bool
	charged atomic.Bool
}

// Lock exposes internal mutex for external synchronization.
func (s *ReconcileFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *ReconcileFacadeStub) Unlock() { s.mu.Unlock() }

// OpenReconciliations returns configured entries on the first call only.
func (s *ReconcileFacadeStub) OpenReconciliations(ctx context.Context, limit int) ([]model.Reconciliation, error) {
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	if s.fetched.Swap(true) {
		return nil, nil
	}
	if len(s.Entries) > limit {
		return s.Entries[:limit], nil
	}
	return s.Entries, nil
}

// Reconcile records the entry and resolves it unless overridden.
func (s *ReconcileFacadeStub) Reconcile(ctx context.Context, entry model.Reconciliation) (bool, error) {
	s.mu.Lock()
	s.Reconciled = append(s.Reconciled, entry.OrderID)
	s.mu.Unlock()
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, entry)
	}
	return true, nil
}

// StaleCharges returns configured charges on the first call only.
func (s *ReconcileFacadeStub) StaleCharges(olderThan time.Duration) []payment.PendingCharge {
	if s.charged.Swap(true) {
		return nil
	}
	return s.Charges
}

// SettleCharge records the charge reference.
func (s *ReconcileFacadeStub) SettleCharge(ctx context.Context, charge payment.PendingCharge) error {
	s.mu.Lock()
	s.Settled = append(s.Settled, charge.Reference)
	s.mu.Unlock()
	if s.SettleFn != nil {
		return s.SettleFn(ctx, charge)
	}
	return nil
}

// PruneSessions records the idle threshold it was called with.
func (s *ReconcileFacadeStub) PruneSessions(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PruneCalls = append(s.PruneCalls, maxIdle)
	return 0
}

// SweeperFacadeStub mimics validation sweeper interactions with the marketplace facade.
type SweeperFacadeStub struct {
	Orders   []model.Order
	StaleErr error
	ExpireFn func(context.Context, string) error

	Cutoffs []time.Time
	Expired []string
	mu      sync.Mutex
}

// Lock exposes internal mutex for external synchronization.
func (s *SweeperFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *SweeperFacadeStub) Unlock() { s.mu.Unlock() }

// StaleValidations returns configured orders created before olderThan.
func (s *SweeperFacadeStub) StaleValidations(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	s.mu.Lock()
	s.Cutoffs = append(s.Cutoffs, olderThan)
	s.mu.Unlock()
	if s.StaleErr != nil {
		return nil, s.StaleErr
	}
	var out []model.Order
	for _, o := range s.Orders {
		if o.CreatedAt.Before(olderThan) && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

// ExpireValidation records the expired order.
func (s *SweeperFacadeStub) ExpireValidation(ctx context.Context, orderID string) error {
	if s.ExpireFn != nil {
		if err := s.ExpireFn(ctx, orderID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Expired = append(s.Expired, orderID)
	return nil
}
