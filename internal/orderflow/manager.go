package orderflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/metrics"
)

const (
	busyRetries = 5
	busyBackoff = 50 * time.Millisecond
)

// Manager owns the live sessions and routes external events to them.
// Events for orders without a live session are written to the store directly.
type Manager struct {
	deps     *Deps
	users    repository.UserRepository
	listings repository.ListingRepository

	mu       sync.RWMutex
	sessions map[string]*Session
	byOrder  map[string]*Session
}

// NewManager creates a manager. Zero Channels default to every supported channel.
func NewManager(deps Deps, users repository.UserRepository, listings repository.ListingRepository) *Manager {
	if len(deps.Channels) == 0 {
		deps.Channels = payment.DefaultChannels
	}
	m := &Manager{
		deps:     &deps,
		users:    users,
		listings: listings,
		sessions: make(map[string]*Session),
		byOrder:  make(map[string]*Session),
	}
	m.deps.track = m.track
	return m
}

// track is called by a session holding its own lock, so m.mu is never held while taking a session lock.
func (m *Manager) track(orderID string, s *Session) {
	m.mu.Lock()
	m.byOrder[orderID] = s
	m.mu.Unlock()
}

// Start opens a checkout session for buyerID on listingID.
func (m *Manager) Start(ctx context.Context, buyerID, listingID int64) (*Session, error) {
	buyer, err := m.users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, storeError("load buyer", err)
	}
	listing, err := m.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, storeError("load listing", err)
	}
	if listing.SellerID == buyerID {
		return nil, domainErrors.ErrForbidden
	}
	if !listing.InStock {
		return nil, domainErrors.ErrOutOfStock
	}

	s := newSession(uuid.NewString(), m.deps, *buyer, *listing)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s, nil
}

// Resume returns the live session of a persisted order, creating one when the process lost it.
func (m *Manager) Resume(ctx context.Context, buyerID int64, orderID string) (*Session, error) {
	if s, ok := m.sessionForOrder(orderID); ok {
		if s.BuyerID() != buyerID {
			return nil, domainErrors.ErrNotFound
		}
		return s, nil
	}

	order, err := m.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError("load order", err)
	}
	if order.BuyerID != buyerID {
		return nil, domainErrors.ErrNotFound
	}
	buyer, err := m.users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, storeError("load buyer", err)
	}
	listing, err := m.listings.GetByID(ctx, order.ListingID)
	if err != nil {
		return nil, storeError("load listing", err)
	}

	s := resumeSession(uuid.NewString(), m.deps, *buyer, *listing, *order)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byOrder[orderID]; ok {
		return existing, nil
	}
	m.sessions[s.id] = s
	m.byOrder[orderID] = s
	return s, nil
}

// Session returns a live session owned by buyerID.
func (m *Manager) Session(id string, buyerID int64) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.BuyerID() != buyerID {
		return nil, domainErrors.ErrNotFound
	}
	return s, nil
}

func (m *Manager) sessionForOrder(orderID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byOrder[orderID]
	return s, ok
}

// Submit submits the session draft. The session is indexed by its order before the order is announced.
func (m *Manager) Submit(ctx context.Context, sessionID string, buyerID int64) (*model.Order, error) {
	s, err := m.Session(sessionID, buyerID)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx)
}

// Decide applies an officer decision to a pending order.
func (m *Manager) Decide(ctx context.Context, orderID string, d Decision) (*model.Order, error) {
	if s, ok := m.sessionForOrder(orderID); ok {
		return retryBusy(ctx, func() (*model.Order, error) { return s.ApplyValidation(ctx, d) })
	}

	order, err := m.deps.Orders.Validate(ctx, orderID, d.OfficerID, d.Approved, d.Notes)
	if err != nil {
		return nil, storeError("validate order", err)
	}
	if s, ok := m.sessionForOrder(orderID); ok {
		s.adoptDecision(*order)
	}
	m.deps.Metrics.OrderTransition(order.Status)
	if d.Approved {
		m.deps.publish(ctx, model.EventOrderValidated, *order)
	} else {
		m.deps.publish(ctx, model.EventOrderRejected, *order)
	}
	return order, nil
}

// Pay opens a charge for the session order.
func (m *Manager) Pay(ctx context.Context, sessionID string, buyerID int64) (*payment.Checkout, error) {
	s, err := m.Session(sessionID, buyerID)
	if err != nil {
		return nil, err
	}
	return s.Pay(ctx)
}

// PaymentCancelled closes the open charge of a session after the buyer dismissed the payment dialog.
func (m *Manager) PaymentCancelled(ctx context.Context, sessionID string, buyerID int64) error {
	s, err := m.Session(sessionID, buyerID)
	if err != nil {
		return err
	}
	ref := s.OpenReference()
	if ref == "" {
		return nil
	}
	if err := m.deps.Gateway.Cancel(ctx, ref); err != nil && !errors.Is(err, payment.ErrUnknownCharge) {
		return domainErrors.Transient("cancel payment", err)
	}
	return nil
}

// PaymentSucceeded handles a success notification for reference.
// Open charges are verified and settled through the gateway. For charges this process no longer
// holds, orderID lets the payment be recorded after the gateway confirms it.
func (m *Manager) PaymentSucceeded(ctx context.Context, reference, orderID string) error {
	err := m.deps.Gateway.Resolve(ctx, reference)
	if err == nil || !errors.Is(err, payment.ErrUnknownCharge) {
		return m.resolveError(err)
	}

	if existing, gerr := m.deps.Orders.GetByReference(ctx, reference); gerr == nil {
		if orderID == "" || existing.ID == orderID {
			return nil
		}
		return domainErrors.ErrConflict
	} else if !errors.Is(gerr, domainErrors.ErrNotFound) {
		return storeError("load order", gerr)
	}
	if orderID == "" {
		return domainErrors.ErrUnknownReference
	}

	status, err := m.deps.Gateway.Status(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownCharge) {
			return domainErrors.ErrUnknownReference
		}
		return domainErrors.Transient("verify payment", err)
	}
	if status != payment.ChargeSuccess {
		return payment.ErrChargeNotCaptured
	}
	_, err = m.recordPayment(ctx, orderID, reference)
	return err
}

func (m *Manager) resolveError(err error) error {
	var recErr *domainErrors.ReconciliationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &recErr):
		return err
	case errors.Is(err, payment.ErrChargeNotCaptured), errors.Is(err, payment.ErrAmountMismatch):
		return err
	default:
		return domainErrors.Transient("verify payment", err)
	}
}

// recordPayment writes a gateway-confirmed payment to the store without a live charge.
func (m *Manager) recordPayment(ctx context.Context, orderID, reference string) (*model.Order, error) {
	order, err := m.deps.Orders.UpdatePayment(ctx, orderID, reference, model.PaymentStatusPaid)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, err
		}
		return nil, m.deps.enqueueReconciliation(ctx, model.Order{ID: orderID}, reference, err)
	}
	m.deps.Metrics.Payment(metrics.PaymentCaptured)
	m.deps.Metrics.OrderTransition(order.Status)
	m.deps.publish(ctx, model.EventOrderPaid, *order)
	if s, ok := m.sessionForOrder(orderID); ok {
		s.markReconciled(*order)
	}
	return order, nil
}

// Dispatch marks a paid order as handed to a courier.
func (m *Manager) Dispatch(ctx context.Context, orderID string) (*model.Order, error) {
	if s, ok := m.sessionForOrder(orderID); ok {
		return retryBusy(ctx, func() (*model.Order, error) { return s.Dispatch(ctx) })
	}
	order, err := m.deps.Orders.UpdateStatus(ctx, orderID, model.OrderStatusInDelivery, repository.StatusUpdate{})
	if err != nil {
		return nil, storeError("dispatch order", err)
	}
	m.deps.Metrics.OrderTransition(order.Status)
	m.deps.publish(ctx, model.EventOrderDispatched, *order)
	return order, nil
}

// ConfirmDelivery completes a delivered order and releases its payment.
func (m *Manager) ConfirmDelivery(ctx context.Context, orderID string) error {
	_, err := m.CompleteOrder(ctx, orderID)
	return err
}

// CompleteOrder is ConfirmDelivery returning the updated order.
func (m *Manager) CompleteOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if s, ok := m.sessionForOrder(orderID); ok {
		return retryBusy(ctx, func() (*model.Order, error) { return s.ConfirmDelivery(ctx) })
	}

	current, err := m.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError("load order", err)
	}
	if current.PaymentStatus != model.PaymentStatusPaid {
		return nil, domainErrors.ErrInvalidTransition
	}
	released := model.PaymentStatusReleased
	order, err := m.deps.Orders.UpdateStatus(ctx, orderID, model.OrderStatusCompleted,
		repository.StatusUpdate{PaymentStatus: &released, ExpectedVersion: current.Version})
	if err != nil {
		return nil, storeError("confirm delivery", err)
	}
	m.deps.Metrics.OrderTransition(order.Status)
	m.deps.publish(ctx, model.EventOrderCompleted, *order)
	return order, nil
}

// Cancel cancels the session order before payment.
func (m *Manager) Cancel(ctx context.Context, sessionID string, buyerID int64) (*model.Order, error) {
	s, err := m.Session(sessionID, buyerID)
	if err != nil {
		return nil, err
	}
	return s.Cancel(ctx)
}

// Reconcile retries recording a captured payment from the reconciliation queue.
// It reports true once the entry is resolved.
func (m *Manager) Reconcile(ctx context.Context, entry model.Reconciliation) (bool, error) {
	status, err := m.deps.Gateway.Status(ctx, entry.Reference)
	if err != nil {
		return false, m.recordAttempt(ctx, entry, err)
	}
	if status != payment.ChargeSuccess {
		m.deps.Logger.Error("reconciliation entry not captured on gateway",
			slog.Int64("entry_id", entry.ID),
			slog.String("order_id", entry.OrderID),
			slog.String("reference", entry.Reference),
			slog.String("status", string(status)),
		)
		return false, m.recordAttempt(ctx, entry, payment.ErrChargeNotCaptured)
	}

	order, err := m.deps.Orders.UpdatePayment(ctx, entry.OrderID, entry.Reference, model.PaymentStatusPaid)
	if err != nil {
		return false, m.recordAttempt(ctx, entry, err)
	}
	if err := m.deps.Reconciliations.Resolve(ctx, entry.ID); err != nil && !errors.Is(err, domainErrors.ErrNotFound) {
		return false, storeError("resolve reconciliation", err)
	}

	m.deps.Metrics.Reconciliation(metrics.ReconcileResolved)
	m.deps.publish(ctx, model.EventOrderPaid, *order)
	if s, ok := m.sessionForOrder(entry.OrderID); ok {
		s.markReconciled(*order)
	}
	m.deps.Logger.Info("payment reconciled",
		slog.String("order_id", entry.OrderID),
		slog.String("reference", entry.Reference),
	)
	return true, nil
}

func (m *Manager) recordAttempt(ctx context.Context, entry model.Reconciliation, cause error) error {
	m.deps.Metrics.Reconciliation(metrics.ReconcileRetried)
	if err := m.deps.Reconciliations.RecordAttempt(ctx, entry.ID, cause.Error()); err != nil {
		return storeError("record reconciliation attempt", err)
	}
	return nil
}

// SettleCharge settles an open charge that outlived the payment timeout.
// Captured charges are resolved, failed or unknown ones expired, pending ones left for the next pass.
func (m *Manager) SettleCharge(ctx context.Context, charge payment.PendingCharge) error {
	status, err := m.deps.Gateway.Status(ctx, charge.Reference)
	switch {
	case errors.Is(err, payment.ErrUnknownCharge):
		status = payment.ChargeAbandoned
	case err != nil:
		return domainErrors.Transient("charge status", err)
	}

	switch status {
	case payment.ChargeSuccess:
		err := m.deps.Gateway.Resolve(ctx, charge.Reference)
		var recErr *domainErrors.ReconciliationError
		if err == nil || errors.As(err, &recErr) || errors.Is(err, payment.ErrUnknownCharge) {
			return nil
		}
		return domainErrors.Transient("resolve charge", err)
	case payment.ChargeFailed, payment.ChargeAbandoned:
		m.deps.Metrics.Reconciliation(metrics.ReconcileExpired)
		m.deps.Logger.Info("expiring charge",
			slog.String("order_id", charge.OrderID),
			slog.String("reference", charge.Reference),
			slog.String("status", string(status)),
		)
		if err := m.deps.Gateway.Expire(ctx, charge.Reference); err != nil && !errors.Is(err, payment.ErrUnknownCharge) {
			return err
		}
		return nil
	default:
		return nil
	}
}

// Prune drops sessions idle for longer than maxIdle. Sessions with an open charge are kept.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := m.deps.now().Add(-maxIdle)

	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	type idleSession struct {
		session *Session
		orderID string
	}
	var idle []idleSession
	for _, s := range live {
		touched, orderID, noCharge := s.idleSince()
		if noCharge && touched.Before(cutoff) {
			idle = append(idle, idleSession{session: s, orderID: orderID})
		}
	}
	if len(idle) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, e := range idle {
		if m.sessions[e.session.id] != e.session {
			continue
		}
		delete(m.sessions, e.session.id)
		if e.orderID != "" && m.byOrder[e.orderID] == e.session {
			delete(m.byOrder, e.orderID)
		}
		removed++
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// retryBusy retries a system initiated operation while the buyer holds the session.
func retryBusy(ctx context.Context, op func() (*model.Order, error)) (*model.Order, error) {
	for attempt := 1; ; attempt++ {
		order, err := op()
		if !errors.Is(err, domainErrors.ErrBusy) || attempt == busyRetries {
			return order, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(busyBackoff):
		}
	}
}
