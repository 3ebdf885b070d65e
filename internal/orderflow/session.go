package orderflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/metrics"
)

// Stage is the step of the checkout a session is in.
type Stage string

const (
	StageDetails    Stage = "details"
	StageValidation Stage = "validation"
	StagePayment    Stage = "payment"
	StageDelivery   Stage = "delivery"
	StageComplete   Stage = "complete"
	StageRejected   Stage = "rejected"
	StageCancelled  Stage = "cancelled"
)

// Terminal reports whether the session can no longer change.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageRejected || s == StageCancelled
}

// ValidationState is the officer review status shown to the buyer.
type ValidationState string

const (
	ValidationNone     ValidationState = ""
	ValidationPending  ValidationState = "pending"
	ValidationApproved ValidationState = "approved"
	ValidationRejected ValidationState = "rejected"
)

// Decision is an extension officer's verdict on a submitted order.
type Decision struct {
	OfficerID int64
	Approved  bool
	Notes     string
}

// Snapshot is a consistent copy of the session state for display.
type Snapshot struct {
	ID                  string
	Stage               Stage
	Validation          ValidationState
	InProgress          bool
	Listing             model.Listing
	Quantity            int
	MinQuantity         int
	DeliveryAddress     string
	CanSubmit           bool
	Quote               model.Quote
	Order               *model.Order
	Checkout            *payment.Checkout
	NeedsReconciliation bool
}

// Session walks one order from details to completion for one buyer.
//
// Buyer facing operations are guarded by busy and fail fast with ErrBusy.
// Gateway callbacks only take mu, so a captured payment is never dropped.
// Events recorded under mu are published once it is released.
type Session struct {
	id      string
	deps    *Deps
	buyer   model.User
	listing model.Listing

	busy atomic.Bool
	mu   sync.Mutex

	stage               Stage
	validation          ValidationState
	quantity            int
	address             string
	order               *model.Order
	reference           string
	checkout            *payment.Checkout
	paidReference       string
	needsReconciliation bool
	touched             time.Time
	outbox              []func()
}

func newSession(id string, deps *Deps, buyer model.User, listing model.Listing) *Session {
	return &Session{
		id:       id,
		deps:     deps,
		buyer:    buyer,
		listing:  listing,
		stage:    StageDetails,
		quantity: listing.EffectiveMinOrder(),
		touched:  deps.now(),
	}
}

// resumeSession rebuilds a session for an order persisted earlier.
func resumeSession(id string, deps *Deps, buyer model.User, listing model.Listing, order model.Order) *Session {
	s := newSession(id, deps, buyer, listing)
	s.order = &order
	s.quantity = order.Quantity
	s.address = order.DeliveryAddress
	s.paidReference = order.PaymentReference

	switch order.Status {
	case model.OrderStatusPending:
		s.stage, s.validation = StageValidation, ValidationPending
	case model.OrderStatusValidated:
		s.stage, s.validation = StagePayment, ValidationApproved
	case model.OrderStatusPaid, model.OrderStatusInDelivery, model.OrderStatusDelivered:
		s.stage, s.validation = StageDelivery, ValidationApproved
	case model.OrderStatusCompleted:
		s.stage, s.validation = StageComplete, ValidationApproved
	default:
		s.stage = StageCancelled
	}
	return s
}

func (s *Session) ID() string { return s.id }

// BuyerID returns the owner of the session.
func (s *Session) BuyerID() int64 { return s.buyer.ID }

// OrderID returns the persisted order id, or "" before submission.
func (s *Session) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return ""
	}
	return s.order.ID
}

func (s *Session) acquire() (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domainErrors.ErrBusy
	}
	s.mu.Lock()
	s.touched = s.deps.now()
	return func() {
		pending := s.takeOutbox()
		s.mu.Unlock()
		s.busy.Store(false)
		publishAll(pending)
	}, nil
}

// unlock releases mu taken without the busy guard and publishes what was recorded under it.
func (s *Session) unlock() {
	pending := s.takeOutbox()
	s.mu.Unlock()
	publishAll(pending)
}

// emit records an event to publish after the lock is released. Callers hold mu.
func (s *Session) emit(ctx context.Context, kind model.OrderEventType, order model.Order) {
	s.outbox = append(s.outbox, func() { s.deps.publish(ctx, kind, order) })
}

func (s *Session) takeOutbox() []func() {
	pending := s.outbox
	s.outbox = nil
	return pending
}

func publishAll(pending []func()) {
	for _, publish := range pending {
		publish()
	}
}

// stageError explains why an operation is not available in the current stage.
func (s *Session) stageError() error {
	if s.stage == StageRejected {
		return domainErrors.ErrOrderRejected
	}
	return domainErrors.ErrInvalidTransition
}

// SetQuantity changes the ordered quantity while the order is still a draft.
func (s *Session) SetQuantity(quantity int) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if s.stage != StageDetails {
		return s.stageError()
	}
	s.quantity = quantity
	return nil
}

// SetDeliveryAddress changes the delivery address while the order is still a draft.
func (s *Session) SetDeliveryAddress(address string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if s.stage != StageDetails {
		return s.stageError()
	}
	s.address = address
	return nil
}

// CanSubmit reports whether the draft satisfies the minimum quantity and has an address.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmit()
}

func (s *Session) canSubmit() bool {
	return s.stage == StageDetails && model.ValidateDraft(s.quantity, s.address, s.listing.EffectiveMinOrder()) == nil
}

// Submit persists the draft as a pending order and waits for validation.
// Invalid drafts never reach the store. A store failure leaves the session in details.
func (s *Session) Submit(ctx context.Context) (*model.Order, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if s.stage != StageDetails {
		return nil, s.stageError()
	}
	if !s.listing.InStock {
		return nil, domainErrors.ErrOutOfStock
	}
	if err := model.ValidateDraft(s.quantity, s.address, s.listing.EffectiveMinOrder()); err != nil {
		return nil, err
	}

	order, err := s.deps.Orders.Create(ctx, model.OrderDraft{
		BuyerID:         s.buyer.ID,
		SellerID:        s.listing.SellerID,
		ListingID:       s.listing.ID,
		Quantity:        s.quantity,
		UnitPrice:       s.listing.Price,
		DeliveryAddress: strings.TrimSpace(s.address),
	})
	if err != nil {
		return nil, storeError("submit order", err)
	}

	s.order = order
	s.stage = StageValidation
	s.validation = ValidationPending
	if s.deps.track != nil {
		s.deps.track(order.ID, s)
	}
	s.deps.Metrics.OrderTransition(order.Status)
	s.emit(ctx, model.EventOrderSubmitted, *order)
	s.deps.Logger.Info("order submitted",
		slog.String("order_id", order.ID),
		slog.Int64("buyer_id", order.BuyerID),
		slog.String("amount_due", order.AmountDue.StringFixed(2)),
	)
	return cloneOrder(order), nil
}

// ApplyValidation records the officer decision. It succeeds once per order,
// later decisions fail with ErrInvalidTransition whatever the first one was.
func (s *Session) ApplyValidation(ctx context.Context, d Decision) (*model.Order, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if s.stage != StageValidation || s.validation != ValidationPending {
		return nil, domainErrors.ErrInvalidTransition
	}

	order, err := s.deps.Orders.Validate(ctx, s.order.ID, d.OfficerID, d.Approved, d.Notes)
	if err != nil {
		return nil, storeError("validate order", err)
	}
	s.order = order
	s.deps.Metrics.OrderTransition(order.Status)

	if d.Approved {
		s.stage = StagePayment
		s.validation = ValidationApproved
		s.emit(ctx, model.EventOrderValidated, *order)
	} else {
		s.stage = StageRejected
		s.validation = ValidationRejected
		s.emit(ctx, model.EventOrderRejected, *order)
	}
	return cloneOrder(order), nil
}

// adoptDecision catches the session up with a decision written to the store without it.
func (s *Session) adoptDecision(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil || s.order.ID != order.ID || s.stage != StageValidation || s.validation != ValidationPending {
		return
	}
	switch order.Status {
	case model.OrderStatusValidated:
		s.stage, s.validation = StagePayment, ValidationApproved
	case model.OrderStatusCancelled:
		s.stage, s.validation = StageRejected, ValidationRejected
	default:
		return
	}
	s.order = &order
}

// Pay opens a gateway charge for the amount due. Only one charge may be open at a time.
func (s *Session) Pay(ctx context.Context) (*payment.Checkout, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if s.stage != StagePayment {
		return nil, s.stageError()
	}
	if s.reference != "" {
		return nil, domainErrors.ErrChargeInFlight
	}

	gw := s.deps.Gateway
	reference := gw.GenerateReference()
	req := payment.ChargeRequest{
		Email:     s.buyer.Email,
		Amount:    gw.ToMinorUnits(s.order.AmountDue),
		Currency:  s.deps.Currency,
		Reference: reference,
		Channels:  s.deps.Channels,
		Metadata: payment.Metadata{
			OrderID:   s.order.ID,
			BuyerName: s.buyer.Name,
			Product:   s.listing.Title,
			Quantity:  s.order.Quantity,
			CustomFields: []payment.CustomField{
				{DisplayName: "Order ID", VariableName: "order_id", Value: s.order.ID},
				{DisplayName: "Product", VariableName: "product", Value: s.listing.Title},
				{DisplayName: "Quantity", VariableName: "quantity", Value: strconv.Itoa(s.order.Quantity)},
			},
		},
	}

	// The reference is set before the charge exists so an early callback still matches.
	// busy stays held during the gateway call, mu does not.
	s.reference = reference
	s.mu.Unlock()
	checkout, err := gw.Charge(ctx, req, payment.Callbacks{
		OnSuccess: s.onPaymentSuccess,
		OnCancel: func(ctx context.Context) error {
			return s.onPaymentCancel(ctx, reference)
		},
	})
	s.mu.Lock()
	if err != nil {
		if s.reference == reference {
			s.reference = ""
		}
		s.deps.Metrics.Payment(metrics.PaymentFailed)
		return nil, domainErrors.Transient("start payment", err)
	}

	if s.reference == reference {
		s.checkout = checkout
	}
	s.deps.Metrics.Payment(metrics.PaymentStarted)
	s.deps.Logger.Info("payment started",
		slog.String("order_id", s.order.ID),
		slog.String("reference", reference),
		slog.Int64("amount", req.Amount),
	)
	c := *checkout
	return &c, nil
}

// OpenReference returns the reference of the open charge, or "".
func (s *Session) OpenReference() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

func (s *Session) onPaymentSuccess(ctx context.Context, reference string) error {
	s.mu.Lock()
	defer s.unlock()
	s.touched = s.deps.now()

	if s.stage != StagePayment || reference == "" || reference != s.reference {
		s.deps.Logger.Warn("ignoring payment callback",
			slog.String("session_id", s.id),
			slog.String("stage", string(s.stage)),
			slog.String("reference", reference),
		)
		return nil
	}

	s.reference = ""
	s.checkout = nil
	s.paidReference = reference
	s.stage = StageDelivery
	s.deps.Metrics.Payment(metrics.PaymentCaptured)

	order, err := s.deps.Orders.UpdatePayment(ctx, s.order.ID, reference, model.PaymentStatusPaid)
	if err != nil {
		s.needsReconciliation = true
		return s.deps.enqueueReconciliation(ctx, *s.order, reference, err)
	}

	s.order = order
	s.deps.Metrics.OrderTransition(order.Status)
	s.emit(ctx, model.EventOrderPaid, *order)
	s.deps.Logger.Info("payment recorded",
		slog.String("order_id", order.ID),
		slog.String("reference", reference),
	)
	return nil
}

func (s *Session) onPaymentCancel(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != StagePayment || reference != s.reference {
		return nil
	}
	s.reference = ""
	s.checkout = nil
	s.deps.Metrics.Payment(metrics.PaymentCancelled)
	s.deps.Logger.Info("payment cancelled",
		slog.String("order_id", s.order.ID),
		slog.String("reference", reference),
	)
	return nil
}

// refreshPayment reloads the order after a reconciliation and clears the flag once the payment is on record.
func (s *Session) refreshPayment(ctx context.Context) error {
	order, err := s.deps.Orders.GetByID(ctx, s.order.ID)
	if err != nil {
		return storeError("load order", err)
	}
	if order.PaymentStatus != model.PaymentStatusPaid && order.PaymentStatus != model.PaymentStatusReleased {
		return domainErrors.ErrPaymentUnreconciled
	}
	s.order = order
	s.needsReconciliation = false
	return nil
}

// markReconciled replaces the order once a payment was recorded outside the open charge.
func (s *Session) markReconciled(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil || s.order.ID != order.ID {
		return
	}
	s.order = &order
	s.needsReconciliation = false
	if s.stage == StagePayment && order.PaymentStatus == model.PaymentStatusPaid {
		s.stage = StageDelivery
		s.reference = ""
		s.checkout = nil
		s.paidReference = order.PaymentReference
	}
}

// Dispatch records that the seller handed the goods to a courier.
func (s *Session) Dispatch(ctx context.Context) (*model.Order, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if s.stage != StageDelivery {
		return nil, s.stageError()
	}
	if s.needsReconciliation {
		if err := s.refreshPayment(ctx); err != nil {
			return nil, err
		}
	}
	if s.order.Status != model.OrderStatusPaid {
		return nil, domainErrors.ErrInvalidTransition
	}

	order, err := s.deps.Orders.UpdateStatus(ctx, s.order.ID, model.OrderStatusInDelivery,
		repository.StatusUpdate{ExpectedVersion: s.order.Version})
	if err != nil {
		return nil, s.writeFailed(ctx, "dispatch order", err)
	}
	s.order = order
	s.deps.Metrics.OrderTransition(order.Status)
	s.emit(ctx, model.EventOrderDispatched, *order)
	return cloneOrder(order), nil
}

// ConfirmDelivery completes the order and releases the escrowed payment to the seller.
func (s *Session) ConfirmDelivery(ctx context.Context) (*model.Order, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if s.stage != StageDelivery {
		return nil, s.stageError()
	}
	if s.needsReconciliation {
		if err := s.refreshPayment(ctx); err != nil {
			return nil, err
		}
	}

	released := model.PaymentStatusReleased
	order, err := s.deps.Orders.UpdateStatus(ctx, s.order.ID, model.OrderStatusCompleted,
		repository.StatusUpdate{PaymentStatus: &released, ExpectedVersion: s.order.Version})
	if err != nil {
		return nil, s.writeFailed(ctx, "confirm delivery", err)
	}
	s.order = order
	s.stage = StageComplete
	s.deps.Metrics.OrderTransition(order.Status)
	s.emit(ctx, model.EventOrderCompleted, *order)
	s.deps.Logger.Info("order completed", slog.String("order_id", order.ID))
	return cloneOrder(order), nil
}

// Cancel abandons the order before any payment was captured.
func (s *Session) Cancel(ctx context.Context) (*model.Order, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	switch s.stage {
	case StageDetails:
		s.stage = StageCancelled
		return nil, nil
	case StageValidation, StagePayment:
		if s.reference != "" {
			return nil, domainErrors.ErrChargeInFlight
		}
	default:
		return nil, s.stageError()
	}

	order, err := s.deps.Orders.UpdateStatus(ctx, s.order.ID, model.OrderStatusCancelled,
		repository.StatusUpdate{ExpectedVersion: s.order.Version})
	if err != nil {
		return nil, s.writeFailed(ctx, "cancel order", err)
	}
	s.order = order
	s.stage = StageCancelled
	s.deps.Metrics.OrderTransition(order.Status)
	s.emit(ctx, model.EventOrderCancelled, *order)
	return cloneOrder(order), nil
}

// writeFailed reloads the order after a concurrent modification so the next attempt sees fresh state.
func (s *Session) writeFailed(ctx context.Context, op string, err error) error {
	err = storeError(op, err)
	if errors.Is(err, domainErrors.ErrConflict) {
		if order, gerr := s.deps.Orders.GetByID(ctx, s.order.ID); gerr == nil {
			s.order = order
		}
	}
	return err
}

// Snapshot returns the current state for display.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                  s.id,
		Stage:               s.stage,
		Validation:          s.validation,
		InProgress:          (s.stage == StageValidation && s.validation == ValidationPending) || s.stage == StageDelivery,
		Listing:             s.listing,
		Quantity:            s.quantity,
		MinQuantity:         s.listing.EffectiveMinOrder(),
		DeliveryAddress:     s.address,
		CanSubmit:           s.canSubmit(),
		NeedsReconciliation: s.needsReconciliation,
	}
	if s.order != nil {
		snap.Order = cloneOrder(s.order)
		snap.Quote = s.order.Quote()
	} else {
		snap.Quote = model.NewQuote(s.listing.Price, s.quantity)
	}
	if s.checkout != nil {
		c := *s.checkout
		snap.Checkout = &c
	}
	return snap
}

// idleSince reports when the session was last used, its order id and whether no charge is open.
func (s *Session) idleSince() (time.Time, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orderID := ""
	if s.order != nil {
		orderID = s.order.ID
	}
	return s.touched, orderID, s.reference == ""
}

func cloneOrder(o *model.Order) *model.Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
