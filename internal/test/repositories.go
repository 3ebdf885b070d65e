package test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/domain/repository"
)

// UserRepositoryStub stores users in-memory for tests.
type UserRepositoryStub struct {
	mu    sync.Mutex
	Users map[string]*model.User
	ByID  map[int64]*model.User
	Next  int64
	Err   error
}

// NewUserRepositoryStub constructs stub repository with initialized maps.
func NewUserRepositoryStub() *UserRepositoryStub {
	return &UserRepositoryStub{
		Users: make(map[string]*model.User),
		ByID:  make(map[int64]*model.User),
		Next:  1,
	}
}

// Create registers user unless the email is taken or stub has explicit error.
func (s *UserRepositoryStub) Create(ctx context.Context, user model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Users == nil {
		s.Users = make(map[string]*model.User)
	}
	if s.ByID == nil {
		s.ByID = make(map[int64]*model.User)
	}
	if _, exists := s.Users[user.Email]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	if s.Next == 0 {
		s.Next = 1
	}
	user.ID = s.Next
	user.CreatedAt = time.Now()
	s.Next++
	stored := user
	s.Users[user.Email] = &stored
	s.ByID[user.ID] = &stored
	return &user, nil
}

// Add stores a user as is. It is a shortcut for fixtures.
func (s *UserRepositoryStub) Add(user model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		if s.Next == 0 {
			s.Next = 1
		}
		user.ID = s.Next
		s.Next++
	}
	stored := user
	s.Users[user.Email] = &stored
	s.ByID[user.ID] = &stored
	return user
}

// GetByEmail fetches user by email or returns not found.
func (s *UserRepositoryStub) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.Users[email]; ok {
		u := *user
		return &u, nil
	}
	return nil, domainErrors.ErrNotFound
}

// GetByID fetches user by identifier or returns not found.
func (s *UserRepositoryStub) GetByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.ByID[id]; ok {
		u := *user
		return &u, nil
	}
	return nil, domainErrors.ErrNotFound
}

// ListingRepositoryStub keeps listings in memory.
type ListingRepositoryStub struct {
	mu       sync.Mutex
	Listings map[int64]model.Listing
	Next     int64
	Err      error
}

// NewListingRepositoryStub constructs an empty listing stub.
func NewListingRepositoryStub() *ListingRepositoryStub {
	return &ListingRepositoryStub{Listings: make(map[int64]model.Listing), Next: 1}
}

// Add stores a listing fixture and returns it with its id.
func (s *ListingRepositoryStub) Add(listing model.Listing) model.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing.ID == 0 {
		listing.ID = s.Next
		s.Next++
	}
	s.Listings[listing.ID] = listing
	return listing
}

func (s *ListingRepositoryStub) Create(ctx context.Context, listing model.Listing) (*model.Listing, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	listing.ID = 0
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = listing.CreatedAt
	stored := s.Add(listing)
	return &stored, nil
}

func (s *ListingRepositoryStub) Update(ctx context.Context, listing model.Listing) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	current, ok := s.Listings[listing.ID]
	if !ok || current.SellerID != listing.SellerID {
		return nil, domainErrors.ErrNotFound
	}
	listing.CreatedAt = current.CreatedAt
	listing.UpdatedAt = time.Now()
	s.Listings[listing.ID] = listing
	return &listing, nil
}

func (s *ListingRepositoryStub) Delete(ctx context.Context, id, sellerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	current, ok := s.Listings[id]
	if !ok || current.SellerID != sellerID {
		return domainErrors.ErrNotFound
	}
	delete(s.Listings, id)
	return nil
}

func (s *ListingRepositoryStub) GetByID(ctx context.Context, id int64) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	listing, ok := s.Listings[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &listing, nil
}

func (s *ListingRepositoryStub) List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var result []model.Listing
	for _, l := range s.Listings {
		switch {
		case filter.SellerID != 0 && l.SellerID != filter.SellerID:
		case filter.Category != "" && l.Category != filter.Category:
		case filter.InStockOnly && !l.InStock:
		case filter.Search != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Description), strings.ToLower(filter.Search)):
		case filter.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(filter.Location)):
		default:
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// OrderStore is an in-memory OrderRepository that applies the same transition rules as the database.
// Fail makes a method return an error until Heal is called.
type OrderStore struct {
	mu      sync.Mutex
	orders  map[string]*model.Order
	next    int
	fails   map[string]error
	Calls   map[string]int
	NowFunc func() time.Time
}

// NewOrderStore constructs an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*model.Order),
		fails:  make(map[string]error),
		Calls:  make(map[string]int),
	}
}

// Fail injects err into every call of method.
func (s *OrderStore) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[method] = err
}

// Heal removes an injected failure.
func (s *OrderStore) Heal(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fails, method)
}

// Put stores an order fixture.
func (s *OrderStore) Put(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := order
	s.orders[order.ID] = &o
}

// Count returns the number of stored orders.
func (s *OrderStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// CallCount returns how often method was invoked.
func (s *OrderStore) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}

func (s *OrderStore) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now()
}

func (s *OrderStore) enter(method string) error {
	s.Calls[method]++
	return s.fails[method]
}

func (s *OrderStore) touch(o *model.Order) *model.Order {
	o.Version++
	o.UpdatedAt = s.now()
	c := *o
	return &c
}

func (s *OrderStore) Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Create"); err != nil {
		return nil, err
	}
	if err := model.ValidateDraft(draft.Quantity, draft.DeliveryAddress, 0); err != nil {
		return nil, err
	}
	s.next++
	quote := draft.Quote()
	now := s.now()
	o := &model.Order{
		ID:              "order-" + strconv.Itoa(s.next),
		BuyerID:         draft.BuyerID,
		SellerID:        draft.SellerID,
		ListingID:       draft.ListingID,
		Quantity:        draft.Quantity,
		UnitPrice:       quote.UnitPrice,
		TotalAmount:     quote.TotalAmount,
		EscrowFee:       quote.EscrowFee,
		AmountDue:       quote.AmountDue,
		DeliveryAddress: draft.DeliveryAddress,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.orders[o.ID] = o
	c := *o
	return &c, nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetByID"); err != nil {
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (s *OrderStore) GetByReference(ctx context.Context, reference string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetByReference"); err != nil {
		return nil, err
	}
	for _, o := range s.orders {
		if reference != "" && o.PaymentReference == reference {
			c := *o
			return &c, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, update repository.StatusUpdate) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateStatus"); err != nil {
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if update.ExpectedVersion > 0 && o.Version != update.ExpectedVersion {
		return nil, domainErrors.ErrConflict
	}
	if !model.CanTransitionStatus(o.Status, status) {
		return nil, fmt.Errorf("%w: status %s -> %s", domainErrors.ErrInvalidTransition, o.Status, status)
	}
	if update.PaymentStatus != nil && *update.PaymentStatus != o.PaymentStatus {
		if !model.CanTransitionPayment(o.PaymentStatus, *update.PaymentStatus) {
			return nil, fmt.Errorf("%w: payment %s -> %s", domainErrors.ErrInvalidTransition, o.PaymentStatus, *update.PaymentStatus)
		}
		o.PaymentStatus = *update.PaymentStatus
	}
	o.Status = status
	return s.touch(o), nil
}

func (s *OrderStore) UpdatePayment(ctx context.Context, id, reference string, status model.PaymentStatus) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdatePayment"); err != nil {
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if reference == "" {
		reference = o.PaymentReference
	}
	if o.PaymentStatus == status && o.PaymentReference == reference {
		c := *o
		return &c, nil
	}
	if o.PaymentReference != "" && o.PaymentReference != reference {
		return nil, domainErrors.ErrConflict
	}
	if !model.CanTransitionPayment(o.PaymentStatus, status) {
		return nil, domainErrors.ErrInvalidTransition
	}
	if status.RequiresReference() && reference == "" {
		return nil, domainErrors.ErrInvalidTransition
	}
	if status == model.PaymentStatusPaid {
		if !model.CanTransitionStatus(o.Status, model.OrderStatusPaid) {
			return nil, domainErrors.ErrInvalidTransition
		}
		o.Status = model.OrderStatusPaid
	}
	if !status.RequiresReference() {
		reference = ""
	}
	o.PaymentStatus = status
	o.PaymentReference = reference
	return s.touch(o), nil
}

func (s *OrderStore) Validate(ctx context.Context, id string, validatorID int64, approved bool, notes string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Validate"); err != nil {
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if o.Status != model.OrderStatusPending {
		return nil, domainErrors.ErrInvalidTransition
	}
	o.Status = model.OrderStatusCancelled
	if approved {
		o.Status = model.OrderStatusValidated
	}
	o.ValidatedBy = validatorID
	o.ValidationNotes = notes
	return s.touch(o), nil
}

func (s *OrderStore) ListByBuyer(ctx context.Context, buyerID int64) ([]model.Order, error) {
	return s.list("ListByBuyer", 0, func(o *model.Order) bool { return o.BuyerID == buyerID }, false)
}

func (s *OrderStore) ListBySeller(ctx context.Context, sellerID int64) ([]model.Order, error) {
	return s.list("ListBySeller", 0, func(o *model.Order) bool { return o.SellerID == sellerID }, false)
}

func (s *OrderStore) ListPendingValidation(ctx context.Context, limit int) ([]model.Order, error) {
	return s.list("ListPendingValidation", limit, func(o *model.Order) bool {
		return o.Status == model.OrderStatusPending
	}, true)
}

func (s *OrderStore) ListStalePendingValidation(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	return s.list("ListStalePendingValidation", limit, func(o *model.Order) bool {
		return o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan)
	}, true)
}

func (s *OrderStore) list(method string, limit int, keep func(*model.Order) bool, oldestFirst bool) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(method); err != nil {
		return nil, err
	}
	var result []model.Order
	for _, o := range s.orders {
		if keep(o) {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if oldestFirst {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ReconciliationStore is an in-memory reconciliation queue.
type ReconciliationStore struct {
	mu         sync.Mutex
	entries    []model.Reconciliation
	EnqueueErr error
	ResolveErr error
}

func (s *ReconciliationStore) Enqueue(ctx context.Context, orderID, reference, reason string) (*model.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EnqueueErr != nil {
		return nil, s.EnqueueErr
	}
	for i := range s.entries {
		if s.entries[i].Reference == reference {
			s.entries[i].Reason = reason
			e := s.entries[i]
			return &e, nil
		}
	}
	e := model.Reconciliation{
		ID:        int64(len(s.entries) + 1),
		OrderID:   orderID,
		Reference: reference,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	s.entries = append(s.entries, e)
	return &e, nil
}

func (s *ReconciliationStore) ListOpen(ctx context.Context, limit int) ([]model.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Reconciliation
	for _, e := range s.entries {
		if e.Open() {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *ReconciliationStore) RecordAttempt(ctx context.Context, id int64, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].Attempts++
			s.entries[i].LastError = lastErr
			return nil
		}
	}
	return domainErrors.ErrNotFound
}

func (s *ReconciliationStore) Resolve(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ResolveErr != nil {
		return s.ResolveErr
	}
	for i := range s.entries {
		if s.entries[i].ID == id && s.entries[i].Open() {
			now := time.Now()
			s.entries[i].ResolvedAt = &now
			return nil
		}
	}
	return domainErrors.ErrNotFound
}

// Entries returns every entry, open or resolved.
func (s *ReconciliationStore) Entries() []model.Reconciliation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Reconciliation(nil), s.entries...)
}

// EventRecorder collects published order events.
type EventRecorder struct {
	mu     sync.Mutex
	events []model.OrderEvent
	Err    error
}

func (r *EventRecorder) Publish(ctx context.Context, event model.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Types returns the recorded event types in publish order.
func (r *EventRecorder) Types() []model.OrderEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]model.OrderEventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []model.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.OrderEvent(nil), r.events...)
}

var (
	_ repository.UserRepository           = (*UserRepositoryStub)(nil)
	_ repository.ListingRepository        = (*ListingRepositoryStub)(nil)
	_ repository.OrderRepository          = (*OrderStore)(nil)
	_ repository.ReconciliationRepository = (*ReconciliationStore)(nil)
)
