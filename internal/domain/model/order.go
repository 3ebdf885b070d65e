package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus describes the persisted order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusValidated  OrderStatus = "validated"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusInDelivery OrderStatus = "in_delivery"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks money movement independently of the order status.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusReleased PaymentStatus = "released"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// MinOrderQuantity is the smallest quantity a buyer may order.
const MinOrderQuantity = 50

var escrowFeeRate = decimal.New(2, -2)

var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusValidated, OrderStatusCancelled},
	OrderStatusValidated:  {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusInDelivery, OrderStatusDelivered, OrderStatusCompleted},
	OrderStatusInDelivery: {OrderStatusDelivered, OrderStatusCompleted},
	OrderStatusDelivered:  {OrderStatusCompleted},
	OrderStatusCompleted:  nil,
	OrderStatusCancelled:  nil,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid},
	PaymentStatusPaid:     {PaymentStatusReleased, PaymentStatusRefunded},
	PaymentStatusReleased: nil,
	PaymentStatusRefunded: nil,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// RequiresReference reports whether an order in payment status s must carry a gateway reference.
func (s PaymentStatus) RequiresReference() bool {
	return s == PaymentStatusPaid || s == PaymentStatusReleased
}

// CanTransitionStatus reports whether an order may move from one status to another.
// Statuses only move forward; cancellation is allowed until the order is paid.
func CanTransitionStatus(from, to OrderStatus) bool {
	return slices.Contains(statusTransitions[from], to)
}

// CanTransitionPayment reports whether the payment status may move from one value to another.
// Refunds are only possible for captured funds that have not been released.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

// Quote holds the monetary breakdown of an order in major currency units.
type Quote struct {
	UnitPrice   decimal.Decimal
	Quantity    int
	TotalAmount decimal.Decimal
	EscrowFee   decimal.Decimal
	AmountDue   decimal.Decimal
}

// NewQuote computes the total, the 2% escrow fee rounded to minor units and the amount due.
func NewQuote(unitPrice decimal.Decimal, quantity int) Quote {
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	fee := total.Mul(escrowFeeRate).Round(2)
	return Quote{
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		TotalAmount: total,
		EscrowFee:   fee,
		AmountDue:   total.Add(fee),
	}
}

// OrderDraft carries the fields collected before an order is persisted.
type OrderDraft struct {
	BuyerID         int64
	SellerID        int64
	ListingID       int64
	Quantity        int
	UnitPrice       decimal.Decimal
	DeliveryAddress string
}

// Quote returns the monetary breakdown for the draft.
func (d OrderDraft) Quote() Quote {
	return NewQuote(d.UnitPrice, d.Quantity)
}

// Order describes a purchase placed by a buyer against a listing.
type Order struct {
	ID               string
	BuyerID          int64
	SellerID         int64
	ListingID        int64
	Quantity         int
	UnitPrice        decimal.Decimal
	TotalAmount      decimal.Decimal
	EscrowFee        decimal.Decimal
	AmountDue        decimal.Decimal
	DeliveryAddress  string
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	PaymentReference string
	ValidatedBy      int64
	ValidationNotes  string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Quote returns the monetary breakdown stored on the order.
func (o Order) Quote() Quote {
	return Quote{
		UnitPrice:   o.UnitPrice,
		Quantity:    o.Quantity,
		TotalAmount: o.TotalAmount,
		EscrowFee:   o.EscrowFee,
		AmountDue:   o.AmountDue,
	}
}

// ReferenceConsistent reports whether the payment reference is present exactly when the payment status requires one.
func (o Order) ReferenceConsistent() bool {
	return o.PaymentStatus.RequiresReference() == (o.PaymentReference != "")
}
