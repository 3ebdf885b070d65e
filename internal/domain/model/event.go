package model

import "time"

// OrderEventType names an order lifecycle notification.
type OrderEventType string

const (
	EventOrderSubmitted      OrderEventType = "order.submitted"
	EventOrderValidated      OrderEventType = "order.validated"
	EventOrderRejected       OrderEventType = "order.rejected"
	EventOrderPaid           OrderEventType = "order.paid"
	EventOrderDispatched     OrderEventType = "order.dispatched"
	EventOrderCompleted      OrderEventType = "order.completed"
	EventOrderCancelled      OrderEventType = "order.cancelled"
	EventPaymentUnreconciled OrderEventType = "payment.unreconciled"
)

// OrderEvent is published after an order transition has been persisted.
type OrderEvent struct {
	Type          OrderEventType `json:"type"`
	OrderID       string         `json:"order_id"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	Reference     string         `json:"reference,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// NewOrderEvent builds an event describing the current state of order.
func NewOrderEvent(kind OrderEventType, order Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          kind,
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Reference:     order.PaymentReference,
		OccurredAt:    at.UTC(),
	}
}

// DeliveryConfirmation is a courier notification that goods reached the buyer.
type DeliveryConfirmation struct {
	OrderID     string    `json:"order_id"`
	Courier     string    `json:"courier"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
