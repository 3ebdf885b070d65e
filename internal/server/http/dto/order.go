package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse describes a persisted order.
type OrderResponse struct {
	ID               string          `json:"id"`
	BuyerID          int64           `json:"buyer_id"`
	SellerID         int64           `json:"seller_id"`
	ListingID        int64           `json:"listing_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	EscrowFee        decimal.Decimal `json:"escrow_fee"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	DeliveryAddress  string          `json:"delivery_address"`
	Status           string          `json:"status"`
	PaymentStatus    string          `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	ValidatedBy      int64           `json:"validated_by,omitempty"`
	ValidationNotes  string          `json:"validation_notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DecisionRequest is an extension officer verdict.
type DecisionRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}
