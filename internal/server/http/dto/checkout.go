package dto

import "github.com/shopspring/decimal"

// StartCheckoutRequest opens a checkout session on a listing.
type StartCheckoutRequest struct {
	ListingID int64 `json:"listing_id" binding:"required"`
}

// UpdateCheckoutRequest edits the draft. Omitted fields are unchanged.
type UpdateCheckoutRequest struct {
	Quantity        *int    `json:"quantity"`
	DeliveryAddress *string `json:"delivery_address"`
}

// QuoteResponse is the price breakdown shown before submission.
type QuoteResponse struct {
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	EscrowFee   decimal.Decimal `json:"escrow_fee"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

// PaymentResponse carries what the client needs to open the gateway checkout.
type PaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	AccessCode       string `json:"access_code,omitempty"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// CheckoutResponse describes a checkout session.
type CheckoutResponse struct {
	ID                  string           `json:"id"`
	Stage               string           `json:"stage"`
	Validation          string           `json:"validation_status,omitempty"`
	InProgress          bool             `json:"in_progress"`
	Quantity            int              `json:"quantity"`
	MinQuantity         int              `json:"min_quantity"`
	DeliveryAddress     string           `json:"delivery_address"`
	CanSubmit           bool             `json:"can_submit"`
	Quote               QuoteResponse    `json:"quote"`
	Listing             ListingResponse  `json:"listing"`
	Order               *OrderResponse   `json:"order,omitempty"`
	Payment             *PaymentResponse `json:"payment,omitempty"`
	NeedsReconciliation bool             `json:"needs_reconciliation,omitempty"`
}

// PaymentCallbackRequest is sent by the client after the gateway reported success.
type PaymentCallbackRequest struct {
	Reference string `json:"reference" binding:"required"`
	OrderID   string `json:"order_id"`
}

// ErrorResponse carries a message safe to show to users.
type ErrorResponse struct {
	Error string `json:"error"`
}
