package payment

import (
	"context"
	"errors"
	"time"
)

// Channel is a payment method offered to the buyer.
type Channel string

const (
	ChannelCard        Channel = "card"
	ChannelBank        Channel = "bank"
	ChannelMobileMoney Channel = "mobile_money"
)

// DefaultChannels lists every supported channel.
var DefaultChannels = []Channel{ChannelCard, ChannelBank, ChannelMobileMoney}

// ChargeStatus is the gateway view of a charge.
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargeSuccess   ChargeStatus = "success"
	ChargeFailed    ChargeStatus = "failed"
	ChargeAbandoned ChargeStatus = "abandoned"
)

// Final reports whether the charge will not change any more.
func (s ChargeStatus) Final() bool {
	return s != ChargePending
}

var (
	// ErrUnknownCharge is returned when no open charge matches a reference.
	ErrUnknownCharge = errors.New("unknown charge reference")
	// ErrChargeNotCaptured is returned when the gateway has not confirmed the funds.
	ErrChargeNotCaptured = errors.New("charge not captured")
	// ErrAmountMismatch is returned when the captured amount differs from the charged one.
	ErrAmountMismatch = errors.New("captured amount does not match charge")
	// ErrInvalidSignature is returned for webhooks not signed with the secret key.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CustomField is a named value shown on the gateway dashboard.
type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

// Metadata is passed through to the gateway for reconciliation.
type Metadata struct {
	OrderID      string        `json:"order_id"`
	BuyerName    string        `json:"buyer_name"`
	Product      string        `json:"product"`
	Quantity     int           `json:"quantity"`
	CustomFields []CustomField `json:"custom_fields"`
}

// ChargeRequest describes a charge in minor currency units.
type ChargeRequest struct {
	Email     string
	Amount    int64
	Currency  string
	Reference string
	Metadata  Metadata
	Channels  []Channel
}

// Checkout is what a client needs to complete the charge with the gateway.
type Checkout struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	AccessCode       string `json:"access_code,omitempty"`
	PublicKey        string `json:"public_key,omitempty"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// Callbacks receive the outcome of a charge. Exactly one of them is called per charge.
type Callbacks struct {
	OnSuccess func(ctx context.Context, reference string) error
	OnCancel  func(ctx context.Context) error
}

// PendingCharge is an open charge awaiting its outcome.
type PendingCharge struct {
	Reference string
	OrderID   string
	Amount    int64
	CreatedAt time.Time
}
