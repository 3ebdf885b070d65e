package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureHeader carries the webhook body signature.
const SignatureHeader = "X-Paystack-Signature"

// EventChargeSuccess is the webhook event sent after funds are captured.
const EventChargeSuccess = "charge.success"

// WebhookEvent is a gateway notification about a charge.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// OrderID returns the order id stored in the charge metadata, or "".
// Gateways send metadata as a bare string when none was attached.
func (e *WebhookEvent) OrderID() string {
	var meta Metadata
	if len(e.Data.Metadata) == 0 || json.Unmarshal(e.Data.Metadata, &meta) != nil {
		return ""
	}
	return meta.OrderID
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if event.Data.Reference == "" {
		return nil, fmt.Errorf("decode webhook: missing reference")
	}
	return &event, nil
}

// Sign returns the hex HMAC-SHA512 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
