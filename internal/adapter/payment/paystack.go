package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TooManyRequestsError represents rate limiting signal from the gateway.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// PaystackConfig configures the HTTP gateway.
type PaystackConfig struct {
	BaseURL         string
	SecretKey       string
	PublicKey       string
	ReferencePrefix string
	Timeout         time.Duration
}

// PaystackGateway talks to a Paystack compatible transaction API.
type PaystackGateway struct {
	baseURL    *url.URL
	secretKey  string
	publicKey  string
	httpClient *http.Client
	refs       *ReferenceGenerator
	registry   *chargeRegistry
	logger     *slog.Logger
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email     string    `json:"email"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	Channels  []Channel `json:"channels,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// NewPaystackGateway creates a gateway client with a default timeout of ten seconds.
func NewPaystackGateway(cfg PaystackConfig, logger *slog.Logger) (*PaystackGateway, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("gateway url must be absolute")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("gateway secret key must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaystackGateway{
		baseURL:    parsed,
		secretKey:  cfg.SecretKey,
		publicKey:  cfg.PublicKey,
		httpClient: &http.Client{Timeout: timeout},
		refs:       NewReferenceGenerator(cfg.ReferencePrefix),
		registry:   newChargeRegistry(),
		logger:     logger,
	}, nil
}

func (g *PaystackGateway) GenerateReference() string { return g.refs.Next() }

func (g *PaystackGateway) ToMinorUnits(amount decimal.Decimal) int64 { return ToMinorUnits(amount) }

func (g *PaystackGateway) FromMinorUnits(amount int64) decimal.Decimal { return FromMinorUnits(amount) }

func (g *PaystackGateway) Charge(ctx context.Context, req ChargeRequest, callbacks Callbacks) (*Checkout, error) {
	body, err := json.Marshal(initializeRequest{
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
		Channels:  req.Channels,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := g.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	if data.Reference != "" && data.Reference != req.Reference {
		return nil, fmt.Errorf("gateway returned reference %q for %q", data.Reference, req.Reference)
	}

	g.registry.add(req, callbacks)
	return &Checkout{
		Reference:        req.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		PublicKey:        g.publicKey,
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

// Resolve verifies the charge with the gateway before firing OnSuccess.
// The charge stays open when verification fails so a later attempt can settle it.
func (g *PaystackGateway) Resolve(ctx context.Context, reference string) error {
	open, ok := g.registry.peek(reference)
	if !ok {
		return ErrUnknownCharge
	}
	v, err := g.verify(ctx, reference)
	if err != nil {
		return err
	}
	if mapStatus(v.Status) != ChargeSuccess {
		return fmt.Errorf("%w: %s is %s", ErrChargeNotCaptured, reference, v.Status)
	}
	if v.Amount != open.Amount {
		g.logger.Error("captured amount mismatch",
			slog.String("reference", reference),
			slog.Int64("expected", open.Amount),
			slog.Int64("captured", v.Amount),
		)
		return fmt.Errorf("%w: %s", ErrAmountMismatch, reference)
	}
	return g.registry.succeed(ctx, reference)
}

func (g *PaystackGateway) Cancel(ctx context.Context, reference string) error {
	return g.registry.cancel(ctx, reference)
}

func (g *PaystackGateway) Expire(ctx context.Context, reference string) error {
	return g.registry.cancel(ctx, reference)
}

func (g *PaystackGateway) Status(ctx context.Context, reference string) (ChargeStatus, error) {
	v, err := g.verify(ctx, reference)
	if err != nil {
		return "", err
	}
	return mapStatus(v.Status), nil
}

func (g *PaystackGateway) Pending(olderThan time.Duration) []PendingCharge {
	return g.registry.pending(olderThan)
}

func (g *PaystackGateway) VerifyWebhook(body []byte, signature string) bool {
	return verifySignature(g.secretKey, body, signature)
}

func (g *PaystackGateway) verify(ctx context.Context, reference string) (*verifyData, error) {
	if reference == "" || strings.ContainsAny(reference, "/?#%") {
		return nil, ErrUnknownCharge
	}
	var data verifyData
	if err := g.do(ctx, http.MethodGet, path.Join("/transaction/verify", reference), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (g *PaystackGateway) do(ctx context.Context, method, endpointPath string, body []byte, out any) error {
	endpoint := *g.baseURL
	endpoint.Path = path.Join(endpoint.Path, endpointPath)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnknownCharge
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		g.logger.Error("gateway request failed",
			slog.String("path", endpointPath),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(payload)),
		)
		return fmt.Errorf("gateway error: %s", resp.Status)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	if !env.Status {
		return fmt.Errorf("gateway rejected request: %s", env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode gateway data: %w", err)
	}
	return nil
}

func mapStatus(status string) ChargeStatus {
	switch status {
	case "success":
		return ChargeSuccess
	case "failed", "reversed":
		return ChargeFailed
	case "abandoned":
		return ChargeAbandoned
	default:
		return ChargePending
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
