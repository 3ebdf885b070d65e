package payment

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/agrilink/internal/config"
)

// Module exposes the configured payment gateway to the fx graph.
var Module = fx.Provide(newGateway)

type gatewayParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newGateway(p gatewayParams) (Gateway, error) {
	if p.Config.PaymentGatewayURL == "" {
		p.Logger.Warn("payment gateway url not configured, using in-process gateway")
		return NewMockGateway(p.Config.PaymentReferencePrefix, p.Config.PaymentSecretKey), nil
	}
	return NewPaystackGateway(PaystackConfig{
		BaseURL:         p.Config.PaymentGatewayURL,
		SecretKey:       p.Config.PaymentSecretKey,
		PublicKey:       p.Config.PaymentPublicKey,
		ReferencePrefix: p.Config.PaymentReferencePrefix,
	}, p.Logger)
}
