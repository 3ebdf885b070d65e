package orderflow

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/agrilink/internal/adapter/events"
	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/config"
	"github.com/polkiloo/agrilink/internal/domain/repository"
	"github.com/polkiloo/agrilink/internal/metrics"
)

// Module provides the session manager and exposes it as the delivery confirmer.
var Module = fx.Provide(
	newManager,
	func(m *Manager) events.DeliveryConfirmer { return m },
)

type managerParams struct {
	fx.In

	Config          *config.Config
	Logger          *slog.Logger
	Gateway         payment.Gateway
	Publisher       events.Publisher
	Metrics         *metrics.Metrics
	Users           repository.UserRepository
	Listings        repository.ListingRepository
	Orders          repository.OrderRepository
	Reconciliations repository.ReconciliationRepository
}

func newManager(p managerParams) *Manager {
	return NewManager(Deps{
		Orders:          p.Orders,
		Reconciliations: p.Reconciliations,
		Gateway:         p.Gateway,
		Events:          p.Publisher,
		Metrics:         p.Metrics,
		Logger:          p.Logger,
		Currency:        p.Config.PaymentCurrency,
		Channels:        payment.DefaultChannels,
	}, p.Users, p.Listings)
}
