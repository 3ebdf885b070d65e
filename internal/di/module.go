package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/agrilink/internal/adapter/events"
	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/app"
	"github.com/polkiloo/agrilink/internal/config"
	"github.com/polkiloo/agrilink/internal/logger"
	"github.com/polkiloo/agrilink/internal/metrics"
	"github.com/polkiloo/agrilink/internal/orderflow"
	"github.com/polkiloo/agrilink/internal/pkg/auth"
	"github.com/polkiloo/agrilink/internal/server/http/handlers"
	"github.com/polkiloo/agrilink/internal/server/http/router"
	"github.com/polkiloo/agrilink/internal/storage/postgres"
	"github.com/polkiloo/agrilink/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		postgres.Module,
		payment.Module,
		events.Module,
		orderflow.Module,
		usecase.Module,
		fx.Provide(
			func(s *postgres.Storage) app.HealthChecker { return s },
			func(f *app.MarketplaceFacade) handlers.MarketplaceFacade { return f },
		),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
