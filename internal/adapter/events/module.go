package events

import (
	"context"
	"io"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/agrilink/internal/config"
)

// Module provides the event publisher and the delivery consumer.
// The consumer needs a DeliveryConfirmer from the graph.
var Module = fx.Options(
	fx.Provide(newPublisher, newConsumer),
	fx.Invoke(registerLifecycle),
)

type publisherParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newPublisher(p publisherParams) Publisher {
	if len(p.Config.KafkaBrokers) == 0 {
		p.Logger.Warn("kafka brokers not configured, order events are not published")
		return NopPublisher{Logger: p.Logger}
	}
	return NewKafkaPublisher(p.Config.KafkaBrokers, p.Config.KafkaEventsTopic, p.Logger)
}

type consumerParams struct {
	fx.In

	Config    *config.Config
	Confirmer DeliveryConfirmer
	Logger    *slog.Logger
}

func newConsumer(p consumerParams) *DeliveryConsumer {
	if len(p.Config.KafkaBrokers) == 0 {
		return newDeliveryConsumer(nil, p.Confirmer, p.Logger)
	}
	return NewDeliveryConsumer(p.Config.KafkaBrokers, p.Config.KafkaGroupID, p.Config.KafkaDeliveryTopic, p.Confirmer, p.Logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Context   context.Context
	Consumer  *DeliveryConsumer
	Publisher Publisher
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Consumer.Start(p.Context)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := p.Consumer.Stop(ctx)
			if closer, ok := p.Publisher.(io.Closer); ok {
				if cerr := closer.Close(); err == nil {
					err = cerr
				}
			}
			return err
		},
	})
}
