package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/akira02/plurk-lottery"

type offsetSource interface {
	Offset() int64
}

// Metrics records comet and bot activity. It subscribes to both the CometChannel and
// the Bot.
type Metrics struct {
	cometEvents metric.Int64Counter
	cometErrors metric.Int64Counter
	botEvents   metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider, channel offsetSource, status StatusSource) (*Metrics, error) {
	meter := mp.Meter(meterName)

	cometEvents, err := meter.Int64Counter("plurk.comet.events",
		metric.WithDescription("Comet events delivered, by type"))
	if err != nil {
		return nil, fmt.Errorf("comet events counter: %w", err)
	}
	cometErrors, err := meter.Int64Counter("plurk.comet.errors",
		metric.WithDescription("Failed comet poll iterations, by kind"))
	if err != nil {
		return nil, fmt.Errorf("comet errors counter: %w", err)
	}
	botEvents, err := meter.Int64Counter("plurk.bot.events",
		metric.WithDescription("Bot actions, by type"))
	if err != nil {
		return nil, fmt.Errorf("bot events counter: %w", err)
	}

	_, err = meter.Int64ObservableGauge("plurk.comet.offset",
		metric.WithDescription("Current comet cursor"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(channel.Offset())
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("comet offset gauge: %w", err)
	}
	_, err = meter.Int64ObservableGauge("plurk.queue.waiting",
		metric.WithDescription("Match requests waiting for a partner"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(status.Waiting()))
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("queue waiting gauge: %w", err)
	}

	return &Metrics{
		cometEvents: cometEvents,
		cometErrors: cometErrors,
		botEvents:   botEvents,
	}, nil
}

func (m *Metrics) OnPlurk(PlurkEvent) {
	m.cometEvents.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", "new_plurk")))
}

func (m *Metrics) OnResponse(ResponseEvent) {
	m.cometEvents.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", "new_response")))
}

func (m *Metrics) OnError(err error) {
	m.cometErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", errorKind(err))))
}

func (m *Metrics) OnBotEvent(event BotEvent) {
	m.botEvents.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", event.Type)))
}
