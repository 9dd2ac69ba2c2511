package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// OTel metric exporter
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
	if cfg.OTel.Endpoint != "" {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(cfg.OTel.Endpoint))
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		log.Fatalf("metric exporter: %v", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.Metrics.Interval))),
	)
	defer meterProvider.Shutdown(context.Background())

	// OTel log exporter
	logOpts := []otlploggrpc.Option{otlploggrpc.WithInsecure()}
	if cfg.OTel.Endpoint != "" {
		logOpts = append(logOpts, otlploggrpc.WithEndpoint(cfg.OTel.Endpoint))
	}
	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		log.Fatalf("log exporter: %v", err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	defer loggerProvider.Shutdown(context.Background())
	logger := loggerProvider.Logger(cfg.OTel.ServiceName)

	// Plurk API
	client := NewPlurkClient(ctx, cfg.Plurk.APIBase, cfg.Plurk.Credentials, cfg.Plurk.RequestTimeout)
	api := NewPlurkAPI(client)

	me, err := api.Me(ctx)
	if err != nil {
		log.Fatalf("plurk me: %v", err)
	}
	userChannel, err := api.UserChannel(ctx)
	if err != nil {
		log.Fatalf("plurk user channel: %v", err)
	}

	// Comet channel, queue and bot
	var channelOpts []ChannelOption
	if cfg.Comet.WakeURL != "" {
		channelOpts = append(channelOpts, WithWakeURL(cfg.Comet.WakeURL))
	}
	comet := NewCometChannel(userChannel.CometServer, userChannel.ChannelName,
		NewHTTPFetcher(cfg.Comet.RequestTimeout), channelOpts...)

	queue := NewPairingQueue[Plurk](differentUsers)
	bot := NewBot(api, queue, me, cfg.Matching.MaxContentLength)
	comet.Subscribe(bot)

	otelSub := &OTelLogSubscriber{logger: logger, cfg: &cfg}
	bot.Subscribe(otelSub)

	if cfg.Metrics.Enabled {
		m, err := NewMetrics(meterProvider, comet, bot)
		if err != nil {
			log.Fatalf("metrics: %v", err)
		}
		comet.Subscribe(m)
		bot.Subscribe(m)
	}

	// Discord channel (optional)
	var channels []Channel
	if cfg.Discord.Enabled {
		dc, err := NewDiscordChannel(cfg.Discord.BotToken, cfg.Discord.ChannelID, &cfg)
		if err != nil {
			log.Fatalf("discord: %v", err)
		}
		channels = append(channels, dc)
	}

	bridge := NewBridge(bot, channels)
	bot.Subscribe(&BridgeSubscriber{events: bridge.Events()})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.RunFriendSync(ctx, cfg.Plurk.FriendSyncInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := comet.Poll(ctx, WithRetry(cfg.Comet.Retry), WithRetryDelay(cfg.Comet.RetryDelay))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("comet poll stopped: %v", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.FanOutEvents(ctx)
	}()

	for _, ch := range channels {
		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				log.Printf("channel %s: %v", c.Name(), err)
			}
		}(ch)

		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()
			bridge.HandleInbound(ctx, c)
		}(ch)
	}

	channelNames := make([]string, len(channels))
	for i, ch := range channels {
		channelNames[i] = ch.Name()
	}
	log.Printf("plurk-matchbot started as %s (id=%d, comet channel=%s, metrics=%v, channels=%v)",
		me.NickName, me.ID, comet.ChannelID(), cfg.Metrics.Enabled, channelNames)

	wg.Wait()
	log.Println("shutting down")
}
