package main

import (
	"context"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

// OTelLogSubscriber sends BotEvents as structured OTel log records (→ Loki).
type OTelLogSubscriber struct {
	logger otellog.Logger
	cfg    *Config
}

func (s *OTelLogSubscriber) OnBotEvent(event BotEvent) {
	if !s.cfg.lokiEventAllowed(event.Type) {
		return
	}

	var attrs []otellog.KeyValue
	if event.UserID != 0 {
		attrs = append(attrs, otellog.String("user_id", strconv.FormatInt(event.UserID, 10)))
	}
	if event.PlurkID != 0 {
		attrs = append(attrs, otellog.String("plurk_id", strconv.FormatInt(event.PlurkID, 10)))
	}
	if event.Message != "" {
		attrs = append(attrs, otellog.String("message", event.Message))
	}
	for k, v := range event.Extra {
		attrs = append(attrs, otellog.String(k, v))
	}

	severity := otellog.SeverityInfo
	if event.Type == "error" {
		severity = otellog.SeverityError
	}
	logEvent(s.logger, event.Time, severity, event.Type, attrs...)
}

func logEvent(logger otellog.Logger, ts time.Time, severity otellog.Severity, event string, attrs ...otellog.KeyValue) {
	if ts.IsZero() {
		ts = time.Now()
	}
	var r otellog.Record
	r.SetTimestamp(ts)
	r.SetSeverity(severity)
	r.SetBody(otellog.StringValue(event))
	r.AddAttributes(attrs...)
	logger.Emit(context.Background(), r)
}
