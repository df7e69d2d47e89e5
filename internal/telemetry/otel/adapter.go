package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry"
)

// recordEmitter is the subset of otellog.Logger used by the adapter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends security events as OTel log records.
// A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger("cardgame.security"))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to l.
func NewEventEmitterWithLogger(l recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityWarn)
	rec.SetBody(otellog.StringValue(event.Type))
	addString(&rec, "event_type", event.Type)
	addString(&rec, "source", event.Source)
	addString(&rec, "account_id", event.AccountID)
	addString(&rec, "session_id", event.SessionID)
	addString(&rec, "client_ip", event.IP)
	if event.SessionsClosed > 0 {
		rec.AddAttributes(otellog.Int64("sessions_closed", event.SessionsClosed))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func addString(rec *otellog.Record, key, v string) {
	if v != "" {
		rec.AddAttributes(otellog.String(key, v))
	}
}
