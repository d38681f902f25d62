package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"vehicle-marketplace/backend/internal/telemetry"
	"vehicle-marketplace/backend/internal/telemetry/domain"
)

// recordEmitter is the part of otellog.Logger the adapter uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger("marketplace.auth.telemetry"))
}

// NewEventEmitterWithLogger wraps an existing OTel logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	addString(&rec, "user_id", event.UserID)
	addString(&rec, "session_id", event.SessionID)
	addString(&rec, "event_type", event.EventType)
	addString(&rec, "source", event.Source)
	e.logger.Emit(ctx, rec)
	return nil
}

func addString(rec *otellog.Record, key, value string) {
	if value != "" {
		rec.AddAttributes(otellog.String(key, value))
	}
}
