package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/telemetry/domain"
)

const (
	// emitTimeout bounds a single async emit.
	emitTimeout = 5 * time.Second
	// maxInFlight caps concurrent async emits; events beyond it are dropped.
	maxInFlight = 256
)

// ShutdownDrainDuration is how long cmd/server waits after GracefulStop before shutting down the
// exporters, so in-flight emits can finish. It must not be shorter than emitTimeout.
const ShutdownDrainDuration = emitTimeout

var inFlight = make(chan struct{}, maxInFlight)

// EmitAsync emits event on a new goroutine detached from ctx cancellation and reports whether it
// was started. It returns false without emitting when emitter or event is nil, or when maxInFlight
// emits are already pending (a stalled broker must not pile up goroutines).
func EmitAsync(ctx context.Context, emitter EventEmitter, event *domain.Event, log *zap.Logger) bool {
	if emitter == nil || event == nil {
		return false
	}
	if log == nil {
		log = zap.NewNop()
	}
	select {
	case inFlight <- struct{}{}:
	default:
		log.Debug("telemetry: emit dropped, too many in flight", zap.String("event_type", event.EventType))
		return false
	}
	go func() {
		defer func() { <-inFlight }()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn("telemetry: async emit failed", zap.String("event_type", event.EventType), zap.Error(err))
		}
	}()
	return true
}
