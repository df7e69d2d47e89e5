package telemetry

import (
	"context"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down
// OTel providers and the Kafka writer, so in-flight async emits can complete.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil. The emit does not inherit ctx cancellation; ctx only
// carries trace context for the failure log.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *SecurityEvent, log logging.Logger) {
	if emitter == nil || event == nil {
		return
	}
	if log == nil {
		log = logging.Nop()
	}
	emitCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(emitCtx, emitTimeout)
		defer cancel()
		if err := emitter.Emit(ctx, event); err != nil {
			log.Warn(ctx, "security event emit failed", "event_type", event.Type, "error", err)
		}
	}()
}
