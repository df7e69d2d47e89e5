// Package producer publishes security events to a message broker.
package producer

import "github.com/CCodeCommunity/CardGameBackend/internal/telemetry"

// Producer emits security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close flushes and releases resources. Safe to call if already closed.
	Close() error
}
