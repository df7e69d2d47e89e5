package telemetry

import (
	"context"
	"errors"
)

// EventEmitter emits security events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SecurityEvent) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
func Multi(emitters ...EventEmitter) EventEmitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type multi []EventEmitter

func (m multi) Emit(ctx context.Context, event *SecurityEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
