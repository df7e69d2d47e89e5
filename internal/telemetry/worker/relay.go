// Package worker relays security events from Kafka to Loki.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry/loki"
)

// MessageReader is the subset of *kafka.Reader used by Relay.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Pusher is the subset of *loki.Client used by Relay.
type Pusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

// Relay copies messages from a reader to a pusher. A message is committed once it is
// pushed or its push failed permanently, so a crash replays at most the uncommitted tail.
type Relay struct {
	reader      MessageReader
	pusher      Pusher
	log         logging.Logger
	pushTimeout time.Duration
	maxTries    uint
	newBackOff  func() backoff.BackOff
}

func NewRelay(reader MessageReader, pusher Pusher, log logging.Logger) *Relay {
	if log == nil {
		log = logging.Nop()
	}
	return &Relay{
		reader:      reader,
		pusher:      pusher,
		log:         log,
		pushTimeout: 10 * time.Second,
		maxTries:    5,
		newBackOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run relays until ctx is cancelled. It returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn(ctx, "kafka fetch failed", "error", err)
			continue
		}
		if err := r.push(ctx, msg.Value); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Error(ctx, "dropping security event after failed push",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		if err := r.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			r.log.Warn(ctx, "kafka commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func (r *Relay) push(ctx context.Context, value []byte) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pushCtx, cancel := context.WithTimeout(ctx, r.pushTimeout)
		defer cancel()
		err := r.pusher.PushEventJSON(pushCtx, value)
		var pe *loki.PushError
		if errors.As(err, &pe) && !pe.Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(r.maxTries))
	return err
}
