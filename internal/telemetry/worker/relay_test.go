package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry/loki"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) == 0 {
		f.mu.Unlock()
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	f.mu.Unlock()
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

type fakePusher struct {
	mu     sync.Mutex
	pushed []string
	errs   []error // consumed one per call
	calls  int
}

func (f *fakePusher) PushEventJSON(ctx context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.pushed = append(f.pushed, string(raw))
	return nil
}

func newTestRelay(reader MessageReader, pusher Pusher) *Relay {
	r := NewRelay(reader, pusher, nil)
	r.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	r.maxTries = 3
	return r
}

func TestRelay_PushesAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		msgs:   []kafka.Message{{Offset: 1, Value: []byte("a")}, {Offset: 2, Value: []byte("b")}},
		cancel: cancel,
	}
	pusher := &fakePusher{errs: []error{&loki.PushError{StatusCode: 503}}}

	if err := newTestRelay(reader, pusher).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pusher.pushed) != 2 || pusher.pushed[0] != "a" || pusher.pushed[1] != "b" {
		t.Errorf("pushed = %v", pusher.pushed)
	}
	if pusher.calls != 3 {
		t.Errorf("calls = %d, want one retry for the 503", pusher.calls)
	}
	if len(reader.committed) != 2 {
		t.Errorf("committed = %v", reader.committed)
	}
}

func TestRelay_PermanentFailureIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: []byte("bad")}}, cancel: cancel}
	pusher := &fakePusher{errs: []error{&loki.PushError{StatusCode: 400}}}

	_ = newTestRelay(reader, pusher).Run(ctx)
	if pusher.calls != 1 {
		t.Errorf("calls = %d, want 1", pusher.calls)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 7 {
		t.Errorf("committed = %v; a poison message must not block the partition", reader.committed)
	}
}

func TestRelay_GivesUpAfterMaxTries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 1, Value: []byte("x")}}, cancel: cancel}
	down := errors.New("connection refused")
	pusher := &fakePusher{errs: []error{down, down, down, down}}

	_ = newTestRelay(reader, pusher).Run(ctx)
	if pusher.calls != 3 {
		t.Errorf("calls = %d, want 3", pusher.calls)
	}
}
