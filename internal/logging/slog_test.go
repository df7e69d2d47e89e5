package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type recordingProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (p *recordingProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r.Clone())
	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }
func (p *recordingProcessor) Shutdown(context.Context) error                         { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error                       { return nil }

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, Options{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	l.Info(ctx, "hidden")
	l.With("account_id", "a-1").Warn(ctx, "shown", "n", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "shown" || rec["account_id"] != "a-1" {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, Options{Format: "text"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info(context.Background(), "hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_BridgesToLoggerProvider(t *testing.T) {
	var buf bytes.Buffer
	lp := sdklog.NewLoggerProvider()
	defer func() { _ = lp.Shutdown(context.Background()) }()

	l, err := New(&buf, Options{Level: "info", LoggerProvider: lp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug(context.Background(), "dropped")
	l.Info(context.Background(), "kept")
	if strings.Contains(buf.String(), "dropped") {
		t.Error("debug record written below configured level")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Error("info record missing from local output")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestNop(t *testing.T) {
	Nop().With("k", "v").Error(context.Background(), "nothing")
}

func TestNew_FansOutToBothSinks(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingProcessor{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(rec))
	defer func() { _ = lp.Shutdown(context.Background()) }()

	l, err := New(&buf, Options{Level: "info", Format: "text", LoggerProvider: lp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With("component", "auth").Info(context.Background(), "kept")
	l.Debug(context.Background(), "dropped")

	if !strings.Contains(buf.String(), "component=auth") {
		t.Errorf("local output missing attribute: %q", buf.String())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.records) != 1 {
		t.Fatalf("bridged records = %d, want 1", len(rec.records))
	}
	r := rec.records[0]
	if r.Body().AsString() != "kept" {
		t.Errorf("bridged body = %q", r.Body().AsString())
	}
	found := false
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == "component" && kv.Value.AsString() == "auth" {
			found = true
		}
		return true
	})
	if !found {
		t.Error("bridged record missing component attribute")
	}
}
