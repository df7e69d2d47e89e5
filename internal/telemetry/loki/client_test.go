package loki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_EmptyURL(t *testing.T) {
	if _, err := NewClient("  ", nil); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestPushEventJSON(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	raw := []byte(`{"eventType":"refresh_token_reuse","source":"auth","accountId":"acc-1","createdAt":"2024-05-01T12:00:00Z"}`)
	if err := c.PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	if s.Stream["job"] != jobLabel || s.Stream["event_type"] != "refresh_token_reuse" || s.Stream["source"] != "auth" {
		t.Errorf("labels = %v", s.Stream)
	}
	if _, ok := s.Stream["account_id"]; ok {
		t.Error("account id must not become a label")
	}
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	if len(s.Values) != 1 || s.Values[0][0] != itoa(want) || s.Values[0][1] != string(raw) {
		t.Errorf("values = %v", s.Values)
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestPushEvent_Non2xx(t *testing.T) {
	for code, retryable := range map[int]bool{http.StatusBadRequest: false, http.StatusTooManyRequests: true, http.StatusBadGateway: true} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c, _ := NewClient(srv.URL, srv.Client())
		err := c.PushEventJSON(context.Background(), []byte("not json"))
		srv.Close()

		var pe *PushError
		if !errors.As(err, &pe) {
			t.Fatalf("status %d: err = %v, want *PushError", code, err)
		}
		if pe.Retryable() != retryable {
			t.Errorf("status %d: Retryable = %v", code, pe.Retryable())
		}
	}
}
