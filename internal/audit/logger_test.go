package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
)

// mockAuditRepo implements the audit repository for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, nil)

	logger.LogEvent(context.Background(), "acc-1", domain.ActionLoginSuccess, "account", "device=pc")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.AccountID != "acc-1" {
		t.Errorf("account_id = %q, want %q", entry.AccountID, "acc-1")
	}
	if entry.Action != domain.ActionLoginSuccess || entry.Resource != "account" {
		t.Errorf("action/resource = %q/%q", entry.Action, entry.Resource)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.Metadata != "device=pc" {
		t.Errorf("metadata = %q", entry.Metadata)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("id and created_at must be set")
	}
}

func TestLogger_LogEvent_NoIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), "", domain.ActionLoginFailure, "account", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.entries[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_CreateErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), "acc-1", domain.ActionLogout, "session", "")
	if len(repo.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(repo.entries))
	}
}

func TestLogger_LogEvent_CancelledContext(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewLogger(repo, nil, nil).LogEvent(ctx, "acc-1", domain.ActionCompromise, "session", "")
	if len(repo.entries) != 1 {
		t.Errorf("expected entry written after cancellation, got %d", len(repo.entries))
	}
}

func TestLogger_NilRepo(t *testing.T) {
	NewLogger(nil, nil, nil).LogEvent(context.Background(), "acc-1", domain.ActionRefresh, "session", "")
}
