package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
	auditrepo "github.com/CCodeCommunity/CardGameBackend/internal/audit/repository"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
)

// IPExtractor returns the client IP stored in the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. Used by the auth and account services.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, accountID, action, resource, metadata string)
}

// Logger implements AuditLogger on top of the audit repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         logging.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. ipExtractor may be nil; then IP
// is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log logging.Logger) *Logger {
	if log == nil {
		log = logging.Nop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log, now: time.Now}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, accountID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := ""
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	// The request may already be cancelled (e.g. client hung up after a compromise).
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		l.log.Warn(ctx, "audit write failed", "action", action, "resource", resource, "error", err)
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
