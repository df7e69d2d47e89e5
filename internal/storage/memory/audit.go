package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
)

// AuditRepository is an in-memory audit log repository.
type AuditRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditLog
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(_ context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *a)
	return nil
}

func (r *AuditRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	var all []*domain.AuditLog
	for i := range r.entries {
		if r.entries[i].AccountID == accountID {
			e := r.entries[i]
			all = append(all, &e)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Actions returns the recorded actions in insertion order.
func (r *AuditRepository) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}
