package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/session/domain"
)

// SessionRepository is an in-memory session repository. A single mutex makes every
// rotation, logout and compromise fan-out atomic with respect to the others.
type SessionRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Session
	byHash  map[string]string // current refresh token hash -> session id
	rotated map[string]domain.RotatedToken
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byID:    make(map[string]*domain.Session),
		byHash:  make(map[string]string),
		rotated: make(map[string]domain.RotatedToken),
	}
}

func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	return cloneSession(r.byID[id]), nil
}

func (r *SessionRepository) GetRotatedToken(_ context.Context, tokenHash string) (*domain.RotatedToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.rotated[tokenHash]
	if !ok {
		return nil, nil
	}
	return &rt, nil
}

func (r *SessionRepository) ListByAccount(_ context.Context, accountID string) ([]*domain.Session, error) {
	r.mu.RLock()
	var out []*domain.Session
	for _, s := range r.byID {
		if s.AccountID == accountID {
			out = append(out, cloneSession(s))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SessionRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = cloneSession(s)
	r.byHash[s.RefreshTokenHash] = s.ID
	return nil
}

func (r *SessionRepository) Rotate(_ context.Context, sessionID, oldHash, newHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok || s.State != domain.StateValid || s.RefreshTokenHash != oldHash {
		return false, nil
	}
	delete(r.byHash, oldHash)
	s.RefreshTokenHash = newHash
	s.LastGrantedAt = at
	r.byHash[newHash] = s.ID
	r.rotated[oldHash] = domain.RotatedToken{TokenHash: oldHash, SessionID: s.ID, AccountID: s.AccountID, RotatedAt: at}
	return true, nil
}

func (r *SessionRepository) MarkLoggedOut(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return false, nil
	}
	s := r.byID[id]
	if s.State != domain.StateValid {
		return false, nil
	}
	s.State = domain.StateLoggedOut
	s.ClosedAt = &at
	return true, nil
}

func (r *SessionRepository) CompromiseAllByAccount(_ context.Context, accountID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.AccountID == accountID && s.State == domain.StateValid {
			s.State = domain.StateCompromised
			closed := at
			s.ClosedAt = &closed
			n++
		}
	}
	return n, nil
}

func cloneSession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
