package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/account/repository"
)

// AccountRepository is an in-memory account repository.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byEmail map[string]string // email -> id
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
	}
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAccount(r.byID[id]), nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	return cloneAccount(r.byID[id]), nil
}

func (r *AccountRepository) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[a.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	r.byID[a.ID] = cloneAccount(a)
	r.byEmail[a.Email] = a.ID
	return nil
}

func (r *AccountRepository) UpdateState(_ context.Context, id string, state domain.State, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	a.State = state
	a.UpdatedAt = at
	return true, nil
}

func (r *AccountRepository) List(_ context.Context, limit, offset int) ([]*domain.Account, error) {
	r.mu.RLock()
	all := make([]*domain.Account, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, cloneAccount(a))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if offset < 0 || limit <= 0 || offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit < end-offset {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *AccountRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
