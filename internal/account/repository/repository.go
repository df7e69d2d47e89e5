package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
var ErrDuplicateEmail = errors.New("email already exists")

// Repository defines persistence for accounts.
// Getters return nil, nil when the account does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	// UpdateState sets the account state. Returns false when the account does not exist.
	UpdateState(ctx context.Context, id string, state domain.State, at time.Time) (bool, error)
	// List returns accounts ordered by creation time then id.
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	Count(ctx context.Context) (int, error)
}
