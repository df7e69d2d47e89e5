package repository

import (
	"context"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/session/domain"
)

// Repository defines persistence for sessions.
// Getters return nil, nil when the row does not exist.
type Repository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	GetRotatedToken(ctx context.Context, tokenHash string) (*domain.RotatedToken, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Rotate replaces the current token hash of a Valid session only if it still equals oldHash,
	// and records oldHash as rotated, atomically. Returns false when the swap did not apply.
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, at time.Time) (bool, error)
	// MarkLoggedOut moves the Valid session whose current hash is tokenHash to LoggedOut.
	// Returns false when no such session exists.
	MarkLoggedOut(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	// CompromiseAllByAccount moves every Valid session of the account to Compromised in one
	// atomic step and returns how many changed.
	CompromiseAllByAccount(ctx context.Context, accountID string, at time.Time) (int64, error)
}
