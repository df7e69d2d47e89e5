package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/db"
	"github.com/CCodeCommunity/CardGameBackend/internal/session/domain"
)

const sessionColumns = `id, account_id, refresh_token_hash, device_name, device_agent, device_os, ip_address, state, created_at, last_granted_at, closed_at`

// PostgresRepository stores sessions in login_instances and rotated hashes in rotated_refresh_tokens.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by conn.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByTokenHash returns the session whose current refresh token hash is tokenHash, or nil if none.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM login_instances WHERE refresh_token_hash = $1`, tokenHash)
	return scanSession(row)
}

// GetRotatedToken returns the rotation record for tokenHash, or nil if the hash was never rotated away.
func (r *PostgresRepository) GetRotatedToken(ctx context.Context, tokenHash string) (*domain.RotatedToken, error) {
	var rt domain.RotatedToken
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, session_id, account_id, rotated_at FROM rotated_refresh_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&rt.TokenHash, &rt.SessionID, &rt.AccountID, &rt.RotatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rotated token: %w", err)
	}
	return &rt, nil
}

// ListByAccount returns all sessions of the account, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM login_instances WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a new session.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_instances (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.AccountID, s.RefreshTokenHash, s.Device.Name, s.Device.Agent, s.Device.OS, s.IPAddress,
		string(s.State), s.CreatedAt, s.LastGrantedAt, nullTime(s.ClosedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Rotate swaps the current token hash under a compare-and-swap on (id, hash, Valid) and records
// the old hash in the same transaction.
func (r *PostgresRepository) Rotate(ctx context.Context, sessionID, oldHash, newHash string, at time.Time) (bool, error) {
	applied := false
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE login_instances SET refresh_token_hash = $3, last_granted_at = $4
			 WHERE id = $1 AND refresh_token_hash = $2 AND state = $5`,
			sessionID, oldHash, newHash, at, string(domain.StateValid))
		if err != nil {
			return fmt.Errorf("rotate session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rotated_refresh_tokens (token_hash, session_id, account_id, rotated_at)
			 SELECT $1, id, account_id, $3 FROM login_instances WHERE id = $2`,
			oldHash, sessionID, at)
		if err != nil {
			return fmt.Errorf("record rotated token: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// MarkLoggedOut closes the Valid session holding tokenHash.
func (r *PostgresRepository) MarkLoggedOut(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_instances SET state = $2, closed_at = $3 WHERE refresh_token_hash = $1 AND state = $4`,
		tokenHash, string(domain.StateLoggedOut), at, string(domain.StateValid))
	if err != nil {
		return false, fmt.Errorf("logout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CompromiseAllByAccount marks every Valid session of the account Compromised in a single statement,
// so concurrent readers observe either none or all of the change.
func (r *PostgresRepository) CompromiseAllByAccount(ctx context.Context, accountID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_instances SET state = $2, closed_at = $3 WHERE account_id = $1 AND state = $4`,
		accountID, string(domain.StateCompromised), at, string(domain.StateValid))
	if err != nil {
		return 0, fmt.Errorf("compromise sessions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*domain.Session, error) {
	var (
		sess   domain.Session
		state  string
		closed sql.NullTime
	)
	err := s.Scan(&sess.ID, &sess.AccountID, &sess.RefreshTokenHash, &sess.Device.Name, &sess.Device.Agent,
		&sess.Device.OS, &sess.IPAddress, &state, &sess.CreatedAt, &sess.LastGrantedAt, &closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.State = domain.State(state)
	if closed.Valid {
		t := closed.Time
		sess.ClosedAt = &t
	}
	return &sess, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
