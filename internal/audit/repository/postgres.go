package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/db"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit log repository backed by conn.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, account_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, nullString(a.AccountID), a.Action, a.Resource, a.IP, nullString(a.Metadata), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, action, resource, ip, metadata, created_at FROM audit_logs
		 WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a       domain.AuditLog
			acc, md sql.NullString
		)
		if err := rows.Scan(&a.ID, &acc, &a.Action, &a.Resource, &a.IP, &md, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		a.AccountID = acc.String
		a.Metadata = md.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
