package backends

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID string) (string, error) {
	var backend string
	err := r.db.QueryRowContext(ctx, `SELECT backend FROM tenant_backends WHERE tenant_id=$1`, tenantID).Scan(&backend)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("failed to select tenant backend: %w", err)
	}
	return backend, nil
}

func (r *PostgresRepository) Set(ctx context.Context, tenantID, backend string) error {
	query := `INSERT INTO tenant_backends (tenant_id, backend, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET backend=EXCLUDED.backend, updated_at=now()`

	if _, err := r.db.ExecContext(ctx, query, tenantID, backend); err != nil {
		return fmt.Errorf("failed to upsert tenant backend: %w", err)
	}
	return nil
}
