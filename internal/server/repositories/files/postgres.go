package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

const selectColumns = `id, tenant_id, key, url, file_name, mime_type, file_size, category, entity_type, entity_id, is_public, metadata, uploaded_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts f or replaces the row with the same (tenant_id, key). The
// existing id is kept on conflict; f.ID and f.UploadedAt are set from the
// stored row.
func (r *PostgresRepository) Upsert(ctx context.Context, f *models.UploadedFile) error {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO uploaded_files (id, tenant_id, key, url, file_name, mime_type, file_size, category, entity_type, entity_id, is_public, metadata, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, key)
		DO UPDATE SET
			url = EXCLUDED.url,
			file_name = EXCLUDED.file_name,
			mime_type = EXCLUDED.mime_type,
			file_size = EXCLUDED.file_size,
			category = EXCLUDED.category,
			entity_type = EXCLUDED.entity_type,
			entity_id = EXCLUDED.entity_id,
			is_public = EXCLUDED.is_public,
			metadata = EXCLUDED.metadata,
			uploaded_at = EXCLUDED.uploaded_at
		RETURNING id, uploaded_at
	`
	err = r.db.QueryRowContext(ctx, query,
		f.ID, f.TenantID, f.Key, f.URL, f.FileName, f.MimeType, f.FileSize,
		f.Category, f.EntityType, f.EntityID, f.IsPublic, meta, f.UploadedAt,
	).Scan(&f.ID, &f.UploadedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the tenant's record with id, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*models.UploadedFile, error) {
	query := `SELECT ` + selectColumns + ` FROM uploaded_files WHERE tenant_id=$1 AND id=$2`
	return r.getOne(ctx, query, tenantID, id)
}

// GetByKey returns the tenant's record stored under key, or common.ErrorNotFound.
func (r *PostgresRepository) GetByKey(ctx context.Context, tenantID, key string) (*models.UploadedFile, error) {
	query := `SELECT ` + selectColumns + ` FROM uploaded_files WHERE tenant_id=$1 AND key=$2`
	return r.getOne(ctx, query, tenantID, key)
}

// ListByTenant returns every record of the tenant, oldest first. The order is
// stable so re-running a migration walks the same sequence.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.UploadedFile, error) {
	query := `SELECT ` + selectColumns + ` FROM uploaded_files WHERE tenant_id=$1 ORDER BY uploaded_at ASC, id ASC`
	return r.getMany(ctx, query, tenantID)
}

// ListByEntity returns the records attached to one entity in one category.
func (r *PostgresRepository) ListByEntity(ctx context.Context, tenantID, category, entityType, entityID string) ([]*models.UploadedFile, error) {
	query := `SELECT ` + selectColumns + ` FROM uploaded_files
		WHERE tenant_id=$1 AND category=$2 AND entity_type=$3 AND entity_id=$4
		ORDER BY uploaded_at ASC, id ASC`
	return r.getMany(ctx, query, tenantID, category, entityType, entityID)
}

// UpdateURL points the record at a new address after a backend move.
func (r *PostgresRepository) UpdateURL(ctx context.Context, tenantID, id, url string) error {
	query := `UPDATE uploaded_files SET url=$3 WHERE tenant_id=$1 AND id=$2`
	return r.execOne(ctx, query, tenantID, id, url)
}

// Delete removes the tenant's record with id.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := `DELETE FROM uploaded_files WHERE tenant_id=$1 AND id=$2`
	return r.execOne(ctx, query, tenantID, id)
}

// Stats returns the file count and total size of the tenant's ledger.
func (r *PostgresRepository) Stats(ctx context.Context, tenantID string) (*models.StorageStats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM uploaded_files WHERE tenant_id=$1`

	s := &models.StorageStats{}
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&s.TotalFiles, &s.TotalSize); err != nil {
		return nil, fmt.Errorf("failed to select stats: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.UploadedFile, error) {
	var (
		f    models.UploadedFile
		meta []byte
	)
	if err := s.Scan(&f.ID, &f.TenantID, &f.Key, &f.URL, &f.FileName, &f.MimeType, &f.FileSize,
		&f.Category, &f.EntityType, &f.EntityID, &f.IsPublic, &meta, &f.UploadedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &f.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &f, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.UploadedFile, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) getMany(ctx context.Context, query string, args ...any) ([]*models.UploadedFile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.UploadedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
