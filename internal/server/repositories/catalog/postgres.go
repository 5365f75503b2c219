package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetAccessDescriptor returns the access rule of an entity, or
// common.ErrorNotFound when the catalog does not know it.
func (r *PostgresRepository) GetAccessDescriptor(ctx context.Context, tenantID, entityType, entityID string) (*models.AccessDescriptor, error) {
	query := `SELECT access_type, is_preview, password, allow_download FROM asset_access
		WHERE tenant_id=$1 AND entity_type=$2 AND entity_id=$3`

	d := &models.AccessDescriptor{TenantID: tenantID, EntityType: entityType, EntityID: entityID}
	var accessType string
	err := r.db.QueryRowContext(ctx, query, tenantID, entityType, entityID).
		Scan(&accessType, &d.IsPreview, &d.Password, &d.AllowDownload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select access: %w", err)
	}
	d.AccessType = models.AccessType(accessType)
	return d, nil
}

// IsEnrolled reports whether userID is enrolled in the entity.
func (r *PostgresRepository) IsEnrolled(ctx context.Context, tenantID, userID, entityType, entityID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM enrollments
		WHERE tenant_id=$1 AND user_id=$2 AND entity_type=$3 AND entity_id=$4)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, tenantID, userID, entityType, entityID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to select enrollment: %w", err)
	}
	return ok, nil
}
