package files

import (
	"context"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Repository is the uploaded_files ledger.
type Repository interface {
	Upsert(ctx context.Context, f *models.UploadedFile) error
	GetByID(ctx context.Context, tenantID, id string) (*models.UploadedFile, error)
	GetByKey(ctx context.Context, tenantID, key string) (*models.UploadedFile, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.UploadedFile, error)
	ListByEntity(ctx context.Context, tenantID, category, entityType, entityID string) ([]*models.UploadedFile, error)
	UpdateURL(ctx context.Context, tenantID, id, url string) error
	Delete(ctx context.Context, tenantID, id string) error
	Stats(ctx context.Context, tenantID string) (*models.StorageStats, error)
}
