// Package catalog reads the access rules and enrollments that the course
// catalog maintains. MediaVault never writes these tables.
package catalog

import (
	"context"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Repository is the read-only catalog surface used by delivery.
type Repository interface {
	GetAccessDescriptor(ctx context.Context, tenantID, entityType, entityID string) (*models.AccessDescriptor, error)
	IsEnrolled(ctx context.Context, tenantID, userID, entityType, entityID string) (bool, error)
}
