// Package backends records which storage backend receives a tenant's new
// uploads once a migration has moved that tenant.
package backends

import "context"

type Repository interface {
	// Get returns the tenant's backend, or common.ErrorNotFound when the
	// tenant still follows the process default.
	Get(ctx context.Context, tenantID string) (string, error)
	Set(ctx context.Context, tenantID, backend string) error
}
