// Package services implements MediaVault's use cases on top of the storage
// registry and the metadata repositories: uploading, migrating between
// backends and secure delivery.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/backends"
	"github.com/dmitrijs2005/mediavault/internal/storage"
)

// publicMessage turns an internal error into a short description that is safe
// to show to API callers. Full errors go to the logs only.
func publicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, common.ErrorNotFound):
		return "object not found"
	case errors.Is(err, common.ErrConfiguration):
		return "backend not configured"
	case errors.Is(err, common.ErrRead):
		return "read failed"
	case errors.Is(err, common.ErrWrite):
		return "write failed"
	case errors.Is(err, common.ErrValidation):
		return "invalid key"
	case errors.Is(err, errSizeMismatch):
		return "size mismatch after copy"
	default:
		return "unexpected error"
	}
}

// tenantBackend returns the adapter receiving the tenant's new uploads: the
// backend a completed migration moved the tenant to, else the process default.
func tenantBackend(ctx context.Context, repo backends.Repository, registry *storage.Registry, tenantID string) (storage.Adapter, error) {
	kind, err := repo.Get(ctx, tenantID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return registry.Active(), nil
	case err != nil:
		return nil, fmt.Errorf("tenant backend: %w", err)
	}
	a, err := registry.Get(kind)
	if err != nil || !a.Configured() {
		return registry.Active(), nil
	}
	return a, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
