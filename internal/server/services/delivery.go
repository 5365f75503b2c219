package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/optimizer"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/storage"
)

// Watermarker stamps image bytes for a viewer before they are served.
type Watermarker interface {
	Apply(ctx context.Context, caller models.Caller, file *models.UploadedFile, data []byte) ([]byte, error)
}

// Asset is a resolved, authorized object ready to be streamed.
type Asset struct {
	Key           string
	FileName      string
	ContentType   string
	Size          int64
	AllowDownload bool
	// File is nil for assets resolved through the static route.
	File *models.UploadedFile

	adapter storage.Adapter
}

type DeliveryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     *storage.Registry
	watermarker Watermarker
	logger      logging.Logger
}

func NewDeliveryService(db *sql.DB, repomanager repomanager.RepositoryManager, registry *storage.Registry,
	watermarker Watermarker, logger logging.Logger) *DeliveryService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &DeliveryService{
		db:          db,
		repomanager: repomanager,
		storage:     registry,
		watermarker: watermarker,
		logger:      logger.With("module", "delivery"),
	}
}

// Resolve authorizes caller for one file of an entity and locates its bytes.
// Access is decided before storage is touched.
func (s *DeliveryService) Resolve(ctx context.Context, caller models.Caller, entityType, entityID, fileID, password string) (*Asset, error) {
	catalogRepo := s.repomanager.Catalog(s.db)

	desc, err := catalogRepo.GetAccessDescriptor(ctx, caller.TenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if err := NewAccessPolicy(catalogRepo).Decide(ctx, caller, desc, password); err != nil {
		s.logger.Info(ctx, "access denied", "tenant", caller.TenantID, "user", caller.UserID,
			"entityType", entityType, "entityId", entityID, "reason", err)
		return nil, err
	}

	rec, err := s.repomanager.Files(s.db).GetByID(ctx, caller.TenantID, fileID)
	if err != nil {
		return nil, err
	}
	if rec.EntityType != entityType || rec.EntityID != entityID {
		return nil, fmt.Errorf("file %s does not belong to %s/%s: %w", fileID, entityType, entityID, common.ErrorNotFound)
	}

	adapter, info, err := s.storage.Locate(ctx, rec.Key)
	if err != nil {
		s.logger.Warn(ctx, "recorded object missing", "tenant", caller.TenantID, "key", rec.Key, "error", err)
		return nil, err
	}

	return &Asset{
		Key:           rec.Key,
		FileName:      rec.FileName,
		ContentType:   storage.ContentTypeByKey(rec.Key),
		Size:          info.Size,
		AllowDownload: desc.AllowDownload,
		File:          rec,
		adapter:       adapter,
	}, nil
}

// ResolveStatic serves the local backend's tree to members of the owning
// tenant. The tenant check runs before any storage lookup.
func (s *DeliveryService) ResolveStatic(ctx context.Context, caller models.Caller, key string) (*Asset, error) {
	if caller.TenantID == "" || !storage.BelongsToTenant(key, caller.TenantID) {
		return nil, fmt.Errorf("static key outside tenant: %w", common.ErrForbidden)
	}
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	local, err := s.storage.Get(storage.KindLocal)
	if err != nil || !local.Configured() {
		return nil, fmt.Errorf("static %s: %w", key, common.ErrorNotFound)
	}
	info, err := local.Stat(ctx, key)
	if err != nil {
		return nil, err
	}

	return &Asset{
		Key:         key,
		FileName:    path.Base(key),
		ContentType: storage.ContentTypeByKey(key),
		Size:        info.Size,
		adapter:     local,
	}, nil
}

// Open streams length bytes of the asset starting at offset; a negative
// length reads to the end.
func (s *DeliveryService) Open(ctx context.Context, a *Asset, offset, length int64) (io.ReadCloser, error) {
	return a.adapter.OpenRange(ctx, a.Key, offset, length)
}

// Watermarks reports whether full responses of a pass through the
// watermarker. Such assets are always served whole.
func (s *DeliveryService) Watermarks(a *Asset) bool {
	return s.watermarker != nil && a.File != nil && optimizer.IsImage(a.ContentType)
}

// FullBody reads the whole asset and applies the watermark when one is
// configured for it.
func (s *DeliveryService) FullBody(ctx context.Context, caller models.Caller, a *Asset) ([]byte, error) {
	data, err := a.adapter.Download(ctx, a.Key)
	if err != nil {
		return nil, err
	}
	if !s.Watermarks(a) {
		return data, nil
	}
	out, err := s.watermarker.Apply(ctx, caller, a.File, data)
	if err != nil {
		return nil, fmt.Errorf("watermark %s: %w", a.Key, err)
	}
	return out, nil
}

// ViewerStamp is the built-in Watermarker: it writes the viewer's tenant and
// user id across the bottom of JPEG and PNG images.
type ViewerStamp struct{}

func (ViewerStamp) Apply(ctx context.Context, caller models.Caller, file *models.UploadedFile, data []byte) ([]byte, error) {
	viewer := caller.UserID
	if viewer == "" {
		viewer = "guest"
	}
	return optimizer.Stamp(data, file.MimeType, caller.TenantID+"/"+viewer)
}
