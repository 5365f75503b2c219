package services

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/optimizer"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// singletonCategories keep at most one asset per entity: a new upload
// replaces the previous one once it is safely stored.
var singletonCategories = map[string]bool{
	"avatar":  true,
	"profile": true,
	"logo":    true,
	"cover":   true,
}

// UploadLimits bounds upload sizes. PerCategory overrides Default.
type UploadLimits struct {
	Default     int64
	PerCategory map[string]int64
}

// For returns the byte limit for category.
func (l UploadLimits) For(category string) int64 {
	if v, ok := l.PerCategory[category]; ok {
		return v
	}
	return l.Default
}

// DefaultUploadLimits is 10 MiB, or 5 MiB for avatar and profile pictures.
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		Default:     10 << 20,
		PerCategory: map[string]int64{"avatar": 5 << 20, "profile": 5 << 20},
	}
}

// UploadInput is one file submitted by a caller.
type UploadInput struct {
	FileName   string
	Data       []byte
	MimeType   string
	Category   string
	EntityType string
	EntityID   string
	IsPublic   bool
	Metadata   models.FileMetadata
}

// UploadOutput is the stored record plus optimizer details for images.
type UploadOutput struct {
	File         *models.UploadedFile
	Optimization *optimizer.Result
}

type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     *storage.Registry
	profiles    optimizer.Profiles
	limits      UploadLimits
	logger      logging.Logger
	now         func() time.Time
}

func NewUploadService(db *sql.DB, repomanager repomanager.RepositoryManager, registry *storage.Registry,
	profiles optimizer.Profiles, limits UploadLimits, logger logging.Logger) *UploadService {
	if profiles == nil {
		profiles = optimizer.DefaultProfiles()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UploadService{
		db:          db,
		repomanager: repomanager,
		storage:     registry,
		profiles:    profiles,
		limits:      limits,
		logger:      logger.With("module", "upload"),
		now:         time.Now,
	}
}

// Upload validates, optionally optimizes and stores one file, then records it.
// Nothing is recorded when the backend write fails; when recording fails the
// stored object is removed again.
func (s *UploadService) Upload(ctx context.Context, tenantID string, in UploadInput) (*UploadOutput, error) {
	if err := validateUpload(tenantID, in); err != nil {
		return nil, err
	}
	if limit := s.limits.For(in.Category); limit > 0 && int64(len(in.Data)) > limit {
		return nil, fmt.Errorf("%d bytes exceeds %d: %w", len(in.Data), limit, common.ErrPayloadTooLarge)
	}

	mimeType, err := resolveMimeType(in.Data, in.MimeType)
	if err != nil {
		return nil, err
	}

	data := in.Data
	fileName := in.FileName
	var optimization *optimizer.Result
	if optimizer.IsImage(mimeType) {
		res, err := optimizer.Optimize(data, s.profiles.For(in.Category))
		switch {
		case err != nil:
			s.logger.Warn(ctx, "image optimization skipped", "tenant", tenantID, "error", err)
		case res.WasOptimized && res.OptimizedSize < res.OriginalSize:
			data = res.Buffer
			if m := optimizer.MimeType(res.Format); m != "" && m != mimeType {
				mimeType = m
				fileName = replaceExt(fileName, storage.ExtensionFor(m))
			}
			optimization = res
		}
	}

	key, err := s.buildKey(tenantID, in, fileName, mimeType)
	if err != nil {
		return nil, err
	}

	adapter, err := tenantBackend(ctx, s.repomanager.Backends(s.db), s.storage, tenantID)
	if err != nil {
		return nil, err
	}
	res, err := adapter.Upload(ctx, key, data, mimeType, in.IsPublic, map[string]string{
		"tenant-id":   tenantID,
		"entity-type": in.EntityType,
		"entity-id":   in.EntityID,
	})
	if err != nil {
		s.logger.Error(ctx, "storage upload failed", "tenant", tenantID, "key", key, "backend", adapter.Name(), "error", err)
		return nil, err
	}

	rec := &models.UploadedFile{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Key:        key,
		URL:        res.URL,
		FileName:   fileName,
		MimeType:   mimeType,
		FileSize:   res.Size,
		Category:   in.Category,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		IsPublic:   in.IsPublic,
		Metadata:   in.Metadata,
		UploadedAt: s.now().UTC(),
	}
	if optimization != nil && rec.Metadata.Width == 0 {
		rec.Metadata.Width, rec.Metadata.Height = optimization.Width, optimization.Height
	}

	files := s.repomanager.Files(s.db)
	if err := files.Upsert(ctx, rec); err != nil {
		s.logger.Error(ctx, "metadata write failed, removing object", "tenant", tenantID, "key", key, "error", err)
		if derr := adapter.Delete(context.WithoutCancel(ctx), key, false); derr != nil {
			s.logger.Error(ctx, "orphan cleanup failed", "tenant", tenantID, "key", key, "error", derr)
		}
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	if singletonCategories[in.Category] {
		s.replacePrevious(ctx, rec)
	}

	s.logger.Info(ctx, "file uploaded", "tenant", tenantID, "key", key, "size", rec.FileSize, "backend", adapter.Name())
	return &UploadOutput{File: rec, Optimization: optimization}, nil
}

// replacePrevious removes the entity's older assets of a singleton category.
// It runs only after the new asset is stored; failures are logged.
func (s *UploadService) replacePrevious(ctx context.Context, current *models.UploadedFile) {
	files := s.repomanager.Files(s.db)
	prev, err := files.ListByEntity(ctx, current.TenantID, current.Category, current.EntityType, current.EntityID)
	if err != nil {
		s.logger.Warn(ctx, "list previous assets failed", "tenant", current.TenantID, "error", err)
		return
	}
	for _, p := range prev {
		if p.ID == current.ID || p.Key == current.Key {
			continue
		}
		if err := s.deleteObject(ctx, p.Key); err != nil {
			s.logger.Warn(ctx, "delete previous object failed", "tenant", p.TenantID, "key", p.Key, "error", err)
			continue
		}
		if err := files.Delete(ctx, p.TenantID, p.ID); err != nil {
			s.logger.Warn(ctx, "delete previous record failed", "tenant", p.TenantID, "id", p.ID, "error", err)
		}
	}
}

// Delete removes the object and then its record.
func (s *UploadService) Delete(ctx context.Context, tenantID, id string) error {
	files := s.repomanager.Files(s.db)
	rec, err := files.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.deleteObject(ctx, rec.Key); err != nil {
		return err
	}
	if err := files.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "file deleted", "tenant", tenantID, "key", rec.Key)
	return nil
}

// Get returns the tenant's record with id.
func (s *UploadService) Get(ctx context.Context, tenantID, id string) (*models.UploadedFile, error) {
	return s.repomanager.Files(s.db).GetByID(ctx, tenantID, id)
}

// ListByEntity returns the records of one entity in one category.
func (s *UploadService) ListByEntity(ctx context.Context, tenantID, category, entityType, entityID string) ([]*models.UploadedFile, error) {
	return s.repomanager.Files(s.db).ListByEntity(ctx, tenantID, category, entityType, entityID)
}

// deleteObject removes key from every configured backend; after a partial
// migration the object may live on either one.
func (s *UploadService) deleteObject(ctx context.Context, key string) error {
	for _, kind := range s.storage.Kinds() {
		a, err := s.storage.Get(kind)
		if err != nil || !a.Configured() {
			continue
		}
		if err := a.Delete(ctx, key, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *UploadService) buildKey(tenantID string, in UploadInput, fileName, mimeType string) (string, error) {
	name := storage.SanitizeSegment(fileName)
	// delivery derives Content-Type from the key
	if storage.ContentTypeByKey(name) != mimeType {
		name += storage.ExtensionFor(mimeType)
	}
	if strings.HasPrefix(name, ".") || name == "" {
		name = "file" + name
	}
	return storage.JoinKey(common.TenantKeyPrefix, tenantID, in.Category, in.EntityType, in.EntityID,
		fmt.Sprintf("%d-%s", s.now().UnixMilli(), name))
}

func validateUpload(tenantID string, in UploadInput) error {
	fields := []struct{ name, value string }{
		{"tenant", tenantID},
		{"category", in.Category},
		{"entityType", in.EntityType},
		{"entityId", in.EntityID},
	}
	for _, f := range fields {
		if isBlank(f.value) {
			return fmt.Errorf("%s is required: %w", f.name, common.ErrValidation)
		}
		if storage.SanitizeSegment(f.value) != f.value {
			return fmt.Errorf("%s contains unsupported characters: %w", f.name, common.ErrValidation)
		}
	}
	if len(in.Data) == 0 {
		return fmt.Errorf("file is empty: %w", common.ErrValidation)
	}
	return nil
}

// resolveMimeType prefers the sniffed type over the declared one and rejects
// anything outside the delivery table.
func resolveMimeType(data []byte, declared string) (string, error) {
	detected := baseMime(mimetype.Detect(data).String())
	declared = baseMime(declared)

	for _, m := range []string{detected, declared} {
		if m != "" && m != storage.DefaultContentType && storage.ExtensionFor(m) != "" {
			return m, nil
		}
	}
	return "", fmt.Errorf("type %q: %w", detected, common.ErrUnsupportedType)
}

func baseMime(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

func replaceExt(name, ext string) string {
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
