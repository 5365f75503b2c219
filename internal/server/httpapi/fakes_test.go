package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
	"github.com/dmitrijs2005/mediavault/internal/server/auth"
	"github.com/dmitrijs2005/mediavault/internal/server/lock"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/backends"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/files"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/dmitrijs2005/mediavault/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type memFiles struct {
	files.Repository

	mu   sync.Mutex
	rows map[string]*models.UploadedFile
}

func (r *memFiles) Upsert(ctx context.Context, f *models.UploadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.rows[f.ID] = &cp
	return nil
}

func (r *memFiles) GetByID(ctx context.Context, tenantID, id string) (*models.UploadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.TenantID != tenantID {
		return nil, common.ErrorNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *memFiles) list(keep func(*models.UploadedFile) bool) []*models.UploadedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UploadedFile
	for _, row := range r.rows {
		if keep(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memFiles) ListByTenant(ctx context.Context, tenantID string) ([]*models.UploadedFile, error) {
	return r.list(func(f *models.UploadedFile) bool { return f.TenantID == tenantID }), nil
}

func (r *memFiles) ListByEntity(ctx context.Context, tenantID, category, entityType, entityID string) ([]*models.UploadedFile, error) {
	return r.list(func(f *models.UploadedFile) bool {
		return f.TenantID == tenantID && f.Category == category && f.EntityType == entityType && f.EntityID == entityID
	}), nil
}

func (r *memFiles) UpdateURL(ctx context.Context, tenantID, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.URL = url
	return nil
}

func (r *memFiles) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; !ok || row.TenantID != tenantID {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memFiles) Stats(ctx context.Context, tenantID string) (*models.StorageStats, error) {
	st := &models.StorageStats{}
	for _, f := range r.list(func(f *models.UploadedFile) bool { return f.TenantID == tenantID }) {
		st.TotalFiles++
		st.TotalSize += f.FileSize
	}
	return st, nil
}

type fakeCatalog struct {
	catalog.Repository
	descriptors map[string]*models.AccessDescriptor
}

func (c *fakeCatalog) GetAccessDescriptor(ctx context.Context, tenantID, entityType, entityID string) (*models.AccessDescriptor, error) {
	d, ok := c.descriptors[entityType+"/"+entityID]
	if !ok || d.TenantID != tenantID {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (c *fakeCatalog) IsEnrolled(ctx context.Context, tenantID, userID, entityType, entityID string) (bool, error) {
	return false, nil
}

type memBackends struct {
	backends.Repository

	mu   sync.Mutex
	rows map[string]string
}

func (b *memBackends) Get(ctx context.Context, tenantID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kind, ok := b.rows[tenantID]
	if !ok {
		return "", common.ErrorNotFound
	}
	return kind, nil
}

func (b *memBackends) Set(ctx context.Context, tenantID, backend string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[tenantID] = backend
	return nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	files    *memFiles
	catalog  *fakeCatalog
	backends *memBackends
}

func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository       { return m.files }
func (m *fakeRepoManager) Catalog(dbx.DBTX) catalog.Repository   { return m.catalog }
func (m *fakeRepoManager) Backends(dbx.DBTX) backends.Repository { return m.backends }

// fixture is a full HTTP stack over a temp-dir local backend and an
// unconfigured S3 backend.
type fixture struct {
	t       *testing.T
	handler http.Handler
	files   *memFiles
	catalog *fakeCatalog
	local   *storage.LocalAdapter
	locker  *lock.InMemory
}

// dirBucket stands in for a configured remote backend.
type dirBucket struct {
	*storage.LocalAdapter
}

func (dirBucket) Name() string { return storage.KindS3 }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s3, err := storage.NewS3Adapter(context.Background(), storage.S3Config{})
	require.NoError(t, err)
	return newFixtureWith(t, s3)
}

// newFixtureWithTarget configures both backends so migrations can run.
func newFixtureWithTarget(t *testing.T) (*fixture, *storage.LocalAdapter) {
	t.Helper()
	bucket, err := storage.NewLocalAdapter(t.TempDir(), "/bucket")
	require.NoError(t, err)
	return newFixtureWith(t, dirBucket{bucket}), bucket
}

func newFixtureWith(t *testing.T, s3 storage.Adapter) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := storage.NewLocalAdapter(t.TempDir(), "/storage")
	require.NoError(t, err)
	reg, err := storage.NewRegistryFrom(storage.KindLocal, local, s3)
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		files:   &memFiles{rows: map[string]*models.UploadedFile{}},
		catalog: &fakeCatalog{descriptors: map[string]*models.AccessDescriptor{}},
		local:   local,
		locker:  lock.NewInMemory(),
	}
	rm := &fakeRepoManager{files: f.files, catalog: f.catalog, backends: &memBackends{rows: map[string]string{}}}
	var db *sql.DB

	svc := Services{
		Uploads: services.NewUploadService(db, rm, reg, nil, services.UploadLimits{Default: 1 << 20}, nil),
		Migrations: services.NewMigrationService(db, rm, reg, f.locker,
			services.MigrationSettings{Workers: 2, RetryBase: time.Millisecond}, nil),
		Delivery: services.NewDeliveryService(db, rm, reg, nil, nil),
	}
	f.handler = NewHTTPServer(":0", nil, svc, testSecret, Options{
		StaticPrefix:   "/storage",
		MaxUploadBytes: 1 << 20,
		Gatherer:       prometheus.NewRegistry(),
	}).Handler()
	return f
}

func (f *fixture) token(caller models.Caller) string {
	f.t.Helper()
	tok, err := auth.GenerateToken(caller, []byte(testSecret), time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) do(req *http.Request, caller *models.Caller) *httptest.ResponseRecorder {
	f.t.Helper()
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+f.token(*caller))
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// seedAsset stores data on the local backend and records it for entity.
func (f *fixture) seedAsset(tenantID, id, entityType, entityID, name string, data []byte) *models.UploadedFile {
	f.t.Helper()
	key := "tenants/" + tenantID + "/lesson/" + entityType + "/" + entityID + "/" + name
	res, err := f.local.Upload(context.Background(), key, data, "", false, nil)
	require.NoError(f.t, err)
	rec := &models.UploadedFile{
		ID: id, TenantID: tenantID, Key: key, URL: res.URL, FileName: name, FileSize: res.Size,
		Category: "lesson", EntityType: entityType, EntityID: entityID,
	}
	require.NoError(f.t, f.files.Upsert(context.Background(), rec))
	return rec
}
