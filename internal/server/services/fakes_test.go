package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/backends"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/files"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/storage"
)

// -------- in-memory backend --------

type memAdapter struct {
	storage.Adapter // unused methods panic

	name       string
	configured bool

	mu      sync.Mutex
	objects map[string][]byte

	uploadErr     error
	downloadFails map[string]int // key -> transient failures left
	connErr       string
	truncate      bool // store one byte less than written
	deleteErr     error

	downloads int
	deletes   []string
}

func newMemAdapter(name string) *memAdapter {
	return &memAdapter{name: name, configured: true, objects: map[string][]byte{}, downloadFails: map[string]int{}}
}

func (m *memAdapter) Name() string     { return m.name }
func (m *memAdapter) Configured() bool { return m.configured }

func (m *memAdapter) Upload(ctx context.Context, key string, data []byte, contentType string, isPublic bool, metadata map[string]string) (*storage.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	stored := append([]byte(nil), data...)
	if m.truncate && len(stored) > 0 {
		stored = stored[:len(stored)-1]
	}
	m.mu.Lock()
	m.objects[key] = stored
	m.mu.Unlock()
	return &storage.UploadResult{Key: key, URL: m.ObjectURL(key), Size: int64(len(data))}, nil
}

func (m *memAdapter) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	if n := m.downloadFails[key]; n > 0 {
		m.downloadFails[key] = n - 1
		return nil, fmt.Errorf("flaky read: %w", common.ErrRead)
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", key, common.ErrorNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *memAdapter) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	data, err := m.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	data = data[offset:]
	if length >= 0 && length < int64(len(data)) {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memAdapter) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", key, common.ErrorNotFound)
	}
	return &storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: storage.ContentTypeByKey(key)}, nil
}

func (m *memAdapter) Delete(ctx context.Context, key string, strict bool) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.objects, key)
	return nil
}

func (m *memAdapter) ObjectURL(key string) string {
	return "mem://" + m.name + "/" + key
}

func (m *memAdapter) TestConnection(ctx context.Context) storage.ConnectionResult {
	if !m.configured {
		return storage.ConnectionResult{Error: "not configured"}
	}
	if m.connErr != "" {
		return storage.ConnectionResult{Error: m.connErr}
	}
	return storage.ConnectionResult{Success: true}
}

func (m *memAdapter) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memAdapter) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// -------- in-memory ledger --------

type memFiles struct {
	files.Repository

	mu   sync.Mutex
	rows map[string]*models.UploadedFile // id -> row
	seq  int

	upsertErr error
	listErr   error
}

func newMemFiles() *memFiles {
	return &memFiles{rows: map[string]*models.UploadedFile{}}
}

func (r *memFiles) Upsert(ctx context.Context, f *models.UploadedFile) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.TenantID == f.TenantID && row.Key == f.Key {
			f.ID = id
		}
	}
	if f.UploadedAt.IsZero() {
		r.seq++
		f.UploadedAt = time.Unix(int64(r.seq), 0)
	}
	cp := *f
	r.rows[f.ID] = &cp
	return nil
}

func (r *memFiles) add(f models.UploadedFile) *models.UploadedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := f
	r.rows[f.ID] = &cp
	return &cp
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

func (r *memFiles) ListByTenant(ctx context.Context, tenantID string) ([]*models.UploadedFile, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.filter(func(f *models.UploadedFile) bool { return f.TenantID == tenantID }), nil
}

func (r *memFiles) ListByEntity(ctx context.Context, tenantID, category, entityType, entityID string) ([]*models.UploadedFile, error) {
	return r.filter(func(f *models.UploadedFile) bool {
		return f.TenantID == tenantID && f.Category == category && f.EntityType == entityType && f.EntityID == entityID
	}), nil
}

func (r *memFiles) filter(keep func(*models.UploadedFile) bool) []*models.UploadedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UploadedFile
	for _, row := range r.rows {
		if keep(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memFiles) UpdateURL(ctx context.Context, tenantID, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.TenantID != tenantID {
		return common.ErrorNotFound
	}
	row.URL = url
	return nil
}

func (r *memFiles) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.TenantID != tenantID {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memFiles) Stats(ctx context.Context, tenantID string) (*models.StorageStats, error) {
	st := &models.StorageStats{}
	for _, f := range r.filter(func(f *models.UploadedFile) bool { return f.TenantID == tenantID }) {
		st.TotalFiles++
		st.TotalSize += f.FileSize
	}
	return st, nil
}

func (r *memFiles) get(id string) *models.UploadedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memFiles) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// -------- catalog --------

type fakeCatalog struct {
	catalog.Repository

	descriptors map[string]*models.AccessDescriptor // entityType/entityID
	enrolled    map[string]bool                     // userID/entityType/entityID
	enrollErr   error
}

func (c *fakeCatalog) GetAccessDescriptor(ctx context.Context, tenantID, entityType, entityID string) (*models.AccessDescriptor, error) {
	d, ok := c.descriptors[entityType+"/"+entityID]
	if !ok || d.TenantID != tenantID {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (c *fakeCatalog) IsEnrolled(ctx context.Context, tenantID, userID, entityType, entityID string) (bool, error) {
	if c.enrollErr != nil {
		return false, c.enrollErr
	}
	return c.enrolled[strings.Join([]string{userID, entityType, entityID}, "/")], nil
}

// -------- tenant backends --------

type memBackends struct {
	backends.Repository

	mu     sync.Mutex
	rows   map[string]string
	getErr error
}

func newMemBackends() *memBackends {
	return &memBackends{rows: map[string]string{}}
}

func (b *memBackends) Get(ctx context.Context, tenantID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return "", b.getErr
	}
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

func (b *memBackends) get(tenantID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows[tenantID]
}

// -------- repo manager --------

type fakeRepoManager struct {
	repomanager.RepositoryManager

	files    *memFiles
	catalog  *fakeCatalog
	backends *memBackends
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.files }
func (m *fakeRepoManager) Catalog(dbx.DBTX) catalog.Repository          { return m.catalog }
func (m *fakeRepoManager) Backends(dbx.DBTX) backends.Repository        { return m.backends }

var errBoom = errors.New("boom")
