package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/lock"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/storage"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

var errSizeMismatch = errors.New("size mismatch")

// perFileOverhead approximates request latency per object in estimates.
const perFileOverhead = 100 * time.Millisecond

// MigrationOptions configures a single run.
type MigrationOptions struct {
	Direction    string
	DeleteSource bool
	// SkipExisting leaves objects the target already holds with the same size
	// untouched, which makes an interrupted run resumable.
	SkipExisting bool
	// Workers overrides the service default when > 0.
	Workers int
	// Observer receives progress snapshots. It runs on its own goroutine and
	// may miss intermediate snapshots, never the final one.
	Observer func(models.MigrationProgress)
}

// MigrationSettings tunes the service.
type MigrationSettings struct {
	Workers         int
	Retries         int
	RetryBase       time.Duration
	Throughput      int64         // bytes per second assumed by Estimate
	ObserverTimeout time.Duration // wait for the observer to take the final report
}

type MigrationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     *storage.Registry
	locker      lock.Locker
	settings    MigrationSettings
	logger      logging.Logger
}

func NewMigrationService(db *sql.DB, repomanager repomanager.RepositoryManager, registry *storage.Registry,
	locker lock.Locker, settings MigrationSettings, logger logging.Logger) *MigrationService {
	if settings.Workers <= 0 {
		settings.Workers = 4
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.RetryBase <= 0 {
		settings.RetryBase = 200 * time.Millisecond
	}
	if settings.Throughput <= 0 {
		settings.Throughput = 5 << 20
	}
	if locker == nil {
		locker = lock.NewInMemory()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &MigrationService{
		db:          db,
		repomanager: repomanager,
		storage:     registry,
		locker:      locker,
		settings:    settings,
		logger:      logger.With("module", "migration"),
	}
}

// Endpoints resolves a direction into (source, target) adapters.
func (s *MigrationService) Endpoints(direction string) (storage.Adapter, storage.Adapter, error) {
	var from, to string
	switch direction {
	case models.DirectionLocalToS3:
		from, to = storage.KindLocal, storage.KindS3
	case models.DirectionS3ToLocal:
		from, to = storage.KindS3, storage.KindLocal
	default:
		return nil, nil, fmt.Errorf("direction %q: %w", direction, common.ErrValidation)
	}
	src, err := s.storage.Get(from)
	if err != nil {
		return nil, nil, err
	}
	dst, err := s.storage.Get(to)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// Estimate sizes a tenant's migration from the ledger alone. An empty
// direction moves the tenant off its current backend.
func (s *MigrationService) Estimate(ctx context.Context, tenantID, direction string) (*models.MigrationEstimate, error) {
	if direction == "" {
		current, err := tenantBackend(ctx, s.repomanager.Backends(s.db), s.storage, tenantID)
		if err != nil {
			return nil, err
		}
		direction = models.DirectionLocalToS3
		if current.Name() == storage.KindS3 {
			direction = models.DirectionS3ToLocal
		}
	}
	src, dst, err := s.Endpoints(direction)
	if err != nil {
		return nil, err
	}
	if !src.Configured() {
		return nil, fmt.Errorf("source %s: %w", src.Name(), common.ErrConfiguration)
	}
	if !dst.Configured() {
		return nil, fmt.Errorf("target %s: %w", dst.Name(), common.ErrConfiguration)
	}

	stats, err := s.repomanager.Files(s.db).Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	d := time.Duration(float64(stats.TotalSize)/float64(s.settings.Throughput)*float64(time.Second)) +
		time.Duration(stats.TotalFiles)*perFileOverhead
	d = d.Round(time.Second)

	return &models.MigrationEstimate{
		Direction:        direction,
		TotalFiles:       stats.TotalFiles,
		TotalSize:        stats.TotalSize,
		EstimatedTime:    d.String(),
		EstimatedSeconds: int64(d / time.Second),
	}, nil
}

// Preflight checks that both ends of a direction can be used.
func (s *MigrationService) Preflight(ctx context.Context, direction string) (storage.Adapter, storage.Adapter, error) {
	src, dst, err := s.Endpoints(direction)
	if err != nil {
		return nil, nil, err
	}
	if !src.Configured() {
		return nil, nil, fmt.Errorf("source %s: %w", src.Name(), common.ErrConfiguration)
	}
	if !dst.Configured() {
		return nil, nil, fmt.Errorf("target %s: %w", dst.Name(), common.ErrConfiguration)
	}
	if res := dst.TestConnection(ctx); !res.Success {
		return nil, nil, fmt.Errorf("target %s connection test: %s: %w", dst.Name(), res.Error, common.ErrConfiguration)
	}
	return src, dst, nil
}

// Run copies every object of the tenant to the target backend under the same
// key and repoints the ledger. Item failures are recorded in the report and do
// not stop the run; only preflight and enumeration errors are fatal. A run
// that moved at least one file without failures pins the tenant's new writes
// to the target. Other tenants keep their backend.
func (s *MigrationService) Run(ctx context.Context, tenantID string, opts MigrationOptions) (*models.MigrationProgress, error) {
	src, dst, err := s.Preflight(ctx, opts.Direction)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.TryAcquire(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	log := s.logger.With("tenant", tenantID, "direction", opts.Direction)
	r := &migrationRun{
		svc:      s,
		tenantID: tenantID,
		src:      src,
		dst:      dst,
		opts:     opts,
		log:      log,
		progress: models.MigrationProgress{
			Status:    models.MigrationRunning,
			Errors:    []models.MigrationError{},
			StartedAt: time.Now().UTC(),
		},
		observer: newProgressDispatcher(opts.Observer, s.settings.ObserverTimeout),
	}

	records, err := s.repomanager.Files(s.db).ListByTenant(ctx, tenantID)
	if err != nil {
		log.Error(ctx, "enumeration failed", "error", err)
		final := r.finish(models.MigrationFailed)
		return &final, fmt.Errorf("list files: %w", err)
	}

	r.mu.Lock()
	r.progress.Total = len(records)
	r.publishLocked()
	r.mu.Unlock()
	log.Info(ctx, "migration started", "files", len(records), "from", src.Name(), "to", dst.Name())

	workers := opts.Workers
	if workers <= 0 {
		workers = s.settings.Workers
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.migrate(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	status := models.MigrationCompleted
	if err := ctx.Err(); err != nil {
		status = models.MigrationFailed
		final := r.finish(status)
		log.Warn(ctx, "migration cancelled", "completed", final.Completed, "failed", final.Failed, "total", final.Total)
		return &final, err
	}

	final := r.finish(status)
	if final.Total > 0 && final.Failed == 0 {
		if err := s.repomanager.Backends(s.db).Set(ctx, tenantID, dst.Name()); err != nil {
			log.Error(ctx, "switching tenant backend failed", "backend", dst.Name(), "error", err)
		} else {
			log.Info(ctx, "tenant backend switched", "backend", dst.Name())
		}
	}
	log.Info(ctx, "migration finished", "completed", final.Completed, "failed", final.Failed, "skipped", final.Skipped, "total", final.Total)
	return &final, nil
}

type migrationRun struct {
	svc      *MigrationService
	tenantID string
	src, dst storage.Adapter
	opts     MigrationOptions
	log      logging.Logger
	observer *progressDispatcher

	mu       sync.Mutex
	progress models.MigrationProgress
}

func (r *migrationRun) publishLocked() {
	r.observer.Publish(r.progress.Clone())
}

func (r *migrationRun) finish(status models.MigrationStatus) models.MigrationProgress {
	r.mu.Lock()
	now := time.Now().UTC()
	r.progress.Status = status
	r.progress.Current = ""
	r.progress.EndedAt = &now
	final := r.progress.Clone()
	r.mu.Unlock()

	if !r.observer.Close(final.Clone()) {
		r.log.Warn(context.Background(), "observer did not take the final report in time")
	}
	return final
}

func (r *migrationRun) migrate(ctx context.Context, rec *models.UploadedFile) {
	r.mu.Lock()
	r.progress.Current = rec.Key
	r.publishLocked()
	r.mu.Unlock()

	skipped, err := r.copy(ctx, rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.log.Error(ctx, "file migration failed", "key", rec.Key, "error", err)
		r.progress.Failed++
		r.progress.Errors = append(r.progress.Errors, models.MigrationError{File: rec.Key, Error: publicMessage(err)})
	} else {
		r.progress.Completed++
		if skipped {
			r.progress.Skipped++
		}
	}
	r.publishLocked()
}

// copy moves one object. It reports skipped=true when the target already had
// an identical-size object.
func (r *migrationRun) copy(ctx context.Context, rec *models.UploadedFile) (bool, error) {
	files := r.svc.repomanager.Files(r.svc.db)

	if r.opts.SkipExisting {
		info, err := r.dst.Stat(ctx, rec.Key)
		if err == nil && info.Size == rec.FileSize {
			if err := files.UpdateURL(ctx, r.tenantID, rec.ID, r.dst.ObjectURL(rec.Key)); err != nil {
				return false, fmt.Errorf("update url: %w", err)
			}
			r.deleteSource(ctx, rec.Key)
			return true, nil
		}
	}

	var data []byte
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		data, err = r.src.Download(ctx, rec.Key)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("download: %w", err)
	}

	var res *storage.UploadResult
	err = r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.dst.Upload(ctx, rec.Key, data, rec.MimeType, rec.IsPublic, nil)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upload: %w", err)
	}

	info, err := r.dst.Stat(ctx, rec.Key)
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	if info.Size != int64(len(data)) {
		return false, fmt.Errorf("verify %s: got %d want %d: %w", rec.Key, info.Size, len(data), errSizeMismatch)
	}

	if err := files.UpdateURL(ctx, r.tenantID, rec.ID, res.URL); err != nil {
		return false, fmt.Errorf("update url: %w", err)
	}

	r.deleteSource(ctx, rec.Key)
	return false, nil
}

func (r *migrationRun) deleteSource(ctx context.Context, key string) {
	if !r.opts.DeleteSource {
		return
	}
	if err := r.src.Delete(ctx, key, false); err != nil {
		r.log.Warn(ctx, "source delete failed", "key", key, "error", err)
	}
}

// withRetry retries transient backend errors with exponential backoff.
// Missing objects, validation and configuration errors fail immediately.
func (r *migrationRun) withRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(uint64(r.svc.settings.Retries), retry.NewExponential(r.svc.settings.RetryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrConfiguration) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// BackendStatus describes one registered backend.
type BackendStatus struct {
	Name       string                   `json:"name"`
	Active     bool                     `json:"active"`
	Configured bool                     `json:"configured"`
	Connection storage.ConnectionResult `json:"connection"`
}

// StorageStatus is the answer of the admin status endpoint.
type StorageStatus struct {
	Active   string              `json:"active"`
	Backends []BackendStatus     `json:"backends"`
	Tenant   models.StorageStats `json:"tenant"`
}

// Status checks every backend and summarizes the tenant's ledger. Active is
// the backend the tenant's uploads go to.
func (s *MigrationService) Status(ctx context.Context, tenantID string) (*StorageStatus, error) {
	stats, err := s.repomanager.Files(s.db).Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	current, err := tenantBackend(ctx, s.repomanager.Backends(s.db), s.storage, tenantID)
	if err != nil {
		return nil, err
	}

	out := &StorageStatus{Active: current.Name(), Tenant: *stats}
	for _, kind := range s.storage.Kinds() {
		a, err := s.storage.Get(kind)
		if err != nil {
			continue
		}
		out.Backends = append(out.Backends, BackendStatus{
			Name:       kind,
			Active:     kind == out.Active,
			Configured: a.Configured(),
			Connection: a.TestConnection(ctx),
		})
	}
	return out, nil
}
