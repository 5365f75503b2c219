// Package server wires MediaVault together: configuration, logging, the
// metadata store, both storage backends, the services and the HTTP API, and
// runs them until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/config"
	"github.com/dmitrijs2005/mediavault/internal/server/httpapi"
	"github.com/dmitrijs2005/mediavault/internal/server/lock"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/dmitrijs2005/mediavault/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime holds the wired components shared by the server and mediactl.
type Runtime struct {
	DB         *sql.DB
	Registry   *storage.Registry
	Uploads    *services.UploadService
	Migrations *services.MigrationService
	Delivery   *services.DeliveryService
}

// Bootstrap opens the database, applies schema migrations and builds the
// storage registry and services. reg receives the storage metrics and may be
// nil for the default registerer.
func Bootstrap(ctx context.Context, c *config.Config, logger logging.Logger, reg prometheus.Registerer) (*Runtime, error) {
	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository manager: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema migrations: %w", err)
	}

	metrics, err := storage.NewMetrics("", reg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	registry, err := storage.NewRegistry(ctx, c.StorageBackend, c.StorageConfig(), metrics)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return &Runtime{
		DB:         db,
		Registry:   registry,
		Uploads:    services.NewUploadService(db, rm, registry, c.OptimizerProfiles(), uploadLimits(c), logger),
		Migrations: services.NewMigrationService(db, rm, registry, lock.NewPostgres(db), migrationSettings(c), logger),
		Delivery:   services.NewDeliveryService(db, rm, registry, watermarker(c), logger),
	}, nil
}

// Close releases the database pool.
func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

func uploadLimits(c *config.Config) services.UploadLimits {
	l := services.DefaultUploadLimits()
	if c.MaxUploadBytes > 0 {
		l.Default = c.MaxUploadBytes
	}
	if c.MaxAvatarUploadBytes > 0 {
		for _, category := range []string{"avatar", "profile"} {
			l.PerCategory[category] = c.MaxAvatarUploadBytes
		}
	}
	return l
}

func migrationSettings(c *config.Config) services.MigrationSettings {
	return services.MigrationSettings{
		Workers:    c.MigrationWorkers,
		Retries:    c.MigrationRetries,
		Throughput: c.MigrationThroughput,
	}
}

func watermarker(c *config.Config) services.Watermarker {
	if !c.WatermarkImages {
		return nil
	}
	return services.ViewerStamp{}
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	runtime *Runtime
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rt, err := Bootstrap(ctx, c, logger, nil)
	if err != nil {
		return nil, err
	}

	return &App{config: c, logger: logger, runtime: rt}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.HTTPAddr, app.logger, httpapi.Services{
		Uploads:    app.runtime.Uploads,
		Migrations: app.runtime.Migrations,
		Delivery:   app.runtime.Delivery,
	}, app.config.SecretKey, httpapi.Options{
		StaticPrefix:   app.config.LocalPublicPrefix,
		MaxUploadBytes: maxInt64(app.config.MaxUploadBytes, app.config.MaxAvatarUploadBytes),
	})

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or the HTTP server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.runtime.Registry.ActiveKind())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	err := app.runtime.Close()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		// stdout cannot always be synced
		_ = z.Sync()
	}
	return err
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
