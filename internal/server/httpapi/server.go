// Package httpapi exposes MediaVault over HTTP: uploads, secure asset
// delivery, tenant-scoped static files and the storage admin endpoints.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

// Services are the use cases the handlers call into.
type Services struct {
	Uploads    *services.UploadService
	Migrations *services.MigrationService
	Delivery   *services.DeliveryService
}

// Options tunes the HTTP surface.
type Options struct {
	// StaticPrefix is the route the local backend is served from.
	StaticPrefix string
	// MaxUploadBytes bounds the request body of an upload.
	MaxUploadBytes int64
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
}

type HTTPServer struct {
	address   string
	services  Services
	options   Options
	logger    logging.Logger
	jwtSecret []byte
	engine    *gin.Engine
}

func NewHTTPServer(address string, logger logging.Logger, svc Services, secretKey string, opts Options) *HTTPServer {
	if logger == nil {
		logger = logging.Nop{}
	}
	if opts.StaticPrefix == "" {
		opts.StaticPrefix = "/storage"
	}
	opts.StaticPrefix = "/" + strings.Trim(opts.StaticPrefix, "/")
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &HTTPServer{
		address:   address,
		services:  svc,
		options:   opts,
		logger:    logger.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.engine }

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1", s.accessTokenMiddleware())
	{
		api.POST("/uploads", s.upload)
		api.DELETE("/uploads/:id", s.deleteUpload)

		api.GET("/assets/:entityType/:entityId/files/:fileId", s.streamAsset)
		api.HEAD("/assets/:entityType/:entityId/files/:fileId", s.streamAsset)

		admin := api.Group("/admin/storage", requireElevated())
		admin.GET("/migration", s.estimateMigration)
		admin.POST("/migration", s.runMigration)
		admin.GET("/status", s.storageStatus)
	}

	static := r.Group(s.options.StaticPrefix, s.accessTokenMiddleware())
	static.GET("/*key", s.serveStatic)
	static.HEAD("/*key", s.serveStatic)

	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger tags the request context with a request id, which every
// logger downstream picks up, and logs the outcome at debug level.
func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithFields(c.Request.Context(), "request_id", id))

		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
