// Package storage defines the Adapter contract every physical backend
// implements and ships the two backends MediaVault runs on: a local directory
// tree and an S3-compatible bucket.
//
// Adapters know nothing about tenants or business entities. They receive
// opaque, slash-separated keys and must accept the same key space, which is
// what lets the migration service copy objects between them without renaming.
//
// Error contract:
//   - common.ErrorNotFound when a key is absent (Download, Open, Stat, strict Delete)
//   - common.ErrWrite / common.ErrRead on backend I/O failures
//   - common.ErrConfiguration when the backend is not configured
//   - common.ErrValidation for malformed keys
package storage

import (
	"context"
	"io"
	"time"
)

// Backend kinds accepted by New and by the configuration layer.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

// UploadResult is returned by Adapter.Upload.
type UploadResult struct {
	Key  string
	URL  string
	Size int64
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// ConnectionResult is the outcome of Adapter.TestConnection.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Adapter is the uniform interface over a physical backend.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Name returns the backend kind (KindLocal or KindS3).
	Name() string

	// Configured reports whether the backend has everything it needs to run.
	// An unconfigured adapter answers every I/O call with common.ErrConfiguration.
	Configured() bool

	// Upload writes data under key, replacing any previous object atomically.
	Upload(ctx context.Context, key string, data []byte, contentType string, isPublic bool, metadata map[string]string) (*UploadResult, error)

	// Download returns the full object.
	Download(ctx context.Context, key string) ([]byte, error)

	// OpenRange streams length bytes starting at offset. A negative length
	// reads to the end of the object. The caller closes the reader.
	OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// Stat returns object metadata without reading the body.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes key. With strict=false a missing key is not an error.
	Delete(ctx context.Context, key string, strict bool) error

	// DeleteMany removes keys best-effort and reports every failure.
	DeleteMany(ctx context.Context, keys []string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns an address for key. Remote backends may sign it for
	// expiresIn (zero means the backend default). Callers must not assume the
	// URL survives a backend switch.
	URL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// ObjectURL is the canonical, unsigned address of key. It is what the
	// metadata store records.
	ObjectURL(key string) string

	// List returns all objects whose key starts with prefix. Diagnostics and
	// migration only.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// TestConnection performs a small write/read/delete round trip.
	TestConnection(ctx context.Context) ConnectionResult
}
