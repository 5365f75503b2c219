package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/mediavault/internal/common"
)

// Config carries what New needs to build either backend.
type Config struct {
	LocalRoot         string
	LocalPublicPrefix string
	S3                S3Config
}

// Registry holds one adapter per backend kind plus the kind that receives new
// writes. Switching the active backend is a deliberate operation done after a
// migration, never implicit.
type Registry struct {
	adapters map[string]Adapter

	mu     sync.RWMutex
	active string
}

// New builds the adapter for kind. Unknown kinds are a configuration error.
func New(ctx context.Context, kind string, cfg Config) (Adapter, error) {
	switch kind {
	case KindLocal:
		return NewLocalAdapter(cfg.LocalRoot, cfg.LocalPublicPrefix)
	case KindS3:
		return NewS3Adapter(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q: %w", kind, common.ErrConfiguration)
	}
}

// NewRegistry builds both backends, wraps them with metrics (may be nil) and
// marks active as the write target.
func NewRegistry(ctx context.Context, active string, cfg Config, metrics *Metrics) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, 2)}
	for _, kind := range []string{KindLocal, KindS3} {
		a, err := New(ctx, kind, cfg)
		if err != nil {
			return nil, err
		}
		r.adapters[kind] = Instrument(a, metrics)
	}
	if err := r.SetActive(active); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistryFrom is used when adapters are constructed elsewhere (tests, CLI).
func NewRegistryFrom(active string, adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	if err := r.SetActive(active); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the adapter registered for kind.
func (r *Registry) Get(kind string) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("storage backend %q: %w", kind, common.ErrConfiguration)
	}
	return a, nil
}

// Active returns the adapter new uploads go to.
func (r *Registry) Active() Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[r.active]
}

// ActiveKind returns the name of the active backend.
func (r *Registry) ActiveKind() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetActive switches the write target. Uploads already holding the previous
// adapter finish against it.
func (r *Registry) SetActive(kind string) error {
	if _, ok := r.adapters[kind]; !ok {
		return fmt.Errorf("storage backend %q: %w", kind, common.ErrConfiguration)
	}
	r.mu.Lock()
	r.active = kind
	r.mu.Unlock()
	return nil
}

// Kinds lists registered backends in a stable order.
func (r *Registry) Kinds() []string {
	var out []string
	for _, k := range []string{KindLocal, KindS3} {
		if _, ok := r.adapters[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Locate finds the backend holding key, trying the active one first. After a
// partial migration objects of one tenant can live on either backend. A
// failing backend does not hide an object held by another one.
func (r *Registry) Locate(ctx context.Context, key string) (Adapter, *ObjectInfo, error) {
	active := r.ActiveKind()
	order := []string{active}
	for _, k := range r.Kinds() {
		if k != active {
			order = append(order, k)
		}
	}

	var firstErr error
	for _, k := range order {
		a := r.adapters[k]
		if !a.Configured() {
			continue
		}
		info, err := a.Stat(ctx, key)
		if err == nil {
			return a, info, nil
		}
		if !errors.Is(err, common.ErrorNotFound) && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", k, err)
		}
	}
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return nil, nil, fmt.Errorf("locate %s: %w", key, common.ErrorNotFound)
}
