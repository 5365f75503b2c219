package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/filex"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// LocalAdapter stores objects as files under root. Keys map one-to-one to
// relative paths; writes go through a temp file and rename.
type LocalAdapter struct {
	root         string
	publicPrefix string
}

// NewLocalAdapter creates root if needed. publicPrefix is the HTTP route the
// files are served from (e.g. "/storage"); URLs are publicPrefix + "/" + key.
// An empty root yields an unconfigured adapter.
func NewLocalAdapter(root, publicPrefix string) (*LocalAdapter, error) {
	a := &LocalAdapter{publicPrefix: strings.TrimRight(publicPrefix, "/")}
	if root == "" {
		return a, nil
	}

	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("local storage root: %w", err)
	}
	a.root = abs

	return a, nil
}

func (a *LocalAdapter) Name() string { return KindLocal }

func (a *LocalAdapter) Configured() bool { return a.root != "" }

// Root returns the absolute storage directory.
func (a *LocalAdapter) Root() string { return a.root }

func (a *LocalAdapter) path(key string) (string, error) {
	if !a.Configured() {
		return "", common.ErrConfiguration
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(a.root, filepath.FromSlash(key)), nil
}

func (a *LocalAdapter) Upload(ctx context.Context, key string, data []byte, contentType string, isPublic bool, metadata map[string]string) (*UploadResult, error) {
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upload %s: %v: %w", key, err, common.ErrWrite)
	}

	if err := filex.WriteFileAtomic(p, data, 0o640); err != nil {
		return nil, fmt.Errorf("upload %s: %v: %w", key, err, common.ErrWrite)
	}

	return &UploadResult{Key: key, URL: a.ObjectURL(key), Size: int64(len(data))}, nil
}

func (a *LocalAdapter) Download(ctx context.Context, key string) ([]byte, error) {
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, a.readErr(key, err)
	}
	return data, nil
}

func (a *LocalAdapter) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, a.readErr(key, err)
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, a.readErr(key, err)
		}
	}

	if length < 0 {
		return f, nil
	}
	return &limitedReadCloser{Reader: io.LimitReader(f, length), Closer: f}, nil
}

func (a *LocalAdapter) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(p)
	if err != nil {
		return nil, a.readErr(key, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("stat %s: %w", key, common.ErrorNotFound)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
		ContentType:  ContentTypeByKey(key),
	}, nil
}

func (a *LocalAdapter) Delete(ctx context.Context, key string, strict bool) error {
	p, err := a.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if strict {
				return fmt.Errorf("delete %s: %w", key, common.ErrorNotFound)
			}
			return nil
		}
		return fmt.Errorf("delete %s: %v: %w", key, err, common.ErrWrite)
	}

	filex.RemoveEmptyParents(filepath.Dir(p), a.root)
	return nil
}

func (a *LocalAdapter) DeleteMany(ctx context.Context, keys []string) error {
	var errs error
	for _, k := range keys {
		errs = multierr.Append(errs, a.Delete(ctx, k, false))
	}
	return errs
}

func (a *LocalAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return false, err
}

// URL ignores expiresIn: local files are only reachable through the
// tenant-scoped static route, which enforces access itself.
func (a *LocalAdapter) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return a.ObjectURL(key), nil
}

func (a *LocalAdapter) ObjectURL(key string) string {
	return a.publicPrefix + "/" + escapeKey(key)
}

func (a *LocalAdapter) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if !a.Configured() {
		return nil, common.ErrConfiguration
	}

	var out []ObjectInfo
	err := filepath.WalkDir(a.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		if d.IsDir() {
			if key == strings.TrimSuffix(healthcheckPrefix, "/") {
				return filepath.SkipDir
			}
			// prune subtrees that cannot contain the prefix
			if key != "." && !strings.HasPrefix(key+"/", prefix) && !strings.HasPrefix(prefix, key+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if filex.IsTemp(p) || !strings.HasPrefix(key, prefix) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{
			Key:          key,
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
			ContentType:  ContentTypeByKey(key),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %v: %w", prefix, err, common.ErrRead)
	}

	return out, nil
}

func (a *LocalAdapter) TestConnection(ctx context.Context) ConnectionResult {
	if !a.Configured() {
		return ConnectionResult{Success: false, Error: "local storage is not configured"}
	}

	key := healthcheckPrefix + uuid.NewString()
	sample := []byte("mediavault-healthcheck")

	if _, err := a.Upload(ctx, key, sample, "text/plain", false, nil); err != nil {
		return ConnectionResult{Success: false, Error: "write failed"}
	}
	defer func() { _ = a.Delete(context.WithoutCancel(ctx), key, false) }()

	got, err := a.Download(ctx, key)
	if err != nil || string(got) != string(sample) {
		return ConnectionResult{Success: false, Error: "read back failed"}
	}

	return ConnectionResult{Success: true}
}

func (a *LocalAdapter) readErr(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", key, common.ErrorNotFound)
	}
	return fmt.Errorf("read %s: %v: %w", key, err, common.ErrRead)
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}
