package storage

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/mediavault/internal/storage"

// Instrumented decorates an Adapter with Prometheus metrics and OpenTelemetry
// spans. It changes no behavior of the wrapped adapter.
type Instrumented struct {
	next    Adapter
	metrics *Metrics
	tracer  trace.Tracer
}

// Instrument wraps next. metrics may be nil.
func Instrument(next Adapter, metrics *Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics, tracer: otel.Tracer(tracerName)}
}

// Unwrap returns the decorated adapter.
func (i *Instrumented) Unwrap() Adapter { return i.next }

func (i *Instrumented) start(ctx context.Context, op, key string) (context.Context, trace.Span, time.Time) {
	ctx, span := i.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("storage.backend", i.next.Name()),
		attribute.String("storage.key", key),
	))
	return ctx, span, time.Now()
}

func (i *Instrumented) finish(span trace.Span, op string, started time.Time, err error) {
	i.metrics.observe(i.next.Name(), op, time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	span.End()
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) Configured() bool { return i.next.Configured() }

func (i *Instrumented) Upload(ctx context.Context, key string, data []byte, contentType string, isPublic bool, metadata map[string]string) (*UploadResult, error) {
	ctx, span, t := i.start(ctx, "upload", key)
	res, err := i.next.Upload(ctx, key, data, contentType, isPublic, metadata)
	if err == nil {
		i.metrics.addBytes(i.next.Name(), "write", len(data))
	}
	i.finish(span, "upload", t, err)
	return res, err
}

func (i *Instrumented) Download(ctx context.Context, key string) ([]byte, error) {
	ctx, span, t := i.start(ctx, "download", key)
	data, err := i.next.Download(ctx, key)
	i.metrics.addBytes(i.next.Name(), "read", len(data))
	i.finish(span, "download", t, err)
	return data, err
}

func (i *Instrumented) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	ctx, span, t := i.start(ctx, "open", key)
	span.SetAttributes(attribute.Int64("storage.offset", offset), attribute.Int64("storage.length", length))
	rc, err := i.next.OpenRange(ctx, key, offset, length)
	i.finish(span, "open", t, err)
	return rc, err
}

func (i *Instrumented) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	ctx, span, t := i.start(ctx, "stat", key)
	info, err := i.next.Stat(ctx, key)
	i.finish(span, "stat", t, err)
	return info, err
}

func (i *Instrumented) Delete(ctx context.Context, key string, strict bool) error {
	ctx, span, t := i.start(ctx, "delete", key)
	err := i.next.Delete(ctx, key, strict)
	i.finish(span, "delete", t, err)
	return err
}

func (i *Instrumented) DeleteMany(ctx context.Context, keys []string) error {
	ctx, span, t := i.start(ctx, "delete_many", "")
	span.SetAttributes(attribute.Int("storage.keys", len(keys)))
	err := i.next.DeleteMany(ctx, keys)
	i.finish(span, "delete_many", t, err)
	return err
}

func (i *Instrumented) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span, t := i.start(ctx, "exists", key)
	ok, err := i.next.Exists(ctx, key)
	i.finish(span, "exists", t, err)
	return ok, err
}

func (i *Instrumented) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	ctx, span, t := i.start(ctx, "url", key)
	u, err := i.next.URL(ctx, key, expiresIn)
	i.finish(span, "url", t, err)
	return u, err
}

func (i *Instrumented) ObjectURL(key string) string { return i.next.ObjectURL(key) }

func (i *Instrumented) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, span, t := i.start(ctx, "list", prefix)
	out, err := i.next.List(ctx, prefix)
	i.finish(span, "list", t, err)
	return out, err
}

func (i *Instrumented) TestConnection(ctx context.Context) ConnectionResult {
	ctx, span, t := i.start(ctx, "test_connection", "")
	res := i.next.TestConnection(ctx)
	var err error
	if !res.Success {
		err = connectionError(res.Error)
	}
	i.finish(span, "test_connection", t, err)
	return res
}

type connectionError string

func (e connectionError) Error() string { return string(e) }
