package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/multierr"
)

// deleteBatchSize is the DeleteObjects per-request limit.
const deleteBatchSize = 1000

// S3Config holds the remote backend settings. Any missing credential or
// bucket makes the adapter report Configured() == false.
type S3Config struct {
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	Endpoint   string
	PublicRead bool
	PresignTTL time.Duration
}

// Configured reports whether all required settings are present.
func (c S3Config) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// s3API is the subset of *s3.Client used by the adapter.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type uploaderAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Adapter stores objects in an S3-compatible bucket (AWS or MinIO).
type S3Adapter struct {
	cfg       S3Config
	client    s3API
	uploader  uploaderAPI
	presigner presignAPI
	urlCache  *expirable.LRU[string, string]
}

// NewS3Adapter builds the client from cfg. When cfg is incomplete it returns
// an unconfigured adapter instead of failing, so callers can still report
// the backend status.
func NewS3Adapter(ctx context.Context, cfg S3Config) (*S3Adapter, error) {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if !cfg.Configured() {
		return &S3Adapter{cfg: cfg}, nil
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Adapter(cfg, client, manager.NewUploader(client), s3.NewPresignClient(client)), nil
}

func newS3Adapter(cfg S3Config, client s3API, uploader uploaderAPI, presigner presignAPI) *S3Adapter {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	// signed URLs are reused for half their lifetime
	return &S3Adapter{
		cfg:       cfg,
		client:    client,
		uploader:  uploader,
		presigner: presigner,
		urlCache:  expirable.NewLRU[string, string](4096, nil, cfg.PresignTTL/2),
	}
}

func (a *S3Adapter) Name() string { return KindS3 }

func (a *S3Adapter) Configured() bool { return a.cfg.Configured() && a.client != nil }

func (a *S3Adapter) check(key string) error {
	if !a.Configured() {
		return common.ErrConfiguration
	}
	return ValidateKey(key)
}

func (a *S3Adapter) Upload(ctx context.Context, key string, data []byte, contentType string, isPublic bool, metadata map[string]string) (*UploadResult, error) {
	if err := a.check(key); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = ContentTypeByKey(key)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      metadata,
	}
	if isPublic && a.cfg.PublicRead {
		in.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := a.uploader.Upload(ctx, in); err != nil {
		return nil, fmt.Errorf("upload %s: %v: %w", key, err, common.ErrWrite)
	}
	a.forgetURL(key)

	return &UploadResult{Key: key, URL: a.ObjectURL(key), Size: int64(len(data))}, nil
}

func (a *S3Adapter) Download(ctx context.Context, key string) ([]byte, error) {
	body, err := a.OpenRange(ctx, key, 0, -1)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", key, err, common.ErrRead)
	}
	return data, nil
}

func (a *S3Adapter) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if err := a.check(key); err != nil {
		return nil, err
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	}
	switch {
	case length == 0:
		return io.NopCloser(bytes.NewReader(nil)), nil
	case length > 0:
		in.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	case offset > 0:
		in.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}

	out, err := a.client.GetObject(ctx, in)
	if err != nil {
		return nil, a.readErr(key, err)
	}
	return out.Body, nil
}

func (a *S3Adapter) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := a.check(key); err != nil {
		return nil, err
	}

	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, a.readErr(key, err)
	}

	info := &ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

// Delete removes key. S3 deletes are idempotent, so strict mode pays for a
// HEAD first to detect absence.
func (a *S3Adapter) Delete(ctx context.Context, key string, strict bool) error {
	if err := a.check(key); err != nil {
		return err
	}

	if strict {
		if _, err := a.Stat(ctx, key); err != nil {
			return err
		}
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete %s: %v: %w", key, err, common.ErrWrite)
	}
	a.forgetURL(key)
	return nil
}

func (a *S3Adapter) DeleteMany(ctx context.Context, keys []string) error {
	if !a.Configured() {
		return common.ErrConfiguration
	}

	var errs error
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			if err := ValidateKey(k); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("delete %q: %w", k, err))
				continue
			}
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
			a.forgetURL(k)
		}
		if len(ids) == 0 {
			continue
		}

		out, err := a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.cfg.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete batch: %v: %w", err, common.ErrWrite))
			continue
		}
		for _, e := range out.Errors {
			if aws.ToString(e.Code) == "NoSuchKey" {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %s: %w", aws.ToString(e.Key), aws.ToString(e.Message), common.ErrWrite))
		}
	}
	return errs
}

func (a *S3Adapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return false, err
}

// URL returns the plain object URL for public-read buckets and a presigned
// GET URL otherwise. Signed URLs are cached per (key, expiry).
func (a *S3Adapter) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if err := a.check(key); err != nil {
		return "", err
	}
	if a.cfg.PublicRead {
		return a.ObjectURL(key), nil
	}
	if expiresIn <= 0 {
		expiresIn = a.cfg.PresignTTL
	}

	cacheKey := fmt.Sprintf("%s|%d", key, expiresIn)
	if u, ok := a.urlCache.Get(cacheKey); ok {
		return u, nil
	}

	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("presign %s: %v: %w", key, err, common.ErrRead)
	}

	a.urlCache.Add(cacheKey, req.URL)
	return req.URL, nil
}

func (a *S3Adapter) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if !a.Configured() {
		return nil, common.ErrConfiguration
	}

	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	var out []ObjectInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %v: %w", prefix, err, common.ErrRead)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasPrefix(key, healthcheckPrefix) {
				continue
			}
			info := ObjectInfo{
				Key:         key,
				Size:        aws.ToInt64(obj.Size),
				ContentType: ContentTypeByKey(key),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (a *S3Adapter) TestConnection(ctx context.Context) ConnectionResult {
	if !a.Configured() {
		return ConnectionResult{Success: false, Error: "s3 storage is not configured"}
	}

	key := healthcheckPrefix + uuid.NewString()
	sample := []byte("mediavault-healthcheck")

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(sample),
	})
	if err != nil {
		return ConnectionResult{Success: false, Error: "write failed: " + apiErrorCode(err)}
	}
	defer func() { _ = a.Delete(context.WithoutCancel(ctx), key, false) }()

	got, err := a.Download(ctx, key)
	if err != nil || !bytes.Equal(got, sample) {
		return ConnectionResult{Success: false, Error: "read back failed"}
	}

	return ConnectionResult{Success: true}
}

// ObjectURL is the plain bucket address of key. It is only fetchable
// directly when the bucket allows public reads.
func (a *S3Adapter) ObjectURL(key string) string {
	escaped := escapeKey(key)

	if a.cfg.Endpoint != "" {
		return strings.TrimRight(a.cfg.Endpoint, "/") + "/" + a.cfg.Bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.cfg.Bucket, a.cfg.Region, escaped)
}

func (a *S3Adapter) forgetURL(key string) {
	if a.urlCache == nil {
		return
	}
	for _, k := range a.urlCache.Keys() {
		if strings.HasPrefix(k, key+"|") {
			a.urlCache.Remove(k)
		}
	}
}

func (a *S3Adapter) readErr(key string, err error) error {
	if isS3NotFound(err) {
		return fmt.Errorf("read %s: %w", key, common.ErrorNotFound)
	}
	return fmt.Errorf("read %s: %v: %w", key, err, common.ErrRead)
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "unknown"
}
