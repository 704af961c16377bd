// Package archive lands the raw provider payload of each price run in an
// S3-compatible bucket, keyed by symbol, day, and run id.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vvka-141/stageswap/internal/checksum"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// Config describes the archive bucket. Credentials come from the environment.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Validate checks the fields needed to reach the bucket.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access key (STAGESWAP_ARCHIVE_ACCESS_KEY)")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret key (STAGESWAP_ARCHIVE_SECRET_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("archive config missing %s: %w", strings.Join(missing, ", "), stageswap.ErrInvalidConfig)
	}
	return nil
}

// User metadata keys set on every archived object.
const (
	MetadataRunID  = "Run-Id"
	MetadataSHA256 = "Sha256"
)

// objectClient is the subset of *minio.Client the archiver uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioArchiver writes payloads with minio-go.
type MinioArchiver struct {
	client objectClient
	bucket string
	prefix string
	region string
	sums   checksum.Calculator
	logger stageswap.Logger
	now    func() time.Time
}

// NewMinioArchiver connects a minio client for cfg.
func NewMinioArchiver(cfg Config, logger stageswap.Logger) (*MinioArchiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return newArchiver(client, cfg, logger), nil
}

func newArchiver(client objectClient, cfg Config, logger stageswap.Logger) *MinioArchiver {
	return &MinioArchiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
		sums:   checksum.New(),
		logger: logger,
		now:    time.Now,
	}
}

// ObjectKey returns <prefix>/<symbol>/<YYYY-MM-DD>/<runID>.json.
func ObjectKey(prefix, symbol string, day time.Time, runID uuid.UUID) string {
	return path.Join(prefix, symbol, day.UTC().Format("2006-01-02"), runID.String()+".json")
}

// Archive uploads window.Raw. The bucket is created on first use.
func (a *MinioArchiver) Archive(ctx context.Context, runID uuid.UUID, window stageswap.RunWindow) error {
	if len(window.Raw) == 0 {
		return stageswap.StoreError("archive", fmt.Errorf("run %s has no raw payload", runID))
	}
	if err := a.ensureBucket(ctx); err != nil {
		return stageswap.StoreError("archive", err)
	}

	key := ObjectKey(a.prefix, window.Symbol, a.now(), runID)
	sum := a.sums.Sum(window.Raw)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(window.Raw), int64(len(window.Raw)),
		minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				MetadataRunID:  runID.String(),
				MetadataSHA256: sum,
			},
		})
	if err != nil {
		return stageswap.StoreError("archive", fmt.Errorf("put %s/%s: %w", a.bucket, key, err))
	}

	a.logger.Verbose("archived %d bytes to %s/%s (sha256 %s)", len(window.Raw), a.bucket, key, sum)
	return nil
}

func (a *MinioArchiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// NopArchiver is used when archiving is disabled.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, uuid.UUID, stageswap.RunWindow) error { return nil }

var (
	_ stageswap.Archiver = (*MinioArchiver)(nil)
	_ stageswap.Archiver = NopArchiver{}
)
