package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/MikeSquared-Agency/Habitat/internal/config"
	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
)

// Uploader stores a finished dataset under key.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
}

// MinioUploader pushes datasets to an S3-compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

func NewMinioUploader(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created dataset bucket", "bucket", cfg.Bucket)
	}
	return &MinioUploader{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	info, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", u.bucket, key, err)
	}
	u.logger.Info("dataset uploaded", "bucket", u.bucket, "key", key, "bytes", info.Size)
	return nil
}

// ObjectKey names an uploaded dataset: <prefix>/<yyyymmdd-hhmmss>-<file>.
func ObjectKey(prefix, file string, now time.Time) string {
	name := now.UTC().Format("20060102-150405") + "-" + filepath.Base(file)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Exporter writes a dataset locally and optionally uploads it.
type Exporter struct {
	uploader Uploader
	prefix   string
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewExporter returns an exporter; uploader may be nil for local-only export.
func NewExporter(u Uploader, prefix string, m *metrics.Metrics, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{uploader: u, prefix: prefix, metrics: m, logger: logger, now: time.Now}
}

// Export writes vectors to file and, when an uploader is set, uploads the file.
// It returns the object key, empty when nothing was uploaded.
func (e *Exporter) Export(ctx context.Context, file string, vectors []scoring.ScoreVector) (string, error) {
	n, err := WriteCSVFile(file, vectors)
	if err != nil {
		return "", err
	}
	e.metrics.RowsExported(n)
	e.logger.Info("dataset written", "path", file, "rows", n)

	if e.uploader == nil {
		return "", nil
	}
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", file, err)
	}

	key := ObjectKey(e.prefix, file, e.now())
	if err := e.uploader.Upload(ctx, key, f, st.Size()); err != nil {
		return "", err
	}
	return key, nil
}
