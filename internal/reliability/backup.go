// Package reliability provides best-effort operational safeguards, currently
// nightly backups of the store to S3-compatible object storage.
package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/events"
)

// BackupConfig holds object storage settings for the backup service.
type BackupConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

// BackupService uploads gzip archives of the store database to an
// S3-compatible bucket.
type BackupService struct {
	uploader *manager.Uploader
	bucket   string
	dbPath   string
	dataDir  string
	events   *events.Manager
	log      zerolog.Logger
}

// NewBackupService creates a backup service. The endpoint is any
// S3-compatible API (R2, MinIO, S3 itself).
func NewBackupService(ctx context.Context, cfg BackupConfig, dbPath, dataDir string, ev *events.Manager, log zerolog.Logger) (*BackupService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &BackupService{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		dbPath:   dbPath,
		dataDir:  dataDir,
		events:   ev,
		log:      log.With().Str("service", "backup").Logger(),
	}, nil
}

// CreateAndUploadBackup compresses the store database and uploads it.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	archivePath := filepath.Join(stagingDir, "store.db.gz")
	size, err := compressFile(s.dbPath, archivePath)
	if err != nil {
		return fmt.Errorf("failed to compress store: %w", err)
	}

	key := fmt.Sprintf("backups/foliosync-%s.db.gz", time.Now().UTC().Format("20060102-150405"))

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        archive,
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.events.Emit(events.BackupCompleted, "reliability", map[string]interface{}{
		"key":        key,
		"size_bytes": size,
	})

	s.log.Info().
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration", time.Since(startTime)).
		Msg("Backup uploaded")

	return nil
}

// compressFile gzips src into dst and returns the compressed size.
func compressFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}

	info, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
