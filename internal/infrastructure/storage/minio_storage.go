package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/application/port"
)

// MinioConfig holds the object storage connection settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicURL prefixes object URLs; empty derives it from Endpoint
	PublicURL string
}

// ObjectURL returns the URL an object is reachable at
func (c MinioConfig) ObjectURL(name string) string {
	base := strings.TrimRight(c.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if c.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + c.Endpoint
	}
	return base + "/" + c.Bucket + "/" + name
}

// MinioAttachmentStore implements port.AttachmentStore on an S3 compatible bucket
type MinioAttachmentStore struct {
	client *minio.Client
	cfg    MinioConfig
	logger *zap.Logger
}

// NewMinioAttachmentStore creates the client. It does not contact the server.
func NewMinioAttachmentStore(cfg MinioConfig, logger *zap.Logger) (*MinioAttachmentStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioAttachmentStore{client: client, cfg: cfg, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist
func (s *MinioAttachmentStore) EnsureBucket(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.cfg.Bucket, err)
	}
	if found {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.cfg.Bucket, err)
	}
	s.logger.Info("Bucket created", zap.String("bucket", s.cfg.Bucket))
	return nil
}

// Save uploads content as name and returns its URL
func (s *MinioAttachmentStore) Save(ctx context.Context, name, contentType string, content io.Reader, size int64) (string, error) {
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, name, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("bucket", s.cfg.Bucket),
			zap.String("name", name),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Debug("Object uploaded",
		zap.String("bucket", s.cfg.Bucket),
		zap.String("name", name),
		zap.Int64("size", info.Size))

	return s.cfg.ObjectURL(name), nil
}

// Delete removes name from the bucket. Removing a missing object succeeds.
func (s *MinioAttachmentStore) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

var _ port.AttachmentStore = (*MinioAttachmentStore)(nil)
