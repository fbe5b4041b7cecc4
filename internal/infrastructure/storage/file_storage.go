// internal/infrastructure/storage/file_storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"go.uber.org/zap"
)

// LocalAttachmentStore implements port.AttachmentStore on the local filesystem.
// Stored files are served by the HTTP server under publicURL.
type LocalAttachmentStore struct {
	baseDir   string
	publicURL string
	logger    *zap.Logger
}

// NewLocalAttachmentStore creates a new LocalAttachmentStore
func NewLocalAttachmentStore(baseDir, publicURL string, logger *zap.Logger) (*LocalAttachmentStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalAttachmentStore{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// Save writes exactly size bytes of content to name and returns its public URL
func (s *LocalAttachmentStore) Save(ctx context.Context, name, contentType string, content io.Reader, size int64) (string, error) {
	fullPath := s.GetFullPath(name)

	// Validate path security
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		s.logger.Error("Failed to create file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written != size {
		err = fmt.Errorf("wrote %d of %d bytes", written, size)
	}
	if err != nil {
		_ = os.Remove(fullPath)
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.String("content_type", contentType),
		zap.Int64("size", written))

	return s.publicURL + "/" + name, nil
}

// Delete removes name. Deleting a missing file succeeds.
func (s *LocalAttachmentStore) Delete(ctx context.Context, name string) error {
	fullPath := s.GetFullPath(name)

	// Validate path security
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Debug("File deleted successfully",
		zap.String("path", fullPath))

	return nil
}

// BaseDir returns the directory files are written to
func (s *LocalAttachmentStore) BaseDir() string {
	return s.baseDir
}

// GetFullPath converts a stored name to its path on disk
func (s *LocalAttachmentStore) GetFullPath(name string) string {
	return filepath.Join(s.baseDir, name)
}

// validatePath checks that the path is a file directly inside baseDir
func (s *LocalAttachmentStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

var _ port.AttachmentStore = (*LocalAttachmentStore)(nil)
