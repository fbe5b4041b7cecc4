package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// MaxAttachmentSize is the largest accepted upload
const MaxAttachmentSize = 5 << 20

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// Attachment describes a stored upload
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadInput is one file to store
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// AttachmentService stores receipts referenced by bill items
type AttachmentService interface {
	Upload(ctx context.Context, actor entity.Actor, in UploadInput) (*Attachment, error)
}

type attachmentServiceImpl struct {
	store  port.AttachmentStore
	logger Logger
	now    func() time.Time
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(store port.AttachmentStore, logger Logger) AttachmentService {
	return &attachmentServiceImpl{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Upload validates and stores an image or PDF of at most MaxAttachmentSize bytes
func (s *attachmentServiceImpl) Upload(ctx context.Context, actor entity.Actor, in UploadInput) (*Attachment, error) {
	if in.Size <= 0 {
		return nil, newValidationError("file", "is empty")
	}
	if in.Size > MaxAttachmentSize {
		return nil, newValidationError("file", "must be at most %d bytes", MaxAttachmentSize)
	}

	contentType := detectContentType(in.FileName, in.ContentType)
	if !allowedContentType(contentType) {
		return nil, newValidationError("file", "must be an image or a PDF, got %q", contentType)
	}

	name, err := s.objectName(in.FileName)
	if err != nil {
		return nil, err
	}

	// refuse bodies that turn out longer than announced
	body := io.LimitReader(in.Content, in.Size)
	url, err := s.store.Save(ctx, name, contentType, body, in.Size)
	if err != nil {
		s.logger.Error("Failed to store attachment", "error", err, "name", name, "actor_id", actor.ID)
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	s.logger.Info("Attachment stored", "name", name, "size", in.Size, "actor_id", actor.ID)
	return &Attachment{Name: name, URL: url, ContentType: contentType, Size: in.Size}, nil
}

// objectName builds <unix-millis>_<12 hex><ext>
func (s *attachmentServiceImpl) objectName(fileName string) (string, error) {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate attachment name: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d_%s%s", s.now().UnixMilli(), hex.EncodeToString(buf[:]), ext), nil
}

func detectContentType(fileName, declared string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
			ct = strings.SplitN(byExt, ";", 2)[0]
		}
	}
	return ct
}

func allowedContentType(ct string) bool {
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}
