package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/juststore/internal/domain"
	"github.com/juststore/internal/pkg/id"
)

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Type        string
	Extension   string
	OwnerID     string
	AccountID   string
}

type Service interface {
	Upload(ctx context.Context, input UploadInput) (*domain.File, error)
	List(ctx context.Context, ownerID string) ([]domain.File, error)
	Download(ctx context.Context, fileID, requesterID string) (io.ReadCloser, *domain.File, error)
	PresignedURL(ctx context.Context, fileID, requesterID string) (string, error)
	Delete(ctx context.Context, fileID, requesterID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type fileStore interface {
	Put(ctx context.Context, f *domain.File) error
	Get(ctx context.Context, fileID string) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error)
	SoftDelete(ctx context.Context, fileID string) error
}

type ServiceDeps struct {
	ObjectStore objectStore
	FileRepo    fileStore
	PresignTTL  time.Duration
}

type service struct {
	objects    objectStore
	files      fileStore
	presignTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{objects: deps.ObjectStore, files: deps.FileRepo, presignTTL: deps.PresignTTL}
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*domain.File, error) {
	if input.OwnerID == "" {
		return nil, fmt.Errorf("missing owner: %w", domain.ErrBadRequest)
	}
	fileID := id.New()
	safeName := sanitizeFilename(input.Filename)
	key := fmt.Sprintf("files/%s/%s-%s", input.OwnerID, fileID, safeName)
	body, size, hash, err := hashBody(input.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if _, err := s.objects.Upload(ctx, key, body, size, input.ContentType); err != nil {
		return nil, err
	}
	fileType := input.Type
	if fileType == "" {
		fileType = domain.FileTypeOther
	}
	now := time.Now().UTC()
	f := &domain.File{
		FileID:      fileID,
		Name:        input.Filename,
		Type:        fileType,
		Extension:   input.Extension,
		ContentType: input.ContentType,
		Size:        size,
		Object:      key,
		Hash:        hash,
		OwnerID:     input.OwnerID,
		AccountID:   input.AccountID,
		Enable:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.files.Put(ctx, f); err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			slog.Warn("failed to delete orphaned object", "key", key, "err", delErr)
		}
		return nil, err
	}
	return f, nil
}

func (s *service) List(ctx context.Context, ownerID string) ([]domain.File, error) {
	return s.files.ListByOwner(ctx, ownerID)
}

func (s *service) Download(ctx context.Context, fileID, requesterID string) (io.ReadCloser, *domain.File, error) {
	f, err := s.owned(ctx, fileID, requesterID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.objects.Download(ctx, f.Object)
	if err != nil {
		return nil, nil, err
	}
	return rc, f, nil
}

func (s *service) PresignedURL(ctx context.Context, fileID, requesterID string) (string, error) {
	f, err := s.owned(ctx, fileID, requesterID)
	if err != nil {
		return "", err
	}
	return s.objects.PresignedURL(ctx, f.Object, s.presignTTL)
}

func (s *service) Delete(ctx context.Context, fileID, requesterID string) error {
	f, err := s.owned(ctx, fileID, requesterID)
	if err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, f.Object); err != nil {
		return err
	}
	return s.files.SoftDelete(ctx, fileID)
}

func (s *service) owned(ctx context.Context, fileID, requesterID string) (*domain.File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.Enable {
		return nil, fmt.Errorf("file not found: %w", domain.ErrNotFound)
	}
	if f.OwnerID != requesterID {
		return nil, fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	return f, nil
}

// hashBody returns a seekable body positioned at its start, its length and its
// hex sha256. Readers that cannot seek are buffered in memory.
func hashBody(r io.Reader) (io.ReadSeeker, int64, string, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, 0, "", err
		}
		rs = bytes.NewReader(data)
	}
	hasher := sha256.New()
	n, err := io.Copy(hasher, rs)
	if err != nil {
		return nil, 0, "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, 0, "", err
	}
	return rs, n, hex.EncodeToString(hasher.Sum(nil)), nil
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}
