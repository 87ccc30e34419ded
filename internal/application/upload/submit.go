package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	fileapp "github.com/juststore/internal/application/file"
	"github.com/juststore/internal/domain"
)

type uploader interface {
	Upload(ctx context.Context, input fileapp.UploadInput) (*domain.File, error)
}

// Submit uploads every staged file on behalf of owner. Uploaded files leave
// the list; failed ones stay staged in their original order and their errors
// are joined into the returned error.
func (s *Staging) Submit(ctx context.Context, up uploader, owner *domain.User) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		uploaded []domain.File
		failed   []StagedFile
		errs     []error
	)
	for _, sf := range s.files {
		f, err := up.Upload(ctx, fileapp.UploadInput{
			Reader:      bytes.NewReader(sf.Content),
			Filename:    sf.Name,
			ContentType: sf.ContentType,
			Type:        sf.Type,
			Extension:   sf.Extension,
			OwnerID:     owner.UserID,
			AccountID:   owner.AccountID,
		})
		if err != nil {
			slog.Warn("failed to upload staged file", "name", sf.Name, "owner_id", owner.UserID, "err", err)
			failed = append(failed, sf)
			errs = append(errs, fmt.Errorf("%s: %w", sf.Name, err))
			continue
		}
		uploaded = append(uploaded, *f)
	}
	s.files = failed
	return uploaded, errors.Join(errs...)
}
