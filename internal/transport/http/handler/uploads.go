package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	fileapp "github.com/juststore/internal/application/file"
	"github.com/juststore/internal/application/upload"
	"github.com/juststore/internal/domain"
	"github.com/juststore/internal/transport/http/middleware"
)

const (
	maxStageMemory   = 32 << 20
	defaultMaxUpload = 50 << 20
)

var errUploadTooLarge = errors.New("upload too large")

// UploadHandler manages the signed-in user's staged files.
type UploadHandler struct {
	staging  *upload.Registry
	files    fileUploader
	maxBytes int64
}

type fileUploader interface {
	Upload(ctx context.Context, input fileapp.UploadInput) (*domain.File, error)
}

// NewUploadHandler caps each staging request body at maxBytes, or at 50 MiB
// when maxBytes is not positive.
func NewUploadHandler(staging *upload.Registry, files fileUploader, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return &UploadHandler{staging: staging, files: files, maxBytes: maxBytes}
}

func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, StagingEnvelope{Files: st.Files()})
}

// Add appends the multipart "files" to the staged list.
func (h *UploadHandler) Add(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w, r)
	if !ok {
		return
	}
	files, ok := h.read(w, r)
	if !ok {
		return
	}
	st.Add(files...)
	writeJSON(w, http.StatusOK, StagingEnvelope{Files: st.Files()})
}

// Replace stages the multipart "files" in place of the current list.
func (h *UploadHandler) Replace(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w, r)
	if !ok {
		return
	}
	files, ok := h.read(w, r)
	if !ok {
		return
	}
	st.Replace(files...)
	writeJSON(w, http.StatusOK, StagingEnvelope{Files: st.Files()})
}

func (h *UploadHandler) Remove(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w, r)
	if !ok {
		return
	}
	st.Remove(chi.URLParam(r, "name"))
	writeJSON(w, http.StatusOK, StagingEnvelope{Files: st.Files()})
}

func (h *UploadHandler) Clear(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w, r)
	if !ok {
		return
	}
	st.Clear()
	writeJSON(w, http.StatusOK, StagingEnvelope{Files: []upload.StagedFile{}})
}

// Submit uploads everything staged. A partial failure answers 207 with the
// uploaded files and the ones still staged.
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok || sess.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	st := h.staging.For(sess.SessionID, sess.ExpiresAt)
	uploaded, err := st.Submit(r.Context(), h.files, sess.User)
	if uploaded == nil {
		uploaded = []domain.File{}
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, SubmitEnvelope{Files: uploaded, Staged: []upload.StagedFile{}})
	case len(uploaded) > 0:
		writeJSON(w, http.StatusMultiStatus, SubmitEnvelope{Files: uploaded, Staged: st.Files(), Error: err.Error()})
	default:
		writeJSON(w, statusFor(err), SubmitEnvelope{Files: uploaded, Staged: st.Files(), Error: err.Error()})
	}
}

func (h *UploadHandler) current(w http.ResponseWriter, r *http.Request) (*upload.Staging, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return h.staging.For(sess.SessionID, sess.ExpiresAt), true
}

func (h *UploadHandler) read(w http.ResponseWriter, r *http.Request) ([]upload.StagedFile, bool) {
	if r.ContentLength > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, errUploadTooLarge.Error())
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	files, err := readStagedFiles(r)
	switch {
	case errors.Is(err, errUploadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return files, true
}

func readStagedFiles(r *http.Request) ([]upload.StagedFile, error) {
	if err := r.ParseMultipartForm(maxStageMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errUploadTooLarge
		}
		return nil, errors.New("invalid multipart form")
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("missing files field")
	}
	staged := make([]upload.StagedFile, 0, len(headers))
	for _, fh := range headers {
		content, err := readPart(fh)
		if err != nil {
			return nil, errors.New("unreadable file " + fh.Filename)
		}
		staged = append(staged, upload.NewStagedFile(fh.Filename, content))
	}
	return staged, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
