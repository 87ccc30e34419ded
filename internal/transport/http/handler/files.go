package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	fileapp "github.com/juststore/internal/application/file"
	"github.com/juststore/internal/domain"
	"github.com/juststore/internal/transport/http/middleware"
)

// FileHandler serves the signed-in user's stored files.
type FileHandler struct {
	svc fileapp.Service
}

func NewFileHandler(svc fileapp.Service) *FileHandler { return &FileHandler{svc: svc} }

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	files, err := h.svc.List(r.Context(), owner.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}
	writeJSON(w, http.StatusOK, FilesEnvelope{Files: files})
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	rc, f, err := h.svc.Download(r.Context(), chi.URLParam(r, "id"), owner.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	_, _ = io.Copy(w, rc)
}

func (h *FileHandler) PresignedURL(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	url, err := h.svc.PresignedURL(r.Context(), chi.URLParam(r, "id"), owner.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, URLEnvelope{URL: url})
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), owner.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "file deleted"})
}

func ownerFromContext(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok || sess.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return sess.User, true
}
