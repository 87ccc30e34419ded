package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/juststore/internal/application/upload"
	"github.com/juststore/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type AccountEnvelope struct {
	AccountID string `json:"accountId"`
}

type OTPEnvelope struct {
	UserID string `json:"userId"`
}

type SessionEnvelope struct {
	SessionID string `json:"sessionId"`
}

// CurrentUserEnvelope wraps the signed-in user and their session.
type CurrentUserEnvelope struct {
	User    *domain.User    `json:"user"`
	Session *domain.Session `json:"session"`
}

type StagingEnvelope struct {
	Files []upload.StagedFile `json:"files"`
}

// SubmitEnvelope reports a submit. Staged lists what is still waiting after a
// partial failure.
type SubmitEnvelope struct {
	Files  []domain.File       `json:"files"`
	Staged []upload.StagedFile `json:"staged"`
	Error  string              `json:"error,omitempty"`
}

type FilesEnvelope struct {
	Files []domain.File `json:"files"`
}

type URLEnvelope struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeServiceError maps domain sentinels to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
