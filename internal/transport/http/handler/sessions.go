package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/juststore/internal/application/account"
	"github.com/juststore/internal/application/upload"
	"github.com/juststore/internal/domain"
	"github.com/juststore/internal/pkg/validate"
	"github.com/juststore/internal/transport/http/middleware"
)

// SessionHandler exchanges passcodes for the session cookie and signs out.
type SessionHandler struct {
	svc     account.Service
	cookie  middleware.SessionCookie
	staging *upload.Registry
}

func NewSessionHandler(svc account.Service, cookie middleware.SessionCookie, staging *upload.Registry) *SessionHandler {
	return &SessionHandler{svc: svc, cookie: cookie, staging: staging}
}

// Create verifies the passcode. The cookie is written only once the session
// exists.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifySecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sess, err := h.svc.VerifySecret(r.Context(), req.AccountID, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.cookie.Set(w, sess.Secret, sess.ExpiresAt)
	writeJSON(w, http.StatusCreated, SessionEnvelope{SessionID: sess.SessionID})
}

// DeleteCurrent signs out. The cookie is cleared even when there is no valid
// session behind it.
func (h *SessionHandler) DeleteCurrent(w http.ResponseWriter, r *http.Request) {
	if secret, ok := h.cookie.Read(r); ok {
		sessionID, err := h.svc.SignOut(r.Context(), secret)
		if err != nil && !errors.Is(err, domain.ErrUnauthorized) {
			slog.Warn("failed to disable session", "session_id", sessionID, "err", err)
		}
		if sessionID != "" {
			h.staging.Discard(sessionID)
		}
	}
	h.cookie.Clear(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "signed out"})
}
