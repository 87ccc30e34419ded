package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/juststore/internal/domain"
)

type sessionContextKey struct{}

// SessionResolver turns a session secret into the signed-in session.
type SessionResolver interface {
	CurrentUser(ctx context.Context, secret string) (*domain.Session, error)
}

// Auth rejects requests without a valid session cookie. The session is looked
// up on every request, so sign-out takes effect immediately.
func Auth(resolver SessionResolver, cookie SessionCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret, ok := cookie.Read(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing session")
				return
			}
			sess, err := resolver.CurrentUser(r.Context(), secret)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeJSONError(w, http.StatusUnauthorized, "invalid or expired session")
					return
				}
				slog.Error("failed to resolve session", "err", err)
				writeJSONError(w, http.StatusInternalServerError, "session lookup failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func WithSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the session attached by Auth.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*domain.Session)
	return s, ok && s != nil
}
