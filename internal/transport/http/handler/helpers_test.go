package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/juststore/internal/application/account"
	"github.com/juststore/internal/domain"
	"github.com/juststore/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

// --- mock ---

type mockAccountSvc struct{ mock.Mock }

func (m *mockAccountSvc) Resolve(ctx context.Context, email string) account.Lookup {
	return m.Called(ctx, email).Get(0).(account.Lookup)
}
func (m *mockAccountSvc) SendEmailOTP(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}
func (m *mockAccountSvc) CreateAccount(ctx context.Context, fullName, email string) (*account.CreateAccountResult, error) {
	args := m.Called(ctx, fullName, email)
	if res, _ := args.Get(0).(*account.CreateAccountResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountSvc) VerifySecret(ctx context.Context, accountID, password string) (*domain.Session, error) {
	args := m.Called(ctx, accountID, password)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountSvc) SignOut(ctx context.Context, secret string) (string, error) {
	args := m.Called(ctx, secret)
	return args.String(0), args.Error(1)
}
func (m *mockAccountSvc) CurrentUser(ctx context.Context, secret string) (*domain.Session, error) {
	args := m.Called(ctx, secret)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var testCookie = middleware.SessionCookie{Name: "appwrite-session"}

func testSession() *domain.Session {
	return &domain.Session{
		SessionID: "s1",
		AccountID: "acc-1",
		Email:     "a@example.com",
		Enable:    true,
		User:      &domain.User{UserID: "u1", AccountID: "acc-1", Email: "a@example.com"},
	}
}

// signedIn attaches sess to the request the way the auth middleware does.
func signedIn(r *http.Request, sess *domain.Session) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), sess))
}

// withChiParam injects a chi URL param into the request context.
func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
