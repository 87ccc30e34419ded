// Package account runs the signup and sign-in workflow: resolving an email to
// an existing user, issuing the email passcode, provisioning the user record
// and exchanging the passcode for a session.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juststore/internal/application/identity"
	"github.com/juststore/internal/domain"
	"github.com/juststore/internal/pkg/id"
)

// EventAccountCreated is published once per provisioned user.
const EventAccountCreated = "account.created"

// LookupStatus distinguishes "no such user" from "could not tell".
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupFailed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupFailed:
		return "failed"
	default:
		return "not_found"
	}
}

// Lookup is the outcome of Resolve. User is set when Status is LookupFound,
// Err when it is LookupFailed.
type Lookup struct {
	Status LookupStatus
	User   *domain.User
	Err    error
}

type CreateAccountResult struct {
	AccountID string `json:"accountId"`
}

type Service interface {
	Resolve(ctx context.Context, email string) Lookup
	SendEmailOTP(ctx context.Context, email string) (string, error)
	CreateAccount(ctx context.Context, fullName, email string) (*CreateAccountResult, error)
	VerifySecret(ctx context.Context, accountID, password string) (*domain.Session, error)
	// SignOut disables the session behind secret and returns its id. It needs
	// no user record, so a session for an unprovisioned email still ends.
	SignOut(ctx context.Context, secret string) (string, error)
	CurrentUser(ctx context.Context, secret string) (*domain.Session, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

type ServiceDeps struct {
	UserRepo  userStore
	Identity  identity.Service
	Publisher eventPublisher
	// StrictLookup aborts CreateAccount when Resolve fails.
	StrictLookup     bool
	DefaultAvatarURL string
}

type service struct {
	users        userStore
	identity     identity.Service
	publisher    eventPublisher
	strictLookup bool
	avatarURL    string
	emailLocks   *kmutex.Kmutex
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:        deps.UserRepo,
		identity:     deps.Identity,
		publisher:    deps.Publisher,
		strictLookup: deps.StrictLookup,
		avatarURL:    deps.DefaultAvatarURL,
		emailLocks:   kmutex.New(),
	}
}

func (s *service) Resolve(ctx context.Context, email string) Lookup {
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return Lookup{Status: LookupFound, User: u}
	case errors.Is(err, domain.ErrNotFound):
		return Lookup{Status: LookupNotFound}
	default:
		slog.Error("failed to look up user by email", "email", email, "err", err)
		return Lookup{Status: LookupFailed, Err: err}
	}
}

func (s *service) SendEmailOTP(ctx context.Context, email string) (string, error) {
	t, err := s.identity.CreateEmailToken(ctx, id.New(), email)
	if err != nil {
		slog.Error("failed to send the email OTP", "email", email, "err", err)
		return "", fmt.Errorf("send email otp: %w", err)
	}
	return t.UserID, nil
}

func (s *service) CreateAccount(ctx context.Context, fullName, email string) (*CreateAccountResult, error) {
	s.emailLocks.Lock(email)
	defer s.emailLocks.Unlock(email)

	lookup := s.Resolve(ctx, email)
	if lookup.Status == LookupFailed {
		if s.strictLookup {
			return nil, fmt.Errorf("look up account: %w", lookup.Err)
		}
		lookup = Lookup{Status: LookupNotFound}
	}

	accountID, err := s.SendEmailOTP(ctx, email)
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, domain.ErrOTPNotSent
	}

	if lookup.Status == LookupNotFound {
		if err := s.provision(ctx, fullName, email, accountID); err != nil {
			return nil, err
		}
	}
	return &CreateAccountResult{AccountID: accountID}, nil
}

// provision writes the user record. A conflict means another signup for the
// same email got there first; the passcode already sent stays valid either way.
func (s *service) provision(ctx context.Context, fullName, email, accountID string) error {
	u := &domain.User{
		UserID:    id.New(),
		FullName:  fullName,
		Email:     email,
		Avatar:    s.avatarURL,
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			slog.Warn("user already provisioned for email", "email", email)
			return nil
		}
		return fmt.Errorf("create user: %w", err)
	}
	if err := s.publisher.Publish(ctx, EventAccountCreated, u); err != nil {
		slog.Warn("failed to publish account event", "user_id", u.UserID, "err", err)
	}
	return nil
}

func (s *service) VerifySecret(ctx context.Context, accountID, password string) (*domain.Session, error) {
	sess, err := s.identity.CreateSession(ctx, accountID, password)
	if err != nil {
		slog.Warn("failed to verify OTP", "account_id", accountID, "err", err)
		return nil, fmt.Errorf("verify secret: %w", err)
	}
	return sess, nil
}

func (s *service) SignOut(ctx context.Context, secret string) (string, error) {
	sess, err := s.identity.ValidateSession(ctx, secret)
	if err != nil {
		return "", err
	}
	if err := s.identity.DeleteSession(ctx, sess.SessionID); err != nil {
		return sess.SessionID, fmt.Errorf("sign out: %w", err)
	}
	return sess.SessionID, nil
}

func (s *service) CurrentUser(ctx context.Context, secret string) (*domain.Session, error) {
	sess, err := s.identity.ValidateSession(ctx, secret)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, sess.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no account for session: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load current user: %w", err)
	}
	sess.User = u
	return sess, nil
}
