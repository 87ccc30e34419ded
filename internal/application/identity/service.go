// Package identity is the auth backend: it issues emailed passcodes tied to a
// correlation id and exchanges them for server-side sessions whose signed
// secret is carried by the browser.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juststore/internal/domain"
	jwtinfra "github.com/juststore/internal/infrastructure/jwt"
	"github.com/juststore/internal/pkg/id"
	pkgtoken "github.com/juststore/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const passcodeDigits = 6

type Service interface {
	// CreateEmailToken mails a fresh passcode to email and records it under userID.
	CreateEmailToken(ctx context.Context, userID, email string) (*domain.EmailToken, error)
	// CreateSession exchanges the passcode issued for userID for a session.
	CreateSession(ctx context.Context, userID, passcode string) (*domain.Session, error)
	ValidateSession(ctx context.Context, secret string) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type tokenStore interface {
	Put(ctx context.Context, t *domain.EmailToken) error
	Get(ctx context.Context, userID string) (*domain.EmailToken, error)
	ReserveAttempt(ctx context.Context, userID string, limit int) (int, error)
	Consume(ctx context.Context, userID, codeHash string) error
	Delete(ctx context.Context, userID string) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type secretSigner interface {
	Sign(sessionID, accountID string, expiresAt time.Time) (string, error)
	Verify(secret string) (*jwtinfra.Claims, error)
}

type ServiceDeps struct {
	TokenRepo   tokenStore
	SessionRepo sessionStore
	Mailer      mailer
	Signer      secretSigner
	OTPTTL      time.Duration
	MaxAttempts int
	SessionTTL  time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	tokens      tokenStore
	sessions    sessionStore
	mailer      mailer
	signer      secretSigner
	otpTTL      time.Duration
	maxAttempts int
	sessionTTL  time.Duration
	bcryptCost  int
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		tokens:      deps.TokenRepo,
		sessions:    deps.SessionRepo,
		mailer:      deps.Mailer,
		signer:      deps.Signer,
		otpTTL:      deps.OTPTTL,
		maxAttempts: deps.MaxAttempts,
		sessionTTL:  deps.SessionTTL,
		bcryptCost:  deps.BcryptCost,
		now:         deps.Now,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) CreateEmailToken(ctx context.Context, userID, email string) (*domain.EmailToken, error) {
	passcode, err := pkgtoken.NewPasscode(passcodeDigits)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash passcode: %w", err)
	}
	t := &domain.EmailToken{
		UserID:    userID,
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(s.otpTTL).Unix(),
	}
	if err := s.tokens.Put(ctx, t); err != nil {
		return nil, fmt.Errorf("store email token: %w", err)
	}
	if err := s.mailer.SendEmail(ctx, email, "Your JustStore verification code", passcodeBody(passcode, s.otpTTL)); err != nil {
		if delErr := s.tokens.Delete(ctx, userID); delErr != nil {
			slog.Warn("failed to delete undelivered email token", "user_id", userID, "err", delErr)
		}
		return nil, err
	}
	return t, nil
}

func (s *service) CreateSession(ctx context.Context, userID, passcode string) (*domain.Session, error) {
	t, err := s.tokens.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid or expired passcode: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	now := s.now()
	if t.ExpiresAt < now.Unix() {
		if err := s.tokens.Delete(ctx, userID); err != nil {
			slog.Warn("failed to delete expired email token", "user_id", userID, "err", err)
		}
		return nil, fmt.Errorf("passcode expired: %w", domain.ErrUnauthorized)
	}
	if s.maxAttempts > 0 && t.Attempts >= s.maxAttempts {
		return nil, fmt.Errorf("too many passcode attempts: %w", domain.ErrUnauthorized)
	}
	// t.Attempts may be stale under concurrent guesses; the store enforces the limit.
	if _, err := s.tokens.ReserveAttempt(ctx, userID, s.maxAttempts); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("too many passcode attempts: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("record passcode attempt: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.CodeHash), []byte(passcode)); err != nil {
		return nil, fmt.Errorf("invalid passcode: %w", domain.ErrUnauthorized)
	}
	if err := s.tokens.Consume(ctx, userID, t.CodeHash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("passcode already used: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("consume email token: %w", err)
	}

	sess := &domain.Session{
		SessionID: id.New(),
		AccountID: userID,
		Email:     t.Email,
		Enable:    true,
		ExpiresAt: now.Add(s.sessionTTL).UTC(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	secret, err := s.signer.Sign(sess.SessionID, sess.AccountID, sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	sess.Secret = secret
	return sess, nil
}

func (s *service) ValidateSession(ctx context.Context, secret string) (*domain.Session, error) {
	claims, err := s.signer.Verify(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid session secret: %w", domain.ErrUnauthorized)
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !sess.Active(s.now()) || sess.AccountID != claims.AccountID {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}

func (s *service) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Disable(ctx, sessionID)
}

func passcodeBody(passcode string, ttl time.Duration) string {
	return fmt.Sprintf("Your JustStore verification code is %s.\r\n\r\nIt expires in %d minutes. If you did not request it, ignore this email.",
		passcode, int(ttl.Minutes()))
}
