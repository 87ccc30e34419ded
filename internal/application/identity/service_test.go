package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juststore/internal/domain"
	jwtinfra "github.com/juststore/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockTokenStore struct{ mock.Mock }

func (m *mockTokenStore) Put(ctx context.Context, t *domain.EmailToken) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockTokenStore) Get(ctx context.Context, userID string) (*domain.EmailToken, error) {
	args := m.Called(ctx, userID)
	if t, _ := args.Get(0).(*domain.EmailToken); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokenStore) ReserveAttempt(ctx context.Context, userID string, limit int) (int, error) {
	args := m.Called(ctx, userID, limit)
	return args.Int(0), args.Error(1)
}
func (m *mockTokenStore) Consume(ctx context.Context, userID, codeHash string) error {
	return m.Called(ctx, userID, codeHash).Error(0)
}
func (m *mockTokenStore) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) Disable(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

// --- helpers ---

// Secrets are verified against the wall clock, so the fixed clock stays near it.
var fixedNow = time.Now().UTC().Truncate(time.Second)

type fixture struct {
	tokens   *mockTokenStore
	sessions *mockSessionStore
	mailer   *mockMailer
	signer   *jwtinfra.Provider
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := jwtinfra.NewEphemeralProvider()
	require.NoError(t, err)
	f := &fixture{
		tokens:   new(mockTokenStore),
		sessions: new(mockSessionStore),
		mailer:   new(mockMailer),
		signer:   signer,
	}
	f.svc = NewService(ServiceDeps{
		TokenRepo:   f.tokens,
		SessionRepo: f.sessions,
		Mailer:      f.mailer,
		Signer:      signer,
		OTPTTL:      15 * time.Minute,
		MaxAttempts: 3,
		SessionTTL:  24 * time.Hour,
		BcryptCost:  bcrypt.MinCost,
		Now:         func() time.Time { return fixedNow },
	})
	return f
}

func hashed(t *testing.T, code string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func liveToken(t *testing.T, code string) *domain.EmailToken {
	return &domain.EmailToken{
		UserID:    "acc-1",
		Email:     "a@example.com",
		CodeHash:  hashed(t, code),
		ExpiresAt: fixedNow.Add(10 * time.Minute).Unix(),
	}
}

// --- CreateEmailToken ---

func TestCreateEmailToken_StoresHashAndMailsCode(t *testing.T) {
	f := newFixture(t)
	var stored *domain.EmailToken
	f.tokens.On("Put", mock.Anything, mock.AnythingOfType("*domain.EmailToken")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.EmailToken) }).
		Return(nil)
	var body string
	f.mailer.On("SendEmail", mock.Anything, "a@example.com", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(3) }).
		Return(nil)

	tok, err := f.svc.CreateEmailToken(context.Background(), "acc-1", "a@example.com")

	require.NoError(t, err)
	assert.Equal(t, "acc-1", tok.UserID)
	assert.Equal(t, fixedNow.Add(15*time.Minute).Unix(), tok.ExpiresAt)
	require.NotNil(t, stored)

	// The mailed code must match the stored hash; the hash is not the code.
	code := body[len("Your JustStore verification code is ") : len("Your JustStore verification code is ")+passcodeDigits]
	assert.NotEqual(t, code, stored.CodeHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(code)))
}

func TestCreateEmailToken_MailFailureRemovesToken(t *testing.T) {
	f := newFixture(t)
	f.tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	f.tokens.On("Delete", mock.Anything, "acc-1").Return(nil)

	_, err := f.svc.CreateEmailToken(context.Background(), "acc-1", "a@example.com")

	require.Error(t, err)
	f.tokens.AssertCalled(t, "Delete", mock.Anything, "acc-1")
}

func TestCreateEmailToken_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.tokens.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	_, err := f.svc.CreateEmailToken(context.Background(), "acc-1", "a@example.com")

	require.Error(t, err)
	f.mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- CreateSession ---

func TestCreateSession_Success(t *testing.T) {
	f := newFixture(t)
	tok := liveToken(t, "123456")
	f.tokens.On("Get", mock.Anything, "acc-1").Return(tok, nil)
	f.tokens.On("ReserveAttempt", mock.Anything, "acc-1", 3).Return(1, nil)
	f.tokens.On("Consume", mock.Anything, "acc-1", tok.CodeHash).Return(nil)
	f.sessions.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)

	sess, err := f.svc.CreateSession(context.Background(), "acc-1", "123456")

	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "acc-1", sess.AccountID)
	assert.Equal(t, "a@example.com", sess.Email)
	assert.True(t, sess.Enable)
	assert.Equal(t, fixedNow.Add(24*time.Hour), sess.ExpiresAt)
	require.NotEmpty(t, sess.Secret)

	claims, err := f.signer.Verify(sess.Secret)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, claims.SessionID)
	f.tokens.AssertCalled(t, "Consume", mock.Anything, "acc-1", tok.CodeHash)
}

func TestCreateSession_WrongPasscodeCountsAttempt(t *testing.T) {
	f := newFixture(t)
	f.tokens.On("Get", mock.Anything, "acc-1").Return(liveToken(t, "123456"), nil)
	f.tokens.On("ReserveAttempt", mock.Anything, "acc-1", 3).Return(1, nil)

	_, err := f.svc.CreateSession(context.Background(), "acc-1", "000000")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.tokens.AssertCalled(t, "ReserveAttempt", mock.Anything, "acc-1", 3)
	f.tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreateSession_NoAttemptLeftSkipsCompare(t *testing.T) {
	f := newFixture(t)
	// The read still shows attempts left; the store refuses the reservation.
	f.tokens.On("Get", mock.Anything, "acc-1").Return(liveToken(t, "123456"), nil)
	f.tokens.On("ReserveAttempt", mock.Anything, "acc-1", 3).Return(0, domain.ErrNotFound)

	_, err := f.svc.CreateSession(context.Background(), "acc-1", "123456")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreateSession_AlreadyConsumed(t *testing.T) {
	f := newFixture(t)
	tok := liveToken(t, "123456")
	f.tokens.On("Get", mock.Anything, "acc-1").Return(tok, nil)
	f.tokens.On("ReserveAttempt", mock.Anything, "acc-1", 3).Return(1, nil)
	f.tokens.On("Consume", mock.Anything, "acc-1", tok.CodeHash).Return(domain.ErrNotFound)

	_, err := f.svc.CreateSession(context.Background(), "acc-1", "123456")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreateSession_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	f.tokens.On("Get", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	_, err := f.svc.CreateSession(context.Background(), "nope", "123456")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateSession_Expired(t *testing.T) {
	f := newFixture(t)
	tok := liveToken(t, "123456")
	tok.ExpiresAt = fixedNow.Add(-time.Minute).Unix()
	f.tokens.On("Get", mock.Anything, "acc-1").Return(tok, nil)
	f.tokens.On("Delete", mock.Anything, "acc-1").Return(nil)

	_, err := f.svc.CreateSession(context.Background(), "acc-1", "123456")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreateSession_AttemptsExhausted(t *testing.T) {
	f := newFixture(t)
	tok := liveToken(t, "123456")
	tok.Attempts = 3
	f.tokens.On("Get", mock.Anything, "acc-1").Return(tok, nil)

	_, err := f.svc.CreateSession(context.Background(), "acc-1", "123456")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateSession_StoreError(t *testing.T) {
	f := newFixture(t)
	f.tokens.On("Get", mock.Anything, "acc-1").Return(nil, errors.New("dynamo down"))

	_, err := f.svc.CreateSession(context.Background(), "acc-1", "123456")

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

// memTokenStore is an atomic in-memory tokenStore. Get blocks until every
// caller in the round has read the token, so all of them see the same
// attempt count.
type memTokenStore struct {
	mu       sync.Mutex
	tokens   map[string]domain.EmailToken
	barrier  sync.WaitGroup
	reserved atomic.Int32
}

func newMemTokenStore(tok *domain.EmailToken, callers int) *memTokenStore {
	m := &memTokenStore{tokens: map[string]domain.EmailToken{tok.UserID: *tok}}
	m.barrier.Add(callers)
	return m
}

func (m *memTokenStore) Put(_ context.Context, t *domain.EmailToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.UserID] = *t
	return nil
}

func (m *memTokenStore) Get(_ context.Context, userID string) (*domain.EmailToken, error) {
	m.mu.Lock()
	t, ok := m.tokens[userID]
	m.mu.Unlock()
	m.barrier.Done()
	m.barrier.Wait()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memTokenStore) ReserveAttempt(_ context.Context, userID string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[userID]
	if !ok || (limit > 0 && t.Attempts >= limit) {
		return 0, domain.ErrNotFound
	}
	t.Attempts++
	m.tokens[userID] = t
	m.reserved.Add(1)
	return t.Attempts, nil
}

func (m *memTokenStore) Consume(_ context.Context, userID, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[userID]
	if !ok || t.CodeHash != codeHash {
		return domain.ErrNotFound
	}
	delete(m.tokens, userID)
	return nil
}

func (m *memTokenStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func newConcurrentService(t *testing.T, store *memTokenStore, maxAttempts int) (Service, *mockSessionStore) {
	t.Helper()
	signer, err := jwtinfra.NewEphemeralProvider()
	require.NoError(t, err)
	sessions := new(mockSessionStore)
	sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(ServiceDeps{
		TokenRepo:   store,
		SessionRepo: sessions,
		Signer:      signer,
		OTPTTL:      15 * time.Minute,
		MaxAttempts: maxAttempts,
		SessionTTL:  time.Hour,
		BcryptCost:  bcrypt.MinCost,
		Now:         func() time.Time { return fixedNow },
	})
	return svc, sessions
}

func TestCreateSession_ConcurrentGuessesHonourAttemptLimit(t *testing.T) {
	const (
		callers     = 50
		maxAttempts = 5
	)
	store := newMemTokenStore(liveToken(t, "123456"), callers)
	svc, _ := newConcurrentService(t, store, maxAttempts)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < callers; i++ {
		code := "000000"
		if i == callers-1 {
			code = "123456"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateSession(context.Background(), "acc-1", code); err == nil {
				accepted.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(maxAttempts), store.reserved.Load(), "only maxAttempts guesses may be evaluated")
	assert.LessOrEqual(t, accepted.Load(), int32(1))
}

func TestCreateSession_PasscodeIsSingleUse(t *testing.T) {
	const callers = 8
	store := newMemTokenStore(liveToken(t, "123456"), callers)
	svc, sessions := newConcurrentService(t, store, 0)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateSession(context.Background(), "acc-1", "123456"); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	sessions.AssertNumberOfCalls(t, "Put", 1)
}

// --- ValidateSession ---

func TestValidateSession(t *testing.T) {
	f := newFixture(t)
	secret, err := f.signer.Sign("sess-1", "acc-1", fixedNow.Add(time.Hour))
	require.NoError(t, err)

	active := &domain.Session{SessionID: "sess-1", AccountID: "acc-1", Email: "a@example.com", Enable: true, ExpiresAt: fixedNow.Add(time.Hour)}
	f.sessions.On("Get", mock.Anything, "sess-1").Return(active, nil)

	sess, err := f.svc.ValidateSession(context.Background(), secret)

	require.NoError(t, err)
	assert.Equal(t, "a@example.com", sess.Email)
}

func TestValidateSession_Rejects(t *testing.T) {
	f := newFixture(t)
	secret, err := f.signer.Sign("sess-1", "acc-1", fixedNow.Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		session *domain.Session
		getErr  error
	}{
		{name: "garbage secret", secret: "not-a-jwt"},
		{name: "unknown session", secret: secret, getErr: domain.ErrNotFound},
		{name: "disabled session", secret: secret, session: &domain.Session{SessionID: "sess-1", AccountID: "acc-1", Enable: false, ExpiresAt: fixedNow.Add(time.Hour)}},
		{name: "expired session", secret: secret, session: &domain.Session{SessionID: "sess-1", AccountID: "acc-1", Enable: true, ExpiresAt: fixedNow.Add(-time.Hour)}},
		{name: "account mismatch", secret: secret, session: &domain.Session{SessionID: "sess-1", AccountID: "other", Enable: true, ExpiresAt: fixedNow.Add(time.Hour)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f.sessions.ExpectedCalls = nil
			f.sessions.On("Get", mock.Anything, "sess-1").Return(tc.session, tc.getErr)

			_, err := f.svc.ValidateSession(context.Background(), tc.secret)

			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("Disable", mock.Anything, "sess-1").Return(nil)

	require.NoError(t, f.svc.DeleteSession(context.Background(), "sess-1"))
	f.sessions.AssertExpectations(t)
}
