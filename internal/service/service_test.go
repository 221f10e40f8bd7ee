package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/repository/memory"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

type publishedEvent struct {
	name    string
	payload domain.EventPayload
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, name string, payload domain.EventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{name: name, payload: payload})
	return nil
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.name)
	}
	return names
}

// flakyUsers fails MarkEmailVerified while markErr is set
type flakyUsers struct {
	*memory.UserStore
	markErr error
}

func (u *flakyUsers) MarkEmailVerified(ctx context.Context, userID string, at time.Time) (bool, error) {
	if u.markErr != nil {
		return false, u.markErr
	}
	return u.UserStore.MarkEmailVerified(ctx, userID, at)
}

type testEnv struct {
	now           time.Time
	users         *memory.UserStore
	verifyUsers   *flakyUsers
	tokens        *memory.TokenStore
	verifications *memory.VerificationTokenStore
	publisher     *fakePublisher
	refreshTokens *RefreshTokenService
	auth          AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := memory.NewUserStore()
	env := &testEnv{
		now:         time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		users:       users,
		verifyUsers: &flakyUsers{UserStore: users},
		tokens:      memory.NewTokenStore(),
		publisher:   &fakePublisher{},
	}
	env.verifications = memory.NewVerificationTokenStore(env.verifyUsers)
	clock := func() time.Time { return env.now }

	signer := utils.NewJWTManager(testSecret, 15*time.Minute).WithClock(clock)
	env.refreshTokens = NewRefreshTokenService(env.tokens, env.users, signer, 7*24*time.Hour, nil, zap.NewNop()).
		WithClock(clock)
	env.auth = NewAuthService(
		env.users,
		env.verifications,
		env.refreshTokens,
		signer,
		utils.NewPasswordHasher(4),
		env.publisher,
		time.Second,
		zap.NewNop(),
	)

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) register(t *testing.T) *AuthResult {
	t.Helper()

	result, err := e.auth.Register(context.Background(), "Jane", "jane@x.com", "Secret123", domain.ClientMeta{})
	require.NoError(t, err)
	return result
}

var errBrokerDown = errors.New("broker unavailable")
