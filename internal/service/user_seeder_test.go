package service

import (
	"context"
	"testing"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedAccounts() []SeedAccount {
	return []SeedAccount{
		{FullName: "Super Admin", Email: "Root@Example.com", Password: "Secret123", Role: domain.RoleSuperAdmin},
		{FullName: "Admin", Email: "admin@example.com", Password: "Secret123", Role: domain.RoleAdmin},
		{FullName: "Unset", Email: "", Password: "", Role: domain.RoleAdmin},
	}
}

func TestUserSeederCreatesPrivilegedAccountsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeder := NewUserSeeder(env.users, utils.NewPasswordHasher(4), zap.NewNop())

	created, err := seeder.Seed(ctx, seedAccounts())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = seeder.Seed(ctx, seedAccounts())
	require.NoError(t, err)
	assert.Zero(t, created)

	root, err := env.users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, root.Role)
	assert.True(t, root.EmailVerified)
	assert.True(t, root.IsActive)

	result, err := env.auth.Login(ctx, "admin@example.com", "Secret123", domain.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, result.User.Role)

	claims, err := env.auth.ValidateAccessToken(ctx, result.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestUserSeederLeavesExistingUserAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeder := NewUserSeeder(env.users, utils.NewPasswordHasher(4), zap.NewNop())

	_, err := env.auth.Register(ctx, "Plain", "admin@example.com", "Secret123", domain.ClientMeta{})
	require.NoError(t, err)

	created, err := seeder.Seed(ctx, seedAccounts()[1:2])
	require.NoError(t, err)
	assert.Zero(t, created)

	existing, err := env.users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, existing.Role)
}

func TestUserSeederRejectsBadAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeder := NewUserSeeder(env.users, utils.NewPasswordHasher(4), zap.NewNop())

	_, err := seeder.Seed(ctx, []SeedAccount{{FullName: "X", Email: "x@example.com", Password: "Secret123", Role: "ROOT"}})
	require.Error(t, err)

	_, err = seeder.Seed(ctx, []SeedAccount{{FullName: "X", Email: "x@example.com", Password: "short", Role: domain.RoleAdmin}})
	assert.ErrorIs(t, err, &domain.AuthError{Kind: domain.KindValidation})

	_, err = env.users.GetByEmail(ctx, "x@example.com")
	assert.Error(t, err)
}
