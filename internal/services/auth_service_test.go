package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/auth"
	"library/internal/models"
)

const testSecret = "test-secret"

func newAuthService(env *testEnv) AuthService {
	return NewAuthService(env.db, env.userRepo, auth.NewBcryptHasher(4), testSecret, time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	result, err := svc.Register("alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.UserRoleUser, result.User.Role)
	assert.NotEqual(t, "s3cret-pass", result.User.PasswordHash)

	claims, err := auth.ParseToken(testSecret, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), claims.Sub)
	assert.Equal(t, "User", claims.Role)

	login, err := svc.Login("alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
}

func TestRegisterDuplicates(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	_, err := svc.Register("alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Register("alice", "other@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register("alice2", "alice@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	_, err := svc.Register("alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Login("alice", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user looks identical to a wrong password.
	_, err = svc.Login("mallory", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
