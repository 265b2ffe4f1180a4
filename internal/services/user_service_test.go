package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	db "github.com/markdave123-py/dsa-galaxy/internal/core/database"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func newUserService(t *testing.T) (*UserService, *auth.JWTManager, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	tokens := auth.NewJWTManager([]byte("secret"), "authenticated", time.Hour)
	return NewUserService(store, tokens, []string{"Root@Example.com"}, logger.Discard()), tokens, store
}

func TestUserService_SignupAndLogin(t *testing.T) {
	svc, tokens, _ := newUserService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "alice@example.com", "hunter22", "Alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.Empty(t, res.User.PasswordHash)

	claims, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	login, err := svc.Login(ctx, "ALICE@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestUserService_SignupValidation(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "not-an-email", "hunter22", "")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = svc.Signup(ctx, "a@example.com", "short", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Signup(ctx, "a@example.com", "hunter22", "")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "a@example.com", "hunter22", "")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUserService_AdminEmailGetsAdminRole(t *testing.T) {
	svc, _, _ := newUserService(t)
	res, err := svc.Signup(context.Background(), "root@example.com", "hunter22", "Root")
	require.NoError(t, err)
	assert.True(t, res.User.IsAdmin())
}

func TestUserService_MeReflectsRoleChanges(t *testing.T) {
	svc, _, store := newUserService(t)
	ctx := context.Background()
	res, err := svc.Signup(ctx, "bob@example.com", "hunter22", "Bob")
	require.NoError(t, err)

	require.NoError(t, store.SetRole(res.User.ID, models.RoleAdmin))

	me, err := svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, me.Role)

	_, err = svc.Me(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestUserService_SignupStoresBareAddress(t *testing.T) {
	svc, _, store := newUserService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "Bob <bob@example.com>", "hunter22", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", res.User.Email)

	p, err := store.GetProfileByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, p.ID)

	_, err = svc.Login(ctx, "bob@example.com", "hunter22")
	assert.NoError(t, err)
}

func TestUserService_SignupRejectsOverlongPassword(t *testing.T) {
	svc, _, _ := newUserService(t)

	_, err := svc.Signup(context.Background(), "long@example.com", strings.Repeat("p", 73), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.EqualError(t, err, "password must be at most 72 bytes")
}
