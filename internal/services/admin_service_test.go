package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func TestAdminService_OverviewRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.admin.Overview(context.Background(), env.alice.ID, "")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.admin.Overview(context.Background(), "", "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAdminService_Overview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.session(t, env.alice, "Alice 1")
	bobs := env.session(t, env.bob, "Bob 1")

	out, err := env.admin.Overview(ctx, env.root.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalUsers)
	assert.Equal(t, 1, out.AdminUsers)
	assert.Equal(t, 2, out.TotalSessions)
	require.Len(t, out.Sessions, 2)
	assert.Equal(t, bobs.ID, out.Sessions[0].ID)
	assert.Equal(t, "bob@example.com", out.Sessions[0].OwnerEmail)

	filtered, err := env.admin.Overview(ctx, env.root.ID, "LIDDELL")
	require.NoError(t, err)
	require.Len(t, filtered.Users, 1)
	assert.Equal(t, "alice@example.com", filtered.Users[0].Email)
	assert.Equal(t, 3, filtered.TotalUsers)
}

func TestAdminService_SessionWindow(t *testing.T) {
	env := newTestEnv(t)
	env.admin = NewAdminService(env.store, env.engine, env.sessions, 2)
	for i := 0; i < 4; i++ {
		env.session(t, env.bob, "")
	}

	out, err := env.admin.Overview(context.Background(), env.root.ID, "")
	require.NoError(t, err)
	assert.Len(t, out.Sessions, 2)
}

func TestAdminService_DeleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.session(t, env.alice, "")

	assert.ErrorIs(t, env.admin.DeleteSession(ctx, env.bob.ID, sess.ID), models.ErrForbidden)
	require.NoError(t, env.admin.DeleteSession(ctx, env.root.ID, sess.ID))
	assert.ErrorIs(t, env.admin.DeleteSession(ctx, env.root.ID, sess.ID), models.ErrNotFound)
}
