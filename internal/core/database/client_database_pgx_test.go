package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/config"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// newTestDatabase connects to TEST_DATABASE_URL and skips when it is unset.
func newTestDatabase(t *testing.T) *DatabaseClient {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	c, err := NewDatabaseClient(context.Background(), &config.Config{
		DatabaseURL:   url,
		RunMigrations: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestProfile(t *testing.T, c *DatabaseClient, role models.Role) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, c.CreateProfile(context.Background(), p))
	return p
}

func TestDatabaseClient_RowLevelSecurity(t *testing.T) {
	c := newTestDatabase(t)
	ctx := context.Background()

	alice := newTestProfile(t, c, models.RoleUser)
	bob := newTestProfile(t, c, models.RoleUser)
	admin := newTestProfile(t, c, models.RoleAdmin)

	sess := &models.ChatSession{UserID: alice.ID, Title: "Binary Trees"}
	require.NoError(t, c.CreateSession(ctx, sess))

	msg := &models.ChatMessage{SessionID: sess.ID, Role: models.MessageRoleUser, Content: "What is a BST?"}
	require.NoError(t, c.AppendMessage(ctx, alice.ID, msg))
	require.NoError(t, c.AppendMessage(ctx, alice.ID, msg), "re-append of the same id is a no-op")

	err := c.AppendMessage(ctx, bob.ID, &models.ChatMessage{SessionID: sess.ID, Role: models.MessageRoleUser, Content: "x"})
	assert.ErrorIs(t, err, models.ErrForbidden)

	hidden, err := c.ListMessages(ctx, bob.ID, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	own, err := c.ListMessages(ctx, alice.ID, sess.ID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	assert.ErrorIs(t, c.DeleteSession(ctx, bob.ID, sess.ID), models.ErrForbidden)
	assert.ErrorIs(t, c.DeleteSession(ctx, bob.ID, uuid.NewString()), models.ErrNotFound)

	viaAdmin, err := c.ListMessages(ctx, admin.ID, sess.ID)
	require.NoError(t, err)
	assert.Len(t, viaAdmin, 1)

	require.NoError(t, c.DeleteSession(ctx, alice.ID, sess.ID))
	_, err = c.GetSession(ctx, alice.ID, sess.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@host/db", migrateURL("postgres://u:p@host/db"))
	assert.Equal(t, "pgx5://host/db", migrateURL("postgresql://host/db"))
	assert.Equal(t, "pgx5://host/db", migrateURL("pgx5://host/db"))
}
