package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/app/apptest"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func newSignedIn(t *testing.T, h *apptest.Harness, email string) (*Client, *models.Profile) {
	t.Helper()
	c := New(h.Server.URL, WithHTTPClient(h.Server.Client()))
	res, err := c.Signup(context.Background(), email, "hunter22", "")
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c, res.User
}

func TestClient_RoundTrip(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	c, me := newSignedIn(t, h, "alice@example.com")

	got, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, me.ID, got.ID)

	sess, err := c.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSessionTitle, sess.Title)

	reply, err := c.SubmitTurn(ctx, models.ChatTurnRequest{Message: "Explain Binary Search Trees", SessionID: sess.ID})
	require.NoError(t, err)

	msgs, err := c.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, reply, msgs[1].Content)

	list, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Explain Binary Search Trees", list[0].Title)

	renamed, err := c.RenameSession(ctx, sess.ID, "BSTs")
	require.NoError(t, err)
	assert.Equal(t, "BSTs", renamed.Title)

	stats, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)

	require.NoError(t, c.DeleteSession(ctx, sess.ID))
	_, err = c.ListMessages(ctx, sess.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestClient_ErrorMapping(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	alice, _ := newSignedIn(t, h, "alice@example.com")
	bob, _ := newSignedIn(t, h, "bob@example.com")
	sess, err := alice.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = alice.SubmitTurn(ctx, models.ChatTurnRequest{SessionID: sess.ID})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.EqualError(t, err, "Message and sessionId are required")

	err = bob.DeleteSession(ctx, sess.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = New(h.Server.URL).ListSessions(ctx)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = alice.Export(ctx, sess.ID, "markdown")
	assert.ErrorIs(t, err, models.ErrExportDisabled)

	_, err = alice.AdminOverview(ctx, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Unauthorized: Admin access required", apiErr.Message)

	_, err = alice.Signup(ctx, "alice@example.com", "hunter22", "")
	assert.ErrorIs(t, err, models.ErrConflict)

	h.LLM.Err = errors.New("AI Gateway error: 500")
	_, err = alice.SubmitTurn(ctx, models.ChatTurnRequest{Message: "hi", SessionID: sess.ID})
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.EqualError(t, err, "AI Gateway error: 500")
}

func TestClient_AdminCalls(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	alice, _ := newSignedIn(t, h, "alice@example.com")
	root, _ := newSignedIn(t, h, apptest.AdminEmail)
	sess, err := alice.CreateSession(ctx, "Heaps")
	require.NoError(t, err)

	ov, err := root.AdminOverview(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ov.Users, 1)
	assert.Equal(t, 1, ov.TotalSessions)

	require.NoError(t, root.AdminDeleteSession(ctx, sess.ID))
	list, err := alice.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithToken("t")).SubmitTurn(context.Background(), models.ChatTurnRequest{Message: "hi", SessionID: "s"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.EqualError(t, err, "Too many requests")
}

func TestAPIError_InternalIsNotUpstream(t *testing.T) {
	err := &APIError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	assert.False(t, errors.Is(err, models.ErrUpstream))
	assert.True(t, errors.Is(&APIError{Status: 500, Message: "AI Gateway error: 502"}, models.ErrUpstream))
	assert.Equal(t, "api error: 502", (&APIError{Status: 502}).Error())
}
