package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/app/apptest"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func newController(t *testing.T, h *apptest.Harness, email string) (*Controller, *Client) {
	t.Helper()
	c, me := newSignedIn(t, h, email)
	ctl := NewController(c, logger.Discard())
	ctl.SetIdentity(&Identity{UserID: me.ID, Email: me.Email, Role: me.Role})
	return ctl, c
}

func TestController_SendMessageCreatesSessionAndRefetches(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, _ := newController(t, h, "alice@example.com")
	h.LLM.Reply = func([]models.PromptMessage) string { return "A BST is ordered." }

	require.NoError(t, ctl.SendMessage(ctx, "Explain Binary Search Trees"))

	st := ctl.State()
	assert.False(t, st.Busy)
	require.NotEmpty(t, st.ActiveSessionID)
	require.Len(t, st.Messages, 2)
	for _, m := range st.Messages {
		assert.NotContains(t, m.ID, "temp-")
	}
	assert.Equal(t, "A BST is ordered.", st.Messages[1].Content)
	require.Len(t, st.Sessions, 1)
	assert.Equal(t, "Explain Binary Search Trees", st.Sessions[0].Title)
	assert.Empty(t, ctl.TakeNotices())
}

func TestController_SecondTurnSendsHistory(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, _ := newController(t, h, "alice@example.com")

	require.NoError(t, ctl.SendMessage(ctx, "What is a heap?"))
	require.NoError(t, ctl.SendMessage(ctx, "And heapify?"))

	calls := h.LLM.Calls()
	require.Len(t, calls, 2)
	// system + two history entries + the new message
	require.Len(t, calls[1], 4)
	assert.Equal(t, "What is a heap?", calls[1][1].Content)
	assert.Equal(t, models.MessageRoleAssistant, calls[1][2].Role)

	st := ctl.State()
	assert.Len(t, st.Messages, 4)
	assert.Equal(t, "What is a heap?", st.Sessions[0].Title)
}

func TestController_UpstreamFailureRollsBack(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, _ := newController(t, h, "alice@example.com")
	sess, err := ctl.NewChat(ctx)
	require.NoError(t, err)

	h.LLM.Err = errors.New("AI Gateway error: 500")
	err = ctl.SendMessage(ctx, "Explain DP")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)

	st := ctl.State()
	assert.False(t, st.Busy)
	assert.Empty(t, st.Messages)
	assert.Equal(t, sess.ID, st.ActiveSessionID)
	assert.Equal(t, models.DefaultSessionTitle, st.Sessions[0].Title)
	assert.Equal(t, []Notice{{Level: NoticeError, Text: "Failed to get AI response"}}, ctl.TakeNotices())
}

func TestController_SelectAndDelete(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, _ := newController(t, h, "alice@example.com")

	require.NoError(t, ctl.SendMessage(ctx, "First topic"))
	first := ctl.State().ActiveSessionID
	_, err := ctl.NewChat(ctx)
	require.NoError(t, err)
	require.NoError(t, ctl.Navigate(PageHistory))

	require.NoError(t, ctl.SelectSession(ctx, first))
	st := ctl.State()
	assert.Equal(t, PageChat, st.Page)
	assert.Len(t, st.Messages, 2)
	assert.Len(t, st.Sessions, 2)

	require.NoError(t, ctl.DeleteSession(ctx, first))
	st = ctl.State()
	assert.Empty(t, st.ActiveSessionID)
	assert.Empty(t, st.Messages)
	assert.Len(t, st.Sessions, 1)
	assert.Equal(t, []Notice{{Level: NoticeSuccess, Text: "Chat deleted"}}, ctl.TakeNotices())
}

func TestController_DeleteForeignSessionFails(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	alice, _ := newController(t, h, "alice@example.com")
	bob, _ := newController(t, h, "bob@example.com")

	require.NoError(t, alice.SendMessage(ctx, "Sorting"))
	id := alice.State().ActiveSessionID

	err := bob.DeleteSession(ctx, id)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, []Notice{{Level: NoticeError, Text: "Failed to delete chat"}}, bob.TakeNotices())

	require.NoError(t, alice.SelectSession(ctx, id))
	assert.Len(t, alice.State().Messages, 2)
}

func TestController_RequiresIdentity(t *testing.T) {
	ctl := NewController(&scriptedAPI{}, logger.Discard())
	assert.ErrorIs(t, ctl.SendMessage(context.Background(), "hi"), ErrNoIdentity)
	_, err := ctl.NewChat(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.ErrorIs(t, ctl.SendMessage(context.Background(), "  "), ErrEmptyMessage)
}

// scriptedAPI is an in-process API whose SubmitTurn can be held open.
type scriptedAPI struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	turns   int
}

func (s *scriptedAPI) CreateSession(ctx context.Context, title string) (*models.ChatSession, error) {
	return &models.ChatSession{ID: "s1", Title: title}, nil
}

func (s *scriptedAPI) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	return []models.ChatSession{{ID: "s1", Title: "t"}}, nil
}

func (s *scriptedAPI) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	return nil, nil
}

func (s *scriptedAPI) DeleteSession(ctx context.Context, sessionID string) error { return nil }

func (s *scriptedAPI) SubmitTurn(ctx context.Context, req models.ChatTurnRequest) (string, error) {
	s.mu.Lock()
	s.turns++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	return "ok", nil
}

func TestController_BusyRejectsSecondSend(t *testing.T) {
	api := &scriptedAPI{started: make(chan struct{}), release: make(chan struct{})}
	ctl := NewController(api, logger.Discard())
	ctl.SetIdentity(&Identity{UserID: "u1"})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	ctl.now = func() time.Time { return fixed }

	done := make(chan error, 1)
	go func() { done <- ctl.SendMessage(context.Background(), "first") }()
	<-api.started

	st := ctl.State()
	assert.True(t, st.Busy)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "temp-1767323045000000006", st.Messages[0].ID)
	assert.Equal(t, "s1", st.ActiveSessionID)
	assert.Empty(t, st.Sessions, "the created session is listed only after a refetch")

	assert.ErrorIs(t, ctl.SendMessage(context.Background(), "second"), ErrBusy)

	close(api.release)
	require.NoError(t, <-done)
	st = ctl.State()
	assert.False(t, st.Busy)
	assert.Equal(t, 1, api.turns)
	assert.Equal(t, []models.ChatSession{{ID: "s1", Title: "t"}}, st.Sessions)
}

// flakyAPI fails the next ListMessages calls, then defers to the real client.
type flakyAPI struct {
	*Client
	mu           sync.Mutex
	listFailures int
}

func (f *flakyAPI) failListMessages(n int) {
	f.mu.Lock()
	f.listFailures = n
	f.mu.Unlock()
}

func (f *flakyAPI) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	f.mu.Lock()
	if f.listFailures > 0 {
		f.listFailures--
		f.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Client.ListMessages(ctx, sessionID)
}

func newFlakyController(t *testing.T, h *apptest.Harness) (*Controller, *flakyAPI) {
	t.Helper()
	c, me := newSignedIn(t, h, "alice@example.com")
	api := &flakyAPI{Client: c}
	ctl := NewController(api, logger.Discard())
	ctl.SetIdentity(&Identity{UserID: me.ID, Email: me.Email, Role: me.Role})
	return ctl, api
}

func TestController_StaleTranscriptIsReloadedBeforeSend(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, api := newFlakyController(t, h)

	require.NoError(t, ctl.SendMessage(ctx, "Explain Binary Search Trees"))
	id := ctl.State().ActiveSessionID

	api.failListMessages(1)
	require.Error(t, ctl.SelectSession(ctx, id))
	assert.Empty(t, ctl.State().Messages)

	require.NoError(t, ctl.SendMessage(ctx, "And AVL trees?"))

	calls := h.LLM.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[1], 4, "system, the stored exchange, the new message")
	assert.Equal(t, "Explain Binary Search Trees", calls[1][1].Content)

	st := ctl.State()
	require.Len(t, st.Sessions, 1)
	assert.Equal(t, "Explain Binary Search Trees", st.Sessions[0].Title)
	assert.Len(t, st.Messages, 4)
}

func TestController_FailedRefetchDoesNotShortenNextPrompt(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, api := newFlakyController(t, h)

	require.NoError(t, ctl.SendMessage(ctx, "What is a graph?"))

	api.failListMessages(1)
	assert.Error(t, ctl.SendMessage(ctx, "And a tree?"), "the turn is stored but the refetch failed")

	require.NoError(t, ctl.SendMessage(ctx, "And a forest?"))
	calls := h.LLM.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[2], 6)
	assert.Equal(t, "And a tree?", calls[2][3].Content)
}

func TestController_SendFailsWhenTranscriptCannotBeLoaded(t *testing.T) {
	h := apptest.New(t, apptest.Options{})
	ctx := context.Background()
	ctl, api := newFlakyController(t, h)

	require.NoError(t, ctl.SendMessage(ctx, "Explain heaps"))
	id := ctl.State().ActiveSessionID
	ctl.TakeNotices()

	api.failListMessages(2)
	require.Error(t, ctl.SelectSession(ctx, id))
	require.Error(t, ctl.SendMessage(ctx, "And heapsort?"))

	assert.Len(t, h.LLM.Calls(), 1, "nothing is sent on a history that could not be loaded")
	st := ctl.State()
	assert.False(t, st.Busy)
	assert.Empty(t, st.Messages)
	assert.Equal(t, []Notice{{Level: NoticeError, Text: "Failed to get AI response"}}, ctl.TakeNotices())
}

func TestController_Navigate(t *testing.T) {
	ctl := NewController(&scriptedAPI{}, logger.Discard())
	ctl.SetIdentity(&Identity{UserID: "u1", Role: models.RoleUser})

	assert.ErrorIs(t, ctl.Navigate(PageAdmin), ErrAdminRequired)
	assert.Equal(t, PageChat, ctl.State().Page)
	assert.Equal(t, []Notice{{Level: NoticeError, Text: "Unauthorized: Admin access required"}}, ctl.TakeNotices())

	assert.ErrorIs(t, ctl.Navigate(Page("settings")), ErrUnknownPage)
	require.NoError(t, ctl.Navigate(PageDashboard))
	assert.Equal(t, PageDashboard, ctl.State().Page)
}

func TestController_RoleLossRedirectsFromAdmin(t *testing.T) {
	ctl := NewController(&scriptedAPI{}, logger.Discard())
	ctl.SetIdentity(&Identity{UserID: "u1", Role: models.RoleAdmin})
	require.NoError(t, ctl.Navigate(PageAdmin))
	assert.Empty(t, ctl.TakeNotices())

	ctl.SetIdentity(&Identity{UserID: "u1", Role: models.RoleUser})
	assert.Equal(t, PageChat, ctl.State().Page)
	assert.Equal(t, []Notice{{Level: NoticeError, Text: "Unauthorized: Admin access required"}}, ctl.TakeNotices())
}

func TestController_WatchIdentity(t *testing.T) {
	ctl := NewController(&scriptedAPI{}, logger.Discard())
	ctl.SetIdentity(&Identity{UserID: "u1", Role: models.RoleAdmin})
	require.NoError(t, ctl.Navigate(PageAdmin))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctl.WatchIdentity(ctx, 5*time.Millisecond, func(context.Context) (*Identity, error) {
		return &Identity{UserID: "u1", Role: models.RoleUser}, nil
	})

	assert.Eventually(t, func() bool { return ctl.State().Page == PageChat }, time.Second, 5*time.Millisecond)
}
