package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// Page is a screen of the conversation UI.
type Page string

const (
	PageChat      Page = "chat"
	PageHistory   Page = "history"
	PageDashboard Page = "dashboard"
	PageAdmin     Page = "admin"
)

func (p Page) valid() bool {
	switch p {
	case PageChat, PageHistory, PageDashboard, PageAdmin:
		return true
	}
	return false
}

const (
	noticeSendFailed   = "Failed to get AI response"
	noticeAdminOnly    = "Unauthorized: Admin access required"
	noticeChatDeleted  = "Chat deleted"
	noticeDeleteFailed = "Failed to delete chat"
	noticeCreateFailed = "Failed to create chat"

	sessionTitleLimit = 50
)

var (
	ErrBusy          = errors.New("a message is already being sent")
	ErrAdminRequired = errors.New("admin access required")
	ErrNoIdentity    = errors.New("not signed in")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrUnknownPage   = errors.New("unknown page")
)

// API is the part of the HTTP API the controller drives. *Client satisfies it.
type API interface {
	CreateSession(ctx context.Context, title string) (*models.ChatSession, error)
	ListSessions(ctx context.Context) ([]models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SubmitTurn(ctx context.Context, req models.ChatTurnRequest) (string, error)
}

// Identity is the signed-in user as the UI last saw it.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

type NoticeLevel string

const (
	NoticeError   NoticeLevel = "error"
	NoticeSuccess NoticeLevel = "success"
)

// Notice is a message for the user, the equivalent of a toast.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// State is a snapshot of what the UI shows.
type State struct {
	Identity        *Identity
	Page            Page
	Sessions        []models.ChatSession
	ActiveSessionID string
	Messages        []models.ChatMessage
	Busy            bool
}

// Controller keeps the local view of sessions and messages in step with the
// server. Mutations never patch the cache from a response body: they mark the
// affected caches stale and re-read them from the API.
//
// The mutex guards state only and is never held across a network call.
type Controller struct {
	api    API
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	identity      *Identity
	page          Page
	sessions      []models.ChatSession
	sessionsStale bool
	active        string
	messages      []models.ChatMessage
	messagesStale bool
	busy          bool
	notices       []Notice
}

func NewController(api API, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:           api,
		logger:        logger,
		now:           time.Now,
		page:          PageChat,
		sessionsStale: true,
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	var id *Identity
	if c.identity != nil {
		cp := *c.identity
		id = &cp
	}
	return State{
		Identity:        id,
		Page:            c.page,
		Sessions:        append([]models.ChatSession(nil), c.sessions...),
		ActiveSessionID: c.active,
		Messages:        append([]models.ChatMessage(nil), c.messages...),
		Busy:            c.busy,
	}
}

// TakeNotices returns pending notices and clears them.
func (c *Controller) TakeNotices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	return out
}

func (c *Controller) notifyLocked(level NoticeLevel, text string) {
	c.notices = append(c.notices, Notice{Level: level, Text: text})
}

// SetIdentity records a (possibly changed) identity and re-applies the page
// guard: an admin page held by someone who is no longer an admin falls back
// to chat. A nil identity signs out and drops every cache.
func (c *Controller) SetIdentity(id *Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == nil {
		c.identity = nil
		c.sessions, c.messages, c.active = nil, nil, ""
		c.sessionsStale, c.messagesStale = true, false
		c.page = PageChat
		return
	}
	cp := *id
	if c.identity != nil && c.identity.UserID != cp.UserID {
		c.sessions, c.messages, c.active = nil, nil, ""
		c.sessionsStale = true
	}
	c.identity = &cp
	c.guardPageLocked()
}

func (c *Controller) guardPageLocked() {
	if c.page == PageAdmin && !c.identity.IsAdmin() {
		c.page = PageChat
		c.notifyLocked(NoticeError, noticeAdminOnly)
	}
}

// WatchIdentity polls fetch every interval and feeds the result to
// SetIdentity until ctx is done. Fetch errors are logged and skipped.
func (c *Controller) WatchIdentity(ctx context.Context, interval time.Duration, fetch func(context.Context) (*Identity, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id, err := fetch(ctx)
			if err != nil {
				c.logger.Warn("identity refresh failed", "error", err)
				continue
			}
			c.SetIdentity(id)
		}
	}
}

// Navigate switches pages. Non-admins are kept off the admin page; the server
// enforces the same rule on every admin request.
func (c *Controller) Navigate(page Page) error {
	if !page.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPage, page)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if page == PageAdmin && !c.identity.IsAdmin() {
		c.notifyLocked(NoticeError, noticeAdminOnly)
		return ErrAdminRequired
	}
	c.page = page
	return nil
}

// Refresh loads the session list if it is stale.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.revalidate(ctx)
}

// NewChat creates an empty session and makes it active.
func (c *Controller) NewChat(ctx context.Context) (*models.ChatSession, error) {
	if err := c.requireIdentity(); err != nil {
		return nil, err
	}
	sess, err := c.api.CreateSession(ctx, "")
	if err != nil {
		c.mu.Lock()
		c.notifyLocked(NoticeError, noticeCreateFailed)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.active = sess.ID
	c.messages = nil
	c.messagesStale = false
	c.sessionsStale = true
	c.page = PageChat
	c.mu.Unlock()

	return sess, c.revalidate(ctx)
}

// SelectSession makes id the active session and loads its transcript.
func (c *Controller) SelectSession(ctx context.Context, id string) error {
	c.mu.Lock()
	c.active = id
	c.messages = nil
	c.messagesStale = true
	c.page = PageChat
	c.mu.Unlock()
	return c.revalidate(ctx)
}

// DeleteSession removes a session and re-reads the list.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	if err := c.api.DeleteSession(ctx, id); err != nil {
		c.mu.Lock()
		c.notifyLocked(NoticeError, noticeDeleteFailed)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.active == id {
		c.active = ""
		c.messages = nil
		c.messagesStale = false
	}
	c.sessionsStale = true
	c.notifyLocked(NoticeSuccess, noticeChatDeleted)
	c.mu.Unlock()

	return c.revalidate(ctx)
}

// SendMessage runs one turn. The user's text shows up at once as a pending
// message; once the server answers, the transcript and session list are
// re-read so both stored messages and the new title appear. On failure the
// pending message is withdrawn and a notice is raised. Only one send may be
// in flight.
func (c *Controller) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNoIdentity
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	sessionID := c.active
	stale := c.messagesStale
	history := promptHistory(c.messages)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	// A stale transcript would go out as a short history, and an empty one
	// would be taken for a first turn and rename the session.
	if sessionID != "" && stale {
		msgs, err := c.loadMessages(ctx, sessionID)
		if err != nil {
			c.mu.Lock()
			c.notifyLocked(NoticeError, noticeSendFailed)
			c.mu.Unlock()
			return err
		}
		history = promptHistory(msgs)
	}

	if sessionID == "" {
		sess, err := c.api.CreateSession(ctx, firstRunes(content, sessionTitleLimit))
		if err != nil {
			c.mu.Lock()
			c.notifyLocked(NoticeError, noticeCreateFailed)
			c.mu.Unlock()
			return err
		}
		sessionID = sess.ID
		history = nil

		c.mu.Lock()
		c.sessionsStale = true
		c.active = sessionID
		c.messages = nil
		c.messagesStale = false
		c.mu.Unlock()
	}

	now := c.now()
	pending := models.ChatMessage{
		ID:        fmt.Sprintf("temp-%d", now.UnixNano()),
		SessionID: sessionID,
		Role:      models.MessageRoleUser,
		Content:   content,
		CreatedAt: now,
	}
	c.mu.Lock()
	c.messages = append(c.messages, pending)
	c.mu.Unlock()

	_, err := c.api.SubmitTurn(ctx, models.ChatTurnRequest{
		Message:     content,
		SessionID:   sessionID,
		ChatHistory: history,
	})

	c.mu.Lock()
	c.messages = without(c.messages, pending.ID)
	if err != nil {
		c.notifyLocked(NoticeError, noticeSendFailed)
		c.mu.Unlock()
		c.logger.Warn("send failed", "session_id", sessionID, "error", err)
		// A session created for this send still belongs in the list.
		if rerr := c.revalidate(ctx); rerr != nil {
			c.logger.Warn("refresh after failed send", "error", rerr)
		}
		return err
	}
	c.messagesStale = true
	c.sessionsStale = true
	c.mu.Unlock()

	return c.revalidate(ctx)
}

func (c *Controller) requireIdentity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return ErrNoIdentity
	}
	return nil
}

// revalidate re-reads every stale cache. Results for a session that is no
// longer active are discarded.
func (c *Controller) revalidate(ctx context.Context) error {
	c.mu.Lock()
	needSessions := c.sessionsStale
	needMessages := c.messagesStale && c.active != ""
	active := c.active
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	if needSessions {
		g.Go(func() error {
			list, err := c.api.ListSessions(gctx)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			c.mu.Lock()
			c.sessions = list
			c.sessionsStale = false
			c.mu.Unlock()
			return nil
		})
	}
	if needMessages {
		g.Go(func() error {
			_, err := c.loadMessages(gctx, active)
			return err
		})
	}
	return g.Wait()
}

// loadMessages fetches a transcript and caches it if sessionID is still active.
func (c *Controller) loadMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	msgs, err := c.api.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	c.mu.Lock()
	if c.active == sessionID {
		c.messages = msgs
		c.messagesStale = false
	}
	c.mu.Unlock()
	return msgs, nil
}

func promptHistory(msgs []models.ChatMessage) []models.PromptMessage {
	out := make([]models.PromptMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.HasPrefix(m.ID, "temp-") {
			continue
		}
		out = append(out, models.PromptMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func without(msgs []models.ChatMessage, id string) []models.ChatMessage {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
