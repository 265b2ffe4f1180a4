package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	db "github.com/markdave123-py/dsa-galaxy/internal/core/database"
	"github.com/markdave123-py/dsa-galaxy/internal/core/llm"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
	"github.com/markdave123-py/dsa-galaxy/internal/policy"
)

type testEnv struct {
	store    *db.MemoryStore
	llm      *llm.MockLLM
	engine   *policy.Engine
	chat     *ChatService
	sessions *SessionService
	admin    *AdminService

	alice *models.Profile
	bob   *models.Profile
	root  *models.Profile
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	mem := db.NewMemoryStore()

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	env := &testEnv{store: mem, llm: llm.NewMockLLM(), engine: engine}
	log := logger.Discard()
	env.sessions = NewSessionService(mem, engine, log)
	env.admin = NewAdminService(mem, engine, env.sessions, 50)
	env.chat = NewChatService(mem, env.llm, engine, nil, log, ChatOptions{Provider: "mock"})

	env.alice = env.profile(t, "alice@example.com", "Alice Liddell", models.RoleUser)
	env.bob = env.profile(t, "bob@example.com", "Bob Builder", models.RoleUser)
	env.root = env.profile(t, "root@example.com", "Root", models.RoleAdmin)
	return env
}

func (e *testEnv) profile(t *testing.T, email, name string, role models.Role) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, FullName: name, Role: role}
	require.NoError(t, e.store.CreateProfile(context.Background(), p))
	return p
}

func (e *testEnv) session(t *testing.T, owner *models.Profile, title string) *models.ChatSession {
	t.Helper()
	s, err := e.sessions.Create(context.Background(), owner.ID, title)
	require.NoError(t, err)
	return s
}

func (e *testEnv) messages(t *testing.T, owner *models.Profile, sessionID string) []models.ChatMessage {
	t.Helper()
	msgs, err := e.store.ListMessages(context.Background(), owner.ID, sessionID)
	require.NoError(t, err)
	return msgs
}

// failingStore wraps the memory store and fails selected message writes.
type failingStore struct {
	*db.MemoryStore
	mu        sync.Mutex
	failRoles map[models.MessageRole]bool
	failTitle bool
}

func (f *failingStore) AppendMessage(ctx context.Context, callerID string, m *models.ChatMessage) error {
	f.mu.Lock()
	fail := f.failRoles[m.Role]
	f.mu.Unlock()
	if fail {
		return io.ErrUnexpectedEOF
	}
	return f.MemoryStore.AppendMessage(ctx, callerID, m)
}

func (f *failingStore) UpdateSessionTitle(ctx context.Context, callerID, sessionID, title string) error {
	if f.failTitle {
		return io.ErrUnexpectedEOF
	}
	return f.MemoryStore.UpdateSessionTitle(ctx, callerID, sessionID, title)
}

// memUploader records uploads in memory.
type memUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemUploader() *memUploader {
	return &memUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (u *memUploader) UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = b
	u.types[key] = contentType
	return "https://bucket.example/" + key, nil
}
