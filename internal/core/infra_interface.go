package core

import (
	"context"
	"io"

	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// Store defines all persistence operations the services need.
// Caller-scoped methods take the acting user's id; implementations enforce
// session ownership themselves (row-level security on Postgres), independent
// of any check performed by the services.
type Store interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetProfile(ctx context.Context, callerID, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, callerID string) ([]models.Profile, error)

	CreateSession(ctx context.Context, s *models.ChatSession) error
	// GetSessionOwner resolves the owner without applying visibility rules, so
	// callers can tell a missing session from someone else's.
	GetSessionOwner(ctx context.Context, sessionID string) (string, error)
	GetSession(ctx context.Context, callerID, sessionID string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, callerID string, limit int) ([]models.ChatSession, error)
	UpdateSessionTitle(ctx context.Context, callerID, sessionID, title string) error
	DeleteSession(ctx context.Context, callerID, sessionID string) error

	AppendMessage(ctx context.Context, callerID string, m *models.ChatMessage) error
	ListMessages(ctx context.Context, callerID, sessionID string) ([]models.ChatMessage, error)
	CountMessages(ctx context.Context, callerID string) (int, error)

	EnqueueOutbox(ctx context.Context, rec *models.OutboxRecord) error
	PendingOutbox(ctx context.Context, maxAttempts, limit int) ([]models.OutboxRecord, error)
	ResolveOutbox(ctx context.Context, id string, replayErr error) error

	Ping(ctx context.Context) error
	Close() error
}

// LLMProvider turns an ordered prompt into a single completion.
type LLMProvider interface {
	Complete(ctx context.Context, messages []models.PromptMessage) (string, error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
}

// Authorizer decides whether a caller may perform an action on a resource owned by ownerID.
type Authorizer interface {
	Allow(ctx context.Context, caller models.Caller, action, ownerID string) (bool, error)
}
