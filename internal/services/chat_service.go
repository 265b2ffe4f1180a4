package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/core/prompt"
	"github.com/markdave123-py/dsa-galaxy/internal/metrics"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
	"github.com/markdave123-py/dsa-galaxy/internal/policy"
)

const msgRequired = "Message and sessionId are required"

// ChatOptions tunes the orchestrator.
type ChatOptions struct {
	// Provider labels completion latency metrics.
	Provider string
	// CompletionTimeout bounds the provider call. Zero means no bound.
	CompletionTimeout time.Duration
}

// ChatService runs one conversation turn end to end.
type ChatService struct {
	store   core.Store
	llm     core.LLMProvider
	authz   core.Authorizer
	metrics metrics.Recorder
	logger  *slog.Logger
	opts    ChatOptions
	now     func() time.Time
}

func NewChatService(store core.Store, llm core.LLMProvider, authz core.Authorizer, rec metrics.Recorder, logger *slog.Logger, opts ChatOptions) *ChatService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &ChatService{
		store:   store,
		llm:     llm,
		authz:   authz,
		metrics: rec,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// SubmitTurn sends the message to the completion provider with the instructor
// preamble and the client's history, stores the user message and the reply,
// and names the session after its first message.
//
// Storage failures after a successful completion do not fail the turn: they
// are logged, counted and queued in the outbox. A provider failure stores nothing.
func (s *ChatService) SubmitTurn(ctx context.Context, userID string, req models.ChatTurnRequest) (string, error) {
	if userID == "" {
		s.metrics.RecordTurn(metrics.TurnRejected)
		return "", models.ErrUnauthenticated
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.SessionID) == "" {
		s.metrics.RecordTurn(metrics.TurnRejected)
		return "", models.Invalid(msgRequired)
	}
	if !prompt.ValidHistory(req.ChatHistory) {
		s.metrics.RecordTurn(metrics.TurnRejected)
		return "", models.Invalid("chatHistory roles must be user or assistant")
	}

	owner, err := s.store.GetSessionOwner(ctx, req.SessionID)
	if err != nil {
		s.metrics.RecordTurn(metrics.TurnRejected)
		return "", err
	}
	if err := authorize(ctx, s.authz, models.Caller{ID: userID, Role: models.RoleUser}, policy.ActionSessionWrite, owner); err != nil {
		s.metrics.RecordTurn(metrics.TurnRejected)
		if errors.Is(err, models.ErrForbidden) {
			s.logger.Warn("turn rejected, caller does not own session", "user_id", userID, "session_id", req.SessionID)
		}
		return "", err
	}

	receivedAt := s.stamp()
	messages := prompt.Build(req.ChatHistory, req.Message)
	s.logger.Info("calling completion provider", "session_id", req.SessionID, "messages", len(messages))

	reply, err := s.complete(ctx, messages)
	if err != nil {
		s.metrics.RecordTurn(metrics.TurnUpstreamFail)
		s.logger.Error("completion failed", "session_id", req.SessionID, "error", err)
		return "", &models.UpstreamError{Err: err}
	}
	repliedAt := s.stamp()
	if !repliedAt.After(receivedAt) {
		repliedAt = receivedAt.Add(time.Microsecond)
	}
	s.logger.Info("completion received", "session_id", req.SessionID, "length", len(reply))

	// The client may hang up once the reply exists; the writes still happen.
	bg := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		s.persist(bg, userID, models.ChatMessage{
			ID: uuid.NewString(), SessionID: req.SessionID,
			Role: models.MessageRoleUser, Content: req.Message, CreatedAt: receivedAt,
		}, metrics.FailureUserMessage)
		s.persist(bg, userID, models.ChatMessage{
			ID: uuid.NewString(), SessionID: req.SessionID,
			Role: models.MessageRoleAssistant, Content: reply, CreatedAt: repliedAt,
		}, metrics.FailureAssistantMessage)
		return nil
	})
	if len(req.ChatHistory) == 0 {
		g.Go(func() error {
			if err := s.store.UpdateSessionTitle(bg, userID, req.SessionID, prompt.Title(req.Message)); err != nil {
				s.metrics.RecordPersistenceFailure(metrics.FailureTitle)
				s.logger.Warn("session title update failed", "session_id", req.SessionID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.RecordTurn(metrics.TurnOK)
	return reply, nil
}

func (s *ChatService) complete(ctx context.Context, messages []models.PromptMessage) (string, error) {
	if s.opts.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CompletionTimeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := s.llm.Complete(ctx, messages)
	s.metrics.RecordCompletionLatency(s.opts.Provider, time.Since(start))
	return reply, err
}

// persist appends msg and, on failure, records it for the outbox replayer.
func (s *ChatService) persist(ctx context.Context, userID string, msg models.ChatMessage, kind string) {
	err := s.store.AppendMessage(ctx, userID, &msg)
	if err == nil {
		return
	}
	s.metrics.RecordPersistenceFailure(kind)
	s.logger.Warn("message write failed, queued for replay",
		"session_id", msg.SessionID, "message_id", msg.ID, "role", msg.Role, "error", err)

	rec := &models.OutboxRecord{
		SessionID:        msg.SessionID,
		OwnerID:          userID,
		MessageID:        msg.ID,
		Role:             msg.Role,
		Content:          msg.Content,
		MessageCreatedAt: msg.CreatedAt,
		LastError:        err.Error(),
	}
	if oerr := s.store.EnqueueOutbox(ctx, rec); oerr != nil {
		s.metrics.RecordPersistenceFailure(metrics.FailureOutbox)
		s.logger.Error("outbox write failed, message lost",
			"session_id", msg.SessionID, "message_id", msg.ID, "role", msg.Role, "error", oerr)
	}
}

// stamp truncates to the precision Postgres keeps, so stored order matches assigned order.
func (s *ChatService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
