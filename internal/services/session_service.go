package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
	"github.com/markdave123-py/dsa-galaxy/internal/policy"
)

type SessionService struct {
	store  core.Store
	authz  core.Authorizer
	logger *slog.Logger
}

func NewSessionService(store core.Store, authz core.Authorizer, logger *slog.Logger) *SessionService {
	return &SessionService{store: store, authz: authz, logger: logger}
}

// Create opens a session owned by userID. A blank title becomes "New Chat".
func (s *SessionService) Create(ctx context.Context, userID, title string) (*models.ChatSession, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	sess := &models.ChatSession{UserID: userID, Title: strings.TrimSpace(title)}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

// List returns the sessions visible to userID, newest first.
func (s *SessionService) List(ctx context.Context, userID string) ([]models.ChatSession, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.store.ListSessions(ctx, userID, 0)
}

// Messages returns a session's transcript, oldest first.
func (s *SessionService) Messages(ctx context.Context, userID, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.check(ctx, userID, sessionID, policy.ActionSessionRead); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, userID, sessionID)
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	if _, err := s.check(ctx, userID, sessionID, policy.ActionSessionRead); err != nil {
		return nil, err
	}
	return s.store.GetSession(ctx, userID, sessionID)
}

func (s *SessionService) Rename(ctx context.Context, userID, sessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Invalid("title is required")
	}
	if _, err := s.check(ctx, userID, sessionID, policy.ActionSessionUpdate); err != nil {
		return err
	}
	return s.store.UpdateSessionTitle(ctx, userID, sessionID, title)
}

// Delete removes a session and its messages. Owners and admins only.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	caller, err := s.check(ctx, userID, sessionID, policy.ActionSessionDelete)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, userID, sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", "session_id", sessionID, "user_id", userID, "role", caller.Role)
	return nil
}

// Dashboard summarises the caller's visible activity.
func (s *SessionService) Dashboard(ctx context.Context, userID string) (*models.DashboardStats, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	sessions, err := s.store.ListSessions(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.NewDashboardStats(len(sessions), total), nil
}

// check resolves the caller and asks the policy about action on sessionID.
func (s *SessionService) check(ctx context.Context, userID, sessionID, action string) (models.Caller, error) {
	caller, err := resolveCaller(ctx, s.store, userID)
	if err != nil {
		return models.Caller{}, err
	}
	owner, err := s.store.GetSessionOwner(ctx, sessionID)
	if err != nil {
		return models.Caller{}, err
	}
	if err := authorize(ctx, s.authz, caller, action, owner); err != nil {
		return models.Caller{}, err
	}
	return caller, nil
}
