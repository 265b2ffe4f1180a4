package services

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
	"github.com/markdave123-py/dsa-galaxy/internal/policy"
)

// AdminService backs the admin view.
type AdminService struct {
	store         core.Store
	authz         core.Authorizer
	sessions      *SessionService
	sessionWindow int
}

func NewAdminService(store core.Store, authz core.Authorizer, sessions *SessionService, sessionWindow int) *AdminService {
	if sessionWindow <= 0 {
		sessionWindow = 50
	}
	return &AdminService{store: store, authz: authz, sessions: sessions, sessionWindow: sessionWindow}
}

// Authorize reports ErrForbidden unless userID currently holds the admin role.
func (s *AdminService) Authorize(ctx context.Context, userID string) error {
	caller, err := resolveCaller(ctx, s.store, userID)
	if err != nil {
		return err
	}
	return authorize(ctx, s.authz, caller, policy.ActionAdminView, "")
}

// Overview lists every profile (filtered by query on email or full name) and
// the most recent sessions with their owners' emails.
func (s *AdminService) Overview(ctx context.Context, userID, query string) (*models.AdminOverview, error) {
	if err := s.Authorize(ctx, userID); err != nil {
		return nil, err
	}

	var (
		profiles []models.Profile
		sessions []models.ChatSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.store.ListProfiles(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.store.ListSessions(gctx, userID, s.sessionWindow)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	emails := make(map[string]string, len(profiles))
	out := &models.AdminOverview{
		Users:    make([]models.Profile, 0, len(profiles)),
		Sessions: make([]models.AdminSession, 0, len(sessions)),
	}
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range profiles {
		emails[p.ID] = p.Email
		if p.IsAdmin() {
			out.AdminUsers++
		}
		if q == "" || strings.Contains(strings.ToLower(p.Email), q) || strings.Contains(strings.ToLower(p.FullName), q) {
			p.PasswordHash = ""
			out.Users = append(out.Users, p)
		}
	}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, models.AdminSession{ChatSession: sess, OwnerEmail: emails[sess.UserID]})
	}
	out.TotalUsers = len(profiles)
	out.TotalSessions = len(sessions)
	return out, nil
}

// DeleteSession removes any user's session.
func (s *AdminService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if err := s.Authorize(ctx, userID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, userID, sessionID)
}
