package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

const minPasswordLen = 6

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// UserService is the local identity provider.
type UserService struct {
	store       core.Store
	tokens      TokenIssuer
	adminEmails []string
	logger      *slog.Logger
}

func NewUserService(store core.Store, tokens TokenIssuer, adminEmails []string, logger *slog.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, adminEmails: adminEmails, logger: logger}
}

// Signup creates a profile and returns a token for it. Emails listed in
// ADMIN_EMAILS receive the admin role.
func (s *UserService) Signup(ctx context.Context, email, password, fullName string) (*models.AuthResponse, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, models.Invalid("a valid email is required")
	}
	// ParseAddress accepts display names; only the bare address is stored.
	email = addr.Address
	if len(password) < minPasswordLen {
		return nil, models.Invalid("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, models.Invalid("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, err
	}

	p := &models.Profile{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		Role:         models.RoleUser,
		PasswordHash: string(hash),
	}
	if s.isAdminEmail(email) {
		p.Role = models.RoleAdmin
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("profile created", "user_id", p.ID, "role", p.Role)
	return s.respond(p)
}

// Login checks the password and returns a fresh token.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	p, err := s.store.GetProfileByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, models.ErrUnauthenticated
	}
	return s.respond(p)
}

// Me returns the caller's own profile, including the current role.
func (s *UserService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	p, err := s.store.GetProfile(ctx, userID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthenticated
	}
	return p, err
}

func (s *UserService) respond(p *models.Profile) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(p.ID, p.Email)
	if err != nil {
		return nil, err
	}
	out := *p
	out.PasswordHash = ""
	return &models.AuthResponse{Token: token, User: &out}, nil
}

func (s *UserService) isAdminEmail(email string) bool {
	for _, e := range s.adminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}
