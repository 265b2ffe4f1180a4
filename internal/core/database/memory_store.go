package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// MemoryStore is an in-process Store with the same visibility rules as the
// Postgres row-level security policies. Used with STORE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	now      func() time.Time
	profiles map[string]*models.Profile
	sessions map[string]*memSession
	messages map[string]*memMessage
	outbox   map[string]*models.OutboxRecord
}

type memSession struct {
	models.ChatSession
	seq int64
}

type memMessage struct {
	models.ChatMessage
	seq int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		profiles: make(map[string]*models.Profile),
		sessions: make(map[string]*memSession),
		messages: make(map[string]*memMessage),
		outbox:   make(map[string]*models.OutboxRecord),
	}
}

var _ core.Store = (*MemoryStore)(nil)

func (m *MemoryStore) nextSeq() int64 {
	m.seq++
	return m.seq
}

// isAdmin must be called with the lock held.
func (m *MemoryStore) isAdmin(callerID string) bool {
	p, ok := m.profiles[callerID]
	return ok && p.Role == models.RoleAdmin
}

// canManage mirrors the select/update/delete policies on chat_sessions.
func (m *MemoryStore) canManage(callerID string, s *memSession) bool {
	return callerID != "" && (s.UserID == callerID || m.isAdmin(callerID))
}

func (m *MemoryStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil || strings.TrimSpace(p.Email) == "" {
		return models.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return models.ErrConflict
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) GetProfile(ctx context.Context, callerID, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok || (id != callerID && !m.isAdmin(callerID)) {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListProfiles(ctx context.Context, callerID string) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admin := m.isAdmin(callerID)
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if admin || p.ID == callerID {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetRole changes a profile's role. It models an out-of-band change made by an operator.
func (m *MemoryStore) SetRole(id string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Role = role
	return nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, s *models.ChatSession) error {
	if s == nil || s.UserID == "" {
		return models.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Title == "" {
		s.Title = models.DefaultSessionTitle
	}
	s.CreatedAt = m.now()
	m.sessions[s.ID] = &memSession{ChatSession: *s, seq: m.nextSeq()}
	return nil
}

func (m *MemoryStore) GetSessionOwner(ctx context.Context, sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", models.ErrNotFound
	}
	return s.UserID, nil
}

func (m *MemoryStore) GetSession(ctx context.Context, callerID, sessionID string) (*models.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || !m.canManage(callerID, s) {
		return nil, models.ErrNotFound
	}
	cp := s.ChatSession
	return &cp, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, callerID string, limit int) ([]models.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visible := make([]*memSession, 0)
	for _, s := range m.sessions {
		if m.canManage(callerID, s) {
			visible = append(visible, s)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].seq > visible[j].seq
	})
	if limit > 0 && len(visible) > limit {
		visible = visible[:limit]
	}

	out := make([]models.ChatSession, 0, len(visible))
	for _, s := range visible {
		out = append(out, s.ChatSession)
	}
	return out, nil
}

func (m *MemoryStore) UpdateSessionTitle(ctx context.Context, callerID, sessionID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}
	if !m.canManage(callerID, s) {
		return models.ErrForbidden
	}
	s.Title = title
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, callerID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}
	if !m.canManage(callerID, s) {
		return models.ErrForbidden
	}
	delete(m.sessions, sessionID)
	for id, msg := range m.messages {
		if msg.SessionID == sessionID {
			delete(m.messages, id)
		}
	}
	for id, rec := range m.outbox {
		if rec.SessionID == sessionID {
			delete(m.outbox, id)
		}
	}
	return nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, callerID string, msg *models.ChatMessage) error {
	if msg == nil || !msg.Role.Valid() {
		return models.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[msg.SessionID]
	if !ok {
		return models.ErrNotFound
	}
	if callerID == "" || s.UserID != callerID {
		return models.ErrForbidden
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, exists := m.messages[msg.ID]; exists {
		return nil
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	m.messages[msg.ID] = &memMessage{ChatMessage: *msg, seq: m.nextSeq()}
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, callerID, sessionID string) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ChatMessage, 0)
	s, ok := m.sessions[sessionID]
	if !ok || !m.canManage(callerID, s) {
		return out, nil
	}

	rows := make([]*memMessage, 0)
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			rows = append(rows, msg)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	for _, r := range rows {
		out = append(out, r.ChatMessage)
	}
	return out, nil
}

func (m *MemoryStore) CountMessages(ctx context.Context, callerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.messages {
		if s, ok := m.sessions[msg.SessionID]; ok && m.canManage(callerID, s) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) EnqueueOutbox(ctx context.Context, rec *models.OutboxRecord) error {
	if rec == nil || rec.MessageID == "" {
		return models.ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	cp := *rec
	m.outbox[rec.ID] = &cp
	return nil
}

func (m *MemoryStore) PendingOutbox(ctx context.Context, maxAttempts, limit int) ([]models.OutboxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.OutboxRecord, 0)
	for _, rec := range m.outbox {
		if rec.ResolvedAt != nil {
			continue
		}
		if maxAttempts > 0 && rec.Attempts >= maxAttempts {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ResolveOutbox(ctx context.Context, id string, replayErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.outbox[id]
	if !ok {
		return models.ErrNotFound
	}
	rec.Attempts++
	if replayErr != nil {
		rec.LastError = replayErr.Error()
		return nil
	}
	now := m.now()
	rec.ResolvedAt = &now
	return nil
}

// OutboxRecords returns every outbox record, resolved or not.
func (m *MemoryStore) OutboxRecords() []models.OutboxRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.OutboxRecord, 0, len(m.outbox))
	for _, rec := range m.outbox {
		out = append(out, *rec)
	}
	return out
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
