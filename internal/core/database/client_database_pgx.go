package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/dsa-galaxy/internal/config"
	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// callerRole is the NOLOGIN role every caller-scoped transaction switches to.
// Row-level security policies apply to it; the connecting role owns the tables.
const callerRole = "galaxy_authenticated"

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInsufficientPriv    = "42501"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.Store = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if cfg.RunMigrations {
		if err := Migrate(cfg.DatabaseURL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// asCaller runs fn in a transaction bound to callerID, so the row-level
// security policies see app_current_user() = callerID.
func (c *DatabaseClient) asCaller(ctx context.Context, callerID string, fn func(tx *sql.Tx) error) error {
	if !validID(callerID) {
		return models.ErrUnauthenticated
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_user_id', $1, true)`, callerID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("bind caller: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+callerRole); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("switch role: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// mapPgError translates constraint and policy violations into domain errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return models.ErrConflict
	case pgForeignKeyViolation:
		return models.ErrNotFound
	case pgCheckViolation:
		return models.ErrValidation
	case pgInsufficientPriv:
		return models.ErrForbidden
	}
	return err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Profiles

func (c *DatabaseClient) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil || p.Email == "" {
		return models.ErrValidation
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	const q = `
		INSERT INTO profiles (id, email, full_name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING created_at
	`
	err := c.db.QueryRowContext(ctx, q,
		p.ID, p.Email, p.FullName, p.Role, p.PasswordHash, nullTime(p.CreatedAt),
	).Scan(&p.CreatedAt)
	return mapPgError(err)
}

func (c *DatabaseClient) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	const q = `
		SELECT id, email, full_name, role, password_hash, created_at
		FROM profiles WHERE lower(email) = lower($1)
	`
	var p models.Profile
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&p.ID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *DatabaseClient) GetProfile(ctx context.Context, callerID, id string) (*models.Profile, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	const q = `
		SELECT id, email, full_name, role, created_at
		FROM profiles WHERE id = $1
	`
	var p models.Profile
	err := c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *DatabaseClient) ListProfiles(ctx context.Context, callerID string) ([]models.Profile, error) {
	const q = `
		SELECT id, email, full_name, role, created_at
		FROM profiles
		ORDER BY created_at DESC
	`
	out := make([]models.Profile, 0)
	err := c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p models.Profile
			if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sessions

func (c *DatabaseClient) CreateSession(ctx context.Context, s *models.ChatSession) error {
	if s == nil || s.UserID == "" {
		return models.ErrValidation
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Title == "" {
		s.Title = models.DefaultSessionTitle
	}
	const q = `
		INSERT INTO chat_sessions (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := c.asCaller(ctx, s.UserID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, q, s.ID, s.UserID, s.Title).Scan(&s.CreatedAt)
	})
	return mapPgError(err)
}

func (c *DatabaseClient) GetSessionOwner(ctx context.Context, sessionID string) (string, error) {
	if !validID(sessionID) {
		return "", models.ErrNotFound
	}
	var owner string
	err := c.db.QueryRowContext(ctx, `SELECT user_id FROM chat_sessions WHERE id = $1`, sessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrNotFound
	}
	return owner, err
}

func (c *DatabaseClient) GetSession(ctx context.Context, callerID, sessionID string) (*models.ChatSession, error) {
	if !validID(sessionID) {
		return nil, models.ErrNotFound
	}
	const q = `
		SELECT id, user_id, title, created_at
		FROM chat_sessions WHERE id = $1
	`
	var s models.ChatSession
	err := c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, q, sessionID).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) ListSessions(ctx context.Context, callerID string, limit int) ([]models.ChatSession, error) {
	const q = `
		SELECT id, user_id, title, created_at
		FROM chat_sessions
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($1::int, 0)
	`
	if limit < 0 {
		limit = 0
	}
	out := make([]models.ChatSession, 0)
	err := c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, q, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s models.ChatSession
			if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutateSession runs a write statement against a single session. A session
// that exists but is filtered out by the policies is reported as forbidden.
func (c *DatabaseClient) mutateSession(ctx context.Context, callerID, sessionID, q string, args ...any) error {
	if !validID(sessionID) {
		return models.ErrNotFound
	}
	return c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		var owner sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT session_owner($1)`, sessionID).Scan(&owner); err != nil {
			return err
		}
		if !owner.Valid {
			return models.ErrNotFound
		}
		res, err := tx.ExecContext(ctx, q, append([]any{sessionID}, args...)...)
		if err != nil {
			return mapPgError(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrForbidden
		}
		return nil
	})
}

func (c *DatabaseClient) UpdateSessionTitle(ctx context.Context, callerID, sessionID, title string) error {
	return c.mutateSession(ctx, callerID, sessionID,
		`UPDATE chat_sessions SET title = $2 WHERE id = $1`, title)
}

func (c *DatabaseClient) DeleteSession(ctx context.Context, callerID, sessionID string) error {
	return c.mutateSession(ctx, callerID, sessionID,
		`DELETE FROM chat_sessions WHERE id = $1`)
}

// Messages

// AppendMessage inserts a message. Re-inserting an existing id is a no-op,
// which makes outbox replays safe.
func (c *DatabaseClient) AppendMessage(ctx context.Context, callerID string, m *models.ChatMessage) error {
	if m == nil || !m.Role.Valid() {
		return models.ErrValidation
	}
	if !validID(m.SessionID) {
		return models.ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (id) DO NOTHING
	`
	return c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		var owner sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT session_owner($1)`, m.SessionID).Scan(&owner); err != nil {
			return err
		}
		if !owner.Valid {
			return models.ErrNotFound
		}
		if owner.String != callerID {
			return models.ErrForbidden
		}
		_, err := tx.ExecContext(ctx, q, m.ID, m.SessionID, m.Role, m.Content, nullTime(m.CreatedAt))
		return mapPgError(err)
	})
}

func (c *DatabaseClient) ListMessages(ctx context.Context, callerID, sessionID string) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0)
	if !validID(sessionID) {
		return out, nil
	}
	const q = `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	err := c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, q, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m models.ChatMessage
			if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DatabaseClient) CountMessages(ctx context.Context, callerID string) (int, error) {
	var n int
	err := c.asCaller(ctx, callerID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT count(*) FROM chat_messages`).Scan(&n)
	})
	return n, err
}

// Outbox. These run on the owning connection; the table is not exposed to callers.

func (c *DatabaseClient) EnqueueOutbox(ctx context.Context, rec *models.OutboxRecord) error {
	if rec == nil || rec.MessageID == "" {
		return models.ErrValidation
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO persistence_outbox
			(id, session_id, owner_id, message_id, role, content, message_created_at, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := c.db.QueryRowContext(ctx, q,
		rec.ID, rec.SessionID, rec.OwnerID, rec.MessageID, rec.Role, rec.Content,
		rec.MessageCreatedAt, rec.Attempts, rec.LastError,
	).Scan(&rec.CreatedAt)
	return mapPgError(err)
}

func (c *DatabaseClient) PendingOutbox(ctx context.Context, maxAttempts, limit int) ([]models.OutboxRecord, error) {
	const q = `
		SELECT id, session_id, owner_id, message_id, role, content, message_created_at,
		       attempts, last_error, created_at
		FROM persistence_outbox
		WHERE resolved_at IS NULL AND ($1::int <= 0 OR attempts < $1::int)
		ORDER BY created_at ASC
		LIMIT NULLIF($2::int, 0)
	`
	rows, err := c.db.QueryContext(ctx, q, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.OutboxRecord, 0)
	for rows.Next() {
		var r models.OutboxRecord
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.OwnerID, &r.MessageID, &r.Role, &r.Content, &r.MessageCreatedAt,
			&r.Attempts, &r.LastError, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ResolveOutbox(ctx context.Context, id string, replayErr error) error {
	lastErr := ""
	if replayErr != nil {
		lastErr = replayErr.Error()
	}
	const q = `
		UPDATE persistence_outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    resolved_at = CASE WHEN $3 THEN now() ELSE NULL END
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, lastErr, replayErr == nil)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}
