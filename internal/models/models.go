package models

import (
	"time"
)

// Role is the access level of a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Valid reports whether r may be stored in a transcript.
func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// DefaultSessionTitle is used when a session is created without a title.
const DefaultSessionTitle = "New Chat"

// Profile represents an authenticated user of the system.
type Profile struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// IsAdmin reports whether the profile holds the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// ChatSession is a named conversation owned by exactly one user.
type ChatSession struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatMessage represents an individual chat message (user or assistant).
type ChatMessage struct {
	ID        string      `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"session_id"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// OutboxRecord is a message write that failed after the completion provider answered.
// The replayer re-applies it with the original message id and timestamp.
type OutboxRecord struct {
	ID               string      `db:"id" json:"id"`
	SessionID        string      `db:"session_id" json:"session_id"`
	OwnerID          string      `db:"owner_id" json:"owner_id"`
	MessageID        string      `db:"message_id" json:"message_id"`
	Role             MessageRole `db:"role" json:"role"`
	Content          string      `db:"content" json:"content"`
	MessageCreatedAt time.Time   `db:"message_created_at" json:"message_created_at"`
	Attempts         int         `db:"attempts" json:"attempts"`
	LastError        string      `db:"last_error" json:"last_error,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	ResolvedAt       *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Message converts the record back into the message it describes.
func (o OutboxRecord) Message() ChatMessage {
	return ChatMessage{
		ID:        o.MessageID,
		SessionID: o.SessionID,
		Role:      o.Role,
		Content:   o.Content,
		CreatedAt: o.MessageCreatedAt,
	}
}

// PromptMessage is one entry of the list sent to a completion provider.
type PromptMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Caller is the authenticated identity acting on a request.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
