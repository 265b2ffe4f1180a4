package models

// ChatTurnRequest is the body accepted by the chat endpoint.
type ChatTurnRequest struct {
	Message     string          `json:"message"`
	SessionID   string          `json:"sessionId"`
	ChatHistory []PromptMessage `json:"chatHistory"`
}

// ChatTurnResponse carries the assistant reply back to the caller.
type ChatTurnResponse struct {
	Response string `json:"response"`
}

// DashboardStats summarises a user's activity.
type DashboardStats struct {
	TotalSessions   int `json:"total_sessions"`
	TotalMessages   int `json:"total_messages"`
	TopicsExplored  int `json:"topics_explored"`
	LearningMinutes int `json:"learning_minutes"`
}

// NewDashboardStats derives the estimates from raw counts: a topic per three
// messages and half a minute of learning per message.
func NewDashboardStats(sessions, messages int) *DashboardStats {
	return &DashboardStats{
		TotalSessions:   sessions,
		TotalMessages:   messages,
		TopicsExplored:  messages / 3,
		LearningMinutes: messages / 2,
	}
}

// AdminSession is a session row enriched with its owner's email.
type AdminSession struct {
	ChatSession
	OwnerEmail string `json:"owner_email"`
}

// AdminOverview is the payload of the admin view.
type AdminOverview struct {
	Users         []Profile      `json:"users"`
	Sessions      []AdminSession `json:"sessions"`
	TotalUsers    int            `json:"total_users"`
	TotalSessions int            `json:"total_sessions"`
	AdminUsers    int            `json:"admin_users"`
}

// TranscriptExport describes an uploaded transcript.
type TranscriptExport struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
	Key       string `json:"key"`
	URL       string `json:"url"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string   `json:"token"`
	User  *Profile `json:"user"`
}
