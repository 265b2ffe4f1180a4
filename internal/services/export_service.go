package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ExportService renders a transcript and uploads it to object storage.
type ExportService struct {
	sessions *SessionService
	storage  core.ObjectClient
	logger   *slog.Logger
	now      func() time.Time
}

// NewExportService accepts a nil storage client; exports then fail with ErrExportDisabled.
func NewExportService(sessions *SessionService, storage core.ObjectClient, logger *slog.Logger) *ExportService {
	return &ExportService{sessions: sessions, storage: storage, logger: logger, now: time.Now}
}

func (s *ExportService) Export(ctx context.Context, userID, sessionID, format string) (*models.TranscriptExport, error) {
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, models.Invalid("format must be markdown or html")
	}
	if s.storage == nil {
		return nil, models.ErrExportDisabled
	}

	sess, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.sessions.Messages(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	body := []byte(RenderMarkdown(sess, msgs))
	ext, contentType := "md", "text/markdown; charset=utf-8"
	if format == FormatHTML {
		var buf bytes.Buffer
		if err := goldmark.Convert(body, &buf); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		body = buf.Bytes()
		ext, contentType = "html", "text/html; charset=utf-8"
	}

	key := path.Join("transcripts", sess.UserID, sess.ID, fmt.Sprintf("%d.%s", s.now().Unix(), ext))
	url, err := s.storage.UploadFile(ctx, key, bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transcript exported", "session_id", sess.ID, "format", format, "key", key)
	return &models.TranscriptExport{SessionID: sess.ID, Format: format, Key: key, URL: url}, nil
}

// RenderMarkdown writes a transcript as a markdown document.
func RenderMarkdown(sess *models.ChatSession, msgs []models.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sess.Title)
	fmt.Fprintf(&b, "_Started %s_\n", sess.CreatedAt.UTC().Format(time.RFC1123))
	for _, m := range msgs {
		speaker := "You"
		if m.Role == models.MessageRoleAssistant {
			speaker = "AI Instructor"
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", speaker, strings.TrimSpace(m.Content))
	}
	return b.String()
}
