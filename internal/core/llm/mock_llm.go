package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// MockLLM answers every prompt locally. Used with LLM_PROVIDER=mock and in tests.
type MockLLM struct {
	mu    sync.Mutex
	calls [][]models.PromptMessage

	// Reply, when set, produces the completion. Err, when set, fails every call.
	Reply func(messages []models.PromptMessage) string
	Err   error
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(ctx context.Context, messages []models.PromptMessage) (string, error) {
	m.mu.Lock()
	cp := make([]models.PromptMessage, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, cp)
	reply, failure := m.Reply, m.Err
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if failure != nil {
		return "", failure
	}
	if reply != nil {
		return reply(messages), nil
	}
	if len(messages) == 0 {
		return "", nil
	}
	last := messages[len(messages)-1].Content
	return fmt.Sprintf("**Mock instructor:** let's work through %q step by step.", last), nil
}

// Calls returns the prompts received so far.
func (m *MockLLM) Calls() [][]models.PromptMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]models.PromptMessage, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ core.LLMProvider = (*MockLLM)(nil)
