package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func TestBuild_Order(t *testing.T) {
	history := []models.PromptMessage{
		{Role: models.MessageRoleUser, Content: "Explain binary search trees"},
		{Role: models.MessageRoleAssistant, Content: "A BST keeps smaller keys left."},
	}
	got := Build(history, "How do I delete a node?")

	require.Len(t, got, 4)
	assert.Equal(t, models.MessageRoleSystem, got[0].Role)
	assert.Equal(t, Instructor, got[0].Content)
	assert.Equal(t, history, got[1:3])
	assert.Equal(t, models.PromptMessage{Role: models.MessageRoleUser, Content: "How do I delete a node?"}, got[3])
}

func TestBuild_EmptyHistory(t *testing.T) {
	got := Build(nil, "hi")
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[1].Content)
}

func TestInstructorPreamble(t *testing.T) {
	assert.True(t, strings.HasPrefix(Instructor, "You are DSA Galaxy's AI Instructor"))
	assert.Contains(t, Instructor, "Dynamic Programming")
	assert.Contains(t, Instructor, "time and space complexity")
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Explain binary search trees", "Explain binary search trees"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"truncated", strings.Repeat("b", 51), strings.Repeat("b", 50) + "..."},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.in))
		})
	}
}

func TestValidHistory(t *testing.T) {
	assert.True(t, ValidHistory(nil))
	assert.True(t, ValidHistory([]models.PromptMessage{{Role: models.MessageRoleAssistant}}))
	assert.False(t, ValidHistory([]models.PromptMessage{{Role: models.MessageRoleSystem}}))
	assert.False(t, ValidHistory([]models.PromptMessage{{Role: "tool"}}))
}
