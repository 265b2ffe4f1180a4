package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LLM_PROVIDER", "mock")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "google/gemini-3-flash-preview", cfg.GenModel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 50, cfg.AdminSessionWindow)
	assert.Equal(t, "authenticated", cfg.JWTAudience)
	assert.False(t, cfg.ExportEnabled())
	assert.NotEmpty(t, cfg.CORSOrigins)
}

func TestLoadConfig_ReportsAllMissing(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LLM_PROVIDER", "gateway")
	t.Setenv("LLM_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestLoadConfig_UnknownProvider(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoadConfig_ParsesListsAndDurations(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("ADMIN_EMAILS", " root@example.com, ops@example.com ,")
	t.Setenv("COMPLETION_TIMEOUT", "0s")
	t.Setenv("RATE_LIMIT_CHAT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsAdminEmail("ROOT@example.com"))
	assert.False(t, cfg.IsAdminEmail("someone@example.com"))
	assert.Equal(t, time.Duration(0), cfg.CompletionTimeout)
	assert.Equal(t, 20, cfg.RateLimitChat)
}
