package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, 50, cfg.MessageCap)
	assert.Equal(t, 10, cfg.ContextWindow)
	assert.Equal(t, 10000, cfg.MaxMessageLen)
	assert.Equal(t, 3, cfg.UpstreamAttempts)
	assert.Empty(t, cfg.DBDSN)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAOGPT_ADDR", ":9999")
	t.Setenv("CHAOGPT_RATE_LIMIT", "5")
	t.Setenv("CHAOGPT_RATE_WINDOW", "30s")
	t.Setenv("CHAOGPT_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestLoadClampsBadWindows(t *testing.T) {
	t.Setenv("CHAOGPT_CONTEXT_WINDOW", "500")
	t.Setenv("CHAOGPT_MESSAGE_CAP", "-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ContextWindow)
	assert.Equal(t, 50, cfg.MessageCap)
}
