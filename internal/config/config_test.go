package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TRANSLATOR_API_KEY", "sk-test")
	t.Setenv("OPENSUBTITLES_API_KEY", "os-test")
}

func TestNewFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Translator.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Translator.Model)
	assert.Equal(t, "en", cfg.Catalog.SourceLanguage)
	assert.Equal(t, "./data", cfg.Cache.Dir)
	assert.Equal(t, time.Hour, cfg.Cache.RevalidateAfter)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.Timeout)
	assert.Equal(t, "srt", cfg.Jobs.Format)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"el"}, cfg.Server.TargetLanguages)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRANSLATOR_PROVIDER", "gemini")
	t.Setenv("TARGET_LANGUAGES", "el, zh ,pt-BR")
	t.Setenv("CACHE_MAX_BYTES", "1048576")
	t.Setenv("JOB_TIMEOUT", "120")
	t.Setenv("BASE_URL", "https://subs.example.com/")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Translator.Provider)
	assert.Equal(t, []string{"el", "zh", "pt-BR"}, cfg.Server.TargetLanguages)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxBytes)
	assert.Equal(t, 2*time.Minute, cfg.Jobs.Timeout)
	assert.Equal(t, "https://subs.example.com", cfg.Server.BaseURL, "trailing slash is trimmed")
}

func TestNewFromEnv_RequiresKeys(t *testing.T) {
	t.Setenv("TRANSLATOR_API_KEY", "")
	t.Setenv("OPENSUBTITLES_API_KEY", "os-test")
	_, err := NewFromEnv()
	require.ErrorContains(t, err, "TRANSLATOR_API_KEY")

	t.Setenv("TRANSLATOR_API_KEY", "sk-test")
	t.Setenv("OPENSUBTITLES_API_KEY", "")
	_, err = NewFromEnv()
	require.ErrorContains(t, err, "OPENSUBTITLES_API_KEY")
}

func TestNewFromEnv_RejectsUnknownLanguage(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_LANGUAGES", "el,xx")

	_, err := NewFromEnv()
	require.ErrorContains(t, err, "unknown code")
}

func TestNewFromEnv_RejectsBadFormat(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUBTITLE_FORMAT", "ass")

	_, err := NewFromEnv()
	require.ErrorContains(t, err, "SUBTITLE_FORMAT")
}

func TestNewFromEnv_CacheDerivedPaths(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CACHE_DIR", "/var/lib/subs")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/subs/cache.db", cfg.Cache.DBPath())
	assert.Equal(t, "/var/lib/subs/artifacts", cfg.Cache.ArtifactDir())
}
