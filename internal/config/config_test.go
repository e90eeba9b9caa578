package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadFrom_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  host: "127.0.0.1"
  port: ":9000"
limits:
  max_upload_bytes: 1024
render:
  rendercv_path: "/opt/rendercv"
  typst_path: "/opt/typst"
  timeout: 30s
  acquire_timeout: 2s
  pool_size: 3
  output_pdf_name: "resume.pdf"
cache:
  pdf_cache_enabled: true
  pdf_cache_ttl: 5m
  redis_host: "redis:6379"
rate_limiter:
  interval: 1h
  user_limit: 20
  enable_user_limiter: true
notify:
  bot_token: "file-token"
  chat_id: "42"
`)
	cfg := LoadFrom(p)

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Limits.MaxUploadBytes)
	assert.Equal(t, "/opt/typst", cfg.Render.TypstPath)
	assert.Equal(t, 30*time.Second, cfg.Render.Timeout)
	assert.Equal(t, 3, cfg.Render.PoolSize)
	assert.Equal(t, "resume.pdf", cfg.Render.OutputPDFName)
	assert.True(t, cfg.Cache.PDFCacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.PDFCacheTTL)
	assert.Equal(t, 20, cfg.RateLimiter.UserLimit)
	assert.True(t, cfg.Notify.Enabled())
	// untouched sections keep their defaults
	assert.Equal(t, "https://api.telegram.org", cfg.Notify.APIBaseURL)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Equal(t, 2<<20, cfg.Limits.MaxUploadBytes)
	assert.Equal(t, "output.pdf", cfg.Render.OutputPDFName)
	assert.Equal(t, "rendercv", cfg.Render.RenderCVPath)
	assert.False(t, cfg.Notify.Enabled())
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "zero upload limit", yml: "limits:\n  max_upload_bytes: 0\n"},
		{name: "zero render timeout", yml: "render:\n  timeout: 0s\n"},
		{name: "negative pool size", yml: "render:\n  pool_size: -1\n"},
		{name: "bad output name", yml: "render:\n  output_pdf_name: out.txt\n"},
		{name: "invalid rate interval", yml: "rate_limiter:\n  interval: 0s\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
		{name: "auth without reload interval", yml: "auth:\n  postgres_dsn: 'postgres://x'\n  token_reload_interval: 0s\n"},
		{name: "malformed yaml", yml: "server: [unclosed\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			_ = LoadFrom(p)
		})
	}
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, "server:\n  port: \":7000\"\n")
	t.Setenv("CONFIG_PATH", p)

	cfg := Load()
	assert.Equal(t, ":7000", cfg.Server.Port)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	p := writeConfig(t, "notify:\n  bot_token: from-file\n")
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("CHAT_ID", "1234")
	t.Setenv("RENDERCV_BIN", "/usr/local/bin/rendercv")
	t.Setenv("TYPST_BIN", "/usr/local/bin/typst")
	t.Setenv("REDIS_HOST", "cache:6379")

	cfg, err := Parse(p)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Notify.BotToken)
	assert.Equal(t, "1234", cfg.Notify.ChatID)
	assert.Equal(t, "/usr/local/bin/rendercv", cfg.Render.RenderCVPath)
	assert.Equal(t, "/usr/local/bin/typst", cfg.Render.TypstPath)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisHost)
}
