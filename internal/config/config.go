package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration, read from a YAML file and
// completed from the environment.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Limits      LimitsConfig      `yaml:"limits"`
	Logger      LoggerConfig      `yaml:"logger"`
	Render      RenderConfig      `yaml:"render"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Auth        AuthConfig        `yaml:"auth"`
	Notify      NotifyConfig      `yaml:"notify"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	Prefork bool   `yaml:"prefork"`
}

type LimitsConfig struct {
	MaxUploadBytes int `yaml:"max_upload_bytes"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RenderConfig controls how the external toolchain is invoked.
type RenderConfig struct {
	RenderCVPath   string        `yaml:"rendercv_path"`
	TypstPath      string        `yaml:"typst_path"`
	Timeout        time.Duration `yaml:"timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	// PoolSize bounds concurrent renders. Zero derives it from GOMAXPROCS.
	PoolSize      int    `yaml:"pool_size"`
	OutputPDFName string `yaml:"output_pdf_name"`
	// WorkDir is the parent of per-request temp dirs. Empty uses os.TempDir.
	WorkDir string `yaml:"work_dir"`
}

type CacheConfig struct {
	PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
	PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
	RedisHost       string        `yaml:"redis_host"`
	RateLimitDB     int           `yaml:"redis_rate_db"`
	PDFCacheDB      int           `yaml:"redis_pdf_db"`
}

type RateLimiterConfig struct {
	Interval          time.Duration `yaml:"interval"`
	UserLimit         int           `yaml:"user_limit"`
	EnableUserLimiter bool          `yaml:"enable_user_limiter"`
}

// AuthConfig enables API tokens when PostgresDSN is set.
type AuthConfig struct {
	PostgresDSN         string        `yaml:"postgres_dsn"`
	TokenReloadInterval time.Duration `yaml:"token_reload_interval"`
}

// NotifyConfig holds the chat-bot credentials used after successful renders.
type NotifyConfig struct {
	BotToken   string        `yaml:"bot_token"`
	ChatID     string        `yaml:"chat_id"`
	APIBaseURL string        `yaml:"api_base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Enabled reports whether both credentials are present.
func (n NotifyConfig) Enabled() bool {
	return n.BotToken != "" && n.ChatID != ""
}

const defaultConfigPath = "config.yaml"

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":5000"

	cfg.Limits.MaxUploadBytes = 2 << 20

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7

	cfg.Render.RenderCVPath = "rendercv"
	cfg.Render.TypstPath = "typst"
	cfg.Render.Timeout = 60 * time.Second
	cfg.Render.AcquireTimeout = 10 * time.Second
	cfg.Render.OutputPDFName = "output.pdf"

	cfg.Cache.PDFCacheTTL = 10 * time.Minute
	cfg.Cache.RateLimitDB = 0
	cfg.Cache.PDFCacheDB = 1

	cfg.RateLimiter.Interval = time.Minute

	cfg.Auth.TokenReloadInterval = time.Minute

	cfg.Notify.APIBaseURL = "https://api.telegram.org"
	cfg.Notify.Timeout = 30 * time.Second
	return cfg
}

// Load reads the file named by CONFIG_PATH (default config.yaml).
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path)
}

// LoadFrom reads the given file on top of Defaults, applies environment
// overrides and panics when the result is invalid. A missing file is not
// an error.
func LoadFrom(path string) Config {
	cfg, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Parse is the non-panicking form of LoadFrom.
func Parse(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Notify.BotToken = v
	}
	if v := os.Getenv("CHAT_ID"); v != "" {
		cfg.Notify.ChatID = v
	}
	// Allow common container env vars to override binary locations.
	if v := os.Getenv("RENDERCV_BIN"); v != "" {
		cfg.Render.RenderCVPath = v
	}
	if v := os.Getenv("TYPST_BIN"); v != "" {
		cfg.Render.TypstPath = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}
}

// Validate checks values that would otherwise fail at request time.
func (c Config) Validate() error {
	var problems []string
	if c.Limits.MaxUploadBytes <= 0 {
		problems = append(problems, "limits.max_upload_bytes must be positive")
	}
	if c.Render.RenderCVPath == "" || c.Render.TypstPath == "" {
		problems = append(problems, "render.rendercv_path and render.typst_path are required")
	}
	if c.Render.Timeout <= 0 {
		problems = append(problems, "render.timeout must be positive")
	}
	if c.Render.AcquireTimeout <= 0 {
		problems = append(problems, "render.acquire_timeout must be positive")
	}
	if c.Render.PoolSize < 0 {
		problems = append(problems, "render.pool_size must not be negative")
	}
	if !strings.HasSuffix(c.Render.OutputPDFName, ".pdf") {
		problems = append(problems, "render.output_pdf_name must end with .pdf")
	}
	if c.Cache.PDFCacheTTL < 0 {
		problems = append(problems, "cache.pdf_cache_ttl must not be negative")
	}
	if c.RateLimiter.Interval <= 0 {
		problems = append(problems, "rate_limiter.interval must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		problems = append(problems, "rate_limiter.user_limit must not be negative")
	}
	if c.Auth.PostgresDSN != "" && c.Auth.TokenReloadInterval <= 0 {
		problems = append(problems, "auth.token_reload_interval must be positive")
	}
	if c.Notify.Timeout <= 0 {
		problems = append(problems, "notify.timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
