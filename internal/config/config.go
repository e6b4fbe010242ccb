// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.flywheel/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - LLM: OpenAI-compatible endpoint, model, temperature, max tokens
//   - Retrieval: chunk size/overlap, result and character caps
//   - Chat: history window, message length bound, system prompt
//   - Storage: SQLite path, uploads directory, optional watch directory
//   - Server: listen address, CORS origins, admin token, rate limiting
//
// Sensitive values (API key, admin token) are masked in MarshalJSON/String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultChunkSize is the retrieval chunk window in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the character overlap between adjacent chunks.
	DefaultChunkOverlap = 50

	// DefaultMaxResults caps how many snippets one retrieval call returns.
	DefaultMaxResults = 3

	// DefaultMaxContextChars caps the cumulative snippet text per retrieval call.
	DefaultMaxContextChars = 2500

	// DefaultMaxHistoryTurns is how many prior turns the context window keeps.
	DefaultMaxHistoryTurns = 10

	// DefaultMaxMessageLen bounds inbound user messages, in runes.
	DefaultMaxMessageLen = 4000

	// DefaultSystemPrompt is used when no persisted chat profile exists.
	DefaultSystemPrompt = "You are a helpful and adaptive assistant."
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// LLM backend (OpenAI-compatible chat completions)
	APIBase     string  `mapstructure:"api_base" json:"api_base"`
	APIKey      string  `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model       string  `mapstructure:"model" json:"model"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retrieval
	ChunkSize       int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxResults      int `mapstructure:"max_results" json:"max_results"`
	MaxContextChars int `mapstructure:"max_context_chars" json:"max_context_chars"`

	// Chat
	SystemPrompt    string `mapstructure:"system_prompt" json:"system_prompt"`
	MaxHistoryTurns int    `mapstructure:"max_history_turns" json:"max_history_turns"`
	MaxMessageLen   int    `mapstructure:"max_message_len" json:"max_message_len"`

	// Storage
	DatabasePath string `mapstructure:"database_path" json:"database_path"`
	UploadsDir   string `mapstructure:"uploads_dir" json:"uploads_dir"`
	WatchDir     string `mapstructure:"watch_dir" json:"watch_dir"` // empty disables the watcher

	// Server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	APIToken    string   `mapstructure:"api_token" json:"api_token"` // SENSITIVE: masked in MarshalJSON
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".flywheel")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base", "https://api.openai.com/v1")
	v.SetDefault("model", "gpt-4o")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 0)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("max_results", DefaultMaxResults)
	v.SetDefault("max_context_chars", DefaultMaxContextChars)

	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("max_history_turns", DefaultMaxHistoryTurns)
	v.SetDefault("max_message_len", DefaultMaxMessageLen)

	v.SetDefault("database_path", "chatbot.db")
	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("watch_dir", "")

	v.SetDefault("addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets are env-only by convention; the rest are overridable for container
// deployments.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_key", "OPENAI_API_KEY")
	mustBind("api_base", "FLYWHEEL_API_BASE")
	mustBind("model", "FLYWHEEL_MODEL")
	mustBind("api_token", "FLYWHEEL_API_TOKEN")
	mustBind("database_path", "FLYWHEEL_DATABASE_PATH")
	mustBind("uploads_dir", "FLYWHEEL_UPLOADS_DIR")
	mustBind("watch_dir", "FLYWHEEL_WATCH_DIR")
	mustBind("addr", "FLYWHEEL_ADDR")
	mustBind("cors_origins", "FLYWHEEL_CORS_ORIGINS")
	mustBind("trust_proxy", "FLYWHEEL_TRUST_PROXY")
	mustBind("log_level", "FLYWHEEL_LOG_LEVEL")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	a.APIToken = maskSecret(a.APIToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// Level parses LogLevel into a slog.Level, defaulting to Info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
