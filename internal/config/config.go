// Package config loads application configuration from environment variables.
package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults for optional settings.
const (
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultDBPath         = "codereviewer.db"
	DefaultFixDelay       = 300 * time.Millisecond
	DefaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	DefaultGroqModel      = "llama-3.3-70b-versatile"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// GitHub credentials are optional at startup; the login endpoint can
	// provide them later, persisted in the credential store.
	GitHubToken    string
	GitHubUsername string

	// SecretKey derives the AES key protecting stored credentials.
	// Empty disables credential persistence.
	SecretKey string

	// AI backend. GroqAPIKeys rotate round-robin; the Anthropic key is the
	// failover provider when every Groq key has failed.
	GroqAPIKeys     []string
	GroqBaseURL     string
	GroqModel       string
	AnthropicAPIKey string
	AnthropicModel  string

	// FixDelay is the throttle between sequenced auto-fix requests.
	FixDelay time.Duration
}

// HasGitHubCredentials returns true when both token and username are set.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != "" && c.GitHubUsername != ""
}

// HasAIProvider returns true when at least one inference provider is configured.
func (c *Config) HasAIProvider() bool {
	return len(c.GroqAPIKeys) > 0 || c.AnthropicAPIKey != ""
}

// EncryptionKey derives the 32-byte AES-256 key from SecretKey, or nil when
// no secret is configured.
func (c *Config) EncryptionKey() []byte {
	if c.SecretKey == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(c.SecretKey))
	return sum[:]
}

// Load reads configuration from environment variables and returns a
// validated Config. GitHub and AI credentials are optional; everything else
// has a default.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      DefaultListenAddr,
		DBPath:          DefaultDBPath,
		GitHubToken:     os.Getenv("CODEREVIEWER_GITHUB_TOKEN"),
		GitHubUsername:  os.Getenv("CODEREVIEWER_GITHUB_USERNAME"),
		SecretKey:       os.Getenv("CODEREVIEWER_SECRET_KEY"),
		GroqBaseURL:     DefaultGroqBaseURL,
		GroqModel:       DefaultGroqModel,
		AnthropicAPIKey: os.Getenv("CODEREVIEWER_ANTHROPIC_API_KEY"),
		AnthropicModel:  DefaultAnthropicModel,
		FixDelay:        DefaultFixDelay,
	}

	if v, ok := os.LookupEnv("CODEREVIEWER_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("CODEREVIEWER_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("CODEREVIEWER_GROQ_BASE_URL"); ok {
		cfg.GroqBaseURL = v
	}
	if v, ok := os.LookupEnv("CODEREVIEWER_GROQ_MODEL"); ok {
		cfg.GroqModel = v
	}
	if v, ok := os.LookupEnv("CODEREVIEWER_ANTHROPIC_MODEL"); ok {
		cfg.AnthropicModel = v
	}

	if v, ok := os.LookupEnv("CODEREVIEWER_GROQ_API_KEYS"); ok && v != "" {
		for _, key := range strings.Split(v, ",") {
			key = strings.TrimSpace(key)
			if key != "" {
				cfg.GroqAPIKeys = append(cfg.GroqAPIKeys, key)
			}
		}
	}

	if v, ok := os.LookupEnv("CODEREVIEWER_FIX_DELAY"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CODEREVIEWER_FIX_DELAY has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("CODEREVIEWER_FIX_DELAY must not be negative, got %q", v)
		}
		cfg.FixDelay = parsed
	}

	return cfg, nil
}
