package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
	"gopkg.in/yaml.v3"
)

// Transport and store kinds.
const (
	transportHTTP   = "http"
	transportGemini = "gemini"

	storeRemote = "remote"
	storeJSON   = "json"
	storeSQLite = "sqlite"
)

// Config is the relay CLI configuration, read from YAML and overridden by
// environment and flags.
type Config struct {
	Agent     string        `yaml:"agent"`
	Transport string        `yaml:"transport"`
	Backend   BackendConfig `yaml:"backend"`
	Gemini    GeminiConfig  `yaml:"gemini"`
	Store     StoreConfig   `yaml:"store"`
	Session   SessionConfig `yaml:"session"`
	Log       LogConfig     `yaml:"log"`
	Trace     TraceConfig   `yaml:"trace"`
}

// BackendConfig configures the HTTP transport and REST store.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"` // REST calls; streams are bounded by the session
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the backend circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// GeminiConfig configures the direct Gemini transport.
type GeminiConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	MaxTokens    int32  `yaml:"max_tokens"`
	Effort       string `yaml:"effort"`
	WebSearch    bool   `yaml:"web_search"`
	SystemPrompt string `yaml:"system_prompt"`
}

// StoreConfig selects where conversations live.
type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// SessionConfig tunes the session controller.
type SessionConfig struct {
	ReconcileTimeout time.Duration `yaml:"reconcile_timeout"`
	MaxLineSize      int           `yaml:"max_line_size"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TraceConfig configures tracing. Exporter is "none" or "stdout".
type TraceConfig struct {
	Exporter string `yaml:"exporter"`
	Output   string `yaml:"output"`
}

// Env holds the environment values main reads.
type Env struct {
	BackendURL   string
	BackendToken string
	GeminiAPIKey string
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig(home string) Config {
	return Config{
		Transport: transportHTTP,
		Backend: BackendConfig{
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{Kind: storeRemote},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: filepath.Join(home, ".relay", "relay.log"),
		},
		Trace: TraceConfig{Exporter: "none"},
	}
}

// LoadConfig reads path over the defaults. A missing file at the default
// path is not an error.
func LoadConfig(path string, required bool, home string) (Config, error) {
	cfg := DefaultConfig(home)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !required:
		return cfg, nil
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv fills settings from the environment. Environment values win
// over the file.
func (c *Config) ApplyEnv(env Env) {
	if env.BackendURL != "" {
		c.Backend.URL = env.BackendURL
	}
	if env.BackendToken != "" {
		c.Backend.Token = env.BackendToken
	}
	if env.GeminiAPIKey != "" {
		c.Gemini.APIKey = env.GeminiAPIKey
	}
}

// ApplyFlags overrides settings with non-empty flag values.
func (c *Config) ApplyFlags(transport, store, agent string) {
	if transport != "" {
		c.Transport = transport
	}
	if store != "" {
		c.Store.Kind = store
	}
	if agent != "" {
		c.Agent = agent
	}
}

// Validate rejects incomplete or inconsistent settings.
func (c Config) Validate() error {
	switch c.Transport {
	case transportHTTP:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend url is required for the http transport: %w", relay.ErrValidation)
		}
		if c.Store.Kind != storeRemote {
			return fmt.Errorf("the http transport persists on the backend; store %q is not allowed: %w", c.Store.Kind, relay.ErrValidation)
		}
	case transportGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini transport: %w", relay.ErrValidation)
		}
		switch c.Store.Kind {
		case storeJSON, storeSQLite:
		case storeRemote:
			return fmt.Errorf("the gemini transport needs a local store (json or sqlite): %w", relay.ErrValidation)
		default:
			return fmt.Errorf("unknown store %q: %w", c.Store.Kind, relay.ErrValidation)
		}
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required: %w", relay.ErrValidation)
		}
		if c.Gemini.Effort != "" {
			if _, err := relay.ParseReasoningEffort(c.Gemini.Effort); err != nil {
				return fmt.Errorf("gemini effort: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown transport %q: must be %q or %q: %w", c.Transport, transportHTTP, transportGemini, relay.ErrValidation)
	}

	switch c.Trace.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown trace exporter %q: %w", c.Trace.Exporter, relay.ErrValidation)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q: %w", c.Log.Format, relay.ErrValidation)
	}
	return nil
}

// fillDefaults picks a local store for the gemini transport when none was
// chosen and sets the default store location under home.
func (c *Config) fillDefaults(home string) {
	if c.Transport == transportGemini && c.Store.Kind == storeRemote {
		c.Store.Kind = storeJSON
	}
	if c.Store.Path != "" {
		return
	}
	switch c.Store.Kind {
	case storeJSON:
		c.Store.Path = filepath.Join(home, ".relay", "conversations")
	case storeSQLite:
		c.Store.Path = filepath.Join(home, ".relay", "relay.db")
	}
}
