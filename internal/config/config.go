// Package config loads the extractor's configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// AppConfig is the full runtime configuration. Every value comes from an
// environment variable; main loads a .env file first when one exists.
type AppConfig struct {
	Fetch   FetchConfig
	Session SessionConfig
	LLM     LLMConfig
	HTTP    HTTPConfig
	DB      DBConfig

	// ProfileFile is the reference profile used for fit scoring.
	ProfileFile string `env:"PROFILE_FILE"`

	// DescriptionMaxChars truncates descriptions in CSV and HTML output.
	// Zero keeps them whole.
	DescriptionMaxChars int `env:"DESCRIPTION_MAX_CHARS" envDefault:"500" validate:"gte=0"`
}

// FetchConfig controls the fetch chain.
type FetchConfig struct {
	Timeout        time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	UseBrowser     bool          `env:"FETCH_USE_BROWSER" envDefault:"true"`
	MinDelay       time.Duration `env:"FETCH_MIN_DELAY" envDefault:"2s"`
	MaxDelay       time.Duration `env:"FETCH_MAX_DELAY" envDefault:"5s"`
	UserAgent      string        `env:"FETCH_USER_AGENT"`
	AcceptLanguage string        `env:"FETCH_ACCEPT_LANGUAGE" envDefault:"en-US,en;q=0.9"`
	ChromePath     string        `env:"CHROME_PATH"`
	SelectorsFile  string        `env:"SELECTORS_FILE"`
	// CacheTTL applies when a database is configured. Zero disables the page cache.
	CacheTTL time.Duration `env:"FETCH_CACHE_TTL" envDefault:"168h"`
}

// SessionConfig controls the authenticated side-channel.
type SessionConfig struct {
	Enabled  bool          `env:"SESSION_ENABLED" envDefault:"false"`
	Username string        `env:"LINKEDIN_USERNAME"`
	Password string        `env:"LINKEDIN_PASSWORD"`
	Wait     time.Duration `env:"SESSION_WAIT" envDefault:"30s"`
}

// LLMConfig selects the fit-scoring provider.
type LLMConfig struct {
	Provider     string `env:"LLM_PROVIDER" envDefault:"gemini" validate:"oneof=gemini openai"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	// OpenAIBaseURL points the OpenAI client at a compatible endpoint.
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
}

// APIKey returns the key for the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Port int `env:"HTTP_PORT" envDefault:"5000" validate:"min=1,max=65535"`
	// RateLimit is the allowed batch submissions per minute per client. Zero disables limiting.
	RateLimit int `env:"HTTP_RATE_LIMIT" envDefault:"10" validate:"gte=0"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DBConfig configures Postgres. An empty URL runs without persistence.
type DBConfig struct {
	URL string `env:"DATABASE_URL" validate:"omitempty,url"`
}

// Enabled reports whether a database is configured.
func (c DBConfig) Enabled() bool {
	return c.URL != ""
}

// Load parses the environment into an AppConfig, sanitizes it, and
// validates it.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sanitize clamps out-of-range values.
func (c *AppConfig) Sanitize() {
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MinDelay < 0 {
		c.Fetch.MinDelay = 0
	}
	if c.Fetch.MaxDelay < c.Fetch.MinDelay {
		c.Fetch.MaxDelay = c.Fetch.MinDelay
	}
	if c.Fetch.CacheTTL < 0 {
		c.Fetch.CacheTTL = 0
	}
	if c.Session.Wait <= 0 {
		c.Session.Wait = 30 * time.Second
	}
	if c.DescriptionMaxChars < 0 {
		c.DescriptionMaxChars = 0
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

// Validate checks field constraints and cross-field requirements.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Session.Enabled && (c.Session.Username == "" || c.Session.Password == "") {
		return fmt.Errorf("config error: SESSION_ENABLED requires LINKEDIN_USERNAME and LINKEDIN_PASSWORD")
	}
	if c.Fetch.SelectorsFile != "" {
		if _, err := os.Stat(c.Fetch.SelectorsFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: selectors file not found: %s", c.Fetch.SelectorsFile)
		}
	}
	return nil
}

// LoadProfile reads the reference profile for fit scoring. path overrides
// ProfileFile when set.
func (c *AppConfig) LoadProfile(path string) (string, error) {
	if path == "" {
		path = c.ProfileFile
	}
	if path == "" {
		return "", fmt.Errorf("no profile file: set PROFILE_FILE or pass --profile")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read profile file %s: %w", path, err)
	}
	profile := strings.TrimSpace(string(data))
	if profile == "" {
		return "", fmt.Errorf("profile file %s is empty", path)
	}
	return profile, nil
}
