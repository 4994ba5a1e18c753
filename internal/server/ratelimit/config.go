package ratelimit

import (
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL         time.Duration
	EndpointConfigs []EndpointConfig
}

// NewConfig returns the server's configuration: batch submissions and scoring
// runs are limited to perMinute per client, everything else gets a generous
// default. perMinute of zero disables limiting.
func NewConfig(perMinute int) *Config {
	if perMinute <= 0 {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(perMinute),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific limits for the
// expensive operations: starting a batch and scoring one.
func DefaultEndpointConfigs(perMinute int) []EndpointConfig {
	burst := max(1, perMinute/5)
	return []EndpointConfig{
		{Path: "/batches", Method: "POST", Limit: perMinute, Window: time.Minute, Burst: burst},
		{Path: "/batches/", Method: "POST", Limit: perMinute, Window: time.Minute, Burst: burst},
	}
}
