package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultShyftURL    = "https://defi.shyft.to"
	DefaultSolflareURL = "https://token-list-api.solana.cloud/v1"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("SHYFT_API_KEY not set")
)

// Provider selects which backend a server instance talks to.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderPool
	ProviderToken
)

func (p Provider) String() string {
	switch p {
	case ProviderPool:
		return "pool"
	case ProviderToken:
		return "token"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// ParseProvider accepts exactly "pool" or "token".
func ParseProvider(s string) (Provider, error) {
	switch strings.TrimSpace(s) {
	case "pool":
		return ProviderPool, nil
	case "token":
		return ProviderToken, nil
	default:
		return ProviderUnknown, fmt.Errorf("%w: %q (want pool or token)", ErrUnknownProvider, s)
	}
}

type Config struct {
	Provider    Provider
	ShyftAPIKey string
	ShyftURL    string
	SolflareURL string
	ServerAddr  string
	LogLevel    string

	// RedisURL is carried for hosts that keep MCP session state in redis.
	// Nothing in this module reads it.
	RedisURL string
}

// loadDotenv populates the environment from .env. Variables that are already
// set win. Overridden in tests.
var loadDotenv = func() { _ = godotenv.Load() }

// Load reads the configuration from the environment. It rejects an unknown
// provider; provider-specific requirements are checked by Validate.
func Load() (*Config, error) {
	loadDotenv()

	provider, err := ParseProvider(envOr("SOLMCP_PROVIDER", "pool"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider:    provider,
		ShyftAPIKey: os.Getenv("SHYFT_API_KEY"),
		ShyftURL:    envOr("SOLMCP_SHYFT_URL", DefaultShyftURL),
		SolflareURL: envOr("SOLMCP_SOLFLARE_URL", DefaultSolflareURL),
		ServerAddr:  envOr("SOLMCP_SERVER_ADDR", ":8080"),
		LogLevel:    envOr("SOLMCP_LOG_LEVEL", "info"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop the process.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderPool:
		if c.ShyftAPIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderToken:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProvider, c.Provider)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
