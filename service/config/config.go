package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel    string
	MetricsAddr string // empty disables the metrics server

	// Hello Moon configuration
	APIKey       string
	StreamWSURL  string
	StreamAPIURL string

	// Solana configuration
	SolanaRPCURLs []string
	MintAddress   string

	// NATS configuration (optional fan-out of matched events)
	NATSURL           string
	NATSSubjectPrefix string

	// Stream lifecycle configuration
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration
	ShutdownTimeout     time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// A .env file in the working directory is loaded first if present; variables already
// set in the environment take precedence over it.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// Hello Moon configuration
	cfg.APIKey = os.Getenv("HELLOMOON_API_KEY")
	if cfg.APIKey == "" {
		errs = append(errs, fmt.Errorf("HELLOMOON_API_KEY is required"))
	}
	cfg.StreamWSURL = getEnvOrDefault("STREAM_WS_URL", "wss://kiki-stream.hellomoon.io")
	cfg.StreamAPIURL = getEnvOrDefault("STREAM_API_URL", "https://rest-api.hellomoon.io")

	// Solana configuration
	cfg.SolanaRPCURLs = parseList("SOLANA_RPC_URLS")
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS is required"))
	}

	// The mint may also be supplied on the command line, so it is only
	// validated here when set.
	cfg.MintAddress = os.Getenv("MINT_ADDRESS")
	if cfg.MintAddress != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.MintAddress); err != nil {
			errs = append(errs, fmt.Errorf("MINT_ADDRESS: invalid public key %q: %w", cfg.MintAddress, err))
		}
	}

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getEnvOrDefault("NATS_SUBJECT_PREFIX", "buys")

	// Stream lifecycle configuration
	minBackoff, err := parseDuration("RECONNECT_MIN_BACKOFF", "250ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ReconnectMinBackoff = minBackoff
	}

	maxBackoff, err := parseDuration("RECONNECT_MAX_BACKOFF", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ReconnectMaxBackoff = maxBackoff
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ShutdownTimeout = shutdownTimeout
	}

	if cfg.ReconnectMinBackoff > cfg.ReconnectMaxBackoff {
		errs = append(errs, fmt.Errorf("RECONNECT_MIN_BACKOFF (%v) cannot be greater than RECONNECT_MAX_BACKOFF (%v)",
			cfg.ReconnectMinBackoff, cfg.ReconnectMaxBackoff))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// Validate checks if the configuration is complete enough to start watching.
// Unlike Load it requires MintAddress, which by then must be resolved from
// either the environment or the command line.
func (c *Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("APIKey is required"))
	}

	if c.StreamWSURL == "" {
		errs = append(errs, fmt.Errorf("StreamWSURL is required"))
	}

	if c.StreamAPIURL == "" {
		errs = append(errs, fmt.Errorf("StreamAPIURL is required"))
	}

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.MintAddress == "" {
		errs = append(errs, fmt.Errorf("MintAddress is required"))
	} else if _, err := solana.PublicKeyFromBase58(c.MintAddress); err != nil {
		errs = append(errs, fmt.Errorf("MintAddress is not a valid public key: %w", err))
	}

	if c.ReconnectMinBackoff <= 0 {
		errs = append(errs, fmt.Errorf("ReconnectMinBackoff must be positive"))
	}

	if c.ReconnectMinBackoff > c.ReconnectMaxBackoff {
		errs = append(errs, fmt.Errorf("ReconnectMinBackoff cannot be greater than ReconnectMaxBackoff"))
	}

	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ShutdownTimeout must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseList splits a comma-separated environment variable, dropping empty entries.
func parseList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
