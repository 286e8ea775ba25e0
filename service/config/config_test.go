package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func TestLoad_ValidConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, "info", cfg.LogLevel) // Default
	assert.Equal(t, "wss://kiki-stream.hellomoon.io", cfg.StreamWSURL)
	assert.Equal(t, "https://rest-api.hellomoon.io", cfg.StreamAPIURL)
	assert.Equal(t, "buys", cfg.NATSSubjectPrefix)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.MintAddress)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectMinBackoff)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMaxBackoff)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "HELLOMOON_API_KEY is required")
}

func TestLoad_MissingRPCURLs(t *testing.T) {
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", " , ")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URLS is required")
}

func TestLoad_MultipleRPCURLs(t *testing.T) {
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", "https://a.example.com, https://b.example.com,")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.SolanaRPCURLs)
}

func TestLoad_InvalidMint(t *testing.T) {
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("MINT_ADDRESS", "not-a-key")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "MINT_ADDRESS")
}

func TestLoad_InvalidBackoff(t *testing.T) {
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("RECONNECT_MIN_BACKOFF", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MinBackoffGreaterThanMax(t *testing.T) {
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("RECONNECT_MIN_BACKOFF", "1m")
	os.Setenv("RECONNECT_MAX_BACKOFF", "10s")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "cannot be greater than")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("HELLOMOON_API_KEY", "test-key")
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("MINT_ADDRESS", testMint)
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("METRICS_ADDR", ":9091")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("NATS_SUBJECT_PREFIX", "mints")
	os.Setenv("STREAM_WS_URL", "ws://localhost:9000")
	os.Setenv("STREAM_API_URL", "http://localhost:9001")
	os.Setenv("RECONNECT_MIN_BACKOFF", "1s")
	os.Setenv("RECONNECT_MAX_BACKOFF", "1m")
	os.Setenv("SHUTDOWN_TIMEOUT", "5s")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testMint, cfg.MintAddress)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "mints", cfg.NATSSubjectPrefix)
	assert.Equal(t, "ws://localhost:9000", cfg.StreamWSURL)
	assert.Equal(t, "http://localhost:9001", cfg.StreamAPIURL)
	assert.Equal(t, time.Second, cfg.ReconnectMinBackoff)
	assert.Equal(t, time.Minute, cfg.ReconnectMaxBackoff)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_MissingMint(t *testing.T) {
	cfg := validConfig()
	cfg.MintAddress = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MintAddress is required")
}

func TestValidate_InvalidMint(t *testing.T) {
	cfg := validConfig()
	cfg.MintAddress = "0OIl"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MintAddress is not a valid public key")
}

func TestValidate_InvalidBackoff(t *testing.T) {
	cfg := validConfig()
	cfg.ReconnectMinBackoff = time.Minute
	cfg.ReconnectMaxBackoff = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReconnectMinBackoff cannot be greater than ReconnectMaxBackoff")
}

func TestValidate_TooShortShutdownTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.ShutdownTimeout = 100 * time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be at least 1 second")
}

func validConfig() *Config {
	return &Config{
		APIKey:              "test-key",
		StreamWSURL:         "wss://kiki-stream.hellomoon.io",
		StreamAPIURL:        "https://rest-api.hellomoon.io",
		SolanaRPCURLs:       []string{"https://api.mainnet-beta.solana.com"},
		MintAddress:         testMint,
		ReconnectMinBackoff: 250 * time.Millisecond,
		ReconnectMaxBackoff: 30 * time.Second,
		ShutdownTimeout:     10 * time.Second,
	}
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	os.Unsetenv("HELLOMOON_API_KEY")
	os.Unsetenv("SOLANA_RPC_URLS")
	os.Unsetenv("MINT_ADDRESS")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("METRICS_ADDR")
	os.Unsetenv("NATS_URL")
	os.Unsetenv("NATS_SUBJECT_PREFIX")
	os.Unsetenv("STREAM_WS_URL")
	os.Unsetenv("STREAM_API_URL")
	os.Unsetenv("RECONNECT_MIN_BACKOFF")
	os.Unsetenv("RECONNECT_MAX_BACKOFF")
	os.Unsetenv("SHUTDOWN_TIMEOUT")
}
