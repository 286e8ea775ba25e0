package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/brojonat/mintwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrPrecisionLookup is returned when a mint's decimal precision cannot be determined.
var ErrPrecisionLookup = errors.New("mint precision lookup failed")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetTokenSupply(
		ctx context.Context,
		mint solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenSupplyResult, error)
}

// Client provides the ledger queries the watcher needs at startup.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// NewClientFromEndpoints picks one of the configured RPC URLs at random and
// builds a Client on top of it. The metrics label is the URL's host so API keys
// embedded in paths or query strings never reach a label value.
func NewClientFromEndpoints(endpoints []string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	selected, err := SelectRandomEndpoint(endpoints)
	if err != nil {
		return nil, err
	}

	label := selected
	if u, err := url.Parse(selected); err == nil && u.Host != "" {
		label = u.Host
	}

	logger.Info("selected solana RPC endpoint",
		"endpoint", label,
		"total_endpoints", len(endpoints),
	)

	return NewClient(NewRPCClient(selected), label, m, logger), nil
}

// SelectRandomEndpoint returns one endpoint chosen uniformly at random.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// GetMintDecimals fetches the display precision of a token mint.
// Errors wrap ErrPrecisionLookup; callers treat them as fatal since amounts
// cannot be formatted without the precision.
func (c *Client) GetMintDecimals(ctx context.Context, mint string) (int, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mint address %q: %w", ErrPrecisionLookup, mint, err)
	}

	c.logger.DebugContext(ctx, "fetching mint decimals", "mint", mint)

	start := time.Now()
	result, err := c.rpc.GetTokenSupply(ctx, mintKey, rpc.CommitmentFinalized)
	duration := time.Since(start).Seconds()

	// Record metrics for GetTokenSupply call
	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetTokenSupply", status, c.endpoint, duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get token supply",
			"mint", mint,
			"error", err,
		)
		return 0, fmt.Errorf("%w: %w", ErrPrecisionLookup, err)
	}

	if result == nil || result.Value == nil {
		return 0, fmt.Errorf("%w: empty token supply response for mint %s", ErrPrecisionLookup, mint)
	}

	decimals := int(result.Value.Decimals)
	c.logger.InfoContext(ctx, "fetched mint decimals",
		"mint", mint,
		"decimals", decimals,
	)

	return decimals, nil
}
