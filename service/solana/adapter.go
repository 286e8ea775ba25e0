package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Hello Moon: https://rpc.hellomoon.io/YOUR-KEY
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetTokenSupply(
	ctx context.Context,
	mint solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetTokenSupplyResult, error) {
	return r.client.GetTokenSupply(ctx, mint, commitment)
}
