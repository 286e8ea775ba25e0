package solana

import (
	"github.com/gagliardetto/solana-go"
)

// IsOnCurveAddress reports whether s is a base58 Solana address whose bytes
// decode to a point on the ed25519 curve. Wallet keys are on-curve; program
// derived addresses are not. Malformed input is reported as false.
func IsOnCurveAddress(s string) bool {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return false
	}
	return pk.IsOnCurve()
}
