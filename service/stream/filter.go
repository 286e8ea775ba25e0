package stream

import (
	"github.com/brojonat/mintwatch/service/solana"
	"github.com/shopspring/decimal"
)

// Drop reasons reported by the pipeline.
const (
	dropMissingOwner = "missing_owner"
	dropOffCurve     = "off_curve"
	dropMintMismatch = "mint_mismatch"
)

// Filter turns a record into a BuyEvent when the record's owner is a
// wallet-controlled (on-curve) address. decimals is the mint's precision as
// fetched from the ledger. Records that do not qualify yield false; this is a
// filtering outcome, not an error.
func Filter(r TransactionChangeRecord, decimals int) (BuyEvent, bool) {
	event, reason := classify(r, decimals)
	return event, reason == ""
}

// classify is Filter with the reason a record was dropped.
func classify(r TransactionChangeRecord, decimals int) (BuyEvent, string) {
	if r.AccountOwner == nil || *r.AccountOwner == "" {
		return BuyEvent{}, dropMissingOwner
	}
	if !solana.IsOnCurveAddress(*r.AccountOwner) {
		return BuyEvent{}, dropOffCurve
	}

	event := BuyEvent{
		Account:             r.Account,
		AccountOwner:        *r.AccountOwner,
		Amount:              FormatAmount(r.Amount, decimals),
		RawAmount:           r.Amount,
		Decimals:            decimals,
		TransactionID:       r.TransactionID,
		TransactionPosition: r.TransactionPosition,
		BlockID:             r.BlockID,
		BlockTime:           r.BlockTime,
		PreBalance:          r.PreBalance,
		PostBalance:         r.PostBalance,
	}
	if r.Mint != nil {
		event.Mint = *r.Mint
	}
	return event, ""
}

// FormatAmount renders amount / 10^decimals in fixed-point notation with
// exactly decimals fractional digits, e.g. FormatAmount(1, 9) == "0.000000001".
func FormatAmount(amount int64, decimals int) string {
	return decimal.New(amount, -int32(decimals)).StringFixed(int32(decimals))
}
