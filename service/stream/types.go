package stream

// TransactionChangeRecord is one balance change of a token account as
// delivered by the balance-change stream. Balances and amounts are raw integer
// units of the mint.
type TransactionChangeRecord struct {
	BlockID             int64   `json:"blockId"`
	BlockTime           int64   `json:"blockTime"` // unix seconds
	TransactionID       string  `json:"transactionId"`
	TransactionPosition int64   `json:"transactionPosition"` // ordering hint within the block
	Account             string  `json:"account"`
	AccountOwner        *string `json:"accountOwner,omitempty"` // nil for unresolved or program-owned accounts
	Mint                *string `json:"mint,omitempty"`
	Decimals            int     `json:"decimals"`
	PreBalance          uint64  `json:"preBalance"` // u64 on chain
	PostBalance         uint64  `json:"postBalance"`
	Amount              int64   `json:"amount"`
}

// BuyEvent is an inbound transfer to a wallet-controlled account.
// Amount is the human-scaled fixed-point rendering of RawAmount.
type BuyEvent struct {
	Account      string `json:"account"`
	AccountOwner string `json:"account_owner"`
	Amount       string `json:"amount"`
	RawAmount    int64  `json:"raw_amount"`
	Decimals     int    `json:"decimals"`

	Mint                string `json:"mint,omitempty"`
	TransactionID       string `json:"transaction_id"`
	TransactionPosition int64  `json:"transaction_position"`
	BlockID             int64  `json:"block_id"`
	BlockTime           int64  `json:"block_time"`
	PreBalance          uint64 `json:"pre_balance"`
	PostBalance         uint64 `json:"post_balance"`
}
