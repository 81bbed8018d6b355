package domain

import "time"

// Chain identifies a supported blockchain.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBNB      Chain = "bnb"
	ChainSolana   Chain = "solana"
)

// NativeSymbol returns the chain's native token symbol.
func (c Chain) NativeSymbol() string {
	switch c {
	case ChainEthereum:
		return "ETH"
	case ChainBNB:
		return "BNB"
	case ChainSolana:
		return "SOL"
	default:
		return ""
	}
}

// TxClassification categorizes a whale transaction by its call data.
type TxClassification string

const (
	TxTransfer TxClassification = "transfer"
	TxMint     TxClassification = "mint"
	TxSwap     TxClassification = "swap"
)

// TxStatus is the lifecycle state of an observed transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TokenInfo describes a token touched by a transaction.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
}

// WhaleTransaction is a qualifying large transaction observed on-chain.
// Value is in the chain's display unit as a decimal string.
type WhaleTransaction struct {
	Hash           string           `json:"hash"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	Value          string           `json:"value"`
	ValueUSD       float64          `json:"value_usd"`
	GasPrice       string           `json:"gas_price,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	BlockNumber    int64            `json:"block_number"`
	Classification TxClassification `json:"classification"`
	Token          *TokenInfo       `json:"token,omitempty"`
	Status         TxStatus         `json:"status"`
	Chain          Chain            `json:"chain"`
}

// WhaleAddress is an address whose balance meets the whale threshold.
// Records are created on first qualifying balance check and updated in
// place afterwards, never deleted.
type WhaleAddress struct {
	Address      string    `json:"address"`
	Balance      float64   `json:"balance"`
	BalanceUSD   float64   `json:"balance_usd"`
	FirstSeen    time.Time `json:"first_seen"`
	LastActivity time.Time `json:"last_activity"`
	TxCount      int       `json:"tx_count"`
	Tags         []string  `json:"tags,omitempty"`
	Active       bool      `json:"active"`
	Chain        Chain     `json:"chain"`
}

// MonitoredWhale is the ephemeral record tracking what tokens an address
// acquires after receiving a qualifying transfer. InitialTokens is the
// holdings snapshot taken at detection time and is never updated.
type MonitoredWhale struct {
	Address           string    `json:"address"`
	Chain             Chain     `json:"chain"`
	InitialTokens     []string  `json:"initial_tokens"`
	TransferredAmount float64   `json:"transferred_amount"`
	StartedAt         time.Time `json:"started_at"`
	TxHash            string    `json:"tx_hash"`
	ExpiresAt         time.Time `json:"expires_at"`
	NewTokensFound    int       `json:"new_tokens_found"`
	LastPolledAt      time.Time `json:"last_polled_at,omitempty"`
}
