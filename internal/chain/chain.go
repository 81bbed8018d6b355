// Package chain defines the capability surface the detection engine
// needs from a blockchain RPC provider.
package chain

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrBadData marks malformed or inconsistent provider responses. The
// detection engine's circuit breaker counts only this error class;
// transport errors are treated as transient.
var ErrBadData = errors.New("bad chain data")

// Transaction is a chain-agnostic view of an observed transaction.
// Value and GasPrice are in the chain's base unit (wei, lamports).
type Transaction struct {
	Hash        string
	From        string
	To          string
	Value       *big.Int
	GasPrice    *big.Int
	Input       []byte
	BlockNumber int64
	Timestamp   time.Time
}

// Block is a fetched block with its transactions.
type Block struct {
	Number       int64
	Timestamp    time.Time
	Transactions []Transaction
}

// Client is the minimal RPC capability set used by a detection engine.
type Client interface {
	// BlockNumber returns the latest block height (slot on Solana).
	BlockNumber(ctx context.Context) (int64, error)

	// GetBlock fetches a block with full transactions.
	// Returns nil when the block is not (yet) available.
	GetBlock(ctx context.Context, number int64) (*Block, error)

	// GetTransaction fetches a transaction by hash.
	// Returns nil when not found.
	GetTransaction(ctx context.Context, hash string) (*Transaction, error)

	// GetBalance returns the address balance in base units.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// BaseUnits is the number of base units per display unit.
	BaseUnits() *big.Int
}

// ToDisplay converts a base-unit value to display units.
func ToDisplay(value *big.Int, baseUnits *big.Int) float64 {
	if value == nil || value.Sign() <= 0 {
		return 0
	}
	f := new(big.Float).SetInt(value)
	f.Quo(f, new(big.Float).SetInt(baseUnits))
	out, _ := f.Float64()
	return out
}
