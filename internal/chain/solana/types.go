package solana

import (
	"math/big"
	"time"

	"whalewatch/internal/chain"
)

// Raw RPC result shapes.

type getBlockResult struct {
	BlockTime    *int64              `json:"blockTime"`
	Transactions []getBlockTxWrapper `json:"transactions"`
}

type getBlockTxWrapper struct {
	Slot        int64      `json:"slot,omitempty"`
	BlockTime   *int64     `json:"blockTime,omitempty"`
	Transaction getBlockTx `json:"transaction"`
	Meta        *txMeta    `json:"meta"`
}

type getBlockTx struct {
	Signatures []string   `json:"signatures"`
	Message    *txMessage `json:"message"`
}

type txMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

type txMeta struct {
	Err          interface{} `json:"err"`
	Fee          uint64      `json:"fee"`
	PreBalances  []uint64    `json:"preBalances"`
	PostBalances []uint64    `json:"postBalances"`
}

type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint string `json:"mint"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// toChainTransaction maps a Solana transaction to the chain-agnostic
// shape. The transfer value is the largest positive lamport delta and
// from/to are the accounts with the largest outflow/inflow. Vote and
// fee-only transactions yield no meaningful delta and are dropped.
func toChainTransaction(w *getBlockTxWrapper, slot int64, ts time.Time) *chain.Transaction {
	if w.Meta == nil || w.Transaction.Message == nil || len(w.Transaction.Signatures) == 0 {
		return nil
	}
	keys := w.Transaction.Message.AccountKeys
	pre, post := w.Meta.PreBalances, w.Meta.PostBalances
	if len(pre) != len(post) || len(pre) > len(keys) {
		return nil
	}

	var (
		maxIn, maxOut   int64
		toIdx, fromIdx  = -1, -1
	)
	for i := range pre {
		delta := int64(post[i]) - int64(pre[i])
		if delta > maxIn {
			maxIn = delta
			toIdx = i
		}
		if -delta > maxOut {
			maxOut = -delta
			fromIdx = i
		}
	}
	if toIdx < 0 || fromIdx < 0 || maxIn == 0 {
		return nil
	}

	tx := &chain.Transaction{
		Hash:        w.Transaction.Signatures[0],
		From:        keys[fromIdx],
		To:          keys[toIdx],
		Value:       big.NewInt(maxIn),
		BlockNumber: slot,
		Timestamp:   ts,
	}
	return tx
}
