package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"whalewatch/internal/chain"
)

// rawBlock is the wire shape of eth_getBlockByNumber with full txs.
type rawBlock struct {
	Number       string           `json:"number"`
	Timestamp    string           `json:"timestamp"`
	Transactions []rawTransaction `json:"transactions"`
}

// rawTransaction is the wire shape of an EVM transaction object.
type rawTransaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasPrice    string `json:"gasPrice"`
	Input       string `json:"input"`
	BlockNumber string `json:"blockNumber"`
}

func (b *rawBlock) toBlock() (*chain.Block, error) {
	number, err := parseHexInt64(b.Number)
	if err != nil {
		return nil, fmt.Errorf("%w: block number %q", chain.ErrBadData, b.Number)
	}
	ts, err := parseHexInt64(b.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: block timestamp %q", chain.ErrBadData, b.Timestamp)
	}

	blk := &chain.Block{
		Number:    number,
		Timestamp: time.Unix(ts, 0).UTC(),
	}
	for i := range b.Transactions {
		tx, err := b.Transactions[i].toTransaction()
		if err != nil {
			return nil, err
		}
		tx.BlockNumber = number
		tx.Timestamp = blk.Timestamp
		blk.Transactions = append(blk.Transactions, *tx)
	}
	return blk, nil
}

func (t *rawTransaction) toTransaction() (*chain.Transaction, error) {
	value, err := parseHexBig(t.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: tx value %q", chain.ErrBadData, t.Value)
	}

	tx := &chain.Transaction{
		Hash:  t.Hash,
		From:  t.From,
		To:    t.To,
		Value: value,
	}
	if t.GasPrice != "" {
		if gp, err := parseHexBig(t.GasPrice); err == nil {
			tx.GasPrice = gp
		}
	}
	if t.BlockNumber != "" {
		if n, err := parseHexInt64(t.BlockNumber); err == nil {
			tx.BlockNumber = n
		}
	}
	if len(t.Input) > 2 {
		if data, err := hex.DecodeString(strings.TrimPrefix(t.Input, "0x")); err == nil {
			tx.Input = data
		}
	}
	return tx, nil
}

// parseHexInt64 parses a 0x-prefixed hex quantity into int64.
func parseHexInt64(s string) (int64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	return strconv.ParseInt(s, 16, 64)
}

// parseHexBig parses a 0x-prefixed hex quantity into *big.Int.
func parseHexBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("malformed hex quantity %q", s)
	}
	return v, nil
}
