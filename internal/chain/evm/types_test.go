package evm

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/chain"
)

func TestParseHexInt64(t *testing.T) {
	n, err := parseHexInt64("0x1b4")
	require.NoError(t, err)
	assert.Equal(t, int64(436), n)

	n, err = parseHexInt64("0x0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = parseHexInt64("0x")
	assert.Error(t, err)
	_, err = parseHexInt64("0xzz")
	assert.Error(t, err)
}

func TestParseHexBig(t *testing.T) {
	v, err := parseHexBig("0xde0b6b3a7640000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	// Empty quantities decode as zero; some providers elide them
	v, err = parseHexBig("0x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())

	_, err = parseHexBig("0xnothex")
	assert.Error(t, err)
}

func TestRawBlock_ToBlock(t *testing.T) {
	raw := &rawBlock{
		Number:    "0x10",
		Timestamp: "0x64000000",
		Transactions: []rawTransaction{
			{
				Hash:     "0xh1",
				From:     "0xfrom",
				To:       "0xto",
				Value:    "0xde0b6b3a7640000",
				GasPrice: "0x3b9aca00",
				Input:    "0xa9059cbb0000",
			},
			{
				Hash:  "0xh2",
				From:  "0xfrom",
				Value: "0x0",
				Input: "0x",
			},
		},
	}

	blk, err := raw.toBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(16), blk.Number)
	assert.Equal(t, time.Unix(0x64000000, 0).UTC(), blk.Timestamp)
	require.Len(t, blk.Transactions, 2)

	tx := blk.Transactions[0]
	assert.Equal(t, "0xh1", tx.Hash)
	assert.Equal(t, "1000000000000000000", tx.Value.String())
	assert.Equal(t, big.NewInt(1_000_000_000), tx.GasPrice)
	assert.Equal(t, int64(16), tx.BlockNumber)
	assert.Equal(t, blk.Timestamp, tx.Timestamp)
	require.Len(t, tx.Input, 6)
	assert.Equal(t, byte(0xa9), tx.Input[0])

	// "0x" input decodes to no call data
	assert.Nil(t, blk.Transactions[1].Input)
}

func TestRawBlock_BadFieldsAreBadData(t *testing.T) {
	_, err := (&rawBlock{Number: "0xnope", Timestamp: "0x1"}).toBlock()
	assert.True(t, errors.Is(err, chain.ErrBadData))

	_, err = (&rawBlock{Number: "0x1", Timestamp: "0x1", Transactions: []rawTransaction{
		{Hash: "0xh", Value: "0xbadvalue"},
	}}).toBlock()
	assert.True(t, errors.Is(err, chain.ErrBadData))
}
