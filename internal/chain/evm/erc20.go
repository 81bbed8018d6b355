package evm

import (
	"context"
	"encoding/hex"
	"strings"

	"whalewatch/internal/domain"
)

// ERC-20 read selectors (keccak256 of the canonical signatures).
const (
	selName     = "0x06fdde03"
	selSymbol   = "0x95d89b41"
	selDecimals = "0x313ce567"
)

// TokenMetadata reads ERC-20 name/symbol/decimals from a contract.
// Missing or unreadable fields are left zero; an error is returned only
// when every call fails.
func (c *HTTPClient) TokenMetadata(ctx context.Context, contract string) (*domain.TokenInfo, error) {
	info := &domain.TokenInfo{Address: ChecksumAddress(contract)}
	var lastErr error

	if out, err := c.Call(ctx, contract, selName); err == nil {
		info.Name = decodeABIString(out)
	} else {
		lastErr = err
	}
	if out, err := c.Call(ctx, contract, selSymbol); err == nil {
		info.Symbol = decodeABIString(out)
	} else {
		lastErr = err
	}
	if out, err := c.Call(ctx, contract, selDecimals); err == nil {
		if v, err := parseHexBig(out); err == nil && v.IsInt64() {
			info.Decimals = int(v.Int64())
		}
	} else {
		lastErr = err
	}

	if info.Name == "" && info.Symbol == "" && info.Decimals == 0 {
		return nil, lastErr
	}
	return info, nil
}

// decodeABIString decodes a single ABI-encoded string return value.
// Falls back to "" on any layout surprise.
func decodeABIString(out string) string {
	raw, err := hex.DecodeString(strings.TrimPrefix(out, "0x"))
	if err != nil || len(raw) < 64 {
		return ""
	}
	// offset word | length word | data
	length := int(raw[63])
	for _, b := range raw[32:63] {
		if b != 0 {
			// Length does not fit a small string, bail out
			return ""
		}
	}
	if 64+length > len(raw) {
		return ""
	}
	return strings.TrimRight(string(raw[64:64+length]), "\x00")
}
