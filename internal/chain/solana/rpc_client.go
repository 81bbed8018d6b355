// Package solana provides a Solana JSON-RPC client mapped onto the
// chain.Client capability surface. Slots play the role of block numbers
// and transfer values are derived from pre/post balance deltas.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"whalewatch/internal/chain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

var lamportsPerSol = big.NewInt(1_000_000_000)

// HTTPClient implements chain.Client using Solana HTTP JSON-RPC.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ chain.Client = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Block-not-available error codes returned while a slot is skipped or
// still being produced.
func (e *rpcError) blockUnavailable() bool {
	return e.Code == -32007 || e.Code == -32004 || e.Code == -32009
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("%w: unmarshal response: %v", chain.ErrBadData, err)
		}
		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}
		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("%w: unmarshal result: %v", chain.ErrBadData, err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// BlockNumber returns the current slot.
func (c *HTTPClient) BlockNumber(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetBlock fetches a block by slot. Returns nil for skipped or not yet
// available slots.
func (c *HTTPClient) GetBlock(ctx context.Context, slot int64) (*chain.Block, error) {
	params := []interface{}{
		slot,
		map[string]interface{}{
			"encoding":                       "json",
			"transactionDetails":             "full",
			"maxSupportedTransactionVersion": 0,
			"rewards":                        false,
		},
	}

	var result getBlockResult
	if err := c.call(ctx, "getBlock", params, &result); err != nil {
		var rpcErr *rpcError
		if asRPCError(err, &rpcErr) && rpcErr.blockUnavailable() {
			return nil, nil
		}
		return nil, err
	}

	blk := &chain.Block{Number: slot}
	if result.BlockTime != nil {
		blk.Timestamp = time.Unix(*result.BlockTime, 0).UTC()
	}

	for _, w := range result.Transactions {
		tx := toChainTransaction(&w, slot, blk.Timestamp)
		if tx != nil {
			blk.Transactions = append(blk.Transactions, *tx)
		}
	}
	return blk, nil
}

// GetTransaction fetches a transaction by signature. Returns nil when
// not found.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*chain.Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getBlockTxWrapper
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	var ts time.Time
	if result.BlockTime != nil {
		ts = time.Unix(*result.BlockTime, 0).UTC()
	}
	tx := toChainTransaction(result, result.Slot, ts)
	if tx == nil {
		return nil, nil
	}
	tx.Hash = signature
	return tx, nil
}

// GetBalance returns the lamport balance for a pubkey.
func (c *HTTPClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !IsValidAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{address}, &result); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(result.Value), nil
}

// TokenHoldings returns the mint addresses of all SPL token accounts
// owned by the address.
func (c *HTTPClient) TokenHoldings(ctx context.Context, owner string) ([]string, error) {
	params := []interface{}{
		owner,
		map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		map[string]string{"encoding": "jsonParsed"},
	}

	var result tokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var mints []string
	for _, v := range result.Value {
		mint := v.Account.Data.Parsed.Info.Mint
		if mint != "" && !seen[mint] {
			seen[mint] = true
			mints = append(mints, mint)
		}
	}
	return mints, nil
}

// BaseUnits is lamports per SOL.
func (c *HTTPClient) BaseUnits() *big.Int {
	return lamportsPerSol
}

func asRPCError(err error, target **rpcError) bool {
	for err != nil {
		if e, ok := err.(*rpcError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
