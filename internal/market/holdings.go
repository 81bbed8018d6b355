package market

import (
	"context"
	"fmt"
	"net/url"
)

// AddressTokens returns the token contract addresses held by an EVM
// address, via the Etherscan-compatible addresstokenbalance endpoint.
// An empty portfolio returns nil, nil.
func (c *Client) AddressTokens(ctx context.Context, address string) ([]string, error) {
	u := fmt.Sprintf("%s?module=account&action=addresstokenbalance&address=%s&page=1&offset=100",
		c.etherscanURL, url.QueryEscape(address))
	if c.etherscanKey != "" {
		u += "&apikey=" + url.QueryEscape(c.etherscanKey)
	}

	var resp struct {
		Status string `json:"status"`
		Result []struct {
			TokenAddress string `json:"TokenAddress"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("address tokens %s: %w", address, err)
	}
	// Status "0" with empty result means no token holdings
	if resp.Status != "1" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, r := range resp.Result {
		if r.TokenAddress != "" && !seen[r.TokenAddress] {
			seen[r.TokenAddress] = true
			out = append(out, r.TokenAddress)
		}
	}
	return out, nil
}
