package market

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"whalewatch/internal/domain"
)

// coingeckoIDs maps chains to CoinGecko coin identifiers.
var coingeckoIDs = map[domain.Chain]string{
	domain.ChainEthereum: "ethereum",
	domain.ChainBNB:      "binancecoin",
	domain.ChainSolana:   "solana",
}

// NativePrice returns the USD price of the chain's native token,
// trying Etherscan first and falling through to CoinGecko. A parsed
// price that is non-finite or non-positive counts as a failed fetch.
func (c *Client) NativePrice(ctx context.Context, chain domain.Chain) (float64, error) {
	if chain == domain.ChainEthereum || chain == domain.ChainBNB {
		if p, err := c.etherscanPrice(ctx); err == nil && validPrice(p) {
			return p, nil
		}
	}
	p, err := c.coingeckoPrice(ctx, chain)
	if err != nil {
		return 0, err
	}
	if !validPrice(p) {
		return 0, fmt.Errorf("implausible price %v for %s", p, chain)
	}
	return p, nil
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// etherscanPrice queries the Etherscan stats/ethprice endpoint.
func (c *Client) etherscanPrice(ctx context.Context) (float64, error) {
	u := fmt.Sprintf("%s?module=stats&action=ethprice", c.etherscanURL)
	if c.etherscanKey != "" {
		u += "&apikey=" + url.QueryEscape(c.etherscanKey)
	}

	var resp struct {
		Status string `json:"status"`
		Result struct {
			ETHUSD string `json:"ethusd"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "1" {
		return 0, fmt.Errorf("etherscan status %q", resp.Status)
	}
	return strconv.ParseFloat(resp.Result.ETHUSD, 64)
}

// coingeckoPrice queries the CoinGecko simple-price endpoint.
func (c *Client) coingeckoPrice(ctx context.Context, chain domain.Chain) (float64, error) {
	id, ok := coingeckoIDs[chain]
	if !ok {
		return 0, fmt.Errorf("no price source for chain %s", chain)
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.coingeckoURL, url.QueryEscape(id))
	var resp map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return 0, err
	}
	entry, ok := resp[id]
	if !ok {
		return 0, fmt.Errorf("price for %s missing from response", id)
	}
	return entry.USD, nil
}
