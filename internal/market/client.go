// Package market provides HTTP clients for price quotes, trading-pair
// lookups and token-discovery feeds (Dexscreener, Etherscan, CoinGecko).
package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"whalewatch/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second
)

// Client talks to the market-data HTTP APIs with uniform retry/backoff.
type Client struct {
	http          *http.Client
	dexscreenerURL string
	etherscanURL   string
	coingeckoURL   string
	etherscanKey   string
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDexscreenerURL overrides the Dexscreener base URL.
func WithDexscreenerURL(u string) Option {
	return func(c *Client) { c.dexscreenerURL = u }
}

// WithEtherscanURL overrides the Etherscan-compatible base URL.
func WithEtherscanURL(u string) Option {
	return func(c *Client) { c.etherscanURL = u }
}

// WithCoingeckoURL overrides the CoinGecko base URL.
func WithCoingeckoURL(u string) Option {
	return func(c *Client) { c.coingeckoURL = u }
}

// WithEtherscanKey sets the Etherscan API key.
func WithEtherscanKey(k string) Option {
	return func(c *Client) { c.etherscanKey = k }
}

// WithMaxRetries sets the retry attempt cap.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a market-data client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{Timeout: DefaultTimeout},
		dexscreenerURL: "https://api.dexscreener.com",
		etherscanURL:   "https://api.etherscan.io/api",
		coingeckoURL:   "https://api.coingecko.com/api/v3",
		maxRetries:     DefaultMaxRetries,
		baseDelay:      DefaultBaseDelay,
		maxDelay:       DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DexChainID maps a chain to Dexscreener's chain identifier.
func DexChainID(c domain.Chain) string {
	switch c {
	case domain.ChainEthereum:
		return "ethereum"
	case domain.ChainBNB:
		return "bsc"
	case domain.ChainSolana:
		return "solana"
	default:
		return string(c)
	}
}

// TokenPairs looks up all trading pairs for a token, filtered to the
// given chain. No pairs is not an error: returns nil, nil.
func (c *Client) TokenPairs(ctx context.Context, chain domain.Chain, token string) ([]domain.TokenPair, error) {
	var resp struct {
		Pairs []rawPair `json:"pairs"`
	}
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", c.dexscreenerURL, url.PathEscape(token))
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("token pairs %s: %w", token, err)
	}
	if len(resp.Pairs) == 0 {
		return nil, nil
	}

	chainID := DexChainID(chain)
	var out []domain.TokenPair
	for i := range resp.Pairs {
		if chainID != "" && resp.Pairs[i].ChainID != chainID {
			continue
		}
		out = append(out, resp.Pairs[i].toDomain())
	}
	return out, nil
}

// Candidate is a (chain, token) pair surfaced by a discovery feed.
type Candidate struct {
	ChainID      string
	TokenAddress string
}

// BoostedTokens returns the latest boosted-token candidates.
func (c *Client) BoostedTokens(ctx context.Context) ([]Candidate, error) {
	return c.discoveryFeed(ctx, c.dexscreenerURL+"/token-boosts/latest/v1")
}

// TopBoostedTokens returns the top boosted-token candidates.
func (c *Client) TopBoostedTokens(ctx context.Context) ([]Candidate, error) {
	return c.discoveryFeed(ctx, c.dexscreenerURL+"/token-boosts/top/v1")
}

// LatestProfiles returns the newest token-profile candidates.
func (c *Client) LatestProfiles(ctx context.Context) ([]Candidate, error) {
	return c.discoveryFeed(ctx, c.dexscreenerURL+"/token-profiles/latest/v1")
}

func (c *Client) discoveryFeed(ctx context.Context, u string) ([]Candidate, error) {
	var resp []struct {
		ChainID      string `json:"chainId"`
		TokenAddress string `json:"tokenAddress"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("discovery feed: %w", err)
	}

	out := make([]Candidate, 0, len(resp))
	for _, r := range resp {
		if r.ChainID == "" || r.TokenAddress == "" {
			continue
		}
		out = append(out, Candidate{ChainID: r.ChainID, TokenAddress: r.TokenAddress})
	}
	return out, nil
}

// rawPair is the Dexscreener wire shape of a trading pair.
type rawPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	URL         string `json:"url"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUSD string `json:"priceUsd"`
	Txns     struct {
		H1  rawTxns `json:"h1"`
		H24 rawTxns `json:"h24"`
	} `json:"txns"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV           float64 `json:"fdv"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
	Info          *struct {
		ImageURL string `json:"imageUrl"`
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

type rawTxns struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

func (p *rawPair) toDomain() domain.TokenPair {
	out := domain.TokenPair{
		ChainID:     p.ChainID,
		DexID:       p.DexID,
		PairAddress: p.PairAddress,
		URL:         p.URL,
		BaseToken: domain.TokenRef{
			Address: p.BaseToken.Address,
			Name:    p.BaseToken.Name,
			Symbol:  p.BaseToken.Symbol,
		},
		QuoteToken: domain.TokenRef{
			Address: p.QuoteToken.Address,
			Name:    p.QuoteToken.Name,
			Symbol:  p.QuoteToken.Symbol,
		},
		LiquidityUSD:   p.Liquidity.USD,
		FDV:            p.FDV,
		MarketCap:      p.MarketCap,
		Volume24h:      p.Volume.H24,
		PriceChange24h: p.PriceChange.H24,
		TxnsH1:         domain.TxnCounts{Buys: p.Txns.H1.Buys, Sells: p.Txns.H1.Sells},
		TxnsH24:        domain.TxnCounts{Buys: p.Txns.H24.Buys, Sells: p.Txns.H24.Sells},
	}
	if v, err := strconv.ParseFloat(p.PriceUSD, 64); err == nil {
		out.PriceUSD = v
	}
	if p.PairCreatedAt > 0 {
		out.PairCreatedAt = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	if p.Info != nil {
		info := &domain.PairInfo{ImageURL: p.Info.ImageURL}
		for _, w := range p.Info.Websites {
			info.Websites = append(info.Websites, w.URL)
		}
		for _, s := range p.Info.Socials {
			info.Socials = append(info.Socials, s.URL)
		}
		out.Info = info
	}
	return out
}
