package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain"
)

func fastClient(opts ...Option) *Client {
	c := NewClient(opts...)
	c.baseDelay = time.Millisecond
	c.maxDelay = 5 * time.Millisecond
	return c
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(http.StatusTooManyRequests))
	assert.True(t, retryableStatus(http.StatusInternalServerError))
	assert.True(t, retryableStatus(http.StatusBadGateway))

	assert.False(t, retryableStatus(http.StatusOK))
	assert.False(t, retryableStatus(http.StatusBadRequest))
	assert.False(t, retryableStatus(http.StatusNotFound))
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()

	c := fastClient(WithDexscreenerURL(srv.URL))
	pairs, err := c.TokenPairs(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	assert.Nil(t, pairs)
	assert.Equal(t, int64(3), hits.Load())
}

func TestGetJSON_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := fastClient(WithDexscreenerURL(srv.URL))
	_, err := c.TokenPairs(context.Background(), domain.ChainEthereum, "0xtok")
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestTokenPairs_FiltersByChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/latest/dex/tokens/0xtok")
		w.Write([]byte(`{"pairs":[
			{"chainId":"ethereum","pairAddress":"0xp1",
			 "baseToken":{"address":"0xb","name":"Base","symbol":"BASE"},
			 "quoteToken":{"address":"0xq","symbol":"WETH"},
			 "priceUsd":"1.25","liquidity":{"usd":150000},
			 "volume":{"h24":30000},"priceChange":{"h24":-4.2},
			 "txns":{"h1":{"buys":12,"sells":9},"h24":{"buys":300,"sells":250}},
			 "marketCap":900000,"fdv":1200000,"pairCreatedAt":1700000000000,
			 "info":{"imageUrl":"https://img/t.png",
			         "websites":[{"url":"https://example.com"}],
			         "socials":[{"type":"twitter","url":"https://x.com/t"}]}},
			{"chainId":"bsc","pairAddress":"0xp2",
			 "baseToken":{"symbol":"BASE"},"quoteToken":{"symbol":"WBNB"},
			 "liquidity":{"usd":5000}}
		]}`))
	}))
	defer srv.Close()

	c := fastClient(WithDexscreenerURL(srv.URL))
	pairs, err := c.TokenPairs(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, "0xp1", p.PairAddress)
	assert.Equal(t, "BASE", p.BaseToken.Symbol)
	assert.Equal(t, "WETH", p.QuoteToken.Symbol)
	assert.Equal(t, 1.25, p.PriceUSD)
	assert.Equal(t, 150_000.0, p.LiquidityUSD)
	assert.Equal(t, -4.2, p.PriceChange24h)
	assert.Equal(t, 12, p.TxnsH1.Buys)
	assert.Equal(t, 250, p.TxnsH24.Sells)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), p.PairCreatedAt)
	require.NotNil(t, p.Info)
	assert.Equal(t, []string{"https://example.com"}, p.Info.Websites)
	assert.Equal(t, []string{"https://x.com/t"}, p.Info.Socials)
}

func TestTokenPairs_NoPairsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":null}`))
	}))
	defer srv.Close()

	c := fastClient(WithDexscreenerURL(srv.URL))
	pairs, err := c.TokenPairs(context.Background(), domain.ChainSolana, "mint")
	require.NoError(t, err)
	assert.Nil(t, pairs)
}

func TestNativePrice_EtherscanFirst(t *testing.T) {
	ethersrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stats", r.URL.Query().Get("module"))
		w.Write([]byte(`{"status":"1","result":{"ethusd":"2450.50"}}`))
	}))
	defer ethersrv.Close()

	c := fastClient(WithEtherscanURL(ethersrv.URL))
	p, err := c.NativePrice(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 2450.50, p)
}

func TestNativePrice_FallsBackToCoingecko(t *testing.T) {
	ethersrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","result":{}}`))
	}))
	defer ethersrv.Close()
	geckosrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ethereum":{"usd":2400}}`))
	}))
	defer geckosrv.Close()

	c := fastClient(WithEtherscanURL(ethersrv.URL), WithCoingeckoURL(geckosrv.URL))
	p, err := c.NativePrice(context.Background(), domain.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 2400.0, p)
}

func TestNativePrice_SolanaSkipsEtherscan(t *testing.T) {
	var etherscanHit atomic.Bool
	ethersrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		etherscanHit.Store(true)
	}))
	defer ethersrv.Close()
	geckosrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"solana":{"usd":155.5}}`))
	}))
	defer geckosrv.Close()

	c := fastClient(WithEtherscanURL(ethersrv.URL), WithCoingeckoURL(geckosrv.URL))
	p, err := c.NativePrice(context.Background(), domain.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, 155.5, p)
	assert.False(t, etherscanHit.Load())
}

func TestNativePrice_RejectsImplausibleValues(t *testing.T) {
	geckosrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"solana":{"usd":0}}`))
	}))
	defer geckosrv.Close()

	c := fastClient(WithCoingeckoURL(geckosrv.URL))
	_, err := c.NativePrice(context.Background(), domain.ChainSolana)
	assert.Error(t, err)
}

func TestAddressTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "addresstokenbalance", r.URL.Query().Get("action"))
		w.Write([]byte(`{"status":"1","result":[
			{"TokenAddress":"0xaaa"},
			{"TokenAddress":"0xbbb"},
			{"TokenAddress":"0xaaa"},
			{"TokenAddress":""}
		]}`))
	}))
	defer srv.Close()

	c := fastClient(WithEtherscanURL(srv.URL))
	tokens, err := c.AddressTokens(context.Background(), "0xwhale")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, tokens)
}

func TestAddressTokens_EmptyPortfolio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","result":[]}`))
	}))
	defer srv.Close()

	c := fastClient(WithEtherscanURL(srv.URL))
	tokens, err := c.AddressTokens(context.Background(), "0xempty")
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestDiscoveryFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-boosts/latest/v1", r.URL.Path)
		w.Write([]byte(`[
			{"chainId":"solana","tokenAddress":"mint111"},
			{"chainId":"","tokenAddress":"dropme"},
			{"chainId":"ethereum","tokenAddress":""}
		]`))
	}))
	defer srv.Close()

	c := fastClient(WithDexscreenerURL(srv.URL))
	cands, err := c.BoostedTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, Candidate{ChainID: "solana", TokenAddress: "mint111"}, cands[0])
}
