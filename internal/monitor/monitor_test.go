package monitor

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain"
)

type fakeHoldings struct {
	mu     sync.Mutex
	tokens []string
	err    error
	calls  int
}

func (f *fakeHoldings) Holdings(ctx context.Context, chain domain.Chain, address string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(f.tokens))
	copy(out, f.tokens)
	return out, nil
}

func (f *fakeHoldings) set(tokens ...string) {
	f.mu.Lock()
	f.tokens = tokens
	f.mu.Unlock()
}

func (f *fakeHoldings) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type acquisitionLog struct {
	mu    sync.Mutex
	found []string
}

func (a *acquisitionLog) record(ctx context.Context, whale, token string, chain domain.Chain, txHash string) {
	a.mu.Lock()
	a.found = append(a.found, token)
	a.mu.Unlock()
}

func (a *acquisitionLog) tokens() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.found))
	copy(out, a.found)
	return out
}

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

func TestStart_SecondStartIsNoOp(t *testing.T) {
	holdings := &fakeHoldings{tokens: []string{"0xaaa", "0xbbb"}}
	m := New(holdings, nil, testLogger(), WithPollInterval(time.Hour), WithDuration(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, domain.ChainEthereum, "0xwhale", 100, "0xh1")
	require.True(t, m.IsMonitored(domain.ChainEthereum, "0xwhale"))
	require.Equal(t, 1, holdings.callCount())

	// A second qualifying transfer to the same address must not reset
	// the session or refetch the baseline.
	m.Start(ctx, domain.ChainEthereum, "0xwhale", 500, "0xh2")
	assert.Equal(t, 1, holdings.callCount())

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 100.0, active[0].TransferredAmount)
	assert.Equal(t, "0xh1", active[0].TxHash)
	assert.ElementsMatch(t, []string{"0xaaa", "0xbbb"}, active[0].InitialTokens)
}

func TestStart_SameAddressDifferentChains(t *testing.T) {
	holdings := &fakeHoldings{}
	m := New(holdings, nil, testLogger(), WithPollInterval(time.Hour), WithDuration(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, domain.ChainEthereum, "0xwhale", 100, "")
	m.Start(ctx, domain.ChainBNB, "0xwhale", 100, "")
	assert.Len(t, m.Active(), 2)
}

func TestStart_BaselineErrorReleasesSlot(t *testing.T) {
	holdings := &fakeHoldings{err: errors.New("rpc down")}
	m := New(holdings, nil, testLogger())

	m.Start(context.Background(), domain.ChainEthereum, "0xwhale", 100, "")
	assert.False(t, m.IsMonitored(domain.ChainEthereum, "0xwhale"))

	// The failed attempt must not block a retry
	holdings.mu.Lock()
	holdings.err = nil
	holdings.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, domain.ChainEthereum, "0xwhale", 100, "")
	assert.True(t, m.IsMonitored(domain.ChainEthereum, "0xwhale"))
}

func TestPoll_ReportsNewTokensExactlyOnce(t *testing.T) {
	holdings := &fakeHoldings{tokens: []string{"0xaaa"}}
	found := &acquisitionLog{}
	m := New(holdings, found.record, testLogger(),
		WithPollInterval(10*time.Millisecond), WithDuration(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, domain.ChainEthereum, "0xwhale", 100, "")

	// Acquire a token after the baseline snapshot
	holdings.set("0xaaa", "0xnew")

	assert.Eventually(t, func() bool {
		return len(found.tokens()) > 0
	}, time.Second, 5*time.Millisecond)

	// Several more polls happen; the same token must not repeat and
	// baseline tokens never count as new.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"0xnew"}, found.tokens())

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].NewTokensFound)
}

func TestRun_ExpiresAfterDuration(t *testing.T) {
	holdings := &fakeHoldings{}
	m := New(holdings, nil, testLogger(),
		WithPollInterval(time.Hour), WithDuration(30*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, domain.ChainSolana, "whale111", 5000, "")
	require.True(t, m.IsMonitored(domain.ChainSolana, "whale111"))

	assert.Eventually(t, func() bool {
		return !m.IsMonitored(domain.ChainSolana, "whale111")
	}, time.Second, 5*time.Millisecond)
}

func TestStop_CancelsSession(t *testing.T) {
	holdings := &fakeHoldings{}
	m := New(holdings, nil, testLogger(),
		WithPollInterval(time.Hour), WithDuration(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, domain.ChainEthereum, "0xwhale", 100, "")
	m.Stop(domain.ChainEthereum, "0xwhale")

	assert.Eventually(t, func() bool {
		return !m.IsMonitored(domain.ChainEthereum, "0xwhale")
	}, time.Second, 5*time.Millisecond)
}
