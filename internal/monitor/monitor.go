// Package monitor tracks what tokens a whale address acquires in the
// window after receiving a large transfer.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"whalewatch/internal/domain"
	"whalewatch/internal/observability"
)

// Default configuration values.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultDuration     = time.Hour
)

// HoldingsSource lists the token addresses currently held by an address.
type HoldingsSource interface {
	Holdings(ctx context.Context, chain domain.Chain, address string) ([]string, error)
}

// AcquisitionFunc is invoked once per newly acquired token.
type AcquisitionFunc func(ctx context.Context, whale, token string, chain domain.Chain, txHash string)

// TokenAcquisitionMonitor polls monitored whale addresses and reports
// tokens absent from the baseline snapshot. At most one monitor runs
// per (chain, address); the baseline is captured at start and never
// refreshed.
type TokenAcquisitionMonitor struct {
	holdings HoldingsSource
	onFound  AcquisitionFunc
	logger   *log.Logger

	pollInterval time.Duration
	duration     time.Duration

	mu     sync.Mutex
	active map[string]*session
}

type session struct {
	whale    *domain.MonitoredWhale
	baseline map[string]bool
	reported map[string]bool
	cancel   context.CancelFunc
}

// Option configures TokenAcquisitionMonitor.
type Option func(*TokenAcquisitionMonitor)

// WithPollInterval sets the holdings poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(m *TokenAcquisitionMonitor) { m.pollInterval = d }
}

// WithDuration sets how long each whale stays monitored.
func WithDuration(d time.Duration) Option {
	return func(m *TokenAcquisitionMonitor) { m.duration = d }
}

// New creates a monitor.
func New(holdings HoldingsSource, onFound AcquisitionFunc, logger *log.Logger, opts ...Option) *TokenAcquisitionMonitor {
	m := &TokenAcquisitionMonitor{
		holdings:     holdings,
		onFound:      onFound,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		duration:     DefaultDuration,
		active:       make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sessionKey(chain domain.Chain, address string) string {
	return string(chain) + "|" + address
}

// Start begins monitoring an address. If the address is already under
// monitoring on that chain, the call is a no-op.
func (m *TokenAcquisitionMonitor) Start(ctx context.Context, chain domain.Chain, address string, amount float64, txHash string) {
	key := sessionKey(chain, address)

	m.mu.Lock()
	if _, exists := m.active[key]; exists {
		m.mu.Unlock()
		return
	}
	// Reserve the slot before the baseline fetch so a concurrent Start
	// for the same address cannot race into a second session.
	m.active[key] = nil
	m.mu.Unlock()

	baseline, err := m.holdings.Holdings(ctx, chain, address)
	if err != nil {
		m.logger.Printf("baseline %s %s: %v", chain, address, err)
		m.mu.Lock()
		delete(m.active, key)
		m.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	whale := &domain.MonitoredWhale{
		Address:           address,
		Chain:             chain,
		InitialTokens:     baseline,
		TransferredAmount: amount,
		StartedAt:         now,
		TxHash:            txHash,
		ExpiresAt:         now.Add(m.duration),
	}

	runCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		whale:    whale,
		baseline: toSet(baseline),
		reported: make(map[string]bool),
		cancel:   cancel,
	}

	m.mu.Lock()
	m.active[key] = sess
	observability.SetMonitoredWhales(string(chain), m.countLocked(chain))
	m.mu.Unlock()

	m.logger.Printf("watching %s on %s, baseline %d tokens", address, chain, len(baseline))
	go m.run(runCtx, key, sess)
}

// Stop cancels the monitor for an address, if one is running.
func (m *TokenAcquisitionMonitor) Stop(chain domain.Chain, address string) {
	m.mu.Lock()
	sess := m.active[sessionKey(chain, address)]
	m.mu.Unlock()
	if sess != nil {
		sess.cancel()
	}
}

// Active returns snapshots of all running monitors.
func (m *TokenAcquisitionMonitor) Active() []*domain.MonitoredWhale {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.MonitoredWhale, 0, len(m.active))
	for _, sess := range m.active {
		if sess == nil {
			continue
		}
		cp := *sess.whale
		out = append(out, &cp)
	}
	return out
}

// IsMonitored reports whether an address is under monitoring.
func (m *TokenAcquisitionMonitor) IsMonitored(chain domain.Chain, address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionKey(chain, address)]
	return ok
}

func (m *TokenAcquisitionMonitor) run(ctx context.Context, key string, sess *session) {
	defer func() {
		sess.cancel()
		m.mu.Lock()
		delete(m.active, key)
		observability.SetMonitoredWhales(string(sess.whale.Chain), m.countLocked(sess.whale.Chain))
		m.mu.Unlock()
		m.logger.Printf("finished %s on %s, %d new tokens",
			sess.whale.Address, sess.whale.Chain, sess.whale.NewTokensFound)
	}()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	expiry := time.NewTimer(time.Until(sess.whale.ExpiresAt))
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			return
		case <-ticker.C:
			m.poll(ctx, sess)
		}
	}
}

func (m *TokenAcquisitionMonitor) poll(ctx context.Context, sess *session) {
	whale := sess.whale
	current, err := m.holdings.Holdings(ctx, whale.Chain, whale.Address)
	if err != nil {
		m.logger.Printf("poll %s %s: %v", whale.Chain, whale.Address, err)
		return
	}

	m.mu.Lock()
	whale.LastPolledAt = time.Now().UTC()
	var fresh []string
	for _, token := range current {
		if sess.baseline[token] || sess.reported[token] {
			continue
		}
		sess.reported[token] = true
		whale.NewTokensFound++
		fresh = append(fresh, token)
	}
	m.mu.Unlock()

	for _, token := range fresh {
		m.logger.Printf("%s acquired new token %s on %s", whale.Address, token, whale.Chain)
		if m.onFound != nil {
			m.onFound(ctx, whale.Address, token, whale.Chain, whale.TxHash)
		}
	}
}

func (m *TokenAcquisitionMonitor) countLocked(chain domain.Chain) int {
	n := 0
	for _, sess := range m.active {
		if sess != nil && sess.whale.Chain == chain {
			n++
		}
	}
	return n
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
