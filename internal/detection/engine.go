// Package detection implements the per-chain whale detection engine:
// it screens observed transactions against value thresholds, maintains
// whale address records and a bounded transaction history, and hands
// qualifying recipients to the acquisition monitor.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"whalewatch/internal/batch"
	"whalewatch/internal/breaker"
	"whalewatch/internal/chain"
	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
	"whalewatch/internal/observability"
	"whalewatch/internal/storage"
)

// Default configuration values.
const (
	DefaultHistoryCap   = 1000
	DefaultBlockTxCap   = 50
	DefaultPriceRefresh = 30 * time.Second
)

// PriceSource quotes the chain's native token in USD. Implemented by
// market.Client.
type PriceSource interface {
	NativePrice(ctx context.Context, chain domain.Chain) (float64, error)
}

// MonitorStarter begins acquisition monitoring for a whale address.
// Implemented by monitor.TokenAcquisitionMonitor.
type MonitorStarter interface {
	Start(ctx context.Context, chain domain.Chain, address string, amount float64, txHash string)
}

// ClassifyFunc categorizes a transaction from its call data.
type ClassifyFunc func(input []byte) domain.TxClassification

// Config holds the engine's construction parameters.
type Config struct {
	Chain    domain.Chain
	Client   chain.Client
	Classify ClassifyFunc

	// MinValue is the qualifying transfer size in display units.
	// MaxValue caps it; zero means unbounded above.
	MinValue float64
	MaxValue float64

	// MinWhaleBalance is the balance bar for tracking an address as a
	// whale, independent of the transfer threshold. Zero falls back to
	// MinValue.
	MinWhaleBalance float64

	// TokenLookup resolves token metadata for a contract call target.
	// Optional; used when a qualifying transaction carries call data.
	TokenLookup func(ctx context.Context, contract string) (*domain.TokenInfo, error)

	Prices  PriceSource
	Monitor MonitorStarter
	Archive storage.TransactionArchive
	Bus     *fanout.Bus
	Logger  *log.Logger

	HistoryCap   int
	BlockTxCap   int
	PriceRefresh time.Duration
}

// Engine is the whale detection pipeline for a single chain.
type Engine struct {
	cfg   Config
	batch *batch.Processor
	brk   *breaker.Breaker

	mu      sync.RWMutex
	history []*domain.WhaleTransaction
	byHash  map[string]*domain.WhaleTransaction
	whales  map[string]*domain.WhaleAddress

	priceMu  sync.RWMutex
	priceUSD float64
	pricedAt time.Time
}

// NewEngine creates an engine for one chain.
func NewEngine(cfg Config) *Engine {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = DefaultHistoryCap
	}
	if cfg.BlockTxCap <= 0 {
		cfg.BlockTxCap = DefaultBlockTxCap
	}
	if cfg.PriceRefresh <= 0 {
		cfg.PriceRefresh = DefaultPriceRefresh
	}
	if cfg.MinWhaleBalance <= 0 {
		cfg.MinWhaleBalance = cfg.MinValue
	}
	if cfg.Classify == nil {
		cfg.Classify = func([]byte) domain.TxClassification { return domain.TxTransfer }
	}
	return &Engine{
		cfg:    cfg,
		batch:  batch.New(),
		brk:    breaker.New(),
		byHash: make(map[string]*domain.WhaleTransaction),
		whales: make(map[string]*domain.WhaleAddress),
	}
}

// Chain returns the chain this engine watches.
func (e *Engine) Chain() domain.Chain { return e.cfg.Chain }

// Breaker exposes the engine's circuit breaker state for health checks.
func (e *Engine) Breaker() breaker.State { return e.brk.State() }

// Start launches the background price refresher.
func (e *Engine) Start(ctx context.Context) {
	e.refreshPrice(ctx)
	go e.priceLoop(ctx)
}

// qualifies applies the value threshold. An exact threshold match
// qualifies; a zero value never does.
func (e *Engine) qualifies(value float64) bool {
	if value <= 0 || value < e.cfg.MinValue {
		return false
	}
	if e.cfg.MaxValue > 0 && value > e.cfg.MaxValue {
		return false
	}
	return true
}

// OnBlock screens a block's transactions, capped to BlockTxCap, through
// the rate-limited batch processor.
func (e *Engine) OnBlock(ctx context.Context, block *chain.Block) {
	if block == nil {
		return
	}
	txs := block.Transactions
	if len(txs) > e.cfg.BlockTxCap {
		txs = txs[:e.cfg.BlockTxCap]
	}
	for i := range txs {
		tx := txs[i]
		e.batch.Submit(func() error {
			e.Process(ctx, &tx, domain.TxConfirmed)
			return nil
		})
	}
	observability.RecordBlock(string(e.cfg.Chain))
}

// ProcessPendingHash resolves a pending transaction hash and screens it.
// Unresolvable hashes are dropped silently; the mempool churns too fast
// for them to be errors worth surfacing.
func (e *Engine) ProcessPendingHash(ctx context.Context, hash string) {
	if !e.brk.Allow() {
		return
	}
	tx, err := e.cfg.Client.GetTransaction(ctx, hash)
	if err != nil {
		e.noteRPCError(err)
		return
	}
	e.brk.RecordSuccess()
	if tx == nil {
		return
	}
	e.Process(ctx, tx, domain.TxPending)
}

// Process screens one transaction. A hash already recorded as pending
// is promoted to confirmed in place; any other duplicate is ignored.
// Nothing is processed while the breaker is open, so tasks already
// queued when it opens issue no further RPCs.
func (e *Engine) Process(ctx context.Context, tx *chain.Transaction, status domain.TxStatus) {
	if !e.brk.Allow() {
		return
	}
	value := chain.ToDisplay(tx.Value, e.cfg.Client.BaseUnits())
	if !e.qualifies(value) {
		return
	}

	price := e.Price()
	wtx := &domain.WhaleTransaction{
		Hash:           tx.Hash,
		From:           tx.From,
		To:             tx.To,
		Value:          strconv.FormatFloat(value, 'f', -1, 64),
		ValueUSD:       value * price,
		Timestamp:      tx.Timestamp,
		BlockNumber:    tx.BlockNumber,
		Classification: e.cfg.Classify(tx.Input),
		Status:         status,
		Chain:          e.cfg.Chain,
	}
	if wtx.Timestamp.IsZero() {
		wtx.Timestamp = time.Now().UTC()
	}
	if tx.GasPrice != nil {
		wtx.GasPrice = tx.GasPrice.String()
	}
	if len(tx.Input) >= 4 && tx.To != "" && e.cfg.TokenLookup != nil {
		if info, err := e.cfg.TokenLookup(ctx, tx.To); err == nil && info != nil {
			wtx.Token = info
		}
	}

	e.mu.Lock()
	if prev, seen := e.byHash[tx.Hash]; seen {
		if prev.Status == domain.TxPending && status == domain.TxConfirmed {
			prev.Status = domain.TxConfirmed
			prev.BlockNumber = tx.BlockNumber
			if !tx.Timestamp.IsZero() {
				prev.Timestamp = tx.Timestamp
			}
			wtx = prev
			e.mu.Unlock()
			e.afterConfirm(ctx, wtx)
		} else {
			e.mu.Unlock()
		}
		return
	}
	e.byHash[tx.Hash] = wtx
	e.history = append([]*domain.WhaleTransaction{wtx}, e.history...)
	if len(e.history) > e.cfg.HistoryCap {
		dropped := e.history[len(e.history)-1]
		delete(e.byHash, dropped.Hash)
		e.history = e.history[:e.cfg.HistoryCap]
	}
	e.mu.Unlock()

	observability.RecordWhaleTransaction(string(e.cfg.Chain), string(wtx.Classification))
	e.cfg.Logger.Printf("whale tx %s: %s %s ($%.0f) %s -> %s",
		wtx.Hash, wtx.Value, e.cfg.Chain.NativeSymbol(), wtx.ValueUSD, wtx.From, wtx.To)

	e.updateWhale(ctx, tx.From, value, price, wtx.Timestamp)
	e.updateWhale(ctx, tx.To, value, price, wtx.Timestamp)

	e.cfg.Bus.Publish(domain.EventTransaction, wtx)

	if status == domain.TxConfirmed {
		e.afterConfirm(ctx, wtx)
	}
}

// afterConfirm archives a confirmed transaction and hands the recipient
// to the acquisition monitor.
func (e *Engine) afterConfirm(ctx context.Context, wtx *domain.WhaleTransaction) {
	if e.cfg.Archive != nil {
		if err := e.cfg.Archive.Insert(ctx, wtx); err != nil {
			e.cfg.Logger.Printf("archive %s: %v", wtx.Hash, err)
		}
	}
	if e.cfg.Monitor != nil && wtx.To != "" {
		value, err := strconv.ParseFloat(wtx.Value, 64)
		if err != nil {
			value = 0
		}
		e.cfg.Monitor.Start(ctx, e.cfg.Chain, wtx.To, value, wtx.Hash)
	}
}

// updateWhale upserts the whale record for an address whose balance
// meets the whale-balance bar. Balance lookup failures skip the update.
func (e *Engine) updateWhale(ctx context.Context, address string, txValue, price float64, at time.Time) {
	if address == "" {
		return
	}
	raw, err := e.cfg.Client.GetBalance(ctx, address)
	if err != nil {
		e.noteRPCError(err)
		return
	}
	e.brk.RecordSuccess()

	balance := chain.ToDisplay(raw, e.cfg.Client.BaseUnits())
	if balance < e.cfg.MinWhaleBalance {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.whales[address]
	if !ok {
		w = &domain.WhaleAddress{
			Address:   address,
			FirstSeen: at,
			Chain:     e.cfg.Chain,
		}
		e.whales[address] = w
	}
	w.Balance = balance
	w.BalanceUSD = balance * price
	w.LastActivity = at
	w.TxCount++
	w.Active = true
}

// noteRPCError records a provider failure; only malformed-data errors
// count toward the breaker.
func (e *Engine) noteRPCError(err error) {
	observability.RecordRPCError(string(e.cfg.Chain))
	if errors.Is(err, chain.ErrBadData) {
		was := e.brk.State()
		e.brk.RecordFailure()
		if was == breaker.StateClosed && e.brk.State() == breaker.StateOpen {
			observability.RecordBreakerOpen(string(e.cfg.Chain))
			e.cfg.Logger.Printf("breaker opened after repeated bad responses")
		}
	}
}

// RecentTransactions returns up to limit transactions, newest first.
// minUSD > 0 filters by USD value.
func (e *Engine) RecentTransactions(limit int, minUSD float64) []*domain.WhaleTransaction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.WhaleTransaction, 0, limit)
	for _, tx := range e.history {
		if minUSD > 0 && tx.ValueUSD < minUSD {
			continue
		}
		cp := *tx
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// TransactionsByAddress returns transactions touching an address as
// sender or recipient, newest first.
func (e *Engine) TransactionsByAddress(address string, limit int) []*domain.WhaleTransaction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*domain.WhaleTransaction
	for _, tx := range e.history {
		if tx.From != address && tx.To != address {
			continue
		}
		cp := *tx
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Whales returns all known whale addresses sorted by USD balance
// descending.
func (e *Engine) Whales() []*domain.WhaleAddress {
	e.mu.RLock()
	out := make([]*domain.WhaleAddress, 0, len(e.whales))
	for _, w := range e.whales {
		cp := *w
		out = append(out, &cp)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].BalanceUSD > out[j].BalanceUSD
	})
	return out
}

// Whale returns one whale record, or nil if unknown.
func (e *Engine) Whale(address string) *domain.WhaleAddress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.whales[address]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

// Counts returns history length and whale count, for stats.
func (e *Engine) Counts() (transactions, whales int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history), len(e.whales)
}

// Price returns the last known native token price in USD.
func (e *Engine) Price() float64 {
	e.priceMu.RLock()
	defer e.priceMu.RUnlock()
	return e.priceUSD
}

func (e *Engine) priceLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PriceRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refreshPrice(ctx)
		}
	}
}

// refreshPrice updates the cached native price. On failure the stale
// value is kept; USD figures degrade rather than zero out.
func (e *Engine) refreshPrice(ctx context.Context) {
	if e.cfg.Prices == nil {
		return
	}
	p, err := e.cfg.Prices.NativePrice(ctx, e.cfg.Chain)
	if err != nil {
		e.cfg.Logger.Printf("price refresh: %v", err)
		return
	}
	e.priceMu.Lock()
	e.priceUSD = p
	e.pricedAt = time.Now().UTC()
	e.priceMu.Unlock()
}

// String implements fmt.Stringer for logging.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(%s)", e.cfg.Chain)
}
