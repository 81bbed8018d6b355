// Package api exposes the query surface over plain net/http.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"whalewatch/internal/breaker"
	"whalewatch/internal/chain/evm"
	"whalewatch/internal/chain/solana"
	"whalewatch/internal/domain"
	"whalewatch/internal/stats"
	"whalewatch/internal/storage"
)

// Default pagination values.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Engine is the per-chain detection view the API serves from.
// Implemented by detection.Engine.
type Engine interface {
	Chain() domain.Chain
	Breaker() breaker.State
	RecentTransactions(limit int, minUSD float64) []*domain.WhaleTransaction
	TransactionsByAddress(address string, limit int) []*domain.WhaleTransaction
	Whales() []*domain.WhaleAddress
	Whale(address string) *domain.WhaleAddress
}

// MonitorSource lists active acquisition monitors.
type MonitorSource interface {
	Active() []*domain.MonitoredWhale
}

// AnalysisSource serves cached token assessments without triggering
// fresh scoring.
type AnalysisSource interface {
	CachedAnalysis(chain domain.Chain, token string) *domain.TokenAnalysis
}

// Server wires the query endpoints onto an http.ServeMux.
type Server struct {
	engines  map[domain.Chain]Engine
	monitor  MonitorSource
	analyses AnalysisSource
	stats    *stats.Service
	alerts   storage.AlertStore
	launches storage.LaunchStore
	logger   *log.Logger
}

// NewServer creates the API server.
func NewServer(engines []Engine, monitor MonitorSource, analyses AnalysisSource, statsSvc *stats.Service, alerts storage.AlertStore, launches storage.LaunchStore, logger *log.Logger) *Server {
	byChain := make(map[domain.Chain]Engine, len(engines))
	for _, e := range engines {
		byChain[e.Chain()] = e
	}
	return &Server{
		engines:  byChain,
		monitor:  monitor,
		analyses: analyses,
		stats:    statsSvc,
		alerts:   alerts,
		launches: launches,
		logger:   logger,
	}
}

// Register attaches all routes to the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/whales", s.handleWhales)
	mux.HandleFunc("GET /api/whales/{address}", s.handleWhale)
	mux.HandleFunc("GET /api/addresses/{address}/transactions", s.handleAddressTransactions)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/trending", s.handleTrending)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/read", s.handleAlertRead)
	mux.HandleFunc("GET /api/analysis/{address}", s.handleAnalysis)
	mux.HandleFunc("GET /api/monitored", s.handleMonitored)
	mux.HandleFunc("GET /api/launches", s.handleLaunches)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

func (s *Server) selected(r *http.Request) []Engine {
	if c := r.URL.Query().Get("chain"); c != "" {
		if e, ok := s.engines[domain.Chain(c)]; ok {
			return []Engine{e}
		}
		return nil
	}
	out := make([]Engine, 0, len(s.engines))
	for _, e := range s.engines {
		out = append(out, e)
	}
	return out
}

// validAddress checks address syntax for the chains in play. With no
// chain hint, any supported chain's format is accepted.
func validAddress(chain domain.Chain, address string) bool {
	switch chain {
	case domain.ChainEthereum, domain.ChainBNB:
		return evm.IsValidAddress(address)
	case domain.ChainSolana:
		return solana.IsValidAddress(address)
	default:
		return evm.IsValidAddress(address) || solana.IsValidAddress(address)
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minUSD := parseFloat(q.Get("min_usd"))
	symbol := q.Get("symbol")
	limit, offset := pagination(q.Get("limit"), q.Get("offset"))

	var all []*domain.WhaleTransaction
	for _, e := range s.selected(r) {
		all = append(all, e.RecentTransactions(0, minUSD)...)
	}
	if symbol != "" {
		filtered := all[:0]
		for _, tx := range all {
			if tx.Token != nil && tx.Token.Symbol == symbol {
				filtered = append(filtered, tx)
			}
		}
		all = filtered
	}
	sortByTime(all)
	writeJSON(w, http.StatusOK, page(all, limit, offset))
}

func (s *Server) handleWhales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minBalance := parseFloat(q.Get("min_balance"))
	limit, offset := pagination(q.Get("limit"), q.Get("offset"))

	var all []*domain.WhaleAddress
	for _, e := range s.selected(r) {
		for _, wa := range e.Whales() {
			if minBalance > 0 && wa.BalanceUSD < minBalance {
				continue
			}
			all = append(all, wa)
		}
	}
	sortByBalance(all)
	writeJSON(w, http.StatusOK, page(all, limit, offset))
}

func (s *Server) handleWhale(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	chain := domain.Chain(r.URL.Query().Get("chain"))
	if !validAddress(chain, address) {
		writeError(w, http.StatusBadRequest, "malformed address")
		return
	}
	for _, e := range s.selected(r) {
		if wa := e.Whale(address); wa != nil {
			writeJSON(w, http.StatusOK, wa)
			return
		}
	}
	writeError(w, http.StatusNotFound, "whale not found")
}

func (s *Server) handleAddressTransactions(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	chain := domain.Chain(r.URL.Query().Get("chain"))
	if !validAddress(chain, address) {
		writeError(w, http.StatusBadRequest, "malformed address")
		return
	}
	limit, _ := pagination(r.URL.Query().Get("limit"), "")

	var all []*domain.WhaleTransaction
	for _, e := range s.selected(r) {
		all = append(all, e.TransactionsByAddress(address, limit)...)
	}
	sortByTime(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Stats(r.Context()))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := pagination(q.Get("limit"), "")

	tokens, err := s.stats.Trending(r.Context(), q.Get("timeframe"), limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if tokens == nil {
		tokens = []storage.TrendingToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r.URL.Query().Get("limit"), "")
	alerts, err := s.alerts.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "alert lookup failed")
		return
	}
	if alerts == nil {
		alerts = []*domain.WhaleAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAlertRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.alerts.MarkRead(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case err != nil:
		s.logger.Printf("mark read %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "alert update failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleAnalysis is a cache lookup only; it never triggers scoring.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	chain := domain.Chain(r.URL.Query().Get("chain"))
	if !validAddress(chain, address) {
		writeError(w, http.StatusBadRequest, "malformed address")
		return
	}

	chains := []domain.Chain{chain}
	if chain == "" {
		chains = []domain.Chain{domain.ChainEthereum, domain.ChainBNB, domain.ChainSolana}
	}
	for _, c := range chains {
		if a := s.analyses.CachedAnalysis(c, address); a != nil {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeError(w, http.StatusNotFound, "no cached analysis")
}

func (s *Server) handleMonitored(w http.ResponseWriter, r *http.Request) {
	active := s.monitor.Active()
	if active == nil {
		active = []*domain.MonitoredWhale{}
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleLaunches(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r.URL.Query().Get("limit"), "")
	launches, err := s.launches.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("launches: %v", err)
		writeError(w, http.StatusInternalServerError, "launch lookup failed")
		return
	}
	if launches == nil {
		launches = []*domain.Launch{}
	}
	writeJSON(w, http.StatusOK, launches)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	chains := make(map[string]string, len(s.engines))
	for c, e := range s.engines {
		chains[string(c)] = string(e.Breaker())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"chains": chains,
		"time":   time.Now().UTC(),
	})
}

func pagination(limitStr, offsetStr string) (limit, offset int) {
	limit = DefaultLimit
	if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
		limit = n
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if n, err := strconv.Atoi(offsetStr); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func sortByTime(txs []*domain.WhaleTransaction) {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
}

func sortByBalance(whales []*domain.WhaleAddress) {
	sort.Slice(whales, func(i, j int) bool {
		return whales[i].BalanceUSD > whales[j].BalanceUSD
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
