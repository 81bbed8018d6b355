// Package observability exposes Prometheus metrics for the detection
// pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "whalewatch"

// Metrics holds all pipeline collectors.
type Metrics struct {
	BlocksProcessed   *prometheus.CounterVec
	WhaleTransactions *prometheus.CounterVec
	RPCErrors         *prometheus.CounterVec
	TokenAnalyses     *prometheus.CounterVec
	AlertsRaised      *prometheus.CounterVec
	LaunchesDetected  *prometheus.CounterVec
	BreakerOpens      *prometheus.CounterVec
	MonitoredWhales   *prometheus.GaugeVec
	PushClients       *prometheus.GaugeVec
	AnalysisDuration  prometheus.Histogram
}

// New registers the pipeline metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlocksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "Blocks or slots fully processed, by chain.",
		}, []string{"chain"}),
		WhaleTransactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "whale_transactions_total",
			Help:      "Qualifying whale transactions recorded, by chain and classification.",
		}, []string{"chain", "classification"}),
		RPCErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Chain RPC failures, by chain.",
		}, []string{"chain"}),
		TokenAnalyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_analyses_total",
			Help:      "Token risk assessments computed (cache misses), by chain.",
		}, []string{"chain"}),
		AlertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Whale alerts raised, by level.",
		}, []string{"level"}),
		LaunchesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_detected_total",
			Help:      "New token launches recorded, by chain.",
		}, []string{"chain"}),
		BreakerOpens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_opens_total",
			Help:      "Circuit breaker open transitions, by chain.",
		}, []string{"chain"}),
		MonitoredWhales: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitored_whales",
			Help:      "Whale addresses currently under acquisition monitoring, by chain.",
		}, []string{"chain"}),
		PushClients: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_clients",
			Help:      "Connected push subscribers, by transport.",
		}, []string{"transport"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a full token risk assessment.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// DefaultMetrics is registered on the default Prometheus registry.
var DefaultMetrics = New(prometheus.DefaultRegisterer)

// RecordBlock counts a processed block or slot.
func RecordBlock(chain string) {
	DefaultMetrics.BlocksProcessed.WithLabelValues(chain).Inc()
}

// RecordWhaleTransaction counts a recorded whale transaction.
func RecordWhaleTransaction(chain, classification string) {
	DefaultMetrics.WhaleTransactions.WithLabelValues(chain, classification).Inc()
}

// RecordRPCError counts a chain RPC failure.
func RecordRPCError(chain string) {
	DefaultMetrics.RPCErrors.WithLabelValues(chain).Inc()
}

// RecordTokenAnalysis counts a computed token assessment.
func RecordTokenAnalysis(chain string) {
	DefaultMetrics.TokenAnalyses.WithLabelValues(chain).Inc()
}

// ObserveAnalysisDuration records the wall time of a token assessment.
func ObserveAnalysisDuration(seconds float64) {
	DefaultMetrics.AnalysisDuration.Observe(seconds)
}

// RecordAlert counts a raised whale alert.
func RecordAlert(level string) {
	DefaultMetrics.AlertsRaised.WithLabelValues(level).Inc()
}

// RecordLaunch counts a recorded token launch.
func RecordLaunch(chain string) {
	DefaultMetrics.LaunchesDetected.WithLabelValues(chain).Inc()
}

// RecordBreakerOpen counts a breaker opening.
func RecordBreakerOpen(chain string) {
	DefaultMetrics.BreakerOpens.WithLabelValues(chain).Inc()
}

// SetMonitoredWhales updates the monitored-whale gauge for a chain.
func SetMonitoredWhales(chain string, n int) {
	DefaultMetrics.MonitoredWhales.WithLabelValues(chain).Set(float64(n))
}

// SetPushClients updates the connected-subscriber gauge.
func SetPushClients(transport string, n int) {
	DefaultMetrics.PushClients.WithLabelValues(transport).Set(float64(n))
}
