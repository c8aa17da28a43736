package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	orchestratorOnce sync.Once
	orchestratorReg  *OrchestratorMetrics

	readsOnce sync.Once
	readsReg  *ReadMetrics

	networkOnce sync.Once
	networkReg  *NetworkMetrics
)

// OrchestratorMetrics tracks user-initiated write operations.
type OrchestratorMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	failures   *prometheus.CounterVec
	approvals  *prometheus.CounterVec
}

// Orchestrator returns the singleton metrics for transaction orchestration.
func Orchestrator() *OrchestratorMetrics {
	orchestratorOnce.Do(func() {
		orchestratorReg = &OrchestratorMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "backchain",
				Subsystem: "orchestrator",
				Name:      "operations_total",
				Help:      "Write operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "backchain",
				Subsystem: "orchestrator",
				Name:      "operation_duration_seconds",
				Help:      "Wall time from first submission to final receipt.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
			}, []string{"operation"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "backchain",
				Subsystem: "orchestrator",
				Name:      "failures_total",
				Help:      "Failed write operations segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "backchain",
				Subsystem: "orchestrator",
				Name:      "approvals_total",
				Help:      "Allowance checks segmented by purpose and result (skipped, submitted, failed).",
			}, []string{"purpose", "result"}),
		}
		prometheus.MustRegister(
			orchestratorReg.operations,
			orchestratorReg.latency,
			orchestratorReg.failures,
			orchestratorReg.approvals,
		)
	})
	return orchestratorReg
}

// Observe records the outcome of one write operation. kind is ignored when
// err is nil.
func (m *OrchestratorMetrics) Observe(operation string, duration time.Duration, kind string, err error) {
	if m == nil {
		return
	}
	op := label(operation)
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(op, label(kind)).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordApproval counts one allowance check.
func (m *OrchestratorMetrics) RecordApproval(purpose, result string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(label(purpose), label(result)).Inc()
}

// ReadMetrics tracks the resilient read layer.
type ReadMetrics struct {
	fallbacks *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// Reads returns the singleton metrics for contract reads.
func Reads() *ReadMetrics {
	readsOnce.Do(func() {
		readsReg = &ReadMetrics{
			fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "backchain",
				Subsystem: "reads",
				Name:      "fallbacks_total",
				Help:      "Reads that returned their fallback value, by contract, method and error kind.",
			}, []string{"contract", "method", "kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "backchain",
				Subsystem: "reads",
				Name:      "failures_total",
				Help:      "Reads that failed without a fallback, by contract and method.",
			}, []string{"contract", "method"}),
		}
		prometheus.MustRegister(readsReg.fallbacks, readsReg.failures)
	})
	return readsReg
}

// RecordFallback counts a read served by its fallback.
func (m *ReadMetrics) RecordFallback(contract, method, kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(label(contract), label(method), label(kind)).Inc()
}

// RecordFailure counts a read whose error was propagated.
func (m *ReadMetrics) RecordFailure(contract, method string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(label(contract), label(method)).Inc()
}

// NetworkMetrics exposes the last dashboard snapshot as gauges.
type NetworkMetrics struct {
	totalSupply  prometheus.Gauge
	lockedRatio  prometheus.Gauge
	scarcity     prometheus.Gauge
	validators   prometheus.Gauge
	networkStake prometheus.Gauge
}

// Network returns the singleton dashboard gauges.
func Network() *NetworkMetrics {
	networkOnce.Do(func() {
		networkReg = &NetworkMetrics{
			totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "backchain",
				Subsystem: "network",
				Name:      "total_supply_tokens",
				Help:      "Token total supply in whole tokens.",
			}),
			lockedRatio: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "backchain",
				Subsystem: "network",
				Name:      "locked_ratio",
				Help:      "Share of supply held by the delegation manager and the NFT pool (0-1).",
			}),
			scarcity: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "backchain",
				Subsystem: "network",
				Name:      "scarcity_ratio",
				Help:      "Remaining mintable share of the mint pool (0-1).",
			}),
			validators: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "backchain",
				Subsystem: "network",
				Name:      "validators",
				Help:      "Number of validators reported by the delegation manager.",
			}),
			networkStake: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "backchain",
				Subsystem: "network",
				Name:      "pstake",
				Help:      "Total network pStake.",
			}),
		}
		prometheus.MustRegister(
			networkReg.totalSupply,
			networkReg.lockedRatio,
			networkReg.scarcity,
			networkReg.validators,
			networkReg.networkStake,
		)
	})
	return networkReg
}

// Record updates the gauges. supply is in base units with 18 decimals.
func (m *NetworkMetrics) Record(supply *big.Int, lockedPercent float64, scarcityBips uint64, validators int, pstake *big.Int) {
	if m == nil {
		return
	}
	whole := bigToFloat(supply) / 1e18
	m.totalSupply.Set(whole)
	m.lockedRatio.Set(lockedPercent / 100)
	m.scarcity.Set(float64(scarcityBips) / 10_000)
	m.validators.Set(float64(validators))
	m.networkStake.Set(bigToFloat(pstake))
}

func label(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
