package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics exposes the prometheus collectors for the lending core.
type LendingMetrics struct {
	operations    *prometheus.CounterVec
	liquidations  *prometheus.CounterVec
	priceFallback *prometheus.CounterVec
	securityHits  *prometheus.CounterVec
	reserves      prometheus.Gauge
	utilization   *prometheus.GaugeVec
	borrowRate    *prometheus.GaugeVec
	supplyRate    *prometheus.GaugeVec
	governance    *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the lazily registered lending metrics singleton.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "operations_total",
				Help:      "Count of ledger operations by action and outcome.",
			}, []string{"action", "outcome"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "liquidations_total",
				Help:      "Count of executed liquidations by asset.",
			}, []string{"asset"}),
			priceFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "oracle_fallback_total",
				Help:      "Count of fallback prices served by reason.",
			}, []string{"reason"}),
			securityHits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "security_alerts_total",
				Help:      "Count of AML and suspicious activity alerts by kind.",
			}, []string{"kind"}),
			reserves: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "current_reserves",
				Help:      "Protocol reserves currently held, 1e8 scaled.",
			}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "utilization_ratio",
				Help:      "Borrowed over supplied per asset.",
			}, []string{"asset"}),
			borrowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "borrow_rate",
				Help:      "Current annual borrow rate per asset.",
			}, []string{"asset"}),
			supplyRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "supply_rate",
				Help:      "Current annual supply rate per asset.",
			}, []string{"asset"}),
			governance: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "governance_actions_total",
				Help:      "Count of configuration governance actions by kind.",
			}, []string{"action"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.liquidations,
			lendingRegistry.priceFallback,
			lendingRegistry.securityHits,
			lendingRegistry.reserves,
			lendingRegistry.utilization,
			lendingRegistry.borrowRate,
			lendingRegistry.supplyRate,
			lendingRegistry.governance,
		)
	})
	return lendingRegistry
}

const scale = 100_000_000.0

func label(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func (m *LendingMetrics) ObserveOperation(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(label(action), outcome).Inc()
}

func (m *LendingMetrics) ObserveLiquidation(asset string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(strings.ToUpper(label(asset))).Inc()
}

func (m *LendingMetrics) ObservePriceFallback(reason string) {
	if m == nil {
		return
	}
	m.priceFallback.WithLabelValues(label(reason)).Inc()
}

func (m *LendingMetrics) ObserveSecurityAlert(kind string) {
	if m == nil {
		return
	}
	m.securityHits.WithLabelValues(label(kind)).Inc()
}

// SetReserves records the current reserve balance from its scaled value.
func (m *LendingMetrics) SetReserves(scaled int64) {
	if m == nil {
		return
	}
	m.reserves.Set(float64(scaled) / scale)
}

// SetRates records utilization and rates for an asset from scaled values.
func (m *LendingMetrics) SetRates(asset string, utilization, borrowRate, supplyRate int64) {
	if m == nil {
		return
	}
	symbol := strings.ToUpper(label(asset))
	m.utilization.WithLabelValues(symbol).Set(float64(utilization) / scale)
	m.borrowRate.WithLabelValues(symbol).Set(float64(borrowRate) / scale)
	m.supplyRate.WithLabelValues(symbol).Set(float64(supplyRate) / scale)
}

func (m *LendingMetrics) ObserveGovernance(action string) {
	if m == nil {
		return
	}
	m.governance.WithLabelValues(label(action)).Inc()
}
