package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type campaignMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	rewards    *prometheus.HistogramVec
}

var (
	campaignMetricsOnce sync.Once
	campaignRegistry    *campaignMetrics
)

// CampaignMetrics returns the lazily-initialised metrics registry used to
// record campaign module activity.
func CampaignMetrics() *campaignMetrics {
	campaignMetricsOnce.Do(func() {
		campaignRegistry = &campaignMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "giftnet",
				Subsystem: "campaign",
				Name:      "operations_total",
				Help:      "Total campaign operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "giftnet",
				Subsystem: "campaign",
				Name:      "failures_total",
				Help:      "Campaign operation failures segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			rewards: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "giftnet",
				Subsystem: "campaign",
				Name:      "reward_amount",
				Help:      "Distribution of paid reward amounts in base token units.",
				Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
			}, []string{"token"}),
		}
		prometheus.MustRegister(
			campaignRegistry.operations,
			campaignRegistry.failures,
			campaignRegistry.rewards,
		)
	})
	return campaignRegistry
}

// RecordOperation increments the operation counter with a success/failure
// outcome.
func (m *campaignMetrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
	if err != nil {
		m.failures.WithLabelValues(normalizeLabel(operation), errorKind(err)).Inc()
	}
}

// RecordReward observes a paid reward amount for the given token. Amounts
// beyond float precision saturate at the histogram's upper bucket.
func (m *campaignMetrics) RecordReward(token string, amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	if math.IsInf(value, 1) {
		value = math.MaxFloat64
	}
	m.rewards.WithLabelValues(normalizeLabel(token)).Observe(value)
}

func normalizeLabel(v string) string {
	trimmed := strings.TrimSpace(strings.ToLower(v))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

// errorKind maps module errors to a low-cardinality label. Sentinel errors
// render as "<module>: <kind>[: detail]", so the second segment carries the
// kind.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(err.Error(), ": ", 3)
	kind := parts[0]
	if len(parts) > 1 {
		kind = parts[1]
	}
	return normalizeLabel(strings.ReplaceAll(kind, " ", "_"))
}
