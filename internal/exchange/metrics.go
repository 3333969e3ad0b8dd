package exchange

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики слоя подключений
// ============================================================

// requestsTotal - счетчик исходящих запросов к биржевым API
var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradedesk",
		Subsystem: "exchange",
		Name:      "requests_total",
		Help:      "Outbound exchange API requests by provider, operation and outcome",
	},
	[]string{"provider", "operation", "outcome"},
)

// requestDuration - латентность запросов к биржевым API
var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradedesk",
		Subsystem: "exchange",
		Name:      "request_duration_seconds",
		Help:      "Exchange API request latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"provider", "operation"},
)

// observeRequest фиксирует метрики одного вызова биржевого API
func observeRequest(provider, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	requestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
