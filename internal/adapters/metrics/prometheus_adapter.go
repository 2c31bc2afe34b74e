package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

var (
	CacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prebid_cache_events_total",
			Help: "Cache service outcomes by metric name (GetSuccess, GetNotFound, PostSuccess, PostFail).",
		},
		[]string{"metric"},
	)

	PutItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prebid_cache_put_items_total",
			Help: "Number of items received in put batches.",
		},
	)
)

// PrometheusRecorder implements domain.MetricsRecorder on the process-wide
// Prometheus registry, exposed on /metrics by the HTTP runtime.
type PrometheusRecorder struct{}

var _ domain.MetricsRecorder = PrometheusRecorder{}

// NewPrometheusRecorder returns a recorder backed by the package counters.
func NewPrometheusRecorder() PrometheusRecorder {
	return PrometheusRecorder{}
}

// Count adds value to the counter for name.
func (PrometheusRecorder) Count(_ context.Context, name string, value float64) {
	if value < 0 {
		return
	}
	if name == domain.MetricPostCount {
		PutItemsTotal.Add(value)
		return
	}
	CacheEventsTotal.WithLabelValues(name).Add(value)
}
