package domain

import "context"

// Counter names emitted by the cache service.
const (
	MetricGetNotFound = "GetNotFound"
	MetricGetSuccess  = "GetSuccess"
	MetricPostFail    = "PostFail"
	MetricPostSuccess = "PostSuccess"
	MetricPostCount   = "PostCount"
)

// MetricsRecorder emits named counters. Emission is best-effort: implementations
// must not fail the request they are called from.
type MetricsRecorder interface {
	Count(ctx context.Context, name string, value float64)
}
