package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

const (
	// StackNameDimension is the dimension the operational dashboards filter on.
	StackNameDimension = "stack-name"

	putMetricTimeout = 2 * time.Second
)

// PutMetricDataAPI is the CloudWatch operation used by CloudWatchRecorder.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes counters with PutMetricData. Failures are
// logged and otherwise ignored.
type CloudWatchRecorder struct {
	client         PutMetricDataAPI
	namespace      string
	resourcePrefix string
	logger         domain.Logger
	now            func() time.Time
}

var _ domain.MetricsRecorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder creates a recorder for namespace, tagging every datum
// with the stack-name dimension.
func NewCloudWatchRecorder(client PutMetricDataAPI, namespace, resourcePrefix string, logger domain.Logger) *CloudWatchRecorder {
	return &CloudWatchRecorder{
		client:         client,
		namespace:      namespace,
		resourcePrefix: resourcePrefix,
		logger:         logger,
		now:            time.Now,
	}
}

// Count publishes one Count datum.
func (r *CloudWatchRecorder) Count(ctx context.Context, name string, value float64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), putMetricTimeout)
	defer cancel()

	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       types.StandardUnitCount,
				Timestamp:  aws.Time(r.now().UTC()),
				Dimensions: []types.Dimension{
					{Name: aws.String(StackNameDimension), Value: aws.String(r.resourcePrefix)},
				},
			},
		},
	})
	if err != nil {
		r.logger.Warn(ctx, "Failed to publish CloudWatch metric", "metric", name, "namespace", r.namespace, "error", err)
	}
}

// MultiRecorder fans each count out to every wrapped recorder.
type MultiRecorder []domain.MetricsRecorder

// Count forwards to every recorder in order.
func (m MultiRecorder) Count(ctx context.Context, name string, value float64) {
	for _, r := range m {
		r.Count(ctx, name, value)
	}
}

// NopRecorder discards every count.
type NopRecorder struct{}

// Count does nothing.
func (NopRecorder) Count(context.Context, string, float64) {}
