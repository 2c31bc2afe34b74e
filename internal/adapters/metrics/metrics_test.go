package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/logger"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
	ctxErr error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchRecorderCount(t *testing.T) {
	client := &fakeCloudWatch{}
	r := NewCloudWatchRecorder(client, "PrebidCache", "stack-a", logger.NewZapAdapterFromLogger(zaptest.NewLogger(t)))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Count(context.Background(), domain.MetricPostCount, 3)

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "PrebidCache", aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 1)
	datum := in.MetricData[0]
	assert.Equal(t, "PostCount", aws.ToString(datum.MetricName))
	assert.Equal(t, 3.0, aws.ToFloat64(datum.Value))
	assert.Equal(t, types.StandardUnitCount, datum.Unit)
	assert.Equal(t, now, aws.ToTime(datum.Timestamp))
	require.Len(t, datum.Dimensions, 1)
	assert.Equal(t, "stack-name", aws.ToString(datum.Dimensions[0].Name))
	assert.Equal(t, "stack-a", aws.ToString(datum.Dimensions[0].Value))
}

func TestCloudWatchRecorderSurvivesCancelledRequest(t *testing.T) {
	client := &fakeCloudWatch{}
	r := NewCloudWatchRecorder(client, "ns", "stack", logger.NewZapAdapterFromLogger(zaptest.NewLogger(t)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.Count(ctx, domain.MetricGetSuccess, 1)

	require.Len(t, client.inputs, 1)
	assert.NoError(t, client.ctxErr)
}

func TestCloudWatchRecorderSwallowsErrors(t *testing.T) {
	client := &fakeCloudWatch{err: errors.New("throttled")}
	r := NewCloudWatchRecorder(client, "ns", "stack", logger.NewZapAdapterFromLogger(zaptest.NewLogger(t)))

	assert.NotPanics(t, func() { r.Count(context.Background(), domain.MetricPostFail, 1) })
	assert.Len(t, client.inputs, 1)
}

type recordingRecorder struct {
	names []string
}

func (r *recordingRecorder) Count(_ context.Context, name string, _ float64) {
	r.names = append(r.names, name)
}

func TestMultiRecorder(t *testing.T) {
	a, b := &recordingRecorder{}, &recordingRecorder{}
	MultiRecorder{a, NopRecorder{}, b}.Count(context.Background(), domain.MetricGetNotFound, 1)

	assert.Equal(t, []string{"GetNotFound"}, a.names)
	assert.Equal(t, []string{"GetNotFound"}, b.names)
}

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	beforeItems := testutil.ToFloat64(PutItemsTotal)
	beforeSuccess := testutil.ToFloat64(CacheEventsTotal.WithLabelValues(domain.MetricPostSuccess))

	r.Count(ctx, domain.MetricPostCount, 4)
	r.Count(ctx, domain.MetricPostSuccess, 1)
	r.Count(ctx, domain.MetricPostSuccess, -1)

	assert.Equal(t, beforeItems+4, testutil.ToFloat64(PutItemsTotal))
	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(CacheEventsTotal.WithLabelValues(domain.MetricPostSuccess)))
}
