package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics pushes operation metrics to CloudWatch. A nil client disables it.
type Metrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
}

func NewMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{namespace: namespace, client: client, logger: logger}
}

// RecordCommandExecution records metrics for command execution
func (m *Metrics) RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, err error) {
	if m == nil || m.client == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	dims := []types.Dimension{
		{Name: aws.String("CommandName"), Value: aws.String(commandName)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	now := aws.Time(time.Now())

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("CommandExecution"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  now,
		},
		{
			MetricName: aws.String("CommandCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  now,
		},
	})
}

// RecordSovereigntyScore publishes the percentage of a completed scan.
func (m *Metrics) RecordSovereigntyScore(ctx context.Context, percentage int, tier string) {
	if m == nil || m.client == nil {
		return
	}
	m.put(ctx, []types.MetricDatum{{
		MetricName: aws.String("SovereigntyScore"),
		Dimensions: []types.Dimension{{Name: aws.String("Tier"), Value: aws.String(tier)}},
		Value:      aws.Float64(float64(percentage)),
		Unit:       types.StandardUnitPercent,
		Timestamp:  aws.Time(time.Now()),
	}})
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("Failed to send metrics", zap.Error(err), zap.String("namespace", m.namespace))
	}
}
