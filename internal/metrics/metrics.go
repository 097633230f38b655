// Package metrics publishes service telemetry to AWS CloudWatch: API
// request latency/count and the terminal outcome of each generation call.
// A nil collector is a no-op, so local development runs without AWS
// credentials.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"mealweek/internal/types"
)

// Metric and dimension names.
const (
	metricAPILatency        = "APILatency"
	metricAPIRequestCount   = "APIRequestCount"
	metricGenerationOutcome = "GenerationOutcome"
	metricGenerationLatency = "GenerationLatency"

	dimEndpoint = "Endpoint"
	dimMethod   = "Method"
	dimStatus   = "Status"
	dimOutcome  = "Outcome"
)

// publishTimeout bounds each PutMetricData call so a slow CloudWatch
// endpoint never delays request handling.
const publishTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Collector emits request and generation metrics to CloudWatch.
// Publishing is fire-and-forget: failures are logged, never propagated.
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCollector creates a Collector publishing to the given namespace.
func NewCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// NewCollectorFromEnv builds a Collector with the default AWS SDK
// credential chain for the given region.
func NewCollectorFromEnv(ctx context.Context, region, namespace string, logger *slog.Logger) (*Collector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewCollector(cloudwatch.NewFromConfig(awsCfg), namespace, logger), nil
}

// RecordRequest records API request latency and count for one handled
// request.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	if c == nil {
		return
	}

	dims := []cwtypes.Dimension{
		{Name: aws.String(dimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(dimMethod), Value: aws.String(method)},
		{Name: aws.String(dimStatus), Value: aws.String(status)},
	}

	c.publish(&cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(metricAPIRequestCount),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	})
}

// RecordGeneration records the terminal outcome and duration of one
// orchestrated generation call. Implements generation.OutcomeRecorder.
func (c *Collector) RecordGeneration(outcome types.GenerationOutcome, duration time.Duration) {
	if c == nil {
		return
	}

	dims := []cwtypes.Dimension{
		{Name: aws.String(dimOutcome), Value: aws.String(string(outcome))},
	}

	c.publish(&cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricGenerationOutcome),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(metricGenerationLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
		},
	})
}

// publish sends one PutMetricData call with a bounded timeout.
func (c *Collector) publish(input *cloudwatch.PutMetricDataInput) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Error("failed to publish metrics",
			slog.String("error", err.Error()),
		)
	}
}
