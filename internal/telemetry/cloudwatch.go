// Package telemetry publishes API metrics to AWS CloudWatch.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"backoffice/internal/types"
)

const (
	// maxDatumsPerCall is the PutMetricData request limit.
	maxDatumsPerCall = 1000
	// maxBuffered caps memory when CloudWatch is unreachable. Newer datums
	// are dropped once it is reached.
	maxBuffered = 20000

	defaultFlushInterval = time.Minute
	finalFlushTimeout    = 5 * time.Second
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// NewCloudWatchClient builds a client from the default AWS credential chain.
// A non-empty endpoint overrides the service URL (LocalStack).
func NewCloudWatchClient(ctx context.Context, region, endpoint string) (*cloudwatch.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Config configures a Collector.
type Config struct {
	Client        CloudWatchClient
	Namespace     string
	FlushInterval time.Duration
	Logger        *slog.Logger
	Clock         types.Clock
}

// Collector buffers metric datums in memory and publishes them in batches.
// It implements core.MetricsCollector and the nickname miss counter.
type Collector struct {
	client    CloudWatchClient
	namespace string
	interval  time.Duration
	logger    *slog.Logger
	clock     types.Clock

	mu      sync.Mutex
	buf     []cwtypes.MetricDatum
	dropped int
}

// NewCollector creates a Collector. Run must be started for periodic flushes.
func NewCollector(cfg Config) *Collector {
	c := &Collector{
		client:    cfg.Client,
		namespace: cfg.Namespace,
		interval:  cfg.FlushInterval,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
	}
	if c.namespace == "" {
		c.namespace = types.MetricNamespace
	}
	if c.interval <= 0 {
		c.interval = defaultFlushInterval
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = types.RealClock{}
	}
	return c
}

// RecordRequest buffers one request count and one latency datum, both
// dimensioned by endpoint pattern, method and status code.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(types.DimMethod), Value: aws.String(method)},
		{Name: aws.String(types.DimStatusCode), Value: aws.String(status)},
	}
	now := c.clock.Now()

	c.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequest),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
			Timestamp:  aws.Time(now),
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
			Timestamp:  aws.Time(now),
		},
	)
}

// Increment buffers a dimensionless count of one.
func (c *Collector) Increment(metric string) {
	c.add(cwtypes.MetricDatum{
		MetricName: aws.String(metric),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(c.clock.Now()),
	})
}

func (c *Collector) add(datums ...cwtypes.MetricDatum) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range datums {
		if len(c.buf) >= maxBuffered {
			c.dropped++
			continue
		}
		c.buf = append(c.buf, d)
	}
}

// Pending returns the number of buffered datums.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Flush drains the buffer and publishes it in chunks of at most 1000 datums.
// Failed chunks are logged and discarded; the joined errors are returned.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.buf
	dropped := c.dropped
	c.buf = nil
	c.dropped = 0
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Warn("metric buffer full, datums dropped", "dropped", dropped)
	}

	var errs []error
	for start := 0; start < len(pending); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(pending))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			c.logger.Error("failed to publish metrics",
				"error", err.Error(),
				"datums", end-start,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run flushes on every interval tick until ctx is cancelled, then performs
// a final flush under a short independent deadline.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			defer cancel()
			_ = c.Flush(flushCtx)
			return nil
		}
	}
}
