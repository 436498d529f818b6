package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	mu        sync.Mutex
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (m *mockCloudWatchClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestCollector(client CloudWatchClient) *Collector {
	return NewCollector(Config{
		Client:    client,
		Namespace: "BackofficeTest",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     fixedClock{testNow},
	})
}

func dimension(dims []cwtypes.Dimension, name string) string {
	for _, d := range dims {
		if *d.Name == name {
			return *d.Value
		}
	}
	return ""
}

func TestRecordRequest_BuffersCountAndLatency(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := newTestCollector(cw)

	c.RecordRequest("GET", "/v1/messages/{id}", "200", 250*time.Millisecond)

	assert.Equal(t, 2, c.Pending())
	assert.Zero(t, cw.callCount(), "nothing is sent before a flush")

	require.NoError(t, c.Flush(context.Background()))
	require.Len(t, cw.calls, 1)

	input := cw.calls[0]
	assert.Equal(t, "BackofficeTest", *input.Namespace)
	require.Len(t, input.MetricData, 2)

	count, latency := input.MetricData[0], input.MetricData[1]
	assert.Equal(t, types.MetricAPIRequest, *count.MetricName)
	assert.Equal(t, 1.0, *count.Value)
	assert.Equal(t, cwtypes.StandardUnitCount, count.Unit)
	assert.Equal(t, types.MetricAPILatency, *latency.MetricName)
	assert.Equal(t, 250.0, *latency.Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, latency.Unit)
	assert.True(t, latency.Timestamp.Equal(testNow))

	assert.Equal(t, "/v1/messages/{id}", dimension(count.Dimensions, types.DimEndpoint))
	assert.Equal(t, "GET", dimension(count.Dimensions, types.DimMethod))
	assert.Equal(t, "200", dimension(count.Dimensions, types.DimStatusCode))
	assert.Zero(t, c.Pending())
}

func TestIncrement(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := newTestCollector(cw)

	c.Increment(types.MetricNicknameMiss)
	require.NoError(t, c.Flush(context.Background()))

	require.Len(t, cw.calls, 1)
	datum := cw.calls[0].MetricData[0]
	assert.Equal(t, types.MetricNicknameMiss, *datum.MetricName)
	assert.Empty(t, datum.Dimensions)
}

func TestFlush_ChunksAtLimit(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := newTestCollector(cw)

	for i := 0; i < 1201; i++ {
		c.RecordRequest("GET", "/health", "200", time.Millisecond)
	}
	require.NoError(t, c.Flush(context.Background()))

	require.Len(t, cw.calls, 3)
	assert.Len(t, cw.calls[0].MetricData, 1000)
	assert.Len(t, cw.calls[1].MetricData, 1000)
	assert.Len(t, cw.calls[2].MetricData, 402)
}

func TestFlush_EmptyBufferSendsNothing(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := newTestCollector(cw)

	require.NoError(t, c.Flush(context.Background()))
	assert.Zero(t, cw.callCount())
}

func TestFlush_ErrorDiscardsBatch(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	c := newTestCollector(cw)

	c.Increment("X")
	err := c.Flush(context.Background())

	assert.ErrorContains(t, err, "throttled")
	assert.Zero(t, c.Pending())
}

func TestAdd_DropsWhenFull(t *testing.T) {
	c := newTestCollector(&mockCloudWatchClient{})

	for i := 0; i < maxBuffered+5; i++ {
		c.Increment("X")
	}

	assert.Equal(t, maxBuffered, c.Pending())
	c.mu.Lock()
	assert.Equal(t, 5, c.dropped)
	c.mu.Unlock()
}

func TestRun_FlushesOnTickAndShutdown(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := NewCollector(Config{
		Client:        cw,
		FlushInterval: 20 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Increment("A")
	assert.Eventually(t, func() bool { return cw.callCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Increment("B")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, c.Pending(), "shutdown must flush the remaining datums")
	assert.Equal(t, types.MetricNamespace, *cw.calls[0].Namespace)
}

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector(Config{Client: &mockCloudWatchClient{}})

	assert.Equal(t, types.MetricNamespace, c.namespace)
	assert.Equal(t, defaultFlushInterval, c.interval)
	assert.NotNil(t, c.logger)
	assert.NotNil(t, c.clock)
}
