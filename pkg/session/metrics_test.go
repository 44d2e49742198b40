package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsListener(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	clock := newFakeClock()
	listener, err := NewMetricsListener(provider.Meter("test"), clock.Now)
	require.NoError(t, err)

	m := NewManager(NewMemoryStore(), WithClock(clock.Now))
	m.Subscribe(listener)

	m.SessionID()
	clock.Advance(5 * time.Hour)
	m.SessionID()

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["session.started"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["session.ended"]))

	hist, ok := metrics["session.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, (5 * time.Hour).Seconds(), hist.DataPoints[0].Sum, 0.001)
}
