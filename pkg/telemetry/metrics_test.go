package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
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

func TestMetricsHolder_Gauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	holder := NewMetricsHolder()
	require.NoError(t, holder.InitMetrics(provider.Meter("test")))

	holder.SetPosition("primary", 3.89, 1.35, 161.88, 0)
	holder.SetPosition("secondary", 1.1, 10, 20, 3)
	holder.SetPortfolio("SUI/USDC", 181.88, 2.1, 0.4, true)
	holder.SetPortfolio("DEEP/USDC", 50, 1.2, 10, false)
	holder.RecordAction(context.Background(), "secondary", "TOP_UP", true)
	holder.RecordCycle(context.Background(), 12.5)

	got := collect(t, reader)

	ratio, ok := got[MetricRiskRatio].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.Len(t, ratio.DataPoints, 2)

	tier, ok := got[MetricSafetyTier].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	var maxTier int64
	for _, dp := range tier.DataPoints {
		if dp.Value > maxTier {
			maxTier = dp.Value
		}
	}
	assert.Equal(t, int64(3), maxTier)

	neutral, ok := got[MetricDeltaNeutrality].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, neutral.DataPoints, 2)
	byPair := map[string]int64{}
	for _, dp := range neutral.DataPoints {
		pair, _ := dp.Attributes.Value("pair")
		byPair[pair.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"SUI/USDC": 1, "DEEP/USDC": 0}, byPair)

	actions, ok := got[MetricActionsTotal].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, actions.DataPoints, 1)
	assert.Equal(t, int64(1), actions.DataPoints[0].Value)
}

func TestMetricsHolder_UninitializedIsNoop(t *testing.T) {
	holder := NewMetricsHolder()
	assert.NotPanics(t, func() {
		holder.RecordAction(context.Background(), "m", "WITHDRAW", false)
		holder.RecordEvaluationError(context.Background(), "m")
		holder.RecordCycle(context.Background(), 1)
		holder.SetPosition("m", 2, 2, 1, 0)
	})
}
