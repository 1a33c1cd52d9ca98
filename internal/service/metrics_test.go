package service

import (
	"context"
	"testing"

	"github.com/abgdnv/cartsync/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// inFlight collects the cart_mutations_in_flight gauge from reader.
func inFlight(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cart_mutations_in_flight" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			require.True(t, ok)
			require.Len(t, gauge.DataPoints, 1)
			return gauge.DataPoints[0].Value
		}
	}
	t.Fatal("cart_mutations_in_flight not collected")
	return 0
}

func Test_Coordinator_InFlightGauge(t *testing.T) {
	// given
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	f := newFixture(t, AlwaysConfirm, mug(), tea())
	f.coordinator.metrics = newMetrics(provider.Meter(meterName), f.coordinator.guard)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gateway.setQuantity = func(context.Context, string, int) (gateway.SetQuantityResult, error) {
		entered <- struct{}{}
		<-release
		return gateway.SetQuantityResult{IsSuccess: true}, nil
	}
	done := make(chan error, 2)

	// when
	go func() { done <- f.coordinator.UpdateQuantity(context.Background(), "1", 3) }()
	<-entered
	go func() { done <- f.coordinator.UpdateQuantity(context.Background(), "2", 2) }()
	<-entered
	during := inFlight(t, reader)
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	// then
	assert.Equal(t, int64(2), during)
	assert.Zero(t, inFlight(t, reader))
}
