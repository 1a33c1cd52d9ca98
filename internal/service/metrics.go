package service

import (
	"context"
	"fmt"

	"github.com/abgdnv/cartsync/internal/domain"
	carterrors "github.com/abgdnv/cartsync/internal/errors"
	"github.com/abgdnv/cartsync/internal/guard"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "cartsync-coordinator"

type metrics struct {
	mutations metric.Int64Counter
	rollbacks metric.Int64Counter
	loads     metric.Int64Counter
}

func newMetrics(meter metric.Meter, inFlight *guard.MutationGuard) metrics {
	mutations, err := meter.Int64Counter("cart_mutations", metric.WithDescription("Cart mutations by operation and outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create cart_mutations counter: %v", err))
	}
	rollbacks, err := meter.Int64Counter("cart_rollbacks", metric.WithDescription("Optimistic changes undone after a failed remote call"))
	if err != nil {
		panic(fmt.Sprintf("failed to create cart_rollbacks counter: %v", err))
	}
	loads, err := meter.Int64Counter("cart_loads", metric.WithDescription("Full cart fetches by outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create cart_loads counter: %v", err))
	}
	_, err = meter.Int64ObservableGauge("cart_mutations_in_flight",
		metric.WithDescription("Mutations waiting for the cart service"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(inFlight.Len()))
			return nil
		}),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create cart_mutations_in_flight gauge: %v", err))
	}
	return metrics{mutations: mutations, rollbacks: rollbacks, loads: loads}
}

func outcome(err error) string {
	if err == nil {
		return "committed"
	}
	return carterrors.Kind(err).String()
}

func (m metrics) mutation(ctx context.Context, op domain.OperationKind, err error) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("outcome", outcome(err)),
	))
}

func (m metrics) rollback(ctx context.Context, op domain.OperationKind) {
	m.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", string(op))))
}

func (m metrics) load(ctx context.Context, err error) {
	m.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}
