package storage

import (
	"context"

	"liquidityPool/internal/model"
)

// Storage defines a sink for replayed pool events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.PoolEvent) error
	PutErrorBatch(ctx context.Context, errs []model.OperationError) error
}

// MetricsSink receives aggregated window metrics.
type MetricsSink interface {
	UpsertPools(ctx context.Context, pools []model.PoolInfo) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}
