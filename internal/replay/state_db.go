package replay

import (
	"context"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage/postgres"
)

// DBStateStore keeps the snapshot in the pool_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (model.PoolSnapshot, bool, error) {
	if s == nil || s.Store == nil {
		return model.PoolSnapshot{}, false, nil
	}
	return s.Store.LoadSnapshot(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, snap model.PoolSnapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, s.Name, snap)
}
