package replay

import (
	"context"
	"time"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

// StateStore persists the pool snapshot taken after each committed batch.
type StateStore interface {
	Load(ctx context.Context) (model.PoolSnapshot, bool, error)
	Save(ctx context.Context, snap model.PoolSnapshot) error
}

// FileStateStore keeps the snapshot in a local JSON file.
type FileStateStore struct {
	Path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{Path: path}
}

func (s *FileStateStore) Load(ctx context.Context) (model.PoolSnapshot, bool, error) {
	if s == nil || s.Path == "" {
		return model.PoolSnapshot{}, false, nil
	}
	var snap model.PoolSnapshot
	ok, err := storage.ReadJSONFile(s.Path, &snap)
	if err != nil || !ok {
		return model.PoolSnapshot{}, false, err
	}
	return snap, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, snap model.PoolSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if snap.UpdatedAt == "" {
		snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return storage.WriteJSONFile(s.Path, snap)
}
