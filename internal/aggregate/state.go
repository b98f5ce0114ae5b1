package aggregate

import (
	"context"
	"time"

	"liquidityPool/internal/storage"
)

// StateStore persists the aggregation cursor: the timestamp before which every
// window is closed and stored.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore stores the cursor in a local JSON file.
type FileStateStore struct {
	Path string
}

type cursorRecord struct {
	LastProcessed uint64 `json:"last_processed_ts"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	var rec cursorRecord
	ok, err := storage.ReadJSONFile(s.Path, &rec)
	if err != nil || !ok {
		return 0, false, err
	}
	return rec.LastProcessed, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	return storage.WriteJSONFile(s.Path, cursorRecord{
		LastProcessed: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
}
