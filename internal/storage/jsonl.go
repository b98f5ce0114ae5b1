package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityPool/internal/model"
)

// JsonlStorage writes pool events and operation errors to JSONL files.
type JsonlStorage struct {
	path       string
	errorsPath string
	mu         sync.Mutex
}

// NewJsonlStorage writes events to path. Errors go to errorsPath; an empty
// errorsPath drops them.
func NewJsonlStorage(path, errorsPath string) *JsonlStorage {
	return &JsonlStorage{path: path, errorsPath: errorsPath}
}

// PutEventBatch appends a batch of events as JSON lines.
func (s *JsonlStorage) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]interface{}, 0, len(events))
	for _, event := range events {
		records = append(records, event)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, records)
}

// PutErrorBatch appends rejected operations as JSON lines.
func (s *JsonlStorage) PutErrorBatch(ctx context.Context, errs []model.OperationError) error {
	if len(errs) == 0 || s.errorsPath == "" {
		return nil
	}
	records := make([]interface{}, 0, len(errs))
	for _, rec := range errs {
		records = append(records, rec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.errorsPath, records)
}

// JsonlMetricsStorage writes window metrics and pool records to a JSONL file.
type JsonlMetricsStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlMetricsStorage(path string) *JsonlMetricsStorage {
	return &JsonlMetricsStorage{path: path}
}

// UpsertPools is a no-op: the JSONL output carries the pool address on every metric row.
func (s *JsonlMetricsStorage) UpsertPools(ctx context.Context, pools []model.PoolInfo) error {
	return nil
}

// UpsertWindowMetrics appends metrics rows. Later rows for the same window supersede earlier ones.
func (s *JsonlMetricsStorage) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	records := make([]interface{}, 0, len(metrics))
	for _, m := range metrics {
		records = append(records, m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, records)
}

func appendLines(path string, records []interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
