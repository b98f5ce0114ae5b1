package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityPool/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestJsonlStorageAppendsBatches(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "out", "events.jsonl")
	errorsPath := filepath.Join(dir, "out", "errors.jsonl")
	s := NewJsonlStorage(eventsPath, errorsPath)
	ctx := context.Background()

	require.NoError(t, s.PutEventBatch(ctx, []model.PoolEvent{{Seq: 1, Op: model.OpDeposit}}))
	require.NoError(t, s.PutEventBatch(ctx, []model.PoolEvent{{Seq: 2, Op: model.OpSwap}, {Seq: 3, Op: model.OpQuote}}))
	require.NoError(t, s.PutEventBatch(ctx, nil))
	require.NoError(t, s.PutErrorBatch(ctx, []model.OperationError{{Line: 4, Op: model.OpSwap, Error: "insufficient liquidity"}}))

	lines := readLines(t, eventsPath)
	require.Len(t, lines, 3)

	var last model.PoolEventRecord
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	require.Equal(t, uint64(3), last.Seq)
	require.Equal(t, model.OpQuote, last.Op)

	errLines := readLines(t, errorsPath)
	require.Len(t, errLines, 1)
}

func TestJsonlStorageWithoutErrorsPath(t *testing.T) {
	dir := t.TempDir()
	s := NewJsonlStorage(filepath.Join(dir, "events.jsonl"), "")

	require.NoError(t, s.PutErrorBatch(context.Background(), []model.OperationError{{Line: 1}}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestJsonlMetricsStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	s := NewJsonlMetricsStorage(path)

	require.NoError(t, s.UpsertWindowMetrics(context.Background(), []model.PoolWindowMetrics{
		{PoolAddress: "0x00000000000000000000000000000000000000fe", SwapCount: 2, VolumeA: "10"},
	}))
	lines := readLines(t, path)
	require.Len(t, lines, 1)

	var m model.PoolWindowMetrics
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	require.Equal(t, uint64(2), m.SwapCount)
	require.Equal(t, "10", m.VolumeA)
}

func TestJSONFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	var out map[string]uint64
	ok, err := ReadJSONFile(path, &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, WriteJSONFile(path, map[string]uint64{"last_line": 7}))
	ok, err = ReadJSONFile(path, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), out["last_line"])

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	_, err = ReadJSONFile(filepath.Dir(path), &out)
	require.Error(t, err)
}
