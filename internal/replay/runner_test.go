package replay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/model"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

var poolAddress = common.HexToAddress("0x00000000000000000000000000000000000000fe")

var seedScript = []string{
	`{"op":"fund","caller":"` + alice + `","asset":"A","amount":"10000000000","timestamp":1700000000}`,
	`{"op":"fund","caller":"` + alice + `","asset":"B","amount":"5000000000"}`,
	`{"op":"approve","caller":"` + alice + `","asset":"A","amount":"10000000000"}`,
	`{"op":"approve","caller":"` + alice + `","asset":"B","amount":"5000000000"}`,
	`{"op":"deposit","caller":"` + alice + `","amount_a":"10000000000","amount_b":"5000000000"}`,
}

var tradeScript = []string{
	``,
	`{"op":"quote","caller":"` + bob + `","asset":"A","amount":"1003000"}`,
	`{"op":"fund","caller":"` + bob + `","asset":"A","amount":"1003000"}`,
	`{"op":"approve","caller":"` + bob + `","asset":"A","amount":"1003000"}`,
	`{"op":"swap","caller":"` + bob + `","asset":"A","amount":"1003000","timestamp":1700000600}`,
	`{"op":"swap","caller":"` + bob + `","amount_a":"1"}`,
	`not json`,
	`{"op":"withdraw","caller":"` + alice + `","shares":"7071066811"}`,
}

type memStorage struct {
	mu       sync.Mutex
	events   []model.PoolEvent
	errs     []model.OperationError
	failures int
}

func (s *memStorage) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *memStorage) PutErrorBatch(ctx context.Context, errs []model.OperationError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
	return nil
}

func writeScript(t *testing.T, path string, lines ...[]string) {
	t.Helper()
	var all []string
	for _, chunk := range lines {
		all = append(all, chunk...)
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(all, "\n")+"\n"), 0o644))
}

func runConfig(script string) RunConfig {
	return RunConfig{
		ScriptPath:   script,
		PoolAddress:  poolAddress,
		Fee:          amm.DefaultFee,
		BatchSize:    4,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func decodedField(t *testing.T, event model.PoolEvent, field string) string {
	t.Helper()
	record, err := event.Record()
	require.NoError(t, err)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(record.Decoded, &fields))
	return fields[field]
}

func TestRunnerReplaysScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ops.jsonl")
	writeScript(t, script, seedScript, tradeScript)

	sink := &memStorage{}
	runner := NewRunner(runConfig(script), sink, NewFileStateStore(filepath.Join(dir, "state.json")), nil, nil)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, uint64(13), summary.Lines)
	require.Equal(t, uint64(13), summary.LastLine)
	require.Equal(t, uint64(10), summary.Applied)
	require.Equal(t, uint64(2), summary.Rejected)

	require.Len(t, sink.events, 11)
	deposit := sink.events[4]
	require.Equal(t, model.OpDeposit, deposit.Op)
	require.Equal(t, "7071066811", decodedField(t, deposit, "shares"))
	require.Equal(t, "7071067811", deposit.TotalShares)
	require.Equal(t, uint64(1700000000), deposit.Timestamp)

	quote := sink.events[5]
	require.Equal(t, "499945", decodedField(t, quote, "amount_out"))

	swap := sink.events[8]
	require.Equal(t, model.OpSwap, swap.Op)
	require.Empty(t, swap.Error)
	require.Equal(t, "499945", decodedField(t, swap, "amount_out"))
	require.Equal(t, "3009", decodedField(t, swap, "fee"))
	require.Equal(t, "10001003000", swap.ReserveA)
	require.Equal(t, "4999500055", swap.ReserveB)
	require.Equal(t, uint64(1700000600), swap.Timestamp)

	rejected := sink.events[9]
	require.NotEmpty(t, rejected.Error)
	require.Nil(t, rejected.Decoded)
	require.Equal(t, swap.ReserveA, rejected.ReserveA)

	require.Len(t, sink.errs, 2)
	require.Equal(t, uint64(11), sink.errs[0].Line)
	require.Equal(t, uint64(12), sink.errs[1].Line)
	require.False(t, sink.errs[0].Fatal)

	last := sink.events[len(sink.events)-1]
	require.Equal(t, model.OpWithdraw, last.Op)
	require.Equal(t, "1000", last.TotalShares)
	require.NoError(t, runner.Pool().CheckInvariants())
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ops.jsonl")
	state := NewFileStateStore(filepath.Join(dir, "state", "pool.json"))
	writeScript(t, script, seedScript)

	first := &memStorage{}
	summary, err := NewRunner(runConfig(script), first, state, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(5), summary.LastLine)
	require.Len(t, first.events, 5)

	snap, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), snap.LastLine)
	require.Equal(t, "7071066811", snap.Shares[common.HexToAddress(alice).Hex()])
	require.Equal(t, "10000000000", snap.LedgerA.Balances[poolAddress.Hex()])

	writeScript(t, script, seedScript, tradeScript)
	second := &memStorage{}
	runner := NewRunner(runConfig(script), second, state, nil, nil)
	summary, err = runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(13), summary.LastLine)
	require.Len(t, second.events, 6)
	require.Equal(t, uint64(6), second.events[0].Seq)
	require.Equal(t, uint64(1700000000), second.events[0].Timestamp)
	require.Equal(t, "1000", second.events[len(second.events)-1].TotalShares)

	again := &memStorage{}
	summary, err = NewRunner(runConfig(script), again, state, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, again.events)
	require.Equal(t, uint64(13), summary.LastLine)
}

func TestRunnerRetriesStorage(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ops.jsonl")
	writeScript(t, script, seedScript)

	sink := &memStorage{failures: 2}
	_, err := NewRunner(runConfig(script), sink, nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.events, 5)

	sink = &memStorage{failures: 10}
	_, err = NewRunner(runConfig(script), sink, nil, nil, nil).Run(context.Background())
	require.ErrorContains(t, err, "sink unavailable")
}

func TestRunnerRefusesHaltedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ops.jsonl")
	writeScript(t, script, seedScript)
	state := NewFileStateStore(filepath.Join(dir, "state.json"))
	require.NoError(t, state.Save(context.Background(), model.PoolSnapshot{
		Pool:   poolAddress.Hex(),
		Halted: "ledger out of sync with pool reserves",
	}))

	_, err := NewRunner(runConfig(script), &memStorage{}, state, nil, nil).Run(context.Background())
	require.ErrorIs(t, err, amm.ErrPoolHalted)
}

func TestRunnerRejectsTamperedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ops.jsonl")
	writeScript(t, script, seedScript)
	state := NewFileStateStore(filepath.Join(dir, "state.json"))

	_, err := NewRunner(runConfig(script), &memStorage{}, state, nil, nil).Run(context.Background())
	require.NoError(t, err)

	snap, _, err := state.Load(context.Background())
	require.NoError(t, err)
	snap.ReserveA = "20000000000"
	require.NoError(t, state.Save(context.Background(), snap))

	_, err = NewRunner(runConfig(script), &memStorage{}, state, nil, nil).Run(context.Background())
	require.Error(t, err)
}

func TestRunnerValidatesConfig(t *testing.T) {
	cfg := runConfig("missing.jsonl")
	_, err := NewRunner(cfg, nil, nil, nil, nil).Run(context.Background())
	require.Error(t, err)

	cfg.BatchSize = 0
	_, err = NewRunner(cfg, &memStorage{}, nil, nil, nil).Run(context.Background())
	require.Error(t, err)

	cfg.BatchSize = 1
	_, err = NewRunner(cfg, &memStorage{}, nil, nil, nil).Run(context.Background())
	require.ErrorContains(t, err, "open script")
}

func TestRunnerReplaysShareTransfers(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ops.jsonl")
	writeScript(t, script, seedScript, []string{
		`{"op":"transfer_shares","caller":"` + alice + `","to":"` + bob + `","shares":"1000000"}`,
		`{"op":"approve_shares","caller":"` + bob + `","spender":"` + alice + `","shares":"500000"}`,
		`{"op":"transfer_shares_from","caller":"` + alice + `","from":"` + bob + `","to":"` + alice + `","shares":"200000"}`,
		`{"op":"transfer_shares","caller":"` + bob + `","to":"0x0000000000000000000000000000000000000000","shares":"1"}`,
		`{"op":"withdraw","caller":"` + bob + `","shares":"700000"}`,
	})

	sink := &memStorage{}
	state := NewFileStateStore(filepath.Join(dir, "state.json"))
	runner := NewRunner(runConfig(script), sink, state, nil, nil)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(9), summary.Applied)
	require.Equal(t, uint64(1), summary.Rejected)

	transfer := sink.events[5]
	require.Equal(t, model.OpTransferShares, transfer.Op)
	require.Equal(t, common.HexToAddress(bob).Hex(), decodedField(t, transfer, "to"))
	require.Equal(t, "7071067811", transfer.TotalShares)

	from := sink.events[7]
	require.Equal(t, model.OpTransferSharesFrom, from.Op)
	require.Equal(t, common.HexToAddress(bob).Hex(), decodedField(t, from, "from"))
	require.Contains(t, sink.errs[0].Error, amm.ErrInvalidIdentity.Error())

	pool := runner.Pool()
	require.Equal(t, uint64(100_000), pool.BalanceOf(common.HexToAddress(bob)).Uint64())
	require.Equal(t, uint64(7071066811-1_000_000+200_000), pool.BalanceOf(common.HexToAddress(alice)).Uint64())
	require.Equal(t, uint64(300_000), pool.SharesAllowance(common.HexToAddress(bob), common.HexToAddress(alice)).Uint64())
	require.NoError(t, pool.CheckInvariants())

	snap, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.ShareAllowances, 1)
	require.Equal(t, "300000", snap.ShareAllowances[0].Amount)

	// A rerun resumes from the checkpoint with the share approval intact.
	resumed := NewRunner(runConfig(script), &memStorage{}, state, nil, nil)
	_, err = resumed.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(300_000), resumed.Pool().SharesAllowance(common.HexToAddress(bob), common.HexToAddress(alice)).Uint64())
}
