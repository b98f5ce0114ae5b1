package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	// TokenA and TokenB label the assets in the pools table.
	TokenA    string
	TokenB    string
	DecimalsA uint8
	DecimalsB uint8
	Fee       amm.Fee
}

// Aggregator aggregates pool events into window metrics.
type Aggregator struct {
	cfg          Config
	sink         storage.MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolSeen     map[string]struct{}
}

func NewAggregator(cfg Config, sink storage.MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Fee == (amm.Fee{}) {
		cfg.Fee = amm.DefaultFee
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]struct{}),
	}
}

// Run executes aggregation over a pool events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.PoolInfo, 0, 4)
	maxTs := startTs
	var total, windows, skipped, failed int

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.PoolEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode pool event", zap.Error(err))
			continue
		}

		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.Pool)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(acc))
			windows++
			if pool := a.registerPool(acc.PoolAddress); pool != nil {
				pools = append(pools, *pool)
			}
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.Uint64("seq", record.Seq))
			continue
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc))
		windows++
		if pool := a.registerPool(acc.PoolAddress); pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState stores a cursor just before the oldest open window so a rerun
// recomputes every window that was not flushed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.PoolInfo) error {
	if len(pools) > 0 {
		if err := a.sink.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	feeRateA, feeRateB := computeFeeRates(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB)
	apr := computeAPR(poolFeeRate(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB), a.cfg.WindowSeconds)

	return model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		FailedCount:    acc.FailedCount,
		VolumeA:        formatTokenAmount(acc.VolumeA, a.cfg.DecimalsA),
		VolumeB:        formatTokenAmount(acc.VolumeB, a.cfg.DecimalsB),
		FeeA:           formatTokenAmount(acc.FeeA, a.cfg.DecimalsA),
		FeeB:           formatTokenAmount(acc.FeeB, a.cfg.DecimalsB),
		FeeRateA:       feeRateA,
		FeeRateB:       feeRateB,
		ReserveA:       formatTokenAmount(acc.ReserveA, a.cfg.DecimalsA),
		ReserveB:       formatTokenAmount(acc.ReserveB, a.cfg.DecimalsB),
		TotalShares:    acc.TotalShares.String(),
		APR:            apr,
	}
}

func (a *Aggregator) registerPool(address string) *model.PoolInfo {
	key := poolKey(address)
	if _, ok := a.poolSeen[key]; ok {
		return nil
	}
	a.poolSeen[key] = struct{}{}
	return &model.PoolInfo{
		Address:        address,
		TokenA:         a.cfg.TokenA,
		TokenB:         a.cfg.TokenB,
		FeeNumerator:   a.cfg.Fee.Numerator,
		FeeDenominator: a.cfg.Fee.Denominator,
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
