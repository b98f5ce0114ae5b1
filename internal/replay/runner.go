package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/token"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	ScriptPath     string
	PoolAddress    common.Address
	Fee            amm.Fee
	SymbolA        string
	SymbolB        string
	BatchSize      uint64
	StartTimestamp uint64
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Summary reports what a replay did.
type Summary struct {
	Lines    uint64
	Applied  uint64
	Rejected uint64
	LastLine uint64
}

// Runner executes a script of pool operations against in-memory ledgers and
// writes the resulting events to storage.
type Runner struct {
	cfg      RunConfig
	storage  storage.Storage
	state    StateStore
	observer amm.Observer
	logger   *zap.Logger

	pool    *amm.Pool
	ledgerA *token.Ledger
	ledgerB *token.Ledger
	seq     uint64
	clock   uint64
}

type scriptLine struct {
	op   model.Operation
	err  error
	skip bool
}

// NewRunner builds a Runner with its dependencies. state and observer may be nil.
func NewRunner(cfg RunConfig, sink storage.Storage, state StateStore, observer amm.Observer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SymbolA == "" {
		cfg.SymbolA = "A"
	}
	if cfg.SymbolB == "" {
		cfg.SymbolB = "B"
	}
	return &Runner{
		cfg:      cfg,
		storage:  sink,
		state:    state,
		observer: observer,
		logger:   logger,
	}
}

// Pool returns the pool after Run. It is nil before the first Run.
func (r *Runner) Pool() *amm.Pool {
	return r.pool
}

// Ledgers returns the asset ledgers after Run.
func (r *Runner) Ledgers() (*token.Ledger, *token.Ledger) {
	return r.ledgerA, r.ledgerB
}

// Run replays the script from the line after the last checkpoint. Rejected
// operations are recorded and skipped; a fatal pool error stops the replay once
// the current batch is stored.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.storage == nil {
		return Summary{}, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return Summary{}, fmt.Errorf("batch size must be greater than zero")
	}

	lines, err := readScript(r.cfg.ScriptPath)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Lines: uint64(len(lines))}

	from, err := r.init(ctx)
	if err != nil {
		return summary, err
	}
	summary.LastLine = from - 1

	to := uint64(len(lines))
	if from > to {
		r.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("lines", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, lineRange := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		events := make([]model.PoolEvent, 0, lineRange.To-lineRange.From+1)
		errs := make([]model.OperationError, 0)
		var fatal error
		last := lineRange.From - 1
		for n := lineRange.From; n <= lineRange.To; n++ {
			line := lines[n-1]
			last = n
			if line.skip {
				continue
			}
			if line.err != nil {
				errs = append(errs, buildOperationError(n, line.op, line.err))
				summary.Rejected++
				continue
			}

			event, opErr := r.apply(line.op)
			events = append(events, event)
			if opErr == nil {
				summary.Applied++
				continue
			}
			summary.Rejected++
			errs = append(errs, buildOperationError(n, line.op, opErr))
			r.logger.Debug("operation rejected", zap.Uint64("line", n), zap.String("op", line.op.Op), zap.Error(opErr))
			if amm.IsFatal(opErr) {
				fatal = fmt.Errorf("line %d: %w", n, opErr)
				break
			}
		}

		if err := r.flush(ctx, events, errs, last); err != nil {
			return summary, err
		}
		summary.LastLine = last

		r.logger.Info("batch complete",
			zap.Int("events", len(events)),
			zap.Int("rejected", len(errs)),
			zap.Uint64("from", lineRange.From),
			zap.Uint64("to", last),
		)

		if fatal != nil {
			r.logger.Error("replay stopped", zap.Error(fatal))
			return summary, fatal
		}
	}

	return summary, nil
}

func (r *Runner) init(ctx context.Context) (uint64, error) {
	cfg := amm.Config{
		Address:  r.cfg.PoolAddress,
		Fee:      r.cfg.Fee,
		Logger:   r.logger,
		Observer: r.observer,
	}
	r.clock = r.cfg.StartTimestamp

	if r.state != nil {
		snap, ok, err := r.state.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			pool, ledgerA, ledgerB, err := restoreFromModel(cfg, snap)
			if err != nil {
				return 0, fmt.Errorf("restore checkpoint: %w", err)
			}
			r.pool, r.ledgerA, r.ledgerB = pool, ledgerA, ledgerB
			r.seq = snap.LastSeq
			if snap.LastTimestamp > r.clock {
				r.clock = snap.LastTimestamp
			}
			r.logger.Info("resume from checkpoint", zap.Uint64("last_line", snap.LastLine), zap.Uint64("last_seq", snap.LastSeq))
			return snap.LastLine + 1, nil
		}
	}

	r.ledgerA = token.NewLedger(r.cfg.SymbolA)
	r.ledgerB = token.NewLedger(r.cfg.SymbolB)
	cfg.LedgerA = r.ledgerA
	cfg.LedgerB = r.ledgerB
	pool, err := amm.NewPool(cfg)
	if err != nil {
		return 0, err
	}
	r.pool = pool
	return 1, nil
}

func (r *Runner) flush(ctx context.Context, events []model.PoolEvent, errs []model.OperationError, lastLine uint64) error {
	err := withRetry(ctx, r.logger, "store events", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.storage.PutEventBatch(ctx, events)
	})
	if err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	err = withRetry(ctx, r.logger, "store errors", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.storage.PutErrorBatch(ctx, errs)
	})
	if err != nil {
		return fmt.Errorf("store errors: %w", err)
	}

	if r.state == nil {
		return nil
	}
	snap := snapshotToModel(r.pool, r.ledgerA, r.ledgerB, lastLine, r.seq, r.clock)
	err = withRetry(ctx, r.logger, "save checkpoint", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.state.Save(ctx, snap)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// apply executes one operation and returns its event. The event is produced for
// rejected operations too, carrying the error and the unchanged state.
func (r *Runner) apply(op model.Operation) (model.PoolEvent, error) {
	if op.Timestamp > r.clock {
		r.clock = op.Timestamp
	}
	r.seq++

	decoded, err := r.execute(op)
	return buildEvent(r.seq, r.pool, op, r.clock, decoded, err), err
}

func (r *Runner) execute(op model.Operation) (interface{}, error) {
	caller, err := ParseAddress(op.Caller)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", amm.ErrInvalidIdentity, err)
	}

	switch op.Op {
	case model.OpFund, model.OpApprove:
		asset, err := ParseAsset(op.Asset)
		if err != nil {
			return nil, err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return nil, err
		}
		ledger := r.ledger(asset)
		if op.Op == model.OpFund {
			err = ledger.Mint(caller, amount)
		} else {
			err = ledger.Approve(caller, r.pool.Address(), amount)
		}
		if err != nil {
			return nil, err
		}
		return model.TransferEventData{Asset: asset.String(), Amount: amount.Dec()}, nil

	case model.OpDeposit:
		amounts, err := parseAmounts(op.AmountA, op.AmountB)
		if err != nil {
			return nil, err
		}
		res, err := r.pool.DepositLiquidity(caller, amounts[0], amounts[1])
		if err != nil {
			return nil, err
		}
		return model.DepositEventData{AmountA: res.AmountA.Dec(), AmountB: res.AmountB.Dec(), Shares: res.Shares.Dec()}, nil

	case model.OpWithdraw:
		shares, err := ParseAmount(op.Shares)
		if err != nil {
			return nil, err
		}
		res, err := r.pool.WithdrawLiquidity(caller, shares)
		if err != nil {
			return nil, err
		}
		return model.WithdrawEventData{Shares: shares.Dec(), AmountA: res.AmountA.Dec(), AmountB: res.AmountB.Dec()}, nil

	case model.OpSwap:
		amountA, amountB, err := swapInputs(op)
		if err != nil {
			return nil, err
		}
		res, err := r.pool.Swap(caller, amountA, amountB)
		if err != nil {
			return nil, err
		}
		fee, err := r.pool.Fee().FeeAmount(res.AmountIn)
		if err != nil {
			return nil, err
		}
		return model.SwapEventData{
			AssetIn:   res.AssetIn.String(),
			AmountIn:  res.AmountIn.Dec(),
			AmountOut: res.AmountOut.Dec(),
			Fee:       fee.Dec(),
		}, nil

	case model.OpQuote:
		amountA, amountB, err := swapInputs(op)
		if err != nil {
			return nil, err
		}
		out, err := r.pool.Quote(amountA, amountB)
		if err != nil {
			return nil, err
		}
		assetIn, amountIn := amm.AssetA, amountA
		if amountA.IsZero() {
			assetIn, amountIn = amm.AssetB, amountB
		}
		return model.QuoteEventData{AssetIn: assetIn.String(), AmountIn: amountIn.Dec(), AmountOut: out.Dec()}, nil

	case model.OpTransferShares, model.OpApproveShares, model.OpTransferSharesFrom:
		return r.executeShares(caller, op)

	default:
		return nil, fmt.Errorf("unknown op %q", op.Op)
	}
}

// executeShares runs the liquidity share transfer and approval ops.
func (r *Runner) executeShares(caller common.Address, op model.Operation) (interface{}, error) {
	shares, err := ParseAmount(op.Shares)
	if err != nil {
		return nil, err
	}
	if op.Op == model.OpApproveShares {
		spender, err := ParseAddress(op.Spender)
		if err != nil {
			return nil, fmt.Errorf("spender: %w", err)
		}
		if err := r.pool.ApproveShares(caller, spender, shares); err != nil {
			return nil, err
		}
		return model.ShareTransferEventData{From: caller.Hex(), To: spender.Hex(), Shares: shares.Dec()}, nil
	}

	to, err := ParseAddress(op.To)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	from := caller
	if op.Op == model.OpTransferSharesFrom {
		if from, err = ParseAddress(op.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		err = r.pool.TransferSharesFrom(caller, from, to, shares)
	} else {
		err = r.pool.TransferShares(caller, to, shares)
	}
	if err != nil {
		return nil, err
	}
	return model.ShareTransferEventData{From: from.Hex(), To: to.Hex(), Shares: shares.Dec()}, nil
}

func (r *Runner) ledger(asset amm.Asset) *token.Ledger {
	if asset == amm.AssetB {
		return r.ledgerB
	}
	return r.ledgerA
}

// swapInputs accepts either asset+amount or amount_a/amount_b.
func swapInputs(op model.Operation) (*uint256.Int, *uint256.Int, error) {
	if op.Asset == "" {
		amounts, err := parseAmounts(op.AmountA, op.AmountB)
		if err != nil {
			return nil, nil, err
		}
		return amounts[0], amounts[1], nil
	}
	asset, err := ParseAsset(op.Asset)
	if err != nil {
		return nil, nil, err
	}
	amount, err := ParseAmount(op.Amount)
	if err != nil {
		return nil, nil, err
	}
	if asset == amm.AssetB {
		return new(uint256.Int), amount, nil
	}
	return amount, new(uint256.Int), nil
}

func readScript(path string) ([]scriptLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lines := make([]scriptLine, 0, 1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		var line scriptLine
		switch {
		case len(raw) == 0, raw[0] == '#':
			line.skip = true
		default:
			if err := json.Unmarshal(raw, &line.op); err != nil {
				line.err = fmt.Errorf("parse operation: %w", err)
			}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan script: %w", err)
	}
	return lines, nil
}
