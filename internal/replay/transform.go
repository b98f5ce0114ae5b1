package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/model"
	"liquidityPool/internal/token"
)

func buildEvent(seq uint64, pool *amm.Pool, op model.Operation, ts uint64, decoded interface{}, opErr error) model.PoolEvent {
	reserveA, reserveB := pool.Reserves()
	event := model.PoolEvent{
		Seq:         seq,
		Pool:        pool.Address().Hex(),
		Op:          op.Op,
		Caller:      op.Caller,
		Timestamp:   ts,
		ReserveA:    reserveA.Dec(),
		ReserveB:    reserveB.Dec(),
		TotalShares: pool.TotalSupply().Dec(),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	} else {
		event.Decoded = decoded
	}
	return event
}

func buildOperationError(line uint64, op model.Operation, err error) model.OperationError {
	return model.OperationError{
		Line:   line,
		Op:     op.Op,
		Caller: op.Caller,
		Fatal:  amm.IsFatal(err),
		Error:  err.Error(),
	}
}

// snapshotToModel captures the pool and both ledgers in their persisted form.
func snapshotToModel(pool *amm.Pool, ledgerA, ledgerB *token.Ledger, lastLine, lastSeq, lastTs uint64) model.PoolSnapshot {
	snap := pool.Snapshot()
	shares := make(map[string]string, len(snap.Shares))
	for holder, balance := range snap.Shares {
		shares[holder.Hex()] = balance.Dec()
	}
	out := model.PoolSnapshot{
		Pool:            snap.Address.Hex(),
		FeeNumerator:    snap.Fee.Numerator,
		FeeDenominator:  snap.Fee.Denominator,
		ReserveA:        snap.ReserveA.Dec(),
		ReserveB:        snap.ReserveB.Dec(),
		TotalShares:     snap.TotalShares.Dec(),
		Shares:          shares,
		ShareAllowances: shareAllowancesToModel(snap.Allowances),
		LedgerA:         ledgerToModel(ledgerA.Snapshot()),
		LedgerB:         ledgerToModel(ledgerB.Snapshot()),
		LastLine:        lastLine,
		LastSeq:         lastSeq,
		LastTimestamp:   lastTs,
		UpdatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := pool.Halted(); err != nil {
		out.Halted = err.Error()
	}
	return out
}

func ledgerToModel(state token.State) model.LedgerSnapshot {
	balances := make(map[string]string, len(state.Balances))
	for owner, balance := range state.Balances {
		balances[owner.Hex()] = balance.Dec()
	}
	allowances := make([]model.AllowanceSnapshot, 0, len(state.Allowances))
	for _, a := range state.Allowances {
		allowances = append(allowances, model.AllowanceSnapshot{
			Owner:   a.Owner.Hex(),
			Spender: a.Spender.Hex(),
			Amount:  a.Amount.Dec(),
		})
	}
	return model.LedgerSnapshot{Symbol: state.Symbol, Balances: balances, Allowances: allowances}
}

func ledgerFromModel(snap model.LedgerSnapshot) (*token.Ledger, error) {
	balances, err := parseHolderMap(snap.Balances)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", snap.Symbol, err)
	}
	allowances := make([]token.Allowance, 0, len(snap.Allowances))
	for _, a := range snap.Allowances {
		owner, spender, amount, err := parseAllowance(a)
		if err != nil {
			return nil, err
		}
		allowances = append(allowances, token.Allowance{Owner: owner, Spender: spender, Amount: amount})
	}
	return token.RestoreLedger(token.State{Symbol: snap.Symbol, Balances: balances, Allowances: allowances})
}

func shareAllowancesToModel(in []amm.ShareAllowance) []model.AllowanceSnapshot {
	out := make([]model.AllowanceSnapshot, 0, len(in))
	for _, a := range in {
		out = append(out, model.AllowanceSnapshot{Owner: a.Owner.Hex(), Spender: a.Spender.Hex(), Amount: a.Amount.Dec()})
	}
	return out
}

func parseAllowance(a model.AllowanceSnapshot) (common.Address, common.Address, *uint256.Int, error) {
	owner, err := ParseAddress(a.Owner)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	spender, err := ParseAddress(a.Spender)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	amount, err := ParseAmount(a.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return owner, spender, amount, nil
}

// restoreFromModel rebuilds both ledgers and the pool. The pool restore re-checks
// every accounting invariant against the restored ledgers.
func restoreFromModel(cfg amm.Config, snap model.PoolSnapshot) (*amm.Pool, *token.Ledger, *token.Ledger, error) {
	if snap.Halted != "" {
		return nil, nil, nil, fmt.Errorf("%w: %s", amm.ErrPoolHalted, snap.Halted)
	}
	address, err := ParseAddress(snap.Pool)
	if err != nil {
		return nil, nil, nil, err
	}
	ledgerA, err := ledgerFromModel(snap.LedgerA)
	if err != nil {
		return nil, nil, nil, err
	}
	ledgerB, err := ledgerFromModel(snap.LedgerB)
	if err != nil {
		return nil, nil, nil, err
	}
	amounts, err := parseAmounts(snap.ReserveA, snap.ReserveB, snap.TotalShares)
	if err != nil {
		return nil, nil, nil, err
	}
	shares, err := parseHolderMap(snap.Shares)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("shares: %w", err)
	}

	shareAllowances := make([]amm.ShareAllowance, 0, len(snap.ShareAllowances))
	for _, a := range snap.ShareAllowances {
		owner, spender, amount, err := parseAllowance(a)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("share allowances: %w", err)
		}
		shareAllowances = append(shareAllowances, amm.ShareAllowance{Owner: owner, Spender: spender, Amount: amount})
	}

	cfg.LedgerA = ledgerA
	cfg.LedgerB = ledgerB
	pool, err := amm.Restore(cfg, amm.Snapshot{
		Address:     address,
		Fee:         amm.Fee{Numerator: snap.FeeNumerator, Denominator: snap.FeeDenominator},
		ReserveA:    amounts[0],
		ReserveB:    amounts[1],
		TotalShares: amounts[2],
		Shares:      shares,
		Allowances:  shareAllowances,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("restore pool: %w", err)
	}
	return pool, ledgerA, ledgerB, nil
}

func parseHolderMap(in map[string]string) (map[common.Address]*uint256.Int, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[common.Address]*uint256.Int, len(in))
	for _, k := range keys {
		holder, err := ParseAddress(k)
		if err != nil {
			return nil, err
		}
		amount, err := ParseAmount(in[k])
		if err != nil {
			return nil, err
		}
		out[holder] = amount
	}
	return out, nil
}
