package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Snapshot is a point-in-time copy of the pool's accounting state.
type Snapshot struct {
	Address     common.Address
	Fee         Fee
	ReserveA    *uint256.Int
	ReserveB    *uint256.Int
	TotalShares *uint256.Int
	Shares      map[common.Address]*uint256.Int
	Allowances  []ShareAllowance
}

// Snapshot returns a consistent copy of the pool state.
func (p *Pool) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	reserveA, reserveB := p.reserves.Reserves()
	shares := make(map[common.Address]*uint256.Int, len(p.shares.balances))
	for holder, balance := range p.shares.balances {
		shares[holder] = balance.Clone()
	}
	return Snapshot{
		Address:     p.address,
		Fee:         p.fee,
		ReserveA:    reserveA,
		ReserveB:    reserveB,
		TotalShares: p.shares.TotalSupply(),
		Shares:      shares,
		Allowances:  p.shares.Allowances(),
	}
}

// Restore rebuilds a pool from a snapshot and refuses any state that breaks the pool
// invariants. cfg.Address and cfg.Fee are taken from the snapshot.
func Restore(cfg Config, snap Snapshot) (*Pool, error) {
	cfg.Address = snap.Address
	cfg.Fee = snap.Fee
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}

	shares := NewShareLedger()
	for holder, balance := range snap.Shares {
		if isZero(balance) {
			continue
		}
		if err := shares.Mint(holder, balance); err != nil {
			return nil, fmt.Errorf("restore shares of %s: %w", holder.Hex(), err)
		}
	}
	for _, a := range snap.Allowances {
		if err := shares.Approve(a.Owner, a.Spender, a.Amount); err != nil {
			return nil, fmt.Errorf("restore share allowance of %s: %w", a.Owner.Hex(), err)
		}
	}
	if snap.TotalShares != nil && !shares.total.Eq(snap.TotalShares) {
		return nil, fmt.Errorf("%w: share sum %s != total %s", ErrInvariantViolation, shares.total.Dec(), snap.TotalShares.Dec())
	}
	if !shares.total.IsZero() && shares.BalanceOf(LockedSharesHolder).Lt(uint256.NewInt(MinimumLockedShares)) {
		return nil, fmt.Errorf("%w: locked shares below minimum", ErrInvariantViolation)
	}

	reserves := NewReserveLedger()
	if snap.ReserveA != nil {
		reserves.a = snap.ReserveA.Clone()
	}
	if snap.ReserveB != nil {
		reserves.b = snap.ReserveB.Clone()
	}
	if _, err := reserves.InvariantProduct(); err != nil {
		return nil, err
	}

	pool.reserves = reserves
	pool.shares = shares
	if _, err := pool.state(); err != nil {
		return nil, err
	}
	if err := pool.checkSolvency(reserves); err != nil {
		return nil, err
	}
	return pool, nil
}
