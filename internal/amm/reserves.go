package amm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ReserveLedger tracks the pool's balance of each asset.
// It is not safe for concurrent use; the owning Pool serializes access.
type ReserveLedger struct {
	a *uint256.Int
	b *uint256.Int
}

// NewReserveLedger returns an empty reserve ledger.
func NewReserveLedger() *ReserveLedger {
	return &ReserveLedger{a: new(uint256.Int), b: new(uint256.Int)}
}

func (r *ReserveLedger) slot(asset Asset) (*uint256.Int, error) {
	switch asset {
	case AssetA:
		return r.a, nil
	case AssetB:
		return r.b, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidAsset, asset)
	}
}

// Credit adds amount to the asset's reserve.
func (r *ReserveLedger) Credit(asset Asset, amount *uint256.Int) error {
	reserve, err := r.slot(asset)
	if err != nil {
		return err
	}
	if _, overflow := new(uint256.Int).AddOverflow(reserve, amount); overflow {
		return fmt.Errorf("credit reserve %s: %w", asset, ErrArithmeticOverflow)
	}
	reserve.Add(reserve, amount)
	return nil
}

// Debit subtracts amount from the asset's reserve.
func (r *ReserveLedger) Debit(asset Asset, amount *uint256.Int) error {
	reserve, err := r.slot(asset)
	if err != nil {
		return err
	}
	if amount.Gt(reserve) {
		return fmt.Errorf("debit reserve %s: %s > %s: %w", asset, amount.Dec(), reserve.Dec(), ErrInsufficientReserve)
	}
	reserve.Sub(reserve, amount)
	return nil
}

// Reserve returns a copy of the asset's reserve.
func (r *ReserveLedger) Reserve(asset Asset) *uint256.Int {
	reserve, err := r.slot(asset)
	if err != nil {
		return new(uint256.Int)
	}
	return reserve.Clone()
}

// Reserves returns copies of both reserves.
func (r *ReserveLedger) Reserves() (*uint256.Int, *uint256.Int) {
	return r.a.Clone(), r.b.Clone()
}

// InvariantProduct returns reserveA * reserveB.
func (r *ReserveLedger) InvariantProduct() (*uint256.Int, error) {
	k, overflow := new(uint256.Int).MulOverflow(r.a, r.b)
	if overflow {
		return nil, fmt.Errorf("invariant product: %w", ErrArithmeticOverflow)
	}
	return k, nil
}

// IsEmpty reports whether both reserves are zero.
func (r *ReserveLedger) IsEmpty() bool {
	return r.a.IsZero() && r.b.IsZero()
}

func (r *ReserveLedger) clone() *ReserveLedger {
	return &ReserveLedger{a: r.a.Clone(), b: r.b.Clone()}
}
