package amm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Fee is the fraction of the input kept for pricing: 997/1000 charges 0.3%.
type Fee struct {
	Numerator   uint64
	Denominator uint64
}

// DefaultFee is the single 0.3% fee tier.
var DefaultFee = Fee{Numerator: 997, Denominator: 1000}

// Validate checks 0 < Numerator <= Denominator.
func (f Fee) Validate() error {
	if f.Denominator == 0 || f.Numerator == 0 || f.Numerator > f.Denominator {
		return fmt.Errorf("%w: %d/%d", ErrInvalidFee, f.Numerator, f.Denominator)
	}
	return nil
}

// FeeAmount returns the part of amountIn retained by the pool as fee, rounded down.
func (f Fee) FeeAmount(amountIn *uint256.Int) (*uint256.Int, error) {
	if f.Denominator == 0 {
		return nil, ErrInvalidFee
	}
	return mulDiv(amountIn, uint256.NewInt(f.Denominator-f.Numerator), uint256.NewInt(f.Denominator))
}

// GetAmountOut prices amountIn against the constant-product curve:
//
//	amountInWithFee = amountIn * feeNumerator
//	amountOut       = floor(amountInWithFee * reserveOut / (reserveIn * feeDenominator + amountInWithFee))
//
// Division truncates, so rounding always favors the pool.
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, fee Fee) (*uint256.Int, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	amountInWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(fee.Numerator))
	if overflow {
		return nil, fmt.Errorf("amount in with fee: %w", ErrArithmeticOverflow)
	}
	numerator, overflow := new(uint256.Int).MulOverflow(amountInWithFee, reserveOut)
	if overflow {
		return nil, fmt.Errorf("numerator: %w", ErrArithmeticOverflow)
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(fee.Denominator))
	if overflow {
		return nil, fmt.Errorf("denominator: %w", ErrArithmeticOverflow)
	}
	if _, overflow = denominator.AddOverflow(denominator, amountInWithFee); overflow {
		return nil, fmt.Errorf("denominator: %w", ErrArithmeticOverflow)
	}

	return numerator.Div(numerator, denominator), nil
}

// swapSide resolves a two-sided input into (asset, amount), rejecting ambiguity.
func swapSide(amountInA, amountInB *uint256.Int, ambiguous error) (Asset, *uint256.Int, error) {
	aSet := amountInA != nil && !amountInA.IsZero()
	bSet := amountInB != nil && !amountInB.IsZero()
	switch {
	case aSet && !bSet:
		return AssetA, amountInA, nil
	case bSet && !aSet:
		return AssetB, amountInB, nil
	default:
		return 0, nil, ambiguous
	}
}
