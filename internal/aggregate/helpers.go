package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(value, denom)
	return rat.FloatString(int(decimals))
}

func computeFeeRates(feeA, feeB, reserveA, reserveB *big.Int) (*string, *string) {
	var feeRateA *string
	var feeRateB *string

	if rate := computeRateFromInt(feeA, reserveA); rate != "" {
		feeRateA = &rate
	}
	if rate := computeRateFromInt(feeB, reserveB); rate != "" {
		feeRateB = &rate
	}
	return feeRateA, feeRateB
}

func computeRateFromInt(fee, tvl *big.Int) string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, tvl)
	return rat.FloatString(ratioScale)
}

// poolFeeRate values both fee legs in asset A at the end-of-window price and
// divides by the pool value in A, which is twice reserve A for a balanced
// constant-product pool.
func poolFeeRate(feeA, feeB, reserveA, reserveB *big.Int) *big.Rat {
	if reserveA == nil || reserveB == nil || reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		return nil
	}
	total := new(big.Rat).SetInt(feeA)
	if feeB != nil && feeB.Sign() > 0 {
		feeBInA := new(big.Rat).SetFrac(new(big.Int).Mul(feeB, reserveA), reserveB)
		total.Add(total, feeBInA)
	}
	if total.Sign() == 0 {
		return nil
	}
	tvl := new(big.Rat).SetInt(new(big.Int).Lsh(reserveA, 1))
	return total.Quo(total, tvl)
}

func computeAPR(rate *big.Rat, windowSeconds uint64) *string {
	if rate == nil || windowSeconds == 0 {
		return nil
	}
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
