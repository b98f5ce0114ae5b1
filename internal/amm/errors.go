package amm

import "errors"

var (
	// ErrInvalidAmount is returned when a zero amount is passed where a positive one is required.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrAmbiguousSwap is returned when both or neither swap inputs are set.
	ErrAmbiguousSwap = errors.New("exactly one swap input must be non-zero")
	// ErrAmbiguousQuote is returned when both or neither quote inputs are set.
	ErrAmbiguousQuote = errors.New("exactly one quote input must be non-zero")
	// ErrInsufficientLiquidity is returned when a reserve needed for pricing is empty.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrInsufficientShares is returned when a burn exceeds the holder's share balance.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrInsufficientBalance and ErrInsufficientAllowance are shared with asset ledgers
	// so a pull refused up front matches the error the ledger itself would return.
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrInsufficientReserve means a debit exceeded the tracked reserve. The engine and
	// the asset ledgers have diverged, so the pool halts.
	ErrInsufficientReserve = errors.New("insufficient reserve")
	// ErrArithmeticOverflow is returned when a 256-bit operation would wrap.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrPoolNotSeededMismatch is returned when reserves and share supply disagree on
	// whether the pool has been seeded.
	ErrPoolNotSeededMismatch = errors.New("pool reserves and share supply are inconsistent")

	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrInvalidIdentity             = errors.New("invalid identity")
	ErrInvalidFee                  = errors.New("invalid fee")
	ErrInvalidAsset                = errors.New("invalid asset")
	ErrInvariantViolation          = errors.New("invariant violation")
	ErrLedgerDesync                = errors.New("ledger out of sync with pool reserves")
	ErrPoolHalted                  = errors.New("pool halted")
)

// IsFatal reports whether err leaves the pool unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInsufficientReserve) ||
		errors.Is(err, ErrLedgerDesync) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrPoolHalted)
}
