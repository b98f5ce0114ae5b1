package amm

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// State is the pool lifecycle stage.
type State uint8

const (
	StateEmpty State = iota
	StateSeeded
)

func (s State) String() string {
	if s == StateSeeded {
		return "seeded"
	}
	return "empty"
}

// Operation names reported to observers and logs.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpSwap     = "swap"
	OpQuote    = "quote"

	OpTransferShares     = "transfer_shares"
	OpApproveShares      = "approve_shares"
	OpTransferSharesFrom = "transfer_shares_from"
)

// Observer receives the outcome of every pool operation.
type Observer interface {
	ObserveOperation(op string, err error)
	ObserveState(reserveA, reserveB, totalShares *uint256.Int)
}

// Config wires a pool to its asset ledgers.
type Config struct {
	// Address is the pool's own identity on both ledgers.
	Address  common.Address
	LedgerA  Ledger
	LedgerB  Ledger
	Fee      Fee
	Logger   *zap.Logger
	Observer Observer
}

// DepositResult reports the shares minted and the amounts actually pulled.
type DepositResult struct {
	Shares  *uint256.Int
	AmountA *uint256.Int
	AmountB *uint256.Int
}

// WithdrawResult reports the amounts paid out for burned shares.
type WithdrawResult struct {
	AmountA *uint256.Int
	AmountB *uint256.Int
}

// SwapResult reports the executed trade.
type SwapResult struct {
	AssetIn   Asset
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// Pool is a two-asset constant-product pool. Mutating operations are serialized;
// reads share a lock and always observe a committed state.
type Pool struct {
	mu       sync.RWMutex
	address  common.Address
	ledgers  [2]Ledger
	fee      Fee
	reserves *ReserveLedger
	shares   *ShareLedger
	halted   error
	logger   *zap.Logger
	observer Observer
}

// NewPool builds an empty pool.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Fee == (Fee{}) {
		cfg.Fee = DefaultFee
	}
	if err := cfg.Fee.Validate(); err != nil {
		return nil, err
	}
	if cfg.LedgerA == nil || cfg.LedgerB == nil {
		return nil, fmt.Errorf("both asset ledgers are required")
	}
	if cfg.Address == LockedSharesHolder {
		return nil, fmt.Errorf("pool address: %w", ErrInvalidIdentity)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		address:  cfg.Address,
		ledgers:  [2]Ledger{cfg.LedgerA, cfg.LedgerB},
		fee:      cfg.Fee,
		reserves: NewReserveLedger(),
		shares:   NewShareLedger(),
		logger:   logger.With(zap.String("pool", cfg.Address.Hex())),
		observer: cfg.Observer,
	}, nil
}

// DepositLiquidity adds liquidity on behalf of caller. The first deposit seeds the pool
// and locks MinimumLockedShares. Later deposits pull only the amounts that match the
// current reserve ratio; the excess of the non-limiting asset stays with the caller.
func (p *Pool) DepositLiquidity(caller common.Address, amountA, amountB *uint256.Int) (res DepositResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.finish(OpDeposit, err) }()

	if err := p.checkMutable(caller); err != nil {
		return DepositResult{}, err
	}
	if isZero(amountA) || isZero(amountB) {
		return DepositResult{}, fmt.Errorf("deposit: %w", ErrInvalidAmount)
	}
	state, err := p.state()
	if err != nil {
		return DepositResult{}, err
	}

	reserveA, reserveB := p.reserves.Reserves()
	nextReserves := p.reserves.clone()
	nextShares := p.shares.clone()

	var minted, usedA, usedB *uint256.Int
	if state == StateEmpty {
		liquidity, err := initialShares(amountA, amountB)
		if err != nil {
			return DepositResult{}, err
		}
		locked := uint256.NewInt(MinimumLockedShares)
		if !liquidity.Gt(locked) {
			return DepositResult{}, fmt.Errorf("seed liquidity %s <= %d: %w", liquidity.Dec(), MinimumLockedShares, ErrInsufficientLiquidityMinted)
		}
		minted = new(uint256.Int).Sub(liquidity, locked)
		if err := nextShares.Mint(LockedSharesHolder, locked); err != nil {
			return DepositResult{}, err
		}
		usedA, usedB = amountA.Clone(), amountB.Clone()
	} else {
		usedA, usedB, err = optimalAmounts(amountA, amountB, reserveA, reserveB)
		if err != nil {
			return DepositResult{}, err
		}
		minted, err = proportionalShares(usedA, usedB, reserveA, reserveB, p.shares.TotalSupply())
		if err != nil {
			return DepositResult{}, err
		}
		if minted.IsZero() {
			return DepositResult{}, fmt.Errorf("deposit: %w", ErrInsufficientLiquidityMinted)
		}
	}
	if err := nextShares.Mint(caller, minted); err != nil {
		return DepositResult{}, err
	}
	if err := nextReserves.Credit(AssetA, usedA); err != nil {
		return DepositResult{}, err
	}
	if err := nextReserves.Credit(AssetB, usedB); err != nil {
		return DepositResult{}, err
	}
	if err := p.checkProduct(nextReserves); err != nil {
		return DepositResult{}, err
	}

	if err := p.pullBoth(caller, usedA, usedB); err != nil {
		return DepositResult{}, err
	}
	if err := p.checkSolvency(nextReserves); err != nil {
		return DepositResult{}, err
	}

	p.commit(nextReserves, nextShares)
	p.logger.Debug("deposit",
		zap.String("caller", caller.Hex()),
		zap.String("amount_a", usedA.Dec()),
		zap.String("amount_b", usedB.Dec()),
		zap.String("shares", minted.Dec()),
		zap.Stringer("from_state", state),
	)
	return DepositResult{Shares: minted, AmountA: usedA, AmountB: usedB}, nil
}

// WithdrawLiquidity burns shareAmount of caller's shares and pays out the proportional
// part of each reserve, rounded down.
func (p *Pool) WithdrawLiquidity(caller common.Address, shareAmount *uint256.Int) (res WithdrawResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.finish(OpWithdraw, err) }()

	if err := p.checkMutable(caller); err != nil {
		return WithdrawResult{}, err
	}
	if isZero(shareAmount) {
		return WithdrawResult{}, fmt.Errorf("withdraw: %w", ErrInvalidAmount)
	}
	if _, err := p.state(); err != nil {
		return WithdrawResult{}, err
	}
	balance := p.shares.BalanceOf(caller)
	if shareAmount.Gt(balance) {
		return WithdrawResult{}, fmt.Errorf("withdraw %s of %s: %w", shareAmount.Dec(), balance.Dec(), ErrInsufficientShares)
	}

	total := p.shares.TotalSupply()
	reserveA, reserveB := p.reserves.Reserves()
	outA, err := mulDiv(reserveA, shareAmount, total)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("withdraw amount A: %w", err)
	}
	outB, err := mulDiv(reserveB, shareAmount, total)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("withdraw amount B: %w", err)
	}
	if outA.IsZero() || outB.IsZero() {
		return WithdrawResult{}, fmt.Errorf("withdraw: %w", ErrInsufficientLiquidityBurned)
	}

	nextReserves := p.reserves.clone()
	nextShares := p.shares.clone()
	if err := nextShares.Burn(caller, shareAmount); err != nil {
		return WithdrawResult{}, err
	}
	if err := nextReserves.Debit(AssetA, outA); err != nil {
		return WithdrawResult{}, p.halt(err)
	}
	if err := nextReserves.Debit(AssetB, outB); err != nil {
		return WithdrawResult{}, p.halt(err)
	}
	if err := p.checkSolvency(p.reserves); err != nil {
		return WithdrawResult{}, err
	}

	if err := p.ledgers[AssetA].Transfer(p.address, caller, outA); err != nil {
		return WithdrawResult{}, fmt.Errorf("pay asset A: %w", err)
	}
	if err := p.ledgers[AssetB].Transfer(p.address, caller, outB); err != nil {
		// Asset A already left the pool and only the caller can return it.
		return WithdrawResult{}, p.halt(fmt.Errorf("%w: pay asset B after paying A: %v", ErrLedgerDesync, err))
	}

	p.commit(nextReserves, nextShares)
	p.logger.Debug("withdraw",
		zap.String("caller", caller.Hex()),
		zap.String("shares", shareAmount.Dec()),
		zap.String("amount_a", outA.Dec()),
		zap.String("amount_b", outB.Dec()),
	)
	return WithdrawResult{AmountA: outA, AmountB: outB}, nil
}

// Swap trades exactly one non-zero input for the other asset at the current quote.
func (p *Pool) Swap(caller common.Address, amountInA, amountInB *uint256.Int) (res SwapResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.finish(OpSwap, err) }()

	if err := p.checkMutable(caller); err != nil {
		return SwapResult{}, err
	}
	assetIn, amountIn, err := swapSide(amountInA, amountInB, ErrAmbiguousSwap)
	if err != nil {
		return SwapResult{}, err
	}
	if _, err := p.state(); err != nil {
		return SwapResult{}, err
	}
	amountOut, err := p.quote(assetIn, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.IsZero() {
		return SwapResult{}, fmt.Errorf("swap %s %s: %w", assetIn, amountIn.Dec(), ErrInsufficientOutputAmount)
	}

	assetOut := assetIn.Other()
	nextReserves := p.reserves.clone()
	if err := nextReserves.Credit(assetIn, amountIn); err != nil {
		return SwapResult{}, err
	}
	if err := nextReserves.Debit(assetOut, amountOut); err != nil {
		return SwapResult{}, p.halt(err)
	}
	if err := p.checkProduct(nextReserves); err != nil {
		return SwapResult{}, err
	}
	if err := p.checkSolvency(p.reserves); err != nil {
		return SwapResult{}, err
	}

	if err := p.checkPull(assetIn, caller, amountIn); err != nil {
		return SwapResult{}, err
	}
	prior := p.ledgers[assetIn].Allowance(caller, p.address)
	if err := p.ledgers[assetIn].TransferFrom(p.address, caller, p.address, amountIn); err != nil {
		return SwapResult{}, fmt.Errorf("pull asset %s: %w", assetIn, err)
	}
	if err := p.ledgers[assetOut].Transfer(p.address, caller, amountOut); err != nil {
		if refundErr := p.refund(assetIn, caller, amountIn, prior); refundErr != nil {
			return SwapResult{}, p.halt(refundErr)
		}
		return SwapResult{}, fmt.Errorf("pay asset %s: %w", assetOut, err)
	}

	p.commit(nextReserves, p.shares)
	p.logger.Debug("swap",
		zap.String("caller", caller.Hex()),
		zap.Stringer("asset_in", assetIn),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", amountOut.Dec()),
	)
	return SwapResult{AssetIn: assetIn, AmountIn: amountIn.Clone(), AmountOut: amountOut}, nil
}

// TransferShares moves amount of caller's liquidity shares to recipient.
func (p *Pool) TransferShares(caller, recipient common.Address, amount *uint256.Int) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.finish(OpTransferShares, err) }()

	if err := p.checkMutable(caller); err != nil {
		return err
	}
	if err := p.checkRecipient(recipient); err != nil {
		return err
	}
	next := p.shares.clone()
	if err := next.Transfer(caller, recipient, amount); err != nil {
		return err
	}
	p.commit(p.reserves, next)
	return nil
}

// ApproveShares lets spender move up to amount of caller's shares. A zero amount
// revokes the approval.
func (p *Pool) ApproveShares(caller, spender common.Address, amount *uint256.Int) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.finish(OpApproveShares, err) }()

	if err := p.checkMutable(caller); err != nil {
		return err
	}
	next := p.shares.clone()
	if err := next.Approve(caller, spender, amount); err != nil {
		return err
	}
	p.shares = next
	return nil
}

// TransferSharesFrom moves owner's shares to recipient on behalf of caller.
func (p *Pool) TransferSharesFrom(caller, owner, recipient common.Address, amount *uint256.Int) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.finish(OpTransferSharesFrom, err) }()

	if err := p.checkMutable(caller); err != nil {
		return err
	}
	if owner == LockedSharesHolder {
		return fmt.Errorf("owner %s: %w", owner.Hex(), ErrInvalidIdentity)
	}
	if err := p.checkRecipient(recipient); err != nil {
		return err
	}
	next := p.shares.clone()
	if err := next.TransferFrom(caller, owner, recipient, amount); err != nil {
		return err
	}
	p.commit(p.reserves, next)
	return nil
}

// SharesAllowance returns how many of owner's shares spender may move.
func (p *Pool) SharesAllowance(owner, spender common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.Allowance(owner, spender)
}

// Quote returns the output a Swap with the same inputs would pay right now.
func (p *Pool) Quote(amountInA, amountInB *uint256.Int) (out *uint256.Int, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	defer func() {
		if p.observer != nil {
			p.observer.ObserveOperation(OpQuote, err)
		}
	}()

	assetIn, amountIn, err := swapSide(amountInA, amountInB, ErrAmbiguousQuote)
	if err != nil {
		return nil, err
	}
	return p.quote(assetIn, amountIn)
}

// TotalSupply returns the share supply, locked minimum included.
func (p *Pool) TotalSupply() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.TotalSupply()
}

// BalanceOf returns the holder's share balance.
func (p *Pool) BalanceOf(holder common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.BalanceOf(holder)
}

// Reserves returns a consistent copy of both reserves.
func (p *Pool) Reserves() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reserves.Reserves()
}

// State returns the lifecycle stage.
func (p *Pool) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shares.TotalSupply().IsZero() {
		return StateEmpty
	}
	return StateSeeded
}

// Address returns the pool's identity on the asset ledgers.
func (p *Pool) Address() common.Address {
	return p.address
}

// Fee returns the immutable fee tier.
func (p *Pool) Fee() Fee {
	return p.fee
}

// Halted returns the fatal error that stopped the pool, if any.
func (p *Pool) Halted() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.halted
}

// CheckInvariants verifies share conservation, non-empty reserves while seeded and
// that both ledgers hold at least the tracked reserves. A surplus sent to the pool
// outside its API is left untracked; there is no skim or sync.
func (p *Pool) CheckInvariants() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.shares.CheckConservation(); err != nil {
		return err
	}
	if _, err := p.state(); err != nil {
		return err
	}
	return p.checkSolvency(p.reserves)
}

func (p *Pool) quote(assetIn Asset, amountIn *uint256.Int) (*uint256.Int, error) {
	reserveIn := p.reserves.Reserve(assetIn)
	reserveOut := p.reserves.Reserve(assetIn.Other())
	out, err := GetAmountOut(amountIn, reserveIn, reserveOut, p.fee)
	if err != nil {
		return nil, fmt.Errorf("quote %s %s: %w", assetIn, amountIn.Dec(), err)
	}
	return out, nil
}

func (p *Pool) state() (State, error) {
	total := p.shares.TotalSupply()
	reserveA, reserveB := p.reserves.Reserves()
	switch {
	case total.IsZero() && p.reserves.IsEmpty():
		return StateEmpty, nil
	case !total.IsZero() && !reserveA.IsZero() && !reserveB.IsZero():
		return StateSeeded, nil
	default:
		return StateEmpty, fmt.Errorf("%w: shares %s, reserves %s/%s", ErrPoolNotSeededMismatch, total.Dec(), reserveA.Dec(), reserveB.Dec())
	}
}

func (p *Pool) checkMutable(caller common.Address) error {
	if p.halted != nil {
		return fmt.Errorf("%w: %v", ErrPoolHalted, p.halted)
	}
	if caller == LockedSharesHolder || caller == p.address {
		return fmt.Errorf("caller %s: %w", caller.Hex(), ErrInvalidIdentity)
	}
	return nil
}

// checkRecipient refuses share sinks nobody can withdraw from.
func (p *Pool) checkRecipient(recipient common.Address) error {
	if recipient == LockedSharesHolder || recipient == p.address {
		return fmt.Errorf("recipient %s: %w", recipient.Hex(), ErrInvalidIdentity)
	}
	return nil
}

// checkProduct rejects a next state whose product overflows. A product that falls below
// the current one means the pricing math is broken, and the pool halts.
func (p *Pool) checkProduct(next *ReserveLedger) error {
	before, err := p.reserves.InvariantProduct()
	if err != nil {
		return err
	}
	after, err := next.InvariantProduct()
	if err != nil {
		return err
	}
	if after.Lt(before) {
		return p.halt(fmt.Errorf("%w: product decreased from %s to %s", ErrInvariantViolation, before.Dec(), after.Dec()))
	}
	return nil
}

// checkSolvency halts the pool when a ledger holds less than the tracked reserve.
func (p *Pool) checkSolvency(reserves *ReserveLedger) error {
	for _, asset := range []Asset{AssetA, AssetB} {
		held := p.ledgers[asset].BalanceOf(p.address)
		tracked := reserves.Reserve(asset)
		if held.Lt(tracked) {
			return p.halt(fmt.Errorf("%w: asset %s ledger holds %s, tracked %s", ErrLedgerDesync, asset, held.Dec(), tracked.Dec()))
		}
	}
	return nil
}

// pullBoth moves the deposit into the pool. Both legs are checked before either is
// pulled; if asset B still fails, asset A and its allowance are handed back.
func (p *Pool) pullBoth(caller common.Address, amountA, amountB *uint256.Int) error {
	for _, leg := range []struct {
		asset  Asset
		amount *uint256.Int
	}{{AssetA, amountA}, {AssetB, amountB}} {
		if err := p.checkPull(leg.asset, caller, leg.amount); err != nil {
			return err
		}
	}

	priorA := p.ledgers[AssetA].Allowance(caller, p.address)
	if err := p.ledgers[AssetA].TransferFrom(p.address, caller, p.address, amountA); err != nil {
		return fmt.Errorf("pull asset A: %w", err)
	}
	if err := p.ledgers[AssetB].TransferFrom(p.address, caller, p.address, amountB); err != nil {
		if refundErr := p.refund(AssetA, caller, amountA, priorA); refundErr != nil {
			return p.halt(refundErr)
		}
		return fmt.Errorf("pull asset B: %w", err)
	}
	return nil
}

// checkPull rejects a TransferFrom the ledger would refuse, before anything moves.
func (p *Pool) checkPull(asset Asset, caller common.Address, amount *uint256.Int) error {
	ledger := p.ledgers[asset]
	if allowance := ledger.Allowance(caller, p.address); allowance.Lt(amount) {
		return fmt.Errorf("pull asset %s: allowance %s < %s: %w", asset, allowance.Dec(), amount.Dec(), ErrInsufficientAllowance)
	}
	if balance := ledger.BalanceOf(caller); balance.Lt(amount) {
		return fmt.Errorf("pull asset %s: balance %s < %s: %w", asset, balance.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	return nil
}

// refund returns a pulled amount to caller and restores the allowance it consumed.
func (p *Pool) refund(asset Asset, caller common.Address, amount, allowance *uint256.Int) error {
	if err := p.ledgers[asset].Transfer(p.address, caller, amount); err != nil {
		return fmt.Errorf("%w: refund asset %s: %v", ErrLedgerDesync, asset, err)
	}
	if err := p.ledgers[asset].Approve(caller, p.address, allowance); err != nil {
		return fmt.Errorf("%w: restore allowance of asset %s: %v", ErrLedgerDesync, asset, err)
	}
	return nil
}

func (p *Pool) commit(reserves *ReserveLedger, shares *ShareLedger) {
	p.reserves = reserves
	p.shares = shares
	if p.observer != nil {
		reserveA, reserveB := reserves.Reserves()
		p.observer.ObserveState(reserveA, reserveB, shares.TotalSupply())
	}
}

func (p *Pool) halt(err error) error {
	if p.halted == nil {
		p.halted = err
		p.logger.Error("pool halted", zap.Error(err))
	}
	return err
}

func (p *Pool) finish(op string, err error) {
	if p.observer != nil {
		p.observer.ObserveOperation(op, err)
	}
	if err != nil {
		p.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
	}
}

// optimalAmounts scales the deposit down to the current reserve ratio.
func optimalAmounts(amountA, amountB, reserveA, reserveB *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	optimalB, err := mulDiv(amountA, reserveB, reserveA)
	if err != nil {
		return nil, nil, fmt.Errorf("optimal amount B: %w", err)
	}
	if !optimalB.Gt(amountB) {
		return amountA.Clone(), optimalB, nil
	}
	optimalA, err := mulDiv(amountB, reserveA, reserveB)
	if err != nil {
		return nil, nil, fmt.Errorf("optimal amount A: %w", err)
	}
	return optimalA, amountB.Clone(), nil
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}
