package amm_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/token"
)

var (
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	alice    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob      = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fixture struct {
	pool   *amm.Pool
	tokenA *token.Ledger
	tokenB *token.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokenA := token.NewLedger("TKA")
	tokenB := token.NewLedger("TKB")
	pool, err := amm.NewPool(amm.Config{Address: poolAddr, LedgerA: tokenA, LedgerB: tokenB})
	require.NoError(t, err)
	return &fixture{pool: pool, tokenA: tokenA, tokenB: tokenB}
}

// fund mints and approves the pool for the given amounts.
func (f *fixture) fund(t *testing.T, who common.Address, amountA, amountB uint64) {
	t.Helper()
	if amountA > 0 {
		require.NoError(t, f.tokenA.Mint(who, u(amountA)))
		require.NoError(t, f.tokenA.Approve(who, poolAddr, f.tokenA.BalanceOf(who)))
	}
	if amountB > 0 {
		require.NoError(t, f.tokenB.Mint(who, u(amountB)))
		require.NoError(t, f.tokenB.Approve(who, poolAddr, f.tokenB.BalanceOf(who)))
	}
}

func (f *fixture) product() *uint256.Int {
	a, b := f.pool.Reserves()
	return new(uint256.Int).Mul(a, b)
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func TestReferenceScenario(t *testing.T) {
	f := newFixture(t)
	const balanceA, balanceB = 10_000_000_000, 5_000_000_000
	f.fund(t, alice, balanceA, balanceB)

	dep, err := f.pool.DepositLiquidity(alice, u(balanceA), u(balanceB))
	require.NoError(t, err)
	require.Equal(t, "7071066811", dep.Shares.Dec())
	require.Equal(t, amm.StateSeeded, f.pool.State())
	require.Equal(t, uint64(balanceA), f.tokenA.BalanceOf(poolAddr).Uint64())
	require.Equal(t, uint64(balanceB), f.tokenB.BalanceOf(poolAddr).Uint64())

	locked := new(uint256.Int).Sub(f.pool.TotalSupply(), f.pool.BalanceOf(alice))
	require.Equal(t, uint64(amm.MinimumLockedShares), locked.Uint64())

	swapA := u(1_003_000)
	expectedB, err := f.pool.Quote(swapA, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(499945), expectedB.Uint64())

	f.fund(t, alice, swapA.Uint64(), 0)
	res, err := f.pool.Swap(alice, swapA, nil)
	require.NoError(t, err)
	require.Equal(t, amm.AssetA, res.AssetIn)
	require.True(t, expectedB.Eq(res.AmountOut))
	require.True(t, expectedB.Eq(f.tokenB.BalanceOf(alice)))

	swapB := f.tokenB.BalanceOf(alice)
	require.NoError(t, f.tokenB.Approve(alice, poolAddr, swapB))
	expectedA, err := f.pool.Quote(nil, swapB)
	require.NoError(t, err)
	_, err = f.pool.Swap(alice, nil, swapB)
	require.NoError(t, err)
	require.True(t, expectedA.Eq(f.tokenA.BalanceOf(alice)))
	require.Equal(t, uint64(996990), expectedA.Uint64())

	reserveA, reserveB := f.pool.Reserves()
	shares := f.pool.BalanceOf(alice)
	total := f.pool.TotalSupply()
	wantA := new(uint256.Int).Div(new(uint256.Int).Mul(reserveA, shares), total)
	wantB := new(uint256.Int).Div(new(uint256.Int).Mul(reserveB, shares), total)

	out, err := f.pool.WithdrawLiquidity(alice, shares)
	require.NoError(t, err)
	require.True(t, wantA.Eq(out.AmountA))
	require.True(t, wantB.Eq(out.AmountB))
	require.Equal(t, uint64(10_000_004_595), out.AmountA.Uint64())
	require.Equal(t, uint64(4_999_999_292), out.AmountB.Uint64())
	require.True(t, f.pool.BalanceOf(alice).IsZero())
	require.Equal(t, uint64(amm.MinimumLockedShares), f.pool.TotalSupply().Uint64())
	require.NoError(t, f.pool.CheckInvariants())
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 1_000_000, 1_000_000)

	_, err := f.pool.DepositLiquidity(alice, u(0), u(10))
	require.ErrorIs(t, err, amm.ErrInvalidAmount)
	_, err = f.pool.DepositLiquidity(alice, u(10), nil)
	require.ErrorIs(t, err, amm.ErrInvalidAmount)
	_, err = f.pool.DepositLiquidity(amm.LockedSharesHolder, u(10), u(10))
	require.ErrorIs(t, err, amm.ErrInvalidIdentity)

	// sqrt(1000*1000) == 1000 leaves nothing for the depositor.
	_, err = f.pool.DepositLiquidity(alice, u(1000), u(1000))
	require.ErrorIs(t, err, amm.ErrInsufficientLiquidityMinted)
	require.Equal(t, amm.StateEmpty, f.pool.State())
	require.True(t, f.tokenA.BalanceOf(poolAddr).IsZero())
}

func TestDepositWithoutAllowanceRollsBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokenA.Mint(alice, u(1_000_000)))
	require.NoError(t, f.tokenB.Mint(alice, u(1_000_000)))
	require.NoError(t, f.tokenA.Approve(alice, poolAddr, u(1_000_000)))

	_, err := f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.Equal(t, amm.StateEmpty, f.pool.State())
	require.True(t, f.pool.TotalSupply().IsZero())
	require.Equal(t, uint64(1_000_000), f.tokenA.BalanceOf(alice).Uint64())
	require.True(t, f.tokenA.BalanceOf(poolAddr).IsZero())
	require.NoError(t, f.pool.Halted())
	require.Equal(t, uint64(1_000_000), f.tokenA.Allowance(alice, poolAddr).Uint64())

	require.NoError(t, f.tokenB.Approve(alice, poolAddr, u(1_000_000)))
	_, err = f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)
	require.True(t, f.tokenA.Allowance(alice, poolAddr).IsZero())
}

func TestUnbalancedDepositPullsOnlyRatio(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 2_000_000, 1_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(2_000_000), u(1_000_000))
	require.NoError(t, err)

	f.fund(t, bob, 300_000, 100_000)
	total := f.pool.TotalSupply()
	dep, err := f.pool.DepositLiquidity(bob, u(300_000), u(100_000))
	require.NoError(t, err)

	// B limits: 100_000 B matches 200_000 A; the extra 100_000 A stays with bob.
	require.Equal(t, uint64(200_000), dep.AmountA.Uint64())
	require.Equal(t, uint64(100_000), dep.AmountB.Uint64())
	require.Equal(t, uint64(100_000), f.tokenA.BalanceOf(bob).Uint64())
	require.True(t, f.tokenB.BalanceOf(bob).IsZero())

	want := new(uint256.Int).Div(new(uint256.Int).Mul(u(100_000), total), u(1_000_000))
	require.True(t, want.Eq(dep.Shares))
	require.True(t, want.Eq(f.pool.BalanceOf(bob)))
	require.NoError(t, f.pool.CheckInvariants())
}

func TestQuoteAndSwapAmbiguity(t *testing.T) {
	f := newFixture(t)

	_, err := f.pool.Quote(u(1), u(1))
	require.ErrorIs(t, err, amm.ErrAmbiguousQuote)
	_, err = f.pool.Quote(nil, u(0))
	require.ErrorIs(t, err, amm.ErrAmbiguousQuote)
	_, err = f.pool.Quote(u(10), nil)
	require.ErrorIs(t, err, amm.ErrInsufficientLiquidity)

	_, err = f.pool.Swap(alice, u(1), u(1))
	require.ErrorIs(t, err, amm.ErrAmbiguousSwap)
	_, err = f.pool.Swap(alice, nil, nil)
	require.ErrorIs(t, err, amm.ErrAmbiguousSwap)
	_, err = f.pool.Swap(alice, u(10), nil)
	require.ErrorIs(t, err, amm.ErrInsufficientLiquidity)
}

func TestSwapNeverDecreasesProduct(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 50_000_000, 80_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(50_000_000), u(80_000_000))
	require.NoError(t, err)

	f.fund(t, bob, 10_000_000, 10_000_000)
	inputs := []uint64{1, 7, 997, 1_000, 12_345, 250_000, 3_000_000}
	for i, in := range inputs {
		before := f.product()
		var err error
		if i%2 == 0 {
			_, err = f.pool.Swap(bob, u(in), nil)
		} else {
			_, err = f.pool.Swap(bob, nil, u(in))
		}
		if errors.Is(err, amm.ErrInsufficientOutputAmount) {
			require.True(t, before.Eq(f.product()))
			continue
		}
		require.NoError(t, err)
		require.False(t, f.product().Lt(before), "product decreased on input %d", in)
	}
	require.NoError(t, f.pool.CheckInvariants())
}

func TestSwapInsufficientOutput(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 1_000_000, 1_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)

	f.fund(t, bob, 1, 0)
	_, err = f.pool.Swap(bob, u(1), nil)
	require.ErrorIs(t, err, amm.ErrInsufficientOutputAmount)
	require.Equal(t, uint64(1), f.tokenA.BalanceOf(bob).Uint64())
}

func TestSwapWithoutFundsLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 1_000_000, 1_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)

	reserveA, reserveB := f.pool.Reserves()
	_, err = f.pool.Swap(bob, u(5_000), nil)
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	afterA, afterB := f.pool.Reserves()
	require.True(t, reserveA.Eq(afterA))
	require.True(t, reserveB.Eq(afterB))
}

func TestWithdrawValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 1_000_000, 1_000_000)
	dep, err := f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)

	_, err = f.pool.WithdrawLiquidity(alice, u(0))
	require.ErrorIs(t, err, amm.ErrInvalidAmount)

	tooMany := new(uint256.Int).AddUint64(dep.Shares, 1)
	_, err = f.pool.WithdrawLiquidity(alice, tooMany)
	require.ErrorIs(t, err, amm.ErrInsufficientShares)

	_, err = f.pool.WithdrawLiquidity(bob, u(1))
	require.ErrorIs(t, err, amm.ErrInsufficientShares)

	_, err = f.pool.WithdrawLiquidity(amm.LockedSharesHolder, u(amm.MinimumLockedShares))
	require.ErrorIs(t, err, amm.ErrInvalidIdentity)
}

func TestWithdrawIsProportionalAndFloored(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 3_000_001, 7_000_003)
	_, err := f.pool.DepositLiquidity(alice, u(3_000_001), u(7_000_003))
	require.NoError(t, err)

	f.fund(t, bob, 1_000_000, 0)
	_, err = f.pool.Swap(bob, u(1_000_000), nil)
	require.NoError(t, err)

	for _, part := range []uint64{1_000_000, 333_333, 77} {
		reserveA, reserveB := f.pool.Reserves()
		total := f.pool.TotalSupply()
		out, err := f.pool.WithdrawLiquidity(alice, u(part))
		require.NoError(t, err)

		floorA := new(uint256.Int).Div(new(uint256.Int).Mul(reserveA, u(part)), total)
		floorB := new(uint256.Int).Div(new(uint256.Int).Mul(reserveB, u(part)), total)
		require.True(t, floorA.Eq(out.AmountA))
		require.True(t, floorB.Eq(out.AmountB))
		require.NoError(t, f.pool.CheckInvariants())
	}
}

func TestConcurrentOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100_000_000, 100_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(100_000_000), u(100_000_000))
	require.NoError(t, err)

	traders := make([]common.Address, 8)
	for i := range traders {
		traders[i] = common.BigToAddress(u(uint64(0x1000 + i)).ToBig())
		f.fund(t, traders[i], 1_000_000, 1_000_000)
	}

	var wg sync.WaitGroup
	for i, trader := range traders {
		wg.Add(1)
		go func(i int, trader common.Address) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if (i+j)%2 == 0 {
					_, _ = f.pool.Swap(trader, u(10_000), nil)
				} else {
					_, _ = f.pool.Swap(trader, nil, u(10_000))
				}
				_, _ = f.pool.Quote(u(1_000), nil)
			}
		}(i, trader)
	}
	wg.Wait()

	require.NoError(t, f.pool.CheckInvariants())
	reserveA, reserveB := f.pool.Reserves()
	require.True(t, reserveA.Eq(f.tokenA.BalanceOf(poolAddr)))
	require.True(t, reserveB.Eq(f.tokenB.BalanceOf(poolAddr)))
}

// failingLedger fails every Transfer or TransferFrom once armed.
type failingLedger struct {
	*token.Ledger
	failTransfer     bool
	failTransferFrom bool
}

func (l *failingLedger) TransferFrom(spender, owner, recipient common.Address, amount *uint256.Int) error {
	if l.failTransferFrom {
		return errLedgerDown
	}
	return l.Ledger.TransferFrom(spender, owner, recipient, amount)
}

var errLedgerDown = errors.New("ledger unavailable")

func (l *failingLedger) Transfer(sender, recipient common.Address, amount *uint256.Int) error {
	if l.failTransfer {
		return errLedgerDown
	}
	return l.Ledger.Transfer(sender, recipient, amount)
}

func TestSwapRefundsInputWhenPayoutFails(t *testing.T) {
	tokenA := token.NewLedger("TKA")
	tokenB := &failingLedger{Ledger: token.NewLedger("TKB")}
	pool, err := amm.NewPool(amm.Config{Address: poolAddr, LedgerA: tokenA, LedgerB: tokenB})
	require.NoError(t, err)

	for _, l := range []*token.Ledger{tokenA, tokenB.Ledger} {
		require.NoError(t, l.Mint(alice, u(2_000_000)))
		require.NoError(t, l.Approve(alice, poolAddr, u(2_000_000)))
	}
	_, err = pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)

	tokenB.failTransfer = true
	_, err = pool.Swap(alice, u(10_000), nil)
	require.ErrorIs(t, err, errLedgerDown)
	require.Equal(t, uint64(1_000_000), tokenA.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(1_000_000), tokenA.Allowance(alice, poolAddr).Uint64())
	require.NoError(t, pool.Halted())
	require.NoError(t, pool.CheckInvariants())
}

func TestDepositRestoresAllowanceWhenSecondPullFails(t *testing.T) {
	tokenA := token.NewLedger("TKA")
	tokenB := &failingLedger{Ledger: token.NewLedger("TKB")}
	pool, err := amm.NewPool(amm.Config{Address: poolAddr, LedgerA: tokenA, LedgerB: tokenB})
	require.NoError(t, err)
	for _, l := range []*token.Ledger{tokenA, tokenB.Ledger} {
		require.NoError(t, l.Mint(alice, u(1_000_000)))
		require.NoError(t, l.Approve(alice, poolAddr, u(1_500_000)))
	}

	tokenB.failTransferFrom = true
	_, err = pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.ErrorIs(t, err, errLedgerDown)
	require.NoError(t, pool.Halted())
	require.Equal(t, amm.StateEmpty, pool.State())
	require.Equal(t, uint64(1_000_000), tokenA.BalanceOf(alice).Uint64())
	require.True(t, tokenA.BalanceOf(poolAddr).IsZero())
	require.Equal(t, uint64(1_500_000), tokenA.Allowance(alice, poolAddr).Uint64())

	tokenB.failTransferFrom = false
	_, err = pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), tokenA.Allowance(alice, poolAddr).Uint64())
}

func TestDepositChecksBothLegsFirst(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 1_000_000, 0)
	require.NoError(t, f.tokenB.Approve(alice, poolAddr, u(1_000_000)))

	_, err := f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.ErrorIs(t, err, amm.ErrInsufficientBalance)
	require.Equal(t, uint64(1_000_000), f.tokenA.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(1_000_000), f.tokenA.Allowance(alice, poolAddr).Uint64())
}

func TestWithdrawHaltsWhenSecondPayoutFails(t *testing.T) {
	tokenA := token.NewLedger("TKA")
	tokenB := &failingLedger{Ledger: token.NewLedger("TKB")}
	pool, err := amm.NewPool(amm.Config{Address: poolAddr, LedgerA: tokenA, LedgerB: tokenB})
	require.NoError(t, err)
	for _, l := range []*token.Ledger{tokenA, tokenB.Ledger} {
		require.NoError(t, l.Mint(alice, u(1_000_000)))
		require.NoError(t, l.Approve(alice, poolAddr, u(1_000_000)))
	}
	dep, err := pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)

	tokenB.failTransfer = true
	_, err = pool.WithdrawLiquidity(alice, dep.Shares)
	require.ErrorIs(t, err, amm.ErrLedgerDesync)
	require.True(t, amm.IsFatal(err))
	require.ErrorIs(t, pool.Halted(), amm.ErrLedgerDesync)

	tokenB.failTransfer = false
	_, err = pool.Swap(alice, u(1), nil)
	require.ErrorIs(t, err, amm.ErrPoolHalted)
}

func TestNewPoolValidation(t *testing.T) {
	l := token.NewLedger("X")
	_, err := amm.NewPool(amm.Config{Address: poolAddr, LedgerA: l})
	require.Error(t, err)
	_, err = amm.NewPool(amm.Config{LedgerA: l, LedgerB: l})
	require.ErrorIs(t, err, amm.ErrInvalidIdentity)
	_, err = amm.NewPool(amm.Config{Address: poolAddr, LedgerA: l, LedgerB: l, Fee: amm.Fee{Numerator: 2, Denominator: 1}})
	require.ErrorIs(t, err, amm.ErrInvalidFee)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 4_000_000, 9_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(4_000_000), u(9_000_000))
	require.NoError(t, err)

	snap := f.pool.Snapshot()
	restored, err := amm.Restore(amm.Config{LedgerA: f.tokenA, LedgerB: f.tokenB}, snap)
	require.NoError(t, err)
	require.True(t, restored.TotalSupply().Eq(f.pool.TotalSupply()))
	require.True(t, restored.BalanceOf(alice).Eq(f.pool.BalanceOf(alice)))

	q1, err := f.pool.Quote(u(1_000), nil)
	require.NoError(t, err)
	q2, err := restored.Quote(u(1_000), nil)
	require.NoError(t, err)
	require.True(t, q1.Eq(q2))

	bad := snap
	bad.TotalShares = new(uint256.Int).AddUint64(snap.TotalShares, 1)
	_, err = amm.Restore(amm.Config{LedgerA: f.tokenA, LedgerB: f.tokenB}, bad)
	require.ErrorIs(t, err, amm.ErrInvariantViolation)

	insolvent := snap
	insolvent.ReserveA = new(uint256.Int).AddUint64(snap.ReserveA, 1)
	_, err = amm.Restore(amm.Config{LedgerA: f.tokenA, LedgerB: f.tokenB}, insolvent)
	require.ErrorIs(t, err, amm.ErrLedgerDesync)
}

func TestShareTransfers(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 4_000_000, 1_000_000)
	dep, err := f.pool.DepositLiquidity(alice, u(4_000_000), u(1_000_000))
	require.NoError(t, err)
	total := f.pool.TotalSupply()

	require.NoError(t, f.pool.TransferShares(alice, bob, u(500_000)))
	require.Equal(t, uint64(500_000), f.pool.BalanceOf(bob).Uint64())
	require.Equal(t, dep.Shares.Uint64()-500_000, f.pool.BalanceOf(alice).Uint64())
	require.True(t, total.Eq(f.pool.TotalSupply()))
	require.NoError(t, f.pool.CheckInvariants())

	err = f.pool.TransferShares(bob, alice, u(500_001))
	require.ErrorIs(t, err, amm.ErrInsufficientShares)
	require.ErrorIs(t, f.pool.TransferShares(amm.LockedSharesHolder, bob, u(1)), amm.ErrInvalidIdentity)
	require.ErrorIs(t, f.pool.TransferShares(alice, amm.LockedSharesHolder, u(1)), amm.ErrInvalidIdentity)
	require.ErrorIs(t, f.pool.TransferShares(alice, poolAddr, u(1)), amm.ErrInvalidIdentity)
	require.ErrorIs(t, f.pool.TransferShares(alice, bob, u(0)), amm.ErrInvalidAmount)

	// bob lets alice pull part of his shares back.
	require.NoError(t, f.pool.ApproveShares(bob, alice, u(200_000)))
	require.Equal(t, uint64(200_000), f.pool.SharesAllowance(bob, alice).Uint64())
	err = f.pool.TransferSharesFrom(alice, bob, alice, u(200_001))
	require.ErrorIs(t, err, amm.ErrInsufficientAllowance)
	require.NoError(t, f.pool.TransferSharesFrom(alice, bob, alice, u(150_000)))
	require.Equal(t, uint64(50_000), f.pool.SharesAllowance(bob, alice).Uint64())
	require.Equal(t, uint64(350_000), f.pool.BalanceOf(bob).Uint64())
	require.ErrorIs(t, f.pool.TransferSharesFrom(alice, amm.LockedSharesHolder, alice, u(1)), amm.ErrInvalidIdentity)
	require.True(t, total.Eq(f.pool.TotalSupply()))

	// Transferred shares redeem like any others.
	res, err := f.pool.WithdrawLiquidity(bob, u(350_000))
	require.NoError(t, err)
	require.Equal(t, uint64(700_000), res.AmountA.Uint64())
	require.Equal(t, uint64(175_000), res.AmountB.Uint64())
	require.NoError(t, f.pool.CheckInvariants())

	snap := f.pool.Snapshot()
	require.Len(t, snap.Allowances, 1)
	restored, err := amm.Restore(amm.Config{LedgerA: f.tokenA, LedgerB: f.tokenB}, snap)
	require.NoError(t, err)
	require.Equal(t, uint64(50_000), restored.SharesAllowance(bob, alice).Uint64())
}

func TestDonationIsNotAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 1_000_000, 1_000_000)
	_, err := f.pool.DepositLiquidity(alice, u(1_000_000), u(1_000_000))
	require.NoError(t, err)
	before, err := f.pool.Quote(u(10_000), nil)
	require.NoError(t, err)

	require.NoError(t, f.tokenA.Mint(poolAddr, u(250_000)))
	require.NoError(t, f.pool.CheckInvariants())

	reserveA, _ := f.pool.Reserves()
	require.Equal(t, uint64(1_000_000), reserveA.Uint64())
	after, err := f.pool.Quote(u(10_000), nil)
	require.NoError(t, err)
	require.True(t, before.Eq(after))
}
