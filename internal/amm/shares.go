package amm

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MinimumLockedShares is minted to LockedSharesHolder on the first deposit and can
// never be withdrawn, so total supply never returns to zero once seeded.
const MinimumLockedShares = 1000

// LockedSharesHolder is the sink identity for the locked minimum. No caller may use it.
var LockedSharesHolder = common.Address{}

// ShareLedger maps participants to liquidity share balances.
// It is not safe for concurrent use; the owning Pool serializes access.
type ShareLedger struct {
	total      *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// ShareAllowance is one owner/spender approval on the share ledger.
type ShareAllowance struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

// NewShareLedger returns a ledger with no shares issued.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		total:      new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Mint credits amount shares to the holder.
func (s *ShareLedger) Mint(to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("mint shares: %w", ErrInvalidAmount)
	}
	total, overflow := new(uint256.Int).AddOverflow(s.total, amount)
	if overflow {
		return fmt.Errorf("mint shares: %w", ErrArithmeticOverflow)
	}
	// A holder's balance is bounded by total, so it cannot overflow once total did not.
	balance := s.balance(to)
	s.balances[to] = new(uint256.Int).Add(balance, amount)
	s.total = total
	return nil
}

// Burn removes amount shares from the holder.
func (s *ShareLedger) Burn(from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("burn shares: %w", ErrInvalidAmount)
	}
	balance := s.balance(from)
	if amount.Gt(balance) {
		return fmt.Errorf("burn shares: %s > %s: %w", amount.Dec(), balance.Dec(), ErrInsufficientShares)
	}
	remaining := new(uint256.Int).Sub(balance, amount)
	if remaining.IsZero() {
		delete(s.balances, from)
	} else {
		s.balances[from] = remaining
	}
	s.total = new(uint256.Int).Sub(s.total, amount)
	return nil
}

// Transfer moves amount shares between holders. The locked minimum never moves and
// shares cannot be sent to the zero address.
func (s *ShareLedger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("transfer shares: %w", ErrInvalidAmount)
	}
	if from == LockedSharesHolder || to == LockedSharesHolder {
		return fmt.Errorf("transfer shares %s -> %s: %w", from.Hex(), to.Hex(), ErrInvalidIdentity)
	}
	balance := s.balance(from)
	if amount.Gt(balance) {
		return fmt.Errorf("transfer shares: %s > %s: %w", amount.Dec(), balance.Dec(), ErrInsufficientShares)
	}
	if from == to {
		return nil
	}
	remaining := new(uint256.Int).Sub(balance, amount)
	if remaining.IsZero() {
		delete(s.balances, from)
	} else {
		s.balances[from] = remaining
	}
	s.balances[to] = new(uint256.Int).Add(s.balance(to), amount)
	return nil
}

// Approve sets spender's allowance over owner's shares.
func (s *ShareLedger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == LockedSharesHolder || spender == LockedSharesHolder {
		return fmt.Errorf("approve shares: %w", ErrInvalidIdentity)
	}
	if amount == nil || amount.IsZero() {
		if spenders, ok := s.allowances[owner]; ok {
			delete(spenders, spender)
			if len(spenders) == 0 {
				delete(s.allowances, owner)
			}
		}
		return nil
	}
	spenders, ok := s.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		s.allowances[owner] = spenders
	}
	spenders[spender] = amount.Clone()
	return nil
}

// Allowance returns how many of owner's shares spender may move.
func (s *ShareLedger) Allowance(owner, spender common.Address) *uint256.Int {
	if allowance, ok := s.allowances[owner][spender]; ok {
		return allowance.Clone()
	}
	return new(uint256.Int)
}

// TransferFrom moves owner's shares on behalf of spender, consuming the allowance.
func (s *ShareLedger) TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	allowance := s.Allowance(owner, spender)
	if amount != nil && amount.Gt(allowance) {
		return fmt.Errorf("transfer shares from %s: allowance %s < %s: %w", owner.Hex(), allowance.Dec(), amount.Dec(), ErrInsufficientAllowance)
	}
	if err := s.Transfer(owner, to, amount); err != nil {
		return err
	}
	return s.Approve(owner, spender, new(uint256.Int).Sub(allowance, amount))
}

// Allowances returns every non-zero approval, ordered by owner then spender.
func (s *ShareLedger) Allowances() []ShareAllowance {
	out := make([]ShareAllowance, 0, len(s.allowances))
	for owner, spenders := range s.allowances {
		for spender, amount := range spenders {
			out = append(out, ShareAllowance{Owner: owner, Spender: spender, Amount: amount.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Owner.Cmp(out[j].Owner); c != 0 {
			return c < 0
		}
		return out[i].Spender.Cmp(out[j].Spender) < 0
	})
	return out
}

// TotalSupply returns the number of shares in existence, locked minimum included.
func (s *ShareLedger) TotalSupply() *uint256.Int {
	return s.total.Clone()
}

// BalanceOf returns the holder's share balance.
func (s *ShareLedger) BalanceOf(holder common.Address) *uint256.Int {
	return s.balance(holder).Clone()
}

// Holders returns every identity with a non-zero balance, ordered by address.
func (s *ShareLedger) Holders() []common.Address {
	holders := make([]common.Address, 0, len(s.balances))
	for holder := range s.balances {
		holders = append(holders, holder)
	}
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Cmp(holders[j]) < 0
	})
	return holders
}

// CheckConservation verifies total == sum(balances).
func (s *ShareLedger) CheckConservation() error {
	sum := new(uint256.Int)
	for holder, balance := range s.balances {
		if _, overflow := sum.AddOverflow(sum, balance); overflow {
			return fmt.Errorf("sum shares at %s: %w", holder.Hex(), ErrArithmeticOverflow)
		}
	}
	if !sum.Eq(s.total) {
		return fmt.Errorf("%w: share sum %s != total %s", ErrInvariantViolation, sum.Dec(), s.total.Dec())
	}
	return nil
}

func (s *ShareLedger) balance(holder common.Address) *uint256.Int {
	if balance, ok := s.balances[holder]; ok {
		return balance
	}
	return new(uint256.Int)
}

func (s *ShareLedger) clone() *ShareLedger {
	balances := make(map[common.Address]*uint256.Int, len(s.balances))
	for holder, balance := range s.balances {
		balances[holder] = balance.Clone()
	}
	allowances := make(map[common.Address]map[common.Address]*uint256.Int, len(s.allowances))
	for owner, spenders := range s.allowances {
		copied := make(map[common.Address]*uint256.Int, len(spenders))
		for spender, amount := range spenders {
			copied[spender] = amount.Clone()
		}
		allowances[owner] = copied
	}
	return &ShareLedger{total: s.total.Clone(), balances: balances, allowances: allowances}
}

// initialShares returns isqrt(amountA*amountB), the geometric mean of the seed amounts.
func initialShares(amountA, amountB *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(amountA, amountB)
	if overflow {
		return nil, fmt.Errorf("initial shares: %w", ErrArithmeticOverflow)
	}
	return new(uint256.Int).Sqrt(product), nil
}

// proportionalShares returns min(amountA*total/reserveA, amountB*total/reserveB).
func proportionalShares(amountA, amountB, reserveA, reserveB, total *uint256.Int) (*uint256.Int, error) {
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, fmt.Errorf("proportional shares: %w", ErrPoolNotSeededMismatch)
	}
	sharesA, err := mulDiv(amountA, total, reserveA)
	if err != nil {
		return nil, fmt.Errorf("proportional shares A: %w", err)
	}
	sharesB, err := mulDiv(amountB, total, reserveB)
	if err != nil {
		return nil, fmt.Errorf("proportional shares B: %w", err)
	}
	if sharesA.Lt(sharesB) {
		return sharesA, nil
	}
	return sharesB, nil
}

// mulDiv returns floor(x*y/d). d must be non-zero.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return product.Div(product, d), nil
}
