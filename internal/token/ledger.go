// Package token provides an in-memory fungible-asset ledger with ERC-20 semantics.
package token

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/amm"
)

var (
	ErrInsufficientBalance   = amm.ErrInsufficientBalance
	ErrInsufficientAllowance = amm.ErrInsufficientAllowance
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrSupplyOverflow        = errors.New("total supply overflow")
)

var _ amm.Ledger = (*Ledger)(nil)

// Ledger tracks balances and allowances of a single asset.
type Ledger struct {
	symbol string

	mu         sync.Mutex
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// NewLedger returns an empty ledger.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:     symbol,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Symbol returns the asset symbol.
func (l *Ledger) Symbol() string {
	return l.symbol
}

// Mint creates amount new units for to.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("%s mint: %w", l.symbol, ErrSupplyOverflow)
	}
	l.supply = supply
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	return nil
}

// Transfer moves amount from sender to recipient.
func (l *Ledger) Transfer(sender, recipient common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(sender, recipient, amount)
}

// TransferFrom moves amount from owner to recipient, spending spender's allowance.
func (l *Ledger) TransferFrom(spender, owner, recipient common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowance(owner, spender)
	if amount.Gt(allowance) {
		return fmt.Errorf("%s transferFrom %s by %s: %w", l.symbol, owner.Hex(), spender.Hex(), ErrInsufficientAllowance)
	}
	if err := l.move(owner, recipient, amount); err != nil {
		return err
	}
	l.setAllowance(owner, spender, new(uint256.Int).Sub(allowance, amount))
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return ErrInvalidRecipient
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowance(owner, spender, amount.Clone())
	return nil
}

// BalanceOf returns owner's balance.
func (l *Ledger) BalanceOf(owner common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(owner).Clone()
}

// Allowance returns the amount spender may still move from owner.
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowance(owner, spender).Clone()
}

// TotalSupply returns the number of units in existence.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply.Clone()
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}
	balance := l.balance(from)
	if amount.Gt(balance) {
		return fmt.Errorf("%s transfer %s from %s: %w", l.symbol, amount.Dec(), from.Hex(), ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	l.balances[from] = new(uint256.Int).Sub(balance, amount)
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	return nil
}

func (l *Ledger) balance(owner common.Address) *uint256.Int {
	if balance, ok := l.balances[owner]; ok {
		return balance
	}
	return new(uint256.Int)
}

func (l *Ledger) allowance(owner, spender common.Address) *uint256.Int {
	if spenders, ok := l.allowances[owner]; ok {
		if allowance, ok := spenders[spender]; ok {
			return allowance
		}
	}
	return new(uint256.Int)
}

func (l *Ledger) setAllowance(owner, spender common.Address, amount *uint256.Int) {
	spenders, ok := l.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

// Allowance is one owner/spender approval.
type Allowance struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

// State is a copy of the ledger contents.
type State struct {
	Symbol     string
	Balances   map[common.Address]*uint256.Int
	Allowances []Allowance
}

// Snapshot returns a copy of the ledger contents.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[common.Address]*uint256.Int, len(l.balances))
	for owner, balance := range l.balances {
		if balance.IsZero() {
			continue
		}
		balances[owner] = balance.Clone()
	}
	allowances := make([]Allowance, 0)
	for owner, spenders := range l.allowances {
		for spender, amount := range spenders {
			if amount.IsZero() {
				continue
			}
			allowances = append(allowances, Allowance{Owner: owner, Spender: spender, Amount: amount.Clone()})
		}
	}
	sort.Slice(allowances, func(i, j int) bool {
		if c := allowances[i].Owner.Cmp(allowances[j].Owner); c != 0 {
			return c < 0
		}
		return allowances[i].Spender.Cmp(allowances[j].Spender) < 0
	})
	return State{Symbol: l.symbol, Balances: balances, Allowances: allowances}
}

// RestoreLedger rebuilds a ledger from a snapshot. Total supply is the sum of balances.
func RestoreLedger(state State) (*Ledger, error) {
	l := NewLedger(state.Symbol)
	for owner, balance := range state.Balances {
		if err := l.Mint(owner, balance); err != nil {
			return nil, fmt.Errorf("restore balance of %s: %w", owner.Hex(), err)
		}
	}
	for _, a := range state.Allowances {
		if err := l.Approve(a.Owner, a.Spender, a.Amount); err != nil {
			return nil, fmt.Errorf("restore allowance of %s: %w", a.Owner.Hex(), err)
		}
	}
	return l, nil
}
