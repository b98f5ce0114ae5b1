package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger is the fungible-asset ledger backing one side of the pool.
// Implementations must be safe for the pool to call while it holds its own lock.
type Ledger interface {
	// TransferFrom moves amount from owner to recipient using spender's allowance.
	TransferFrom(spender, owner, recipient common.Address, amount *uint256.Int) error
	// Transfer moves amount from sender to recipient.
	Transfer(sender, recipient common.Address, amount *uint256.Int) error
	BalanceOf(owner common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

// Asset selects one side of the pair.
type Asset uint8

const (
	AssetA Asset = iota
	AssetB
)

func (a Asset) String() string {
	switch a {
	case AssetA:
		return "A"
	case AssetB:
		return "B"
	default:
		return "unknown"
	}
}

// Other returns the opposite side of the pair.
func (a Asset) Other() Asset {
	if a == AssetA {
		return AssetB
	}
	return AssetA
}
