package replay

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/amm"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAmount parses a base-10 unsigned integer. An empty string is zero.
func ParseAmount(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(uint256.Int), nil
	}
	for _, c := range input {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid amount: %q", input)
		}
	}
	v, err := uint256.FromDecimal(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	return v, nil
}

// ParseAsset maps "A"/"B" onto an asset side.
func ParseAsset(input string) (amm.Asset, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "A":
		return amm.AssetA, nil
	case "B":
		return amm.AssetB, nil
	default:
		return 0, fmt.Errorf("%w: %q", amm.ErrInvalidAsset, input)
	}
}

func parseAmounts(inputs ...string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, 0, len(inputs))
	for _, input := range inputs {
		v, err := ParseAmount(input)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
