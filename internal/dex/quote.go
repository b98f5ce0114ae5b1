package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/model"
)

// PairQuote is the priced output of an exact-input trade against a pair.
type PairQuote struct {
	Pair       string `json:"pair"`
	TokenIn    string `json:"token_in"`
	TokenOut   string `json:"token_out"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
	ReserveIn  string `json:"reserve_in"`
	ReserveOut string `json:"reserve_out"`
	Fee        string `json:"fee"`
}

// QuotePair prices amountIn of tokenIn with the same formula the pool engine uses.
func QuotePair(meta model.PairMeta, tokenIn common.Address, amountIn *uint256.Int, fee amm.Fee) (PairQuote, error) {
	reserve0, err := uint256.FromDecimal(meta.Reserve0)
	if err != nil {
		return PairQuote{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := uint256.FromDecimal(meta.Reserve1)
	if err != nil {
		return PairQuote{}, fmt.Errorf("reserve1: %w", err)
	}

	var reserveIn, reserveOut *uint256.Int
	var in, out model.TokenMeta
	switch {
	case strings.EqualFold(tokenIn.Hex(), meta.Token0.Address):
		reserveIn, reserveOut, in, out = reserve0, reserve1, meta.Token0, meta.Token1
	case strings.EqualFold(tokenIn.Hex(), meta.Token1.Address):
		reserveIn, reserveOut, in, out = reserve1, reserve0, meta.Token1, meta.Token0
	default:
		return PairQuote{}, fmt.Errorf("%w: %s is not a token of pair %s", amm.ErrInvalidAsset, tokenIn.Hex(), meta.Address)
	}

	amountOut, err := amm.GetAmountOut(amountIn, reserveIn, reserveOut, fee)
	if err != nil {
		return PairQuote{}, err
	}
	feeAmount, err := fee.FeeAmount(amountIn)
	if err != nil {
		return PairQuote{}, err
	}
	return PairQuote{
		Pair:       meta.Address,
		TokenIn:    in.Address,
		TokenOut:   out.Address,
		AmountIn:   amountIn.Dec(),
		AmountOut:  amountOut.Dec(),
		ReserveIn:  reserveIn.Dec(),
		ReserveOut: reserveOut.Dec(),
		Fee:        feeAmount.Dec(),
	}, nil
}
