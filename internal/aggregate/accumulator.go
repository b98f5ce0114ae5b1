package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"liquidityPool/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress   string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	FailedCount   uint64
	VolumeA       *big.Int
	VolumeB       *big.Int
	FeeA          *big.Int
	FeeB          *big.Int
	ReserveA      *big.Int
	ReserveB      *big.Int
	TotalShares   *big.Int
	LastSeq       uint64
	LastTS        uint64
}

func NewAccumulator(record model.PoolEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: record.Pool,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     big.NewInt(0),
		VolumeB:     big.NewInt(0),
		FeeA:        big.NewInt(0),
		FeeB:        big.NewInt(0),
		ReserveA:    big.NewInt(0),
		ReserveB:    big.NewInt(0),
		TotalShares: big.NewInt(0),
	}
}

// AddEvent folds one event into the window. Reserves track the latest event by
// sequence so the window closes with the committed end-of-window state.
func (a *Accumulator) AddEvent(record model.PoolEventRecord) error {
	if record.Seq >= a.LastSeq {
		if err := a.setState(record); err != nil {
			return err
		}
		a.LastSeq = record.Seq
		a.LastTS = record.Timestamp
	}

	if record.Failed() {
		a.FailedCount++
		return nil
	}

	switch record.Op {
	case model.OpSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case model.OpDeposit:
		a.DepositCount++
	case model.OpWithdraw:
		a.WithdrawCount++
	}
	return nil
}

func (a *Accumulator) setState(record model.PoolEventRecord) error {
	reserveA, err := parseBigInt(record.ReserveA)
	if err != nil {
		return err
	}
	reserveB, err := parseBigInt(record.ReserveB)
	if err != nil {
		return err
	}
	total, err := parseBigInt(record.TotalShares)
	if err != nil {
		return err
	}
	a.ReserveA, a.ReserveB, a.TotalShares = reserveA, reserveB, total
	return nil
}

// applySwap adds both legs to volume and charges the fee on the input asset.
func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(swap.AmountOut)
	if err != nil {
		return err
	}
	fee, err := parseBigInt(swap.Fee)
	if err != nil {
		return err
	}

	switch swap.AssetIn {
	case "A":
		a.VolumeA.Add(a.VolumeA, amountIn)
		a.VolumeB.Add(a.VolumeB, amountOut)
		a.FeeA.Add(a.FeeA, fee)
	case "B":
		a.VolumeB.Add(a.VolumeB, amountIn)
		a.VolumeA.Add(a.VolumeA, amountOut)
		a.FeeB.Add(a.FeeB, fee)
	default:
		return fmt.Errorf("invalid swap asset: %q", swap.AssetIn)
	}

	a.SwapCount++
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}
