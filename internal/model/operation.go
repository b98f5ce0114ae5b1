package model

import (
	"encoding/json"
	"strings"
)

// Operation kinds accepted in a replay script.
const (
	OpFund     = "fund"
	OpApprove  = "approve"
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpSwap     = "swap"
	OpQuote    = "quote"

	OpTransferShares     = "transfer_shares"
	OpApproveShares      = "approve_shares"
	OpTransferSharesFrom = "transfer_shares_from"
)

// Operation is one line of a replay script. Amounts are base-10 integer strings.
// From, To and Spender are only read by the share transfer and approval ops.
type Operation struct {
	Op        string `json:"op"`
	Caller    string `json:"caller"`
	Asset     string `json:"asset,omitempty"`
	Amount    string `json:"amount,omitempty"`
	AmountA   string `json:"amount_a,omitempty"`
	AmountB   string `json:"amount_b,omitempty"`
	Shares    string `json:"shares,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Spender   string `json:"spender,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// UnmarshalJSON decodes an Operation and normalizes the op name.
func (o *Operation) UnmarshalJSON(data []byte) error {
	type Alias Operation
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Op = strings.ToLower(strings.TrimSpace(a.Op))
	a.Asset = strings.ToUpper(strings.TrimSpace(a.Asset))
	*o = Operation(a)
	return nil
}
