package model

// PoolSnapshot is the persisted state of a replayed pool and its asset ledgers.
type PoolSnapshot struct {
	Pool            string              `json:"pool"`
	FeeNumerator    uint64              `json:"fee_numerator"`
	FeeDenominator  uint64              `json:"fee_denominator"`
	ReserveA        string              `json:"reserve_a"`
	ReserveB        string              `json:"reserve_b"`
	TotalShares     string              `json:"total_shares"`
	Shares          map[string]string   `json:"shares"`
	// ShareAllowances are approvals over liquidity shares.
	ShareAllowances []AllowanceSnapshot `json:"share_allowances,omitempty"`
	LedgerA         LedgerSnapshot      `json:"ledger_a"`
	LedgerB         LedgerSnapshot      `json:"ledger_b"`
	LastLine        uint64              `json:"last_line"`
	LastSeq         uint64              `json:"last_seq"`
	LastTimestamp   uint64              `json:"last_timestamp"`
	Halted          string              `json:"halted,omitempty"`
	UpdatedAt       string              `json:"updated_at"`
}

// LedgerSnapshot is the persisted state of one asset ledger.
type LedgerSnapshot struct {
	Symbol     string              `json:"symbol"`
	Balances   map[string]string   `json:"balances"`
	Allowances []AllowanceSnapshot `json:"allowances,omitempty"`
}

// AllowanceSnapshot is one owner/spender approval.
type AllowanceSnapshot struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}
