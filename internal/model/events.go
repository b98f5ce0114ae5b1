package model

// DepositEventData is the payload of a successful deposit.
type DepositEventData struct {
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
	Shares  string `json:"shares"`
}

// WithdrawEventData is the payload of a successful withdrawal.
type WithdrawEventData struct {
	Shares  string `json:"shares"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
}

// SwapEventData is the payload of a successful swap.
type SwapEventData struct {
	AssetIn   string `json:"asset_in"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
}

// QuoteEventData is the payload of a quote.
type QuoteEventData struct {
	AssetIn   string `json:"asset_in"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// TransferEventData is the payload of a fund or approve step on an asset ledger.
type TransferEventData struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// ShareTransferEventData is the payload of a liquidity share transfer or approval.
// For approvals To holds the spender.
type ShareTransferEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Shares string `json:"shares"`
}
