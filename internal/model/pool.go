package model

// PoolInfo identifies a pool and its immutable parameters for storage.
type PoolInfo struct {
	Address        string `json:"address"`
	TokenA         string `json:"token_a"`
	TokenB         string `json:"token_b"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
}

// PairMeta is the on-chain state of a deployed constant-product pair.
type PairMeta struct {
	Address            string    `json:"address"`
	Token0             TokenMeta `json:"token0"`
	Token1             TokenMeta `json:"token1"`
	Reserve0           string    `json:"reserve0"`
	Reserve1           string    `json:"reserve1"`
	BlockTimestampLast uint32    `json:"block_timestamp_last"`
}

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
}
