package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the live quote command.
type QuoteConfig struct {
	RPCURL         string
	Pairs          []string
	TokenIn        string
	AmountIn       string
	Block          uint64
	FeeNumerator   uint64
	FeeDenominator uint64
	LogLevel       string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"fee-numerator":   uint64(997),
		"fee-denominator": uint64(1000),
		"log-level":       "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		RPCURL:         v.GetString("rpc"),
		Pairs:          getStringSlice(v, "pair"),
		TokenIn:        v.GetString("token-in"),
		AmountIn:       v.GetString("amount-in"),
		Block:          v.GetUint64("block"),
		FeeNumerator:   v.GetUint64("fee-numerator"),
		FeeDenominator: v.GetUint64("fee-denominator"),
		LogLevel:       v.GetString("log-level"),
	}, nil
}
