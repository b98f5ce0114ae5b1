package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Input          string
	Window         time.Duration
	PGDSN          string
	Out            string
	BatchSize      int
	StateFile      string
	StateName      string
	RecomputeFrom  uint64
	TokenA         string
	TokenB         string
	DecimalsA      uint8
	DecimalsB      uint8
	FeeNumerator   uint64
	FeeDenominator uint64
	LogLevel       string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":              "./data/events.jsonl",
		"out":             "./data/window_metrics.jsonl",
		"window":          "5m",
		"batch-size":      1000,
		"state-name":      "aggregate",
		"token-a":         "A",
		"token-b":         "B",
		"fee-numerator":   uint64(997),
		"fee-denominator": uint64(1000),
		"log-level":       "info",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s")
	}
	recompute, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}
	decimalsA, err := parseDecimals(v.GetString("decimals-a"))
	if err != nil {
		return AggregateConfig{}, err
	}
	decimalsB, err := parseDecimals(v.GetString("decimals-b"))
	if err != nil {
		return AggregateConfig{}, err
	}

	return AggregateConfig{
		Input:          v.GetString("in"),
		Window:         window,
		PGDSN:          v.GetString("pg-dsn"),
		Out:            v.GetString("out"),
		BatchSize:      v.GetInt("batch-size"),
		StateFile:      v.GetString("state-file"),
		StateName:      v.GetString("state-name"),
		RecomputeFrom:  recompute,
		TokenA:         v.GetString("token-a"),
		TokenB:         v.GetString("token-b"),
		DecimalsA:      decimalsA,
		DecimalsB:      decimalsB,
		FeeNumerator:   v.GetUint64("fee-numerator"),
		FeeDenominator: v.GetUint64("fee-denominator"),
		LogLevel:       v.GetString("log-level"),
	}, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before epoch: %s", input)
	}
	return uint64(tm.Unix()), nil
}

func parseDecimals(input string) (uint8, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}
	val, err := strconv.ParseUint(strings.TrimSpace(input), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("parse decimals %q: %w", input, err)
	}
	return uint8(val), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
