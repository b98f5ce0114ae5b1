package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the loaders, e.g. POOL_PG_DSN.
const EnvPrefix = "POOL"

// ReplayConfig holds configuration values for the replay command.
type ReplayConfig struct {
	Script         string
	Pool           string
	FeeNumerator   uint64
	FeeDenominator uint64
	SymbolA        string
	SymbolB        string
	BatchSize      uint64
	StartTimestamp uint64
	Out            string
	Errors         string
	StateFile      string
	StateName      string
	PGDSN          string
	MaxRetries     int
	RetryBackoff   time.Duration
	MetricsOut     string
	LogLevel       string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"pool":            "0x00000000000000000000000000000000000000fe",
		"fee-numerator":   uint64(997),
		"fee-denominator": uint64(1000),
		"symbol-a":        "A",
		"symbol-b":        "B",
		"batch-size":      uint64(500),
		"out":             "./data/events.jsonl",
		"errors":          "./data/op_errors.jsonl",
		"state-file":      "./data/pool_state.json",
		"state-name":      "replay",
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
		"log-level":       "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	startTs, err := ParseTimestamp(v.GetString("start-time"))
	if err != nil {
		return ReplayConfig{}, fmt.Errorf("parse start-time: %w", err)
	}

	return ReplayConfig{
		Script:         v.GetString("in"),
		Pool:           v.GetString("pool"),
		FeeNumerator:   v.GetUint64("fee-numerator"),
		FeeDenominator: v.GetUint64("fee-denominator"),
		SymbolA:        v.GetString("symbol-a"),
		SymbolB:        v.GetString("symbol-b"),
		BatchSize:      v.GetUint64("batch-size"),
		StartTimestamp: startTs,
		Out:            v.GetString("out"),
		Errors:         v.GetString("errors"),
		StateFile:      v.GetString("state-file"),
		StateName:      v.GetString("state-name"),
		PGDSN:          v.GetString("pg-dsn"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MetricsOut:     v.GetString("metrics-out"),
		LogLevel:       v.GetString("log-level"),
	}, nil
}

// newViper builds a viper instance layered as flags > env > config file > defaults.
// Without an explicit cfgFile an optional ./config.* is read.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
