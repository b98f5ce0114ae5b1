package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pool",
		Short:        "Constant-product liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a JSONL script of pool operations",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("pool", "0x00000000000000000000000000000000000000fe", "pool identity on the asset ledgers")
	replayCmd.Flags().Uint64("fee-numerator", 997, "fee multiplier numerator")
	replayCmd.Flags().Uint64("fee-denominator", 1000, "fee multiplier denominator")
	replayCmd.Flags().String("symbol-a", "A", "symbol of asset A")
	replayCmd.Flags().String("symbol-b", "B", "symbol of asset B")
	replayCmd.Flags().Uint64("batch-size", 500, "operations per committed batch")
	replayCmd.Flags().String("start-time", "", "timestamp for operations without one (unix seconds or RFC3339)")
	replayCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	replayCmd.Flags().String("errors", "./data/op_errors.jsonl", "rejected operations JSONL")
	replayCmd.Flags().String("state-file", "./data/pool_state.json", "checkpoint file; ignored when pg-dsn is set")
	replayCmd.Flags().String("state-name", "replay", "checkpoint name in Postgres")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN; stores events and checkpoints in Postgres")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts for storage writes")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("metrics-out", "", "write Prometheus metrics to this textfile after the run")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate pool events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/events.jsonl", "input pool events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN; without it metrics go to --out")
	aggregateCmd.Flags().String("out", "./data/window_metrics.jsonl", "output window metrics JSONL")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for metric writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("token-a", "A", "label of asset A")
	aggregateCmd.Flags().String("token-b", "B", "label of asset B")
	aggregateCmd.Flags().String("decimals-a", "", "decimals of asset A for formatted amounts")
	aggregateCmd.Flags().String("decimals-b", "", "decimals of asset B for formatted amounts")
	aggregateCmd.Flags().Uint64("fee-numerator", 997, "fee multiplier numerator")
	aggregateCmd.Flags().Uint64("fee-denominator", 1000, "fee multiplier denominator")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exact-input swap against deployed pairs",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("rpc", "", "RPC URL")
	quoteCmd.Flags().StringSlice("pair", nil, "pair addresses (comma-separated)")
	quoteCmd.Flags().String("token-in", "", "input token address")
	quoteCmd.Flags().String("amount-in", "", "input amount in base units")
	quoteCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	quoteCmd.Flags().Uint64("fee-numerator", 997, "fee multiplier numerator")
	quoteCmd.Flags().Uint64("fee-denominator", 1000, "fee multiplier denominator")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
