package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/aggregate"
	"liquidityPool/internal/amm"
	"liquidityPool/internal/config"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	fee := amm.Fee{Numerator: cfg.FeeNumerator, Denominator: cfg.FeeDenominator}
	if err := fee.Validate(); err != nil {
		return err
	}
	windowSeconds := uint64(cfg.Window.Seconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink storage.MetricsSink
	var stateStore aggregate.StateStore
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile}
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sink = store
		if stateStore == nil {
			stateStore = &aggregate.DBStateStore{Store: store, Name: fmt.Sprintf("%s:%d", cfg.StateName, windowSeconds)}
		}
	} else {
		sink = storage.NewJsonlMetricsStorage(cfg.Out)
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: cfg.RecomputeFrom,
		StateStore:    stateStore,
		TokenA:        cfg.TokenA,
		TokenB:        cfg.TokenB,
		DecimalsA:     cfg.DecimalsA,
		DecimalsB:     cfg.DecimalsB,
		Fee:           fee,
	}, sink, logger)

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", cfg.RecomputeFrom),
	)

	return agg.Run(ctx, cfg.Input)
}
