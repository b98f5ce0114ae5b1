package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/config"
	"liquidityPool/internal/metrics"
	"liquidityPool/internal/model"
	"liquidityPool/internal/replay"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("input path is required")
	}
	poolAddr, err := replay.ParseAddress(cfg.Pool)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	fee := amm.Fee{Numerator: cfg.FeeNumerator, Denominator: cfg.FeeDenominator}
	if err := fee.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	observer, err := metrics.NewMetrics(registry, poolAddr.Hex())
	if err != nil {
		return err
	}

	var sink storage.Storage
	var state replay.StateStore
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		if err := store.UpsertPools(ctx, []model.PoolInfo{{
			Address:        poolAddr.Hex(),
			TokenA:         cfg.SymbolA,
			TokenB:         cfg.SymbolB,
			FeeNumerator:   fee.Numerator,
			FeeDenominator: fee.Denominator,
		}}); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
		sink = store.ForPool(poolAddr.Hex())
		state = &replay.DBStateStore{Store: store, Name: cfg.StateName}
	} else {
		sink = storage.NewJsonlStorage(cfg.Out, cfg.Errors)
		if cfg.StateFile != "" {
			state = replay.NewFileStateStore(cfg.StateFile)
		}
	}

	runner := replay.NewRunner(replay.RunConfig{
		ScriptPath:     cfg.Script,
		PoolAddress:    poolAddr,
		Fee:            fee,
		SymbolA:        cfg.SymbolA,
		SymbolB:        cfg.SymbolB,
		BatchSize:      cfg.BatchSize,
		StartTimestamp: cfg.StartTimestamp,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
	}, sink, state, observer, logger)

	logger.Info("replay start",
		zap.String("input", cfg.Script),
		zap.String("pool", poolAddr.Hex()),
		zap.Uint64("fee_numerator", fee.Numerator),
		zap.Uint64("fee_denominator", fee.Denominator),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("state_file", cfg.StateFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	summary, runErr := runner.Run(ctx)

	if err := metrics.WriteTextfile(cfg.MetricsOut, registry); err != nil {
		logger.Warn("write metrics textfile", zap.String("path", cfg.MetricsOut), zap.Error(err))
	}

	fields := []zap.Field{
		zap.Uint64("lines", summary.Lines),
		zap.Uint64("applied", summary.Applied),
		zap.Uint64("rejected", summary.Rejected),
		zap.Uint64("last_line", summary.LastLine),
	}
	if pool := runner.Pool(); pool != nil {
		reserveA, reserveB := pool.Reserves()
		fields = append(fields,
			zap.String("reserve_a", reserveA.Dec()),
			zap.String("reserve_b", reserveB.Dec()),
			zap.String("total_shares", pool.TotalSupply().Dec()),
		)
	}
	if runErr != nil {
		logger.Error("replay failed", append(fields, zap.Error(runErr))...)
		return runErr
	}
	logger.Info("replay complete", fields...)
	return nil
}
