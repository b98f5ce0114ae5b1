package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/amm"
	"liquidityPool/internal/chain"
	"liquidityPool/internal/config"
	"liquidityPool/internal/dex"
	"liquidityPool/internal/replay"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}
	tokenIn, err := replay.ParseAddress(cfg.TokenIn)
	if err != nil {
		return fmt.Errorf("token-in: %w", err)
	}
	amountIn, err := replay.ParseAmount(cfg.AmountIn)
	if err != nil {
		return fmt.Errorf("amount-in: %w", err)
	}
	if amountIn.IsZero() {
		return fmt.Errorf("amount-in: %w", amm.ErrInvalidAmount)
	}
	fee := amm.Fee{Numerator: cfg.FeeNumerator, Denominator: cfg.FeeDenominator}
	if err := fee.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	blockNumber := cfg.Block
	if blockNumber == 0 {
		if blockNumber, err = chainClient.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}
	block := new(big.Int).SetUint64(blockNumber)
	blockTs, err := chainClient.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("block timestamp %d: %w", blockNumber, err)
	}

	logger.Info("quote start",
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block", blockNumber),
		zap.Uint64("block_ts", blockTs),
		zap.Int("pairs", len(cfg.Pairs)),
		zap.String("token_in", tokenIn.Hex()),
		zap.String("amount_in", amountIn.Dec()),
	)

	tokenCache := dex.NewTokenMetaCache()
	encoder := json.NewEncoder(cmd.OutOrStdout())
	for _, pairInput := range cfg.Pairs {
		pair, err := replay.ParseAddress(pairInput)
		if err != nil {
			return err
		}
		meta, err := dex.FetchPairMeta(ctx, chainClient, pair, block, tokenCache, logger)
		if err != nil {
			logger.Warn("pair fetch failed", zap.String("pair", pair.Hex()), zap.Error(err))
			continue
		}
		checkPairBalances(ctx, chainClient, meta.Token0.Address, meta.Reserve0, pair.Hex(), block, logger)
		checkPairBalances(ctx, chainClient, meta.Token1.Address, meta.Reserve1, pair.Hex(), block, logger)

		q, err := dex.QuotePair(meta, tokenIn, amountIn, fee)
		if err != nil {
			logger.Warn("quote failed", zap.String("pair", pair.Hex()), zap.Error(err))
			continue
		}
		if err := encoder.Encode(q); err != nil {
			return fmt.Errorf("write quote: %w", err)
		}
	}
	return nil
}

// checkPairBalances warns when a pair holds less of a token than its reported
// reserve, the same condition that halts the local engine.
func checkPairBalances(ctx context.Context, caller chain.Caller, token, reserve, pair string, block *big.Int, logger *zap.Logger) {
	tokenAddr, err := replay.ParseAddress(token)
	if err != nil {
		return
	}
	pairAddr, err := replay.ParseAddress(pair)
	if err != nil {
		return
	}
	balance, err := dex.FetchBalance(ctx, caller, tokenAddr, pairAddr, block)
	if err != nil {
		logger.Debug("balanceOf failed", zap.String("token", token), zap.Error(err))
		return
	}
	expected, err := replay.ParseAmount(reserve)
	if err != nil {
		return
	}
	if balance.Lt(expected) {
		logger.Warn("pair balance below reserve",
			zap.String("pair", pair),
			zap.String("token", token),
			zap.String("balance", balance.Dec()),
			zap.String("reserve", reserve),
		)
	}
}
