package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/config"
	"yieldScope/internal/metadata"
	"yieldScope/internal/reconcile"
	"yieldScope/internal/storage"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Ledger.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	account, err := chain.ParseAddress(cfg.Account)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := dialLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	sink, closeSink, err := openSink(ctx, cfg.Out, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	engine, err := newEngine(l, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("reconcile start",
		zap.String("account", account.Hex()),
		zap.Strings("rpc", cfg.Ledger.RPCs),
		zap.Uint64("window", cfg.Window),
		zap.Int("concurrency", cfg.Concurrency),
	)

	if level, err := engine.KYCLevel(ctx, account); err != nil {
		logger.Warn("kyc status unavailable", zap.Error(err))
	} else {
		logger.Info("kyc status", zap.Uint8("level", level), zap.Bool("verified", level > 0))
	}

	result, err := engine.Reconcile(ctx, account)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if err := sink.PutSnapshot(ctx, storage.Snapshot{TakenAt: time.Now(), Result: result}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func newEngine(l *ledger, cfg config.ReconcileConfig, logger *zap.Logger) (*reconcile.Engine, error) {
	asset, err := chain.ParseAddress(cfg.Ledger.AssetContract)
	if err != nil {
		return nil, fmt.Errorf("asset-contract: %w", err)
	}
	yield, err := chain.ParseAddress(cfg.Ledger.YieldContract)
	if err != nil {
		return nil, fmt.Errorf("yield-contract: %w", err)
	}

	resolver := metadata.NewResolver(
		metadata.WithGateway(cfg.IPFSGateway),
		metadata.WithTimeout(cfg.MetadataTimeout),
		metadata.WithLogger(logger),
	)

	return reconcile.NewEngine(l.gateway, asset, yield,
		reconcile.WithWindow(cfg.Window),
		reconcile.WithLogBatch(cfg.LogBatch),
		reconcile.WithConcurrency(cfg.Concurrency),
		reconcile.WithDecimals(cfg.Ledger.Decimals),
		reconcile.WithResolver(resolver),
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(l.metrics),
	)
}
