package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/config"
	"yieldScope/internal/model"
	"yieldScope/internal/watcher"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Ledger.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	hash, err := watchTarget(cfg)
	if err != nil {
		return err
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

	w, err := newWatcher(l, cfg.Ledger, cfg.Poll, logger)
	if err != nil {
		return err
	}

	logger.Info("watch start",
		zap.String("tx", hash.Hex()),
		zap.Strings("rpc", cfg.Ledger.RPCs),
		zap.Bool("secondary", cfg.Ledger.SecondaryRPC != ""),
		zap.Duration("interval", cfg.Poll.Interval),
		zap.Int("max_attempts", cfg.Poll.MaxAttempts),
	)

	conf, err := w.Wait(ctx, hash)
	if err != nil {
		return fmt.Errorf("watch %s: %w", hash.Hex(), err)
	}
	if err := sink.PutConfirmation(ctx, conf); err != nil {
		logger.Warn("write confirmation failed", zap.Error(err))
	}
	return watcher.Err(conf)
}

// watchTarget picks the hash from --tx, falling back to the mint response file.
func watchTarget(cfg config.WatchConfig) (common.Hash, error) {
	if cfg.TxHash != "" {
		return chain.ParseTxHash(cfg.TxHash)
	}
	if cfg.MintResponse == "" {
		return common.Hash{}, fmt.Errorf("tx or mint-response is required")
	}

	data, err := os.ReadFile(cfg.MintResponse)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read mint response: %w", err)
	}
	var resp model.MintResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return common.Hash{}, fmt.Errorf("parse mint response: %w", err)
	}
	return chain.ParseTxHash(resp.TxID)
}

func newWatcher(l *ledger, ledgerCfg config.LedgerConfig, poll config.PollConfig, logger *zap.Logger) (*watcher.Watcher, error) {
	opts := []watcher.WatcherOpt{
		watcher.WithInterval(poll.Interval),
		watcher.WithMaxAttempts(poll.MaxAttempts),
		watcher.WithTimeout(poll.Timeout),
		watcher.WithSecondary(l.secondaryEndpoint()),
		watcher.WithLogger(logger),
		watcher.WithMetrics(l.metrics),
	}
	if ledgerCfg.AssetContract != "" {
		asset, err := chain.ParseAddress(ledgerCfg.AssetContract)
		if err != nil {
			return nil, fmt.Errorf("asset-contract: %w", err)
		}
		opts = append(opts, watcher.WithAssetContract(asset))
	}
	return watcher.NewWatcher(l.gateway, opts...), nil
}
