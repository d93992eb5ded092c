package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/config"
	"yieldScope/internal/reconcile"
	"yieldScope/internal/storage"
)

func runClaim(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadClaim(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Reconcile.Ledger.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	account, err := chain.ParseAddress(cfg.Reconcile.Account)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	id, ok := new(big.Int).SetString(cfg.AssetID, 10)
	if !ok || id.Sign() < 0 {
		return fmt.Errorf("invalid asset id: %s", cfg.AssetID)
	}
	key, err := reconcile.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := dialLedger(ctx, cfg.Reconcile.Ledger, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	sink, closeSink, err := openSink(ctx, cfg.Reconcile.Out, cfg.Reconcile.PGDSN, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = l.Primary().ChainID(ctx); err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
	}

	submitter, err := reconcile.NewKeyedSubmitter(l.Primary().EthClient(), key, chainID)
	if err != nil {
		return err
	}
	if !chain.SameAccount(submitter.From().Hex(), account.Hex()) {
		return fmt.Errorf("private key belongs to %s, not %s", submitter.From().Hex(), account.Hex())
	}

	engine, err := newEngine(l, cfg.Reconcile, logger)
	if err != nil {
		return err
	}
	w, err := newWatcher(l, cfg.Reconcile.Ledger, cfg.Poll, logger)
	if err != nil {
		return err
	}
	claimer, err := reconcile.NewClaimer(engine, w, submitter, logger)
	if err != nil {
		return err
	}

	previous, err := engine.Reconcile(ctx, account)
	if err != nil {
		return fmt.Errorf("reconcile before claim: %w", err)
	}

	result, err := claimer.Claim(ctx, account, id, previous)
	if result.Confirmation.State.Terminal() {
		if werr := sink.PutConfirmation(ctx, result.Confirmation); werr != nil {
			logger.Warn("write confirmation failed", zap.Error(werr))
		}
	}
	if err != nil {
		return err
	}

	logger.Info("claim confirmed",
		zap.String("asset_id", id.String()),
		zap.String("tx", result.Confirmation.TxHash.Hex()),
		zap.String("total_claimable", result.Refreshed.TotalClaimable.String()),
	)
	return sink.PutSnapshot(ctx, storage.Snapshot{TakenAt: time.Now(), Result: result.Refreshed})
}
