package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldScope/internal/model"
	"yieldScope/internal/watcher"
)

// ErrNothingToClaim is returned before submission when the last reconciled claimable amount
// for an asset is absent or not positive.
var ErrNothingToClaim = errors.New("nothing to claim")

// Submitter signs and broadcasts a claim, returning the transaction hash.
type Submitter interface {
	SubmitClaim(ctx context.Context, distributor common.Address, id *big.Int) (common.Hash, error)
}

// ClaimError reports a claim whose transaction did not confirm.
type ClaimError struct {
	Confirmation model.Confirmation
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim %s ended %s after %d attempts", e.Confirmation.TxHash.Hex(), e.Confirmation.State, e.Confirmation.Attempts)
}

func (e *ClaimError) Unwrap() error {
	return watcher.Err(e.Confirmation)
}

// ClaimResult is a confirmed claim plus the reconciliation pass taken after it.
type ClaimResult struct {
	Confirmation model.Confirmation
	Refreshed    model.ReconciliationResult
}

type Claimer struct {
	engine    *Engine
	watcher   *watcher.Watcher
	submitter Submitter
	logger    *zap.Logger
}

func NewClaimer(engine *Engine, w *watcher.Watcher, submitter Submitter, logger *zap.Logger) (*Claimer, error) {
	if engine == nil || w == nil || submitter == nil {
		return nil, fmt.Errorf("claimer requires engine, watcher and submitter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Claimer{engine: engine, watcher: w, submitter: submitter, logger: logger}, nil
}

// Claim submits claimYield(id), waits for it to confirm, then reconciles account again.
// previous is the pass the caller based the decision on.
func (c *Claimer) Claim(ctx context.Context, account common.Address, id *big.Int, previous model.ReconciliationResult) (ClaimResult, error) {
	if id == nil {
		return ClaimResult{}, fmt.Errorf("asset id is required")
	}
	record, ok := previous.Record(id)
	if !ok || !record.Claimable.IsPositive() {
		return ClaimResult{}, fmt.Errorf("asset %s: %w", id, ErrNothingToClaim)
	}

	hash, err := c.submitter.SubmitClaim(ctx, c.engine.Reader().Yield(), id)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("submit claim: %w", err)
	}
	c.logger.Info("claim submitted",
		zap.String("asset_id", id.String()),
		zap.String("tx", hash.Hex()),
		zap.String("claimable", record.Claimable.String()),
	)

	conf, err := c.watcher.Wait(ctx, hash)
	if err != nil {
		return ClaimResult{Confirmation: conf}, fmt.Errorf("wait for claim: %w", err)
	}
	if conf.State != model.StateConfirmed {
		return ClaimResult{Confirmation: conf}, &ClaimError{Confirmation: conf}
	}

	refreshed, err := c.engine.Reconcile(ctx, account)
	if err != nil {
		return ClaimResult{Confirmation: conf}, fmt.Errorf("refresh after claim: %w", err)
	}
	return ClaimResult{Confirmation: conf, Refreshed: refreshed}, nil
}
