package storage

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"yieldScope/internal/model"
)

// Snapshot is one reconciliation pass as written to a sink.
type Snapshot struct {
	TakenAt time.Time
	Result  model.ReconciliationResult
}

// Sink records results for later inspection. Nothing written here is read back.
type Sink interface {
	PutSnapshot(ctx context.Context, snap Snapshot) error
	PutConfirmation(ctx context.Context, conf model.Confirmation) error
}

// Multi fans writes out to every sink and reports all failures.
type Multi []Sink

func (m Multi) PutSnapshot(ctx context.Context, snap Snapshot) error {
	var errs error
	for _, sink := range m {
		errs = multierr.Append(errs, sink.PutSnapshot(ctx, snap))
	}
	return errs
}

func (m Multi) PutConfirmation(ctx context.Context, conf model.Confirmation) error {
	var errs error
	for _, sink := range m {
		errs = multierr.Append(errs, sink.PutConfirmation(ctx, conf))
	}
	return errs
}
