package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"yieldScope/internal/model"
	"yieldScope/internal/storage"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS yield_snapshots (
	account          TEXT        NOT NULL,
	taken_at         TIMESTAMPTZ NOT NULL,
	asset_id         NUMERIC(78) NOT NULL,
	display_name     TEXT        NOT NULL,
	claimable        NUMERIC(78) NOT NULL,
	total_generated  NUMERIC(78) NOT NULL,
	decimals         SMALLINT    NOT NULL,
	is_active        BOOLEAN     NOT NULL,
	locator          TEXT        NOT NULL DEFAULT '',
	from_block       BIGINT      NOT NULL,
	to_block         BIGINT      NOT NULL,
	PRIMARY KEY (account, taken_at, asset_id)
);
CREATE TABLE IF NOT EXISTS watch_results (
	tx_hash      TEXT        PRIMARY KEY,
	state        TEXT        NOT NULL,
	asset_id     NUMERIC(78),
	attempts     INTEGER     NOT NULL,
	block_number BIGINT,
	endpoint     TEXT        NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes reconciliation snapshots and watch results to Postgres. It never reads them back.
type Store struct {
	pool pgxPool
}

var _ storage.Sink = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func newStoreWithPool(pool pgxPool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// PutSnapshot inserts one row per record in a single transaction.
func (s *Store) PutSnapshot(ctx context.Context, snap storage.Snapshot) (err error) {
	if len(snap.Result.Records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	takenAt := pgtype.Timestamptz{Time: snap.TakenAt.UTC(), Valid: true}
	for _, rec := range snap.Result.Records {
		_, err = tx.Exec(ctx, `
			INSERT INTO yield_snapshots (
				account, taken_at, asset_id, display_name, claimable, total_generated,
				decimals, is_active, locator, from_block, to_block
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (account, taken_at, asset_id) DO NOTHING
		`,
			snap.Result.Account,
			takenAt,
			bigToNumeric(rec.AssetID),
			rec.DisplayName,
			bigToNumeric(rec.Claimable.Raw()),
			bigToNumeric(rec.TotalGenerated.Raw()),
			int16(rec.Claimable.Decimals()),
			rec.IsActive,
			rec.Locator,
			int64(snap.Result.FromBlock),
			int64(snap.Result.ToBlock),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", rec.AssetID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// PutConfirmation upserts the latest watch result for a transaction.
func (s *Store) PutConfirmation(ctx context.Context, conf model.Confirmation) error {
	assetID := pgtype.Numeric{}
	if conf.AssetID != nil {
		assetID = bigToNumeric(conf.AssetID)
	}
	block := pgtype.Int8{}
	if conf.Last.HasReceipt() {
		block = pgtype.Int8{Int64: int64(conf.Last.BlockNumber), Valid: true}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_results (tx_hash, state, asset_id, attempts, block_number, endpoint, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (tx_hash) DO UPDATE SET
			state = EXCLUDED.state,
			asset_id = EXCLUDED.asset_id,
			attempts = EXCLUDED.attempts,
			block_number = EXCLUDED.block_number,
			endpoint = EXCLUDED.endpoint,
			updated_at = now()
	`,
		conf.TxHash.Hex(),
		conf.State.String(),
		assetID,
		conf.Attempts,
		block,
		conf.Last.Endpoint,
	)
	if err != nil {
		return fmt.Errorf("upsert watch result: %w", err)
	}
	return nil
}

func bigToNumeric(v *big.Int) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Exp: 0, Valid: true}
}
