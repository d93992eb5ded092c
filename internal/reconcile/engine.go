// Package reconcile derives an account's owned assets and their yield from live ledger state.
package reconcile

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/contract"
	"yieldScope/internal/metadata"
	"yieldScope/internal/metrics"
	"yieldScope/internal/model"
)

var (
	DefaultWindow      uint64 = 50000
	DefaultLogBatch    uint64 = 10000
	DefaultConcurrency        = 4
)

const (
	candidateOwned          = "owned"
	candidateTransferredOut = "transferred_out"
	candidateDropped        = "dropped"
)

// MetadataResolver loads the document behind an asset's token URI.
type MetadataResolver interface {
	Resolve(ctx context.Context, locator string) (metadata.Document, error)
}

type EngineOpt func(e *Engine)

// WithWindow sets how many blocks back transfers are scanned. Zero scans from genesis.
func WithWindow(blocks uint64) EngineOpt {
	return func(e *Engine) {
		e.window = blocks
	}
}

func WithLogBatch(blocks uint64) EngineOpt {
	return func(e *Engine) {
		if blocks > 0 {
			e.logBatch = blocks
		}
	}
}

func WithConcurrency(n int) EngineOpt {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithDecimals(d uint8) EngineOpt {
	return func(e *Engine) {
		e.decimals = d
	}
}

func WithResolver(r MetadataResolver) EngineOpt {
	return func(e *Engine) {
		e.resolver = r
	}
}

func WithLogger(logger *zap.Logger) EngineOpt {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) EngineOpt {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine reconciles ownership and yield. It holds no state between passes.
type Engine struct {
	gateway *chain.Gateway
	reader  *contract.Reader

	window      uint64
	logBatch    uint64
	concurrency int
	decimals    uint8
	resolver    MetadataResolver
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewEngine(gateway *chain.Gateway, asset, yield common.Address, opts ...EngineOpt) (*Engine, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is nil")
	}
	reader, err := contract.NewReader(gateway, asset, yield)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		gateway:     gateway,
		reader:      reader,
		window:      DefaultWindow,
		logBatch:    DefaultLogBatch,
		concurrency: DefaultConcurrency,
		decimals:    model.DefaultDecimals,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reader exposes the contract reader the engine uses.
func (e *Engine) Reader() *contract.Reader {
	return e.reader
}

// KYCLevel returns the account's verification level; zero means unverified.
func (e *Engine) KYCLevel(ctx context.Context, account common.Address) (uint8, error) {
	level, err := e.reader.KYCStatus(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("read kyc status: %w", err)
	}
	return level, nil
}

// Reconcile lists the assets account currently holds among those transferred to it within the
// scan window, with their yield. Assets received before the window and never moved since are
// not discovered.
func (e *Engine) Reconcile(ctx context.Context, account common.Address) (model.ReconciliationResult, error) {
	started := time.Now()
	defer func() {
		e.metrics.ObserveReconcile(time.Since(started).Seconds())
	}()

	height, err := e.gateway.BlockNumber(ctx)
	if err != nil {
		return model.ReconciliationResult{}, fmt.Errorf("get latest block: %w", err)
	}
	scan := chain.Window(height, e.window)

	ids, err := e.candidates(ctx, account, scan)
	if err != nil {
		return model.ReconciliationResult{}, err
	}

	e.logger.Info("reconcile candidates",
		zap.String("account", account.Hex()),
		zap.Uint64("from", scan.From),
		zap.Uint64("to", scan.To),
		zap.Int("candidates", len(ids)),
	)

	slots := make([]candidateResult, len(ids))
	pool := workerpool.New(e.concurrency)
	for i, id := range ids {
		i, id := i, id
		pool.Submit(func() {
			slots[i] = e.inspect(ctx, account, id)
		})
	}
	pool.StopWait()

	if err := ctx.Err(); err != nil {
		return model.ReconciliationResult{}, err
	}

	result := model.ReconciliationResult{
		Account:        account.Hex(),
		FromBlock:      scan.From,
		ToBlock:        scan.To,
		Records:        make([]model.YieldRecord, 0, len(ids)),
		TotalClaimable: model.ZeroAmount(e.decimals),
		Candidates:     len(ids),
	}
	for _, slot := range slots {
		switch {
		case slot.err != nil:
			result.Dropped++
		case slot.record != nil:
			result.Records = append(result.Records, *slot.record)
		}
	}

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].AssetID.Cmp(result.Records[j].AssetID) < 0
	})
	for _, rec := range result.Records {
		total, err := result.TotalClaimable.Add(rec.Claimable)
		if err != nil {
			return model.ReconciliationResult{}, fmt.Errorf("sum claimable: %w", err)
		}
		result.TotalClaimable = total
	}

	e.logger.Info("reconcile complete",
		zap.String("account", account.Hex()),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped", result.Dropped),
		zap.String("total_claimable", result.TotalClaimable.String()),
	)
	return result, nil
}

// candidates returns the distinct asset ids transferred to account within scan.
func (e *Engine) candidates(ctx context.Context, account common.Address, scan chain.BlockRange) ([]*big.Int, error) {
	schema, err := contract.TransferSchema()
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{e.reader.Asset()},
		Topics: [][]common.Hash{
			{schema.ID()},
			nil,
			{common.BytesToHash(account.Bytes())},
		},
	}
	logs, err := e.gateway.FilterLogsRange(ctx, query, scan.From, scan.To, e.logBatch)
	if err != nil {
		return nil, fmt.Errorf("filter transfer logs: %w", err)
	}

	seen := make(map[string]struct{}, len(logs))
	ids := make([]*big.Int, 0, len(logs))
	for _, log := range logs {
		ev, ok := contract.Decode(schema, model.LogEntryFromTypes(log))
		if !ok {
			continue
		}
		to, ok := contract.TransferRecipient(ev)
		if !ok || !chain.SameAccount(to.Hex(), account.Hex()) {
			continue
		}
		id, ok := contract.TransferTokenID(ev)
		if !ok {
			continue
		}
		key := id.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

type candidateResult struct {
	record *model.YieldRecord
	err    error
}

// inspect reads one candidate. A read error drops only this candidate.
func (e *Engine) inspect(ctx context.Context, account common.Address, id *big.Int) candidateResult {
	log := e.logger.With(zap.String("asset_id", id.String()))

	owner, err := e.reader.OwnerOf(ctx, id)
	if err != nil {
		return e.drop(log, err)
	}
	if !chain.SameAccount(owner.Hex(), account.Hex()) {
		log.Debug("candidate transferred out", zap.String("owner", owner.Hex()))
		e.metrics.ObserveCandidate(candidateTransferredOut)
		return candidateResult{}
	}

	claimable, err := e.reader.ClaimableYield(ctx, id)
	if err != nil {
		return e.drop(log, err)
	}
	stats, err := e.reader.YieldStats(ctx, id)
	if err != nil {
		return e.drop(log, err)
	}

	record := model.YieldRecord{
		AssetID:        new(big.Int).Set(id),
		Claimable:      model.NewAmount(claimable, e.decimals),
		TotalGenerated: model.NewAmount(stats.TotalGenerated, e.decimals),
		IsActive:       stats.IsActive,
	}
	e.describe(ctx, log, &record)

	e.metrics.ObserveCandidate(candidateOwned)
	return candidateResult{record: &record}
}

func (e *Engine) drop(log *zap.Logger, err error) candidateResult {
	log.Warn("candidate dropped", zap.Error(err))
	e.metrics.ObserveCandidate(candidateDropped)
	return candidateResult{err: err}
}

// describe fills the display name, falling back to a synthesized one.
func (e *Engine) describe(ctx context.Context, log *zap.Logger, record *model.YieldRecord) {
	record.DisplayName = FallbackName(record.AssetID)

	uri, err := e.reader.TokenURI(ctx, record.AssetID)
	if err != nil {
		log.Debug("token uri unavailable", zap.Error(err))
		e.metrics.ObserveMetadataFallback()
		return
	}
	record.Locator = uri

	if e.resolver == nil {
		e.metrics.ObserveMetadataFallback()
		return
	}
	doc, err := e.resolver.Resolve(ctx, uri)
	if err != nil || doc.Name == "" {
		log.Debug("metadata unavailable", zap.String("locator", uri), zap.Error(err))
		e.metrics.ObserveMetadataFallback()
		return
	}
	record.DisplayName = doc.Name
	record.MetadataResolved = true
}

// FallbackName is the display name used when metadata cannot be resolved.
func FallbackName(id *big.Int) string {
	return fmt.Sprintf("Asset #%s", id.String())
}
