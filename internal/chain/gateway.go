package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"yieldScope/internal/metrics"
	"yieldScope/internal/model"
)

// ErrUnreachable is returned when every endpoint failed a read.
var ErrUnreachable = errors.New("all endpoints unreachable")

const (
	opBlockNumber = "block_number"
	opReceipt     = "receipt"
	opCall        = "call"
	opFilterLogs  = "filter_logs"
)

// Gateway fans a logical read out over redundant endpoints.
// Each endpoint is attempted at most once per read; polling is the caller's job.
type Gateway struct {
	endpoints []Endpoint
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

type GatewayOpt func(g *Gateway)

func WithLogger(logger *zap.Logger) GatewayOpt {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) GatewayOpt {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway builds a gateway. The first endpoint is the primary, the rest are fallbacks in order.
func NewGateway(endpoints []Endpoint, opts ...GatewayOpt) (*Gateway, error) {
	eps := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep != nil {
			eps = append(eps, ep)
		}
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	g := &Gateway{
		endpoints: eps,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Primary returns the first endpoint.
func (g *Gateway) Primary() Endpoint {
	return g.endpoints[0]
}

// Endpoints returns the endpoints in attempt order.
func (g *Gateway) Endpoints() []Endpoint {
	out := make([]Endpoint, len(g.endpoints))
	copy(out, g.endpoints)
	return out
}

// Has reports whether an endpoint with the given name backs this gateway.
func (g *Gateway) Has(name string) bool {
	for _, ep := range g.endpoints {
		if ep.Name() == name {
			return true
		}
	}
	return false
}

// BlockNumber returns the latest block height.
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	height, _, err := read(ctx, g, opBlockNumber, func(ctx context.Context, ep Endpoint) (uint64, error) {
		return ep.BlockNumber(ctx)
	})
	return height, err
}

// CallContract performs an eth_call against the first endpoint that answers.
func (g *Gateway) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, _, err := read(ctx, g, opCall, func(ctx context.Context, ep Endpoint) ([]byte, error) {
		return ep.CallContract(ctx, msg, blockNumber)
	})
	return out, err
}

// FilterLogs runs a single log query.
func (g *Gateway) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	logs, _, err := read(ctx, g, opFilterLogs, func(ctx context.Context, ep Endpoint) ([]types.Log, error) {
		return ep.FilterLogs(ctx, query)
	})
	return logs, err
}

// FilterLogsRange queries [from, to] in batches of batchSize blocks, one gateway read per batch.
func (g *Gateway) FilterLogsRange(ctx context.Context, query ethereum.FilterQuery, from, to, batchSize uint64) ([]types.Log, error) {
	ranges, err := SplitRange(from, to, batchSize)
	if err != nil {
		return nil, err
	}

	var logs []types.Log
	for _, blockRange := range ranges {
		q := query
		q.FromBlock = new(big.Int).SetUint64(blockRange.From)
		q.ToBlock = new(big.Int).SetUint64(blockRange.To)

		batch, err := g.FilterLogs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}
		logs = append(logs, batch...)
	}
	return logs, nil
}

// Receipt reads a transaction receipt. A missing receipt is Pending and does not trigger fallback.
// When every endpoint fails the outcome is Unreachable and the error wraps ErrUnreachable.
func (g *Gateway) Receipt(ctx context.Context, hash common.Hash) (model.ReceiptOutcome, error) {
	receipt, served, err := read(ctx, g, opReceipt, func(ctx context.Context, ep Endpoint) (*types.Receipt, error) {
		return receiptOrNil(ctx, ep, hash)
	})
	if err != nil {
		return model.ReceiptOutcome{TxHash: hash, Status: model.ReceiptUnreachable, Err: err}, err
	}
	return OutcomeFromReceipt(hash, receipt, served), nil
}

// ReceiptFrom reads a receipt from a single endpoint outside the gateway's fallback chain.
func (g *Gateway) ReceiptFrom(ctx context.Context, ep Endpoint, hash common.Hash) (model.ReceiptOutcome, error) {
	receipt, err := receiptOrNil(ctx, ep, hash)
	if err != nil {
		g.metrics.ObserveRead(ep.Name(), opReceipt, "error")
		return model.ReceiptOutcome{TxHash: hash, Status: model.ReceiptUnreachable, Endpoint: ep.Name(), Err: err}, err
	}
	g.metrics.ObserveRead(ep.Name(), opReceipt, "ok")
	return OutcomeFromReceipt(hash, receipt, ep.Name()), nil
}

// OutcomeFromReceipt classifies a receipt; nil means Pending.
func OutcomeFromReceipt(hash common.Hash, receipt *types.Receipt, endpoint string) model.ReceiptOutcome {
	if receipt == nil {
		return model.ReceiptOutcome{TxHash: hash, Status: model.ReceiptPending, Endpoint: endpoint}
	}

	status := model.ReceiptConfirmed
	if receipt.Status == types.ReceiptStatusFailed {
		status = model.ReceiptReverted
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}

	return model.ReceiptOutcome{
		TxHash:      hash,
		Status:      status,
		Logs:        model.LogEntriesFromTypes(receipt.Logs),
		BlockNumber: block,
		Endpoint:    endpoint,
	}
}

func receiptOrNil(ctx context.Context, ep Endpoint, hash common.Hash) (*types.Receipt, error) {
	receipt, err := ep.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func read[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context, Endpoint) (T, error)) (T, string, error) {
	var zero T
	var errs error
	for i, ep := range g.endpoints {
		out, err := fn(ctx, ep)
		if err == nil {
			g.metrics.ObserveRead(ep.Name(), op, "ok")
			if i > 0 {
				g.logger.Debug("read served by fallback", zap.String("op", op), zap.String("endpoint", ep.Name()))
			}
			return out, ep.Name(), nil
		}

		g.metrics.ObserveRead(ep.Name(), op, "error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}
		g.logger.Warn("endpoint read failed", zap.String("op", op), zap.String("endpoint", ep.Name()), zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", ep.Name(), err))
	}
	return zero, "", fmt.Errorf("%s: %w: %w", op, ErrUnreachable, errs)
}
