package reconcile_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"yieldScope/internal/chain"
	"yieldScope/internal/metadata"
	"yieldScope/internal/metrics"
	"yieldScope/internal/model"
	"yieldScope/internal/reconcile"
)

type resolverFunc func(ctx context.Context, locator string) (metadata.Document, error)

func (f resolverFunc) Resolve(ctx context.Context, locator string) (metadata.Document, error) {
	return f(ctx, locator)
}

func newEngine(t *testing.T, l *ledger, opts ...reconcile.EngineOpt) *reconcile.Engine {
	t.Helper()
	gw, err := chain.NewGateway([]chain.Endpoint{l.endpoint("public")})
	require.NoError(t, err)
	engine, err := reconcile.NewEngine(gw, assetAddr, yieldAddr, opts...)
	require.NoError(t, err)
	return engine
}

func ids(records []model.YieldRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.AssetID.Int64())
	}
	return out
}

func TestReconcileDiscardsTransferredOut(t *testing.T) {
	l := newLedger(t, 1000)
	l.transfer(10, account, 3)
	l.transfer(20, account, 3)
	l.transfer(30, account, 7)
	l.asset(3, account, 10)
	l.asset(7, otherAcct, 99)

	result, err := newEngine(t, l).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, ids(result.Records))
	require.Equal(t, 2, result.Candidates)
	require.Equal(t, 0, result.Dropped)
	require.Equal(t, "10", result.TotalClaimable.Raw().String())
}

func TestReconcileSumsClaimableExactly(t *testing.T) {
	l := newLedger(t, 1000)
	for _, id := range []int64{3, 1, 2} {
		l.transfer(uint64(100+id), account, id)
	}
	l.asset(1, account, 10)
	l.asset(2, account, 0)
	l.asset(3, account, 5)

	result, err := newEngine(t, l).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids(result.Records))
	require.Equal(t, "15", result.TotalClaimable.Raw().String())
	require.Equal(t, "0.000000000000000015", result.TotalClaimable.String())

	rec, ok := result.Record(big.NewInt(3))
	require.True(t, ok)
	require.Equal(t, "10", rec.TotalGenerated.Raw().String())
	require.True(t, rec.IsActive)
}

func TestReconcileIgnoresOtherRecipients(t *testing.T) {
	l := newLedger(t, 1000)
	l.transfer(10, otherAcct, 4)
	l.transfer(11, account, 5)
	l.asset(4, account, 1)
	l.asset(5, account, 2)

	result, err := newEngine(t, l).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, []int64{5}, ids(result.Records))
	require.Equal(t, 1, result.Candidates)
}

func TestReconcileMetadataFallback(t *testing.T) {
	l := newLedger(t, 1000)
	l.transfer(10, account, 3)
	l.transfer(11, account, 4)
	l.asset(3, account, 1)
	l.asset(4, account, 1)
	l.uris[3] = "ipfs://broken"
	l.uris[4] = "ipfs://named"

	resolver := resolverFunc(func(_ context.Context, locator string) (metadata.Document, error) {
		if locator == "ipfs://named" {
			return metadata.Document{Name: "Harbour Warehouse"}, nil
		}
		return metadata.Document{}, metadata.ErrUnavailable
	})
	m := metrics.New(prometheus.NewRegistry())

	result, err := newEngine(t, l, reconcile.WithResolver(resolver), reconcile.WithMetrics(m)).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	require.Equal(t, "Asset #3", result.Records[0].DisplayName)
	require.False(t, result.Records[0].MetadataResolved)
	require.Equal(t, "ipfs://broken", result.Records[0].Locator)
	require.Equal(t, "Harbour Warehouse", result.Records[1].DisplayName)
	require.True(t, result.Records[1].MetadataResolved)
	require.Equal(t, float64(1), testutil.ToFloat64(m.MetadataFallbacks))
	require.Equal(t, float64(2), testutil.ToFloat64(m.ReconcileCandidates.WithLabelValues("owned")))
}

func TestReconcileReadErrorDropsOnlyThatCandidate(t *testing.T) {
	l := newLedger(t, 1000)
	for id := int64(1); id <= 4; id++ {
		l.transfer(uint64(10+id), account, id)
		l.asset(id, account, id)
	}
	l.failYield[2] = true
	delete(l.owners, 4)

	result, err := newEngine(t, l, reconcile.WithConcurrency(2)).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids(result.Records))
	require.Equal(t, 4, result.Candidates)
	require.Equal(t, 2, result.Dropped)
	require.Equal(t, "4", result.TotalClaimable.Raw().String())
}

func TestReconcileScansWindowInBatches(t *testing.T) {
	l := newLedger(t, 60000)
	l.transfer(5000, account, 1)
	l.transfer(20000, account, 2)
	l.asset(1, account, 1)
	l.asset(2, account, 1)

	result, err := newEngine(t, l).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint64(10000), result.FromBlock)
	require.Equal(t, uint64(60000), result.ToBlock)
	require.Equal(t, []int64{2}, ids(result.Records))

	queries := l.filterQueries()
	require.Len(t, queries, 6)
	require.Equal(t, uint64(10000), queries[0].FromBlock.Uint64())
	require.Equal(t, []common.Address{assetAddr}, queries[0].Addresses)
	require.Equal(t, common.BytesToHash(account.Bytes()), queries[0].Topics[2][0])

	result, err = newEngine(t, l, reconcile.WithWindow(0), reconcile.WithLogBatch(100000)).Reconcile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint64(0), result.FromBlock)
	require.Equal(t, []int64{1, 2}, ids(result.Records))
}

func TestReconcileFailsWhenHeightUnavailable(t *testing.T) {
	l := newLedger(t, 1000)
	ep := l.endpoint("public")
	ep.BlockNumberFn = nil

	gw, err := chain.NewGateway([]chain.Endpoint{ep})
	require.NoError(t, err)
	engine, err := reconcile.NewEngine(gw, assetAddr, yieldAddr)
	require.NoError(t, err)

	_, err = engine.Reconcile(context.Background(), account)
	require.True(t, errors.Is(err, chain.ErrUnreachable))
}

func TestKYCLevel(t *testing.T) {
	engine := newEngine(t, newLedger(t, 1))

	level, err := engine.KYCLevel(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint8(1), level)

	level, err = engine.KYCLevel(context.Background(), otherAcct)
	require.NoError(t, err)
	require.Zero(t, level)
}
