package reconcile_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"yieldScope/internal/chain/chaintest"
	"yieldScope/internal/contract"
)

var (
	assetAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	yieldAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	account   = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	otherAcct = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
)

var errRead = errors.New("execution reverted")

// ledger is an in-memory asset and yield distributor pair.
type ledger struct {
	t         *testing.T
	height    uint64
	transfers []types.Log
	owners    map[int64]common.Address
	claimable map[int64]int64
	generated map[int64]int64
	uris      map[int64]string
	failYield map[int64]bool

	mu      sync.Mutex
	queries []ethereum.FilterQuery
}

func newLedger(t *testing.T, height uint64) *ledger {
	return &ledger{
		t:         t,
		height:    height,
		owners:    make(map[int64]common.Address),
		claimable: make(map[int64]int64),
		generated: make(map[int64]int64),
		uris:      make(map[int64]string),
		failYield: make(map[int64]bool),
	}
}

// transfer records a Transfer(from, to, id) at block.
func (l *ledger) transfer(block uint64, to common.Address, id int64) {
	schema, err := contract.TransferSchema()
	require.NoError(l.t, err)
	l.transfers = append(l.transfers, types.Log{
		Address:     assetAddr,
		BlockNumber: block,
		Topics: []common.Hash{
			schema.ID(),
			{},
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(id)),
		},
	})
}

// asset sets the current owner and yield of id.
func (l *ledger) asset(id int64, owner common.Address, claimable int64) {
	l.owners[id] = owner
	l.claimable[id] = claimable
	l.generated[id] = claimable * 2
}

func (l *ledger) endpoint(name string) *chaintest.Endpoint {
	return &chaintest.Endpoint{
		ID: name,
		BlockNumberFn: func(context.Context) (uint64, error) {
			return l.height, nil
		},
		FilterLogsFn: l.filterLogs,
		CallFn:       l.call,
	}
}

// filterLogs honours only the block range, so callers must re-check recipients.
func (l *ledger) filterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	l.mu.Lock()
	l.queries = append(l.queries, q)
	l.mu.Unlock()

	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var out []types.Log
	for _, log := range l.transfers {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func (l *ledger) filterQueries() []ethereum.FilterQuery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), l.queries...)
}

func (l *ledger) call(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := contract.AssetABI()
	if err != nil {
		return nil, err
	}
	if *msg.To == yieldAddr {
		if parsed, err = contract.YieldDistributorABI(); err != nil {
			return nil, err
		}
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	if method.Name == "kycStatus" {
		level := uint8(0)
		if args[0].(common.Address) == account {
			level = 1
		}
		return pack(method, level)
	}

	id := args[0].(*big.Int).Int64()
	switch method.Name {
	case "ownerOf":
		owner, ok := l.owners[id]
		if !ok {
			return nil, errRead
		}
		return pack(method, owner)
	case "tokenURI":
		return pack(method, l.uris[id])
	case "getClaimableYield":
		if l.failYield[id] {
			return nil, errRead
		}
		return pack(method, big.NewInt(l.claimable[id]))
	case "getYieldStats":
		return pack(method, big.NewInt(l.generated[id]), big.NewInt(l.generated[id]-l.claimable[id]), true)
	default:
		return nil, errRead
	}
}

func pack(method *abi.Method, values ...interface{}) ([]byte, error) {
	return method.Outputs.Pack(values...)
}
