// Package chaintest provides in-memory endpoints for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrTransport simulates an unreachable endpoint.
var ErrTransport = errors.New("connection refused")

// Endpoint is a chain.Endpoint whose behaviour is set per test through function fields.
// Unset functions fail with ErrTransport.
type Endpoint struct {
	ID            string
	BlockNumberFn func(ctx context.Context) (uint64, error)
	ReceiptFn     func(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallFn        func(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	FilterLogsFn  func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	mu    sync.Mutex
	calls map[string]int
}

func (e *Endpoint) Name() string {
	return e.ID
}

func (e *Endpoint) BlockNumber(ctx context.Context) (uint64, error) {
	e.count("block_number")
	if e.BlockNumberFn == nil {
		return 0, ErrTransport
	}
	return e.BlockNumberFn(ctx)
}

func (e *Endpoint) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	e.count("receipt")
	if e.ReceiptFn == nil {
		return nil, ErrTransport
	}
	return e.ReceiptFn(ctx, hash)
}

func (e *Endpoint) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	e.count("call")
	if e.CallFn == nil {
		return nil, ErrTransport
	}
	return e.CallFn(ctx, msg, block)
}

func (e *Endpoint) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	e.count("filter_logs")
	if e.FilterLogsFn == nil {
		return nil, ErrTransport
	}
	return e.FilterLogsFn(ctx, query)
}

// Calls returns how many times op was invoked.
func (e *Endpoint) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

func (e *Endpoint) count(op string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = make(map[string]int)
	}
	e.calls[op]++
}

// NotFound answers every receipt query with ethereum.NotFound.
func NotFound(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}
