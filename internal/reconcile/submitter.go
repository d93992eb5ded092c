package reconcile

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"yieldScope/internal/contract"
)

// DefaultGasBufferPercent pads estimated gas before submission.
const DefaultGasBufferPercent uint64 = 20

// KeyedSubmitter signs claims with a local private key and broadcasts them through backend.
type KeyedSubmitter struct {
	backend   bind.ContractBackend
	auth      *bind.TransactOpts
	gasBuffer uint64
}

func NewKeyedSubmitter(backend bind.ContractBackend, key *ecdsa.PrivateKey, chainID *big.Int) (*KeyedSubmitter, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return &KeyedSubmitter{backend: backend, auth: auth, gasBuffer: DefaultGasBufferPercent}, nil
}

// From returns the signing account.
func (s *KeyedSubmitter) From() common.Address {
	return s.auth.From
}

func (s *KeyedSubmitter) SubmitClaim(ctx context.Context, distributor common.Address, id *big.Int) (common.Hash, error) {
	data, err := contract.PackClaim(id)
	if err != nil {
		return common.Hash{}, err
	}
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.auth.From, To: &distributor, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	parsed, err := contract.YieldDistributorABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse yield abi: %w", err)
	}
	opts := *s.auth
	opts.Context = ctx
	opts.GasLimit = WithGasBuffer(gas, s.gasBuffer)

	bound := bind.NewBoundContract(distributor, parsed, s.backend, s.backend, s.backend)
	tx, err := bound.Transact(&opts, "claimYield", id)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send claim: %w", err)
	}
	return tx.Hash(), nil
}

// WithGasBuffer adds percent to an estimated gas limit.
func WithGasBuffer(gas, percent uint64) uint64 {
	return gas + gas*percent/100
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
