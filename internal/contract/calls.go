package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs read-only contract calls. *chain.Gateway satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// YieldStats is the distributor's per-asset bookkeeping.
type YieldStats struct {
	TotalGenerated *big.Int
	TotalClaimed   *big.Int
	IsActive       bool
}

// Reader binds a Caller to the asset and yield distributor contracts.
type Reader struct {
	caller Caller
	asset  common.Address
	yield  common.Address
}

func NewReader(caller Caller, asset, yield common.Address) (*Reader, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	return &Reader{caller: caller, asset: asset, yield: yield}, nil
}

// Asset returns the asset contract address.
func (r *Reader) Asset() common.Address {
	return r.asset
}

// Yield returns the yield distributor address.
func (r *Reader) Yield() common.Address {
	return r.yield
}

// OwnerOf returns the current holder of an asset.
func (r *Reader) OwnerOf(ctx context.Context, id *big.Int) (common.Address, error) {
	parsed, err := AssetABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse asset abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.asset, parsed, "ownerOf", id)
	if err != nil {
		return common.Address{}, err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("ownerOf: %w", err)
	}
	return owner, nil
}

// TokenURI returns the metadata locator recorded for an asset.
func (r *Reader) TokenURI(ctx context.Context, id *big.Int) (string, error) {
	parsed, err := AssetABI()
	if err != nil {
		return "", fmt.Errorf("parse asset abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.asset, parsed, "tokenURI", id)
	if err != nil {
		return "", err
	}
	uri, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("tokenURI: unsupported type %T", values[0])
	}
	return uri, nil
}

// KYCStatus returns the verification level of an account. Zero means unverified.
func (r *Reader) KYCStatus(ctx context.Context, account common.Address) (uint8, error) {
	parsed, err := AssetABI()
	if err != nil {
		return 0, fmt.Errorf("parse asset abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.asset, parsed, "kycStatus", account)
	if err != nil {
		return 0, err
	}
	level, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("kycStatus: %w", err)
	}
	return level, nil
}

// ClaimableYield returns the integer amount currently claimable for an asset.
func (r *Reader) ClaimableYield(ctx context.Context, id *big.Int) (*big.Int, error) {
	parsed, err := YieldDistributorABI()
	if err != nil {
		return nil, fmt.Errorf("parse yield abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.yield, parsed, "getClaimableYield", id)
	if err != nil {
		return nil, err
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("getClaimableYield: %w", err)
	}
	return amount, nil
}

// YieldStats returns lifetime generated and claimed totals for an asset.
func (r *Reader) YieldStats(ctx context.Context, id *big.Int) (YieldStats, error) {
	parsed, err := YieldDistributorABI()
	if err != nil {
		return YieldStats{}, fmt.Errorf("parse yield abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.yield, parsed, "getYieldStats", id)
	if err != nil {
		return YieldStats{}, err
	}
	if len(values) < 3 {
		return YieldStats{}, fmt.Errorf("getYieldStats: expected 3 values, got %d", len(values))
	}
	generated, err := asBigInt(values[0])
	if err != nil {
		return YieldStats{}, fmt.Errorf("getYieldStats generated: %w", err)
	}
	claimed, err := asBigInt(values[1])
	if err != nil {
		return YieldStats{}, fmt.Errorf("getYieldStats claimed: %w", err)
	}
	active, ok := values[2].(bool)
	if !ok {
		return YieldStats{}, fmt.Errorf("getYieldStats active: unsupported type %T", values[2])
	}
	return YieldStats{TotalGenerated: generated, TotalClaimed: claimed, IsActive: active}, nil
}

// PackClaim encodes claimYield(id) calldata.
func PackClaim(id *big.Int) ([]byte, error) {
	parsed, err := YieldDistributorABI()
	if err != nil {
		return nil, fmt.Errorf("parse yield abi: %w", err)
	}
	data, err := parsed.Pack("claimYield", id)
	if err != nil {
		return nil, fmt.Errorf("pack claimYield: %w", err)
	}
	return data, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
