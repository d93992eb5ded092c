package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type callerFunc func(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)

func (f callerFunc) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return f(ctx, msg, block)
}

func TestReaderCalls(t *testing.T) {
	assetABI, err := AssetABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	yieldABI, err := YieldDistributorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	asset := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	yield := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	caller := callerFunc(func(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		parsed := assetABI
		if *msg.To == yield {
			parsed = yieldABI
		}
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			return nil, err
		}
		return packOutputs(t, method, map[string][]interface{}{
			"ownerOf":           {owner},
			"tokenURI":          {"ipfs://bafy"},
			"kycStatus":         {uint8(2)},
			"getClaimableYield": {big.NewInt(15)},
			"getYieldStats":     {big.NewInt(40), big.NewInt(25), true},
		}[method.Name]...), nil
	})

	reader, err := NewReader(caller, asset, yield)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	ctx := context.Background()
	id := big.NewInt(3)

	gotOwner, err := reader.OwnerOf(ctx, id)
	if err != nil || gotOwner != owner {
		t.Fatalf("ownerOf: %s %v", gotOwner.Hex(), err)
	}
	uri, err := reader.TokenURI(ctx, id)
	if err != nil || uri != "ipfs://bafy" {
		t.Fatalf("tokenURI: %q %v", uri, err)
	}
	level, err := reader.KYCStatus(ctx, owner)
	if err != nil || level != 2 {
		t.Fatalf("kycStatus: %d %v", level, err)
	}
	claimable, err := reader.ClaimableYield(ctx, id)
	if err != nil || claimable.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("claimable: %v %v", claimable, err)
	}
	stats, err := reader.YieldStats(ctx, id)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalGenerated.Int64() != 40 || stats.TotalClaimed.Int64() != 25 || !stats.IsActive {
		t.Fatalf("stats mismatch: %+v", stats)
	}
}

func TestReaderPropagatesCallError(t *testing.T) {
	boom := errors.New("boom")
	reader, err := NewReader(callerFunc(func(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, boom
	}), common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("reader: %v", err)
	}

	if _, err := reader.OwnerOf(context.Background(), big.NewInt(1)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestReaderRejectsEmptyResult(t *testing.T) {
	reader, err := NewReader(callerFunc(func(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, nil
	}), common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("reader: %v", err)
	}

	if _, err := reader.ClaimableYield(context.Background(), big.NewInt(1)); err == nil {
		t.Fatalf("expected error for empty return data")
	}
}

func TestPackClaim(t *testing.T) {
	parsed, err := YieldDistributorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := PackClaim(big.NewInt(7))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil || method.Name != "claimYield" {
		t.Fatalf("selector mismatch: %v", err)
	}
}

func packOutputs(t *testing.T, method *abi.Method, values ...interface{}) []byte {
	t.Helper()
	out, err := method.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method.Name, err)
	}
	return out
}
