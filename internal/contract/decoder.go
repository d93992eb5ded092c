package contract

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"yieldScope/internal/model"
)

// Schema is one known event shape, matched by its signature hash and indexed topic count.
type Schema struct {
	event abi.Event
}

// Name returns the event name.
func (s Schema) Name() string {
	return s.event.Name
}

// ID returns topic0, the keccak hash of the canonical signature.
func (s Schema) ID() common.Hash {
	return s.event.ID
}

// Signature returns the canonical event signature, e.g. Transfer(address,address,uint256).
func (s Schema) Signature() string {
	return s.event.Sig
}

func (s Schema) indexedCount() int {
	n := 0
	for _, arg := range s.event.Inputs {
		if arg.Indexed {
			n++
		}
	}
	return n
}

var (
	schemasOnce sync.Once
	schemasErr  error
	transfer    Schema
	claimed     Schema
	deposited   Schema
)

func loadSchemas() error {
	schemasOnce.Do(func() {
		assetABI, err := AssetABI()
		if err != nil {
			schemasErr = fmt.Errorf("parse asset abi: %w", err)
			return
		}
		yieldABI, err := YieldDistributorABI()
		if err != nil {
			schemasErr = fmt.Errorf("parse yield abi: %w", err)
			return
		}
		transfer = Schema{event: assetABI.Events["Transfer"]}
		claimed = Schema{event: yieldABI.Events["YieldClaimed"]}
		deposited = Schema{event: yieldABI.Events["YieldDeposited"]}
	})
	return schemasErr
}

// TransferSchema is the ERC-721 Transfer(address indexed, address indexed, uint256 indexed) event.
func TransferSchema() (Schema, error) {
	if err := loadSchemas(); err != nil {
		return Schema{}, err
	}
	return transfer, nil
}

// YieldClaimedSchema is the distributor's YieldClaimed event.
func YieldClaimedSchema() (Schema, error) {
	if err := loadSchemas(); err != nil {
		return Schema{}, err
	}
	return claimed, nil
}

// YieldDepositedSchema is the distributor's YieldDeposited event.
func YieldDepositedSchema() (Schema, error) {
	if err := loadSchemas(); err != nil {
		return Schema{}, err
	}
	return deposited, nil
}

// KnownSchemas returns the closed set of schemas this package can decode.
func KnownSchemas() ([]Schema, error) {
	if err := loadSchemas(); err != nil {
		return nil, err
	}
	return []Schema{transfer, claimed, deposited}, nil
}

// Decode matches entry against schema. A log that does not match, including one from
// an unrelated contract sharing the signature with a different indexed layout, yields false.
func Decode(schema Schema, entry model.LogEntry) (ev model.DecodedEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ev, ok = model.DecodedEvent{}, false
		}
	}()

	if schema.event.Name == "" || len(entry.Topics) == 0 || entry.Topics[0] != schema.event.ID {
		return model.DecodedEvent{}, false
	}
	if len(entry.Topics) != schema.indexedCount()+1 {
		return model.DecodedEvent{}, false
	}

	named := make(map[string]interface{}, len(schema.event.Inputs))
	if err := abi.ParseTopicsIntoMap(named, indexedArguments(schema.event.Inputs), entry.Topics[1:]); err != nil {
		return model.DecodedEvent{}, false
	}
	if err := schema.event.Inputs.NonIndexed().UnpackIntoMap(named, entry.Data); err != nil {
		return model.DecodedEvent{}, false
	}

	args := make([]interface{}, 0, len(schema.event.Inputs))
	for _, arg := range schema.event.Inputs {
		value, found := named[arg.Name]
		if !found {
			return model.DecodedEvent{}, false
		}
		args = append(args, value)
	}

	return model.DecodedEvent{
		Name:  schema.event.Name,
		Args:  args,
		Named: named,
		Log:   entry,
	}, true
}

// DecodeAny tries every known schema in order.
func DecodeAny(entry model.LogEntry) (model.DecodedEvent, bool) {
	schemas, err := KnownSchemas()
	if err != nil {
		return model.DecodedEvent{}, false
	}
	for _, schema := range schemas {
		if ev, ok := Decode(schema, entry); ok {
			return ev, true
		}
	}
	return model.DecodedEvent{}, false
}

// TransferTokenID returns the third positional argument of a decoded Transfer event.
func TransferTokenID(ev model.DecodedEvent) (*big.Int, bool) {
	if ev.Name != "Transfer" {
		return nil, false
	}
	value, ok := ev.Arg(2)
	if !ok {
		return nil, false
	}
	id, err := asBigInt(value)
	if err != nil {
		return nil, false
	}
	return id, true
}

// TransferRecipient returns the second positional argument of a decoded Transfer event.
func TransferRecipient(ev model.DecodedEvent) (common.Address, bool) {
	if ev.Name != "Transfer" {
		return common.Address{}, false
	}
	value, ok := ev.Arg(1)
	if !ok {
		return common.Address{}, false
	}
	to, err := asAddress(value)
	if err != nil {
		return common.Address{}, false
	}
	return to, true
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
