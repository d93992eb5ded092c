package model

import "github.com/ethereum/go-ethereum/common"

// ReceiptStatus is the result of a single receipt read.
type ReceiptStatus int

const (
	ReceiptPending ReceiptStatus = iota
	ReceiptConfirmed
	ReceiptReverted
	ReceiptUnreachable
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptPending:
		return "pending"
	case ReceiptConfirmed:
		return "confirmed"
	case ReceiptReverted:
		return "reverted"
	case ReceiptUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ReceiptOutcome is produced once per polling cycle.
type ReceiptOutcome struct {
	TxHash      common.Hash   `json:"tx_hash"`
	Status      ReceiptStatus `json:"status"`
	Logs        []LogEntry    `json:"logs,omitempty"`
	BlockNumber uint64        `json:"block_number,omitempty"`
	Endpoint    string        `json:"endpoint,omitempty"`
	Err         error         `json:"-"`
}

// HasReceipt reports whether the ledger returned a receipt, successful or not.
func (o ReceiptOutcome) HasReceipt() bool {
	return o.Status == ReceiptConfirmed || o.Status == ReceiptReverted
}

func (s ReceiptStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
