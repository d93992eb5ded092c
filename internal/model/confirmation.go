package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ConfirmationState is the watcher state for one transaction.
type ConfirmationState int

const (
	StateSubmitted ConfirmationState = iota
	StatePolling
	StateConfirmed
	StateFailed
	StateTimedOut
)

func (s ConfirmationState) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling happens in this state.
func (s ConfirmationState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateTimedOut
}

// Confirmation is the terminal result of watching a transaction.
type Confirmation struct {
	TxHash   common.Hash       `json:"tx_hash"`
	State    ConfirmationState `json:"state"`
	AssetID  *big.Int          `json:"asset_id,omitempty"`
	Attempts int               `json:"attempts"`
	Last     ReceiptOutcome    `json:"last"`
}

// HasAssetID distinguishes confirmed-with-id from confirmed-without-id.
func (c Confirmation) HasAssetID() bool {
	return c.State == StateConfirmed && c.AssetID != nil
}

func (s ConfirmationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
