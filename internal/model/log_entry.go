package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogEntry is a raw event log as emitted by the ledger.
type LogEntry struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        []byte         `json:"data"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	LogIndex    uint64         `json:"log_index"`
}

// Topic0 returns the event signature topic, or the zero hash for anonymous logs.
func (l LogEntry) Topic0() common.Hash {
	if len(l.Topics) == 0 {
		return common.Hash{}
	}
	return l.Topics[0]
}

// LogEntryFromTypes converts a go-ethereum log.
func LogEntryFromTypes(log types.Log) LogEntry {
	topics := make([]common.Hash, len(log.Topics))
	copy(topics, log.Topics)
	return LogEntry{
		Address:     log.Address,
		Topics:      topics,
		Data:        log.Data,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    uint64(log.Index),
	}
}

// LogEntriesFromTypes converts a slice of go-ethereum logs.
func LogEntriesFromTypes(logs []*types.Log) []LogEntry {
	out := make([]LogEntry, 0, len(logs))
	for _, log := range logs {
		if log == nil {
			continue
		}
		out = append(out, LogEntryFromTypes(*log))
	}
	return out
}
