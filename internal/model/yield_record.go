package model

import "math/big"

// YieldRecord describes one owned asset and its yield state.
// Claimable is not guaranteed to be <= TotalGenerated; values come straight from the contract.
type YieldRecord struct {
	AssetID          *big.Int `json:"asset_id"`
	DisplayName      string   `json:"display_name"`
	Claimable        Amount   `json:"claimable"`
	TotalGenerated   Amount   `json:"total_generated"`
	IsActive         bool     `json:"is_active"`
	Locator          string   `json:"locator,omitempty"`
	MetadataResolved bool     `json:"metadata_resolved"`
}

// ReconciliationResult is the output of one reconciliation pass.
type ReconciliationResult struct {
	Account        string        `json:"account"`
	FromBlock      uint64        `json:"from_block"`
	ToBlock        uint64        `json:"to_block"`
	Records        []YieldRecord `json:"records"`
	TotalClaimable Amount        `json:"total_claimable"`
	Candidates     int           `json:"candidates"`
	Dropped        int           `json:"dropped"`
}

// Record returns the record for id, if present.
func (r ReconciliationResult) Record(id *big.Int) (YieldRecord, bool) {
	if id == nil {
		return YieldRecord{}, false
	}
	for _, rec := range r.Records {
		if rec.AssetID != nil && rec.AssetID.Cmp(id) == 0 {
			return rec, true
		}
	}
	return YieldRecord{}, false
}
