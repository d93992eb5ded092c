package chain

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Window returns the scan range ending at height and covering at most size blocks back,
// clamped at genesis. Size zero scans from genesis.
func Window(height, size uint64) BlockRange {
	if size == 0 || size >= height {
		return BlockRange{From: 0, To: height}
	}
	return BlockRange{From: height - size, To: height}
}

// SplitRange splits a block range into batches of size batchSize.
// Public endpoints cap eth_getLogs spans, so long windows are queried piecewise.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
	}

	return ranges, nil
}
