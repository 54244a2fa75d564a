package checkpoint

// Checkpoint records the lowest unprocessed block height for a chain at a point in time.
// Rows with the same chain_id are deduplicated by ReplacingMergeTree, keeping the one with
// the highest timestamp.
type Checkpoint struct {
	ChainID   uint64 `json:"chain_id" ch:"chain_id"`
	Lowest    uint64 `json:"lowest_unprocessed_block" ch:"lowest_unprocessed_block"`
	Timestamp int64  `json:"timestamp" ch:"timestamp"`
}
