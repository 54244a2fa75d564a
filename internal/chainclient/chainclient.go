package chainclient

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReceiptCountMismatch is returned when a node answers a batched receipt
// lookup with a different number of receipts than the block has transactions.
var ErrReceiptCountMismatch = errors.New("receipt count mismatch")

// ChainClient is the JSON-RPC surface the scanner needs from an EVM node.
// Absent blocks are reported as errors wrapping ethereum.NotFound.
type ChainClient interface {
	// BlockByNumber fetches the full block (header and transactions) at the
	// given height.
	BlockByNumber(ctx context.Context, height uint64) (*types.Block, error)

	// BlockReceipts fetches the receipts for the block's transactions, in
	// transaction order. A transaction whose receipt the node no longer has
	// yields a nil entry; callers skip those.
	BlockReceipts(ctx context.Context, block *types.Block) ([]*types.Receipt, error)

	// BlockNumber returns the current chain tip height.
	BlockNumber(ctx context.Context) (uint64, error)

	// SubscribeNewHead subscribes to new chain head announcements. It fails
	// on transports without subscription support (plain HTTP).
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)

	// Close tears down the underlying RPC connection.
	Close()
}
