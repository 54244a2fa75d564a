package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	ethereumapi "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/deploytrack/deploytrack/internal/chainclient"
	"github.com/deploytrack/deploytrack/pkg/metrics"
)

// JSON-RPC error code for an unknown method.
const methodNotFoundCode = -32601

// Client wraps the underlying RPC and eth clients.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	metrics *metrics.Metrics // nil if metrics disabled

	// Set once eth_getBlockReceipts is known to be unsupported by the node;
	// BlockReceipts then goes straight to the per-transaction path.
	blockReceiptsUnsupported atomic.Bool
}

var _ chainclient.ChainClient = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New dials an EVM node over the given URL (http, ws or ipc).
func New(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	client := &Client{
		rpc: c,
		eth: ethclient.NewClient(c),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// BlockByNumber fetches the full block at the given height. An absent block
// is reported as an error wrapping ethereum.NotFound.
func (c *Client) BlockByNumber(ctx context.Context, height uint64) (*types.Block, error) {
	const method = "eth_getBlockByNumber"
	start := time.Now()

	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	n := new(big.Int).SetUint64(height)
	block, err := c.eth.BlockByNumber(ctx, n)

	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("get block by number %d: %w", height, err)
	}
	return block, nil
}

// BlockReceipts fetches the receipts for the block's transactions. It prefers
// the batched eth_getBlockReceipts endpoint and falls back to per-transaction
// eth_getTransactionReceipt calls on nodes that do not implement it. On the
// per-transaction path a receipt the node no longer has yields a nil entry
// instead of failing the whole block.
func (c *Client) BlockReceipts(ctx context.Context, block *types.Block) ([]*types.Receipt, error) {
	if !c.blockReceiptsUnsupported.Load() {
		receipts, err := c.blockReceipts(ctx, block.NumberU64())
		if err == nil {
			if len(receipts) != len(block.Transactions()) {
				return nil, fmt.Errorf(
					"%w: block %d: got %d receipts for %d transactions",
					chainclient.ErrReceiptCountMismatch,
					block.NumberU64(),
					len(receipts),
					len(block.Transactions()),
				)
			}
			return receipts, nil
		}
		var rpcErr rpc.Error
		if !errors.As(err, &rpcErr) || rpcErr.ErrorCode() != methodNotFoundCode {
			return nil, err
		}
		c.blockReceiptsUnsupported.Store(true)
	}

	receipts := make([]*types.Receipt, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		receipt, err := c.transactionReceipt(ctx, tx)
		if err != nil {
			if errors.Is(err, ethereumapi.NotFound) {
				receipts = append(receipts, nil)
				continue
			}
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (c *Client) blockReceipts(ctx context.Context, height uint64) ([]*types.Receipt, error) {
	const method = "eth_getBlockReceipts"
	start := time.Now()

	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	n := rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(height))
	receipts, err := c.eth.BlockReceipts(ctx, n)

	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("get block receipts %d: %w", height, err)
	}
	return receipts, nil
}

func (c *Client) transactionReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	const method = "eth_getTransactionReceipt"
	start := time.Now()

	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	receipt, err := c.eth.TransactionReceipt(ctx, tx.Hash())

	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("get transaction receipt %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}

// BlockNumber returns the current chain tip height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	const method = "eth_blockNumber"
	start := time.Now()

	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	height, err := c.eth.BlockNumber(ctx)

	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())

	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return height, nil
}

// SubscribeNewHead subscribes to new chain head announcements.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereumapi.Subscription, error) {
	sub, err := c.eth.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe new heads: %w", err)
	}
	return sub, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.rpc.Close()
}
