package e2e

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ethereumapi "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/deploytrack/deploytrack/pkg/scan/subscriber"
	"github.com/deploytrack/deploytrack/pkg/scan/worker"
	"github.com/deploytrack/deploytrack/pkg/sink"
	"github.com/deploytrack/deploytrack/pkg/window"
)

const testChainID = 1337

// stubChain serves fixed in-memory blocks over the ChainClient surface.
// Heights without a block answer like a pruned node: ethereum.NotFound.
type stubChain struct {
	tip      atomic.Uint64
	blocks   map[uint64]*types.Block
	receipts map[uint64][]*types.Receipt
}

func newStubChain() *stubChain {
	return &stubChain{
		blocks:   make(map[uint64]*types.Block),
		receipts: make(map[uint64][]*types.Receipt),
	}
}

func (c *stubChain) BlockByNumber(_ context.Context, height uint64) (*types.Block, error) {
	b, ok := c.blocks[height]
	if !ok {
		return nil, fmt.Errorf("block %d: %w", height, ethereumapi.NotFound)
	}
	return b, nil
}

func (c *stubChain) BlockReceipts(_ context.Context, block *types.Block) ([]*types.Receipt, error) {
	return c.receipts[block.NumberU64()], nil
}

func (c *stubChain) BlockNumber(_ context.Context) (uint64, error) {
	return c.tip.Load(), nil
}

func (c *stubChain) SubscribeNewHead(context.Context, chan<- *types.Header) (ethereumapi.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (c *stubChain) Close() {}

// chainBuilder accumulates signed blocks for a stubChain. A single key with a
// monotonic nonce keeps transaction hashes unique across blocks.
type chainBuilder struct {
	t     *testing.T
	chain *stubChain
	key   *ecdsa.PrivateKey
	nonce uint64
}

func newChainBuilder(t *testing.T) *chainBuilder {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &chainBuilder{t: t, chain: newStubChain(), key: key}
}

// addBlock creates a block at height containing transfers plain transactions
// followed by one creation transaction per contract address.
func (b *chainBuilder) addBlock(height uint64, transfers int, contracts ...string) {
	b.t.Helper()
	signer := types.LatestSignerForChainID(big.NewInt(testChainID))

	var txs []*types.Transaction
	var receipts []*types.Receipt

	for i := 0; i < transfers; i++ {
		to := common.HexToAddress("0x1111111111111111111111111111111111111111")
		tx := types.MustSignNewTx(b.key, signer, &types.LegacyTx{
			Nonce:    b.nonce,
			To:       &to,
			Gas:      21000,
			GasPrice: big.NewInt(1),
		})
		b.nonce++
		txs = append(txs, tx)
		receipts = append(receipts, &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()})
	}

	for _, contract := range contracts {
		tx := types.MustSignNewTx(b.key, signer, &types.LegacyTx{
			Nonce:    b.nonce,
			Gas:      53000,
			GasPrice: big.NewInt(1),
			Data:     []byte{0x60, 0x00},
		})
		b.nonce++
		txs = append(txs, tx)
		receipts = append(receipts, &types.Receipt{
			Status:          types.ReceiptStatusSuccessful,
			TxHash:          tx.Hash(),
			ContractAddress: common.HexToAddress(contract),
		})
	}

	header := &types.Header{
		Number:     new(big.Int).SetUint64(height),
		Time:       1700000000 + height,
		Difficulty: big.NewInt(0),
	}
	b.chain.blocks[height] = types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})
	b.chain.receipts[height] = receipts
	if height > b.chain.tip.Load() {
		b.chain.tip.Store(height)
	}
}

// syncBuffer lets the test read console output while workers still write it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := strings.Split(strings.TrimRight(b.buf.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

// TestScanPipeline covers the bounded scan path end to end: chain client,
// worker, window manager and console sink, including an empty block, an
// absent block and a transaction whose receipt the node no longer has.
func TestScanPipeline(t *testing.T) {
	t.Parallel()

	b := newChainBuilder(t)
	b.addBlock(100, 1)
	b.addBlock(101, 0, "0x006E27B6A72E1f34C626762F3C4761547Aff1421")
	b.addBlock(102, 0) // empty block
	// 103 intentionally absent
	b.addBlock(104, 2, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	b.addBlock(105, 0, "0x2222222222222222222222222222222222222222", "0x3333333333333333333333333333333333333333")
	b.addBlock(106, 3)
	// The first creation receipt of 105 went missing; only the tx is skipped.
	b.chain.receipts[105][0] = nil

	log := zaptest.NewLogger(t).Sugar()
	out := &syncBuffer{}

	w, err := worker.NewEVMWorker(b.chain, sink.NewConsole(out, nil), testChainID, log)
	require.NoError(t, err)

	s, err := window.NewState(100, 106)
	require.NoError(t, err)

	mgr, err := window.NewManager(log, s, w, 4, 2, 16, 3, window.WithExitWhenComplete())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, mgr.Run(ctx))

	require.True(t, s.Complete())
	require.Equal(t, uint64(107), s.GetLowest())

	got := out.Lines()
	sort.Strings(got)
	require.Equal(t, []string{
		"block number = 101 contract address = 0x006e27b6a72e1f34c626762f3c4761547aff1421",
		"block number = 104 contract address = 0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		"block number = 105 contract address = 0x3333333333333333333333333333333333333333",
	}, got)
}

// TestWatchPipeline covers the live path: a polling subscriber advances the
// window as the stub chain tip moves and backfill fills the gap heights.
func TestWatchPipeline(t *testing.T) {
	t.Parallel()

	b := newChainBuilder(t)
	b.addBlock(1, 1)
	b.addBlock(2, 0)
	b.addBlock(3, 0, "0x4444444444444444444444444444444444444444")
	b.chain.tip.Store(1)

	log := zaptest.NewLogger(t).Sugar()
	out := &syncBuffer{}

	w, err := worker.NewEVMWorker(b.chain, sink.NewConsole(out, nil), testChainID, log)
	require.NoError(t, err)

	s, err := window.NewState(1, 1)
	require.NoError(t, err)

	mgr, err := window.NewManager(log, s, w, 4, 2, 16, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mgr.Run(gctx)
	})
	g.Go(func() error {
		poller := subscriber.NewPoller(log, b.chain, 10*time.Millisecond, 0)
		return poller.Subscribe(gctx, 16, mgr)
	})

	b.chain.tip.Store(3)

	want := "block number = 3 contract address = 0x4444444444444444444444444444444444444444"
	require.Eventually(t, func() bool {
		for _, line := range out.Lines() {
			if line == want {
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.GetLowest() == 4
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	err = g.Wait()
	require.ErrorIs(t, err, context.Canceled)
}
