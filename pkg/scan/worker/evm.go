package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethereumapi "github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"github.com/deploytrack/deploytrack/internal/chainclient"
	"github.com/deploytrack/deploytrack/pkg/deployment"
	"github.com/deploytrack/deploytrack/pkg/metrics"
	"github.com/deploytrack/deploytrack/pkg/sink"
)

// EVMWorker fetches one block, extracts the contract deployments from its
// receipts and hands them to the sink.
type EVMWorker struct {
	client  chainclient.ChainClient
	sink    sink.Sink
	chainID uint64
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	// Optional cap on how long a single receipt sweep may take.
	receiptTimeout time.Duration
}

var _ Worker = (*EVMWorker)(nil)

// Option configures the EVMWorker.
type Option func(*EVMWorker)

// WithMetrics enables metrics collection for the worker.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *EVMWorker) {
		w.metrics = m
	}
}

// WithReceiptTimeout bounds the receipt sweep for a single block.
func WithReceiptTimeout(d time.Duration) Option {
	return func(w *EVMWorker) {
		w.receiptTimeout = d
	}
}

// NewEVMWorker creates a worker bound to one chain and one sink.
func NewEVMWorker(
	client chainclient.ChainClient,
	s sink.Sink,
	chainID uint64,
	log *zap.SugaredLogger,
	opts ...Option,
) (*EVMWorker, error) {
	if client == nil {
		return nil, errors.New("invalid chain client: must not be nil")
	}
	if s == nil {
		return nil, errors.New("invalid sink: must not be nil")
	}
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}

	w := &EVMWorker{
		client:  client,
		sink:    s,
		chainID: chainID,
		log:     log,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Process fetches the block at height, sweeps its receipts for contract
// creations and writes the found deployments to the sink.
//
// An absent block and an absent receipt are both treated as "nothing to do"
// for that item: the block is marked done and the scan continues. Transport
// and sink errors are returned so the scheduler retries the height.
func (w *EVMWorker) Process(ctx context.Context, height uint64) error {
	start := time.Now()
	defer func() {
		w.metrics.ObserveBlockProcessingDuration(time.Since(start).Seconds())
	}()

	block, err := w.client.BlockByNumber(ctx, height)
	if err != nil {
		if errors.Is(err, ethereumapi.NotFound) {
			w.metrics.IncError(metrics.ErrTypeBlockNotFound)
			w.log.Debugw("block absent, skipping", "height", height)
			return nil
		}
		return fmt.Errorf("fetch block %d: %w", height, err)
	}

	if len(block.Transactions()) == 0 {
		w.metrics.IncEmptyBlocks()
		w.log.Debugw("empty block", "height", height)
		return nil
	}

	receiptCtx := ctx
	if w.receiptTimeout > 0 {
		var cancel context.CancelFunc
		receiptCtx, cancel = context.WithTimeout(ctx, w.receiptTimeout)
		defer cancel()
	}

	receiptStart := time.Now()
	w.metrics.IncReceiptFetchInFlight()
	receipts, err := w.client.BlockReceipts(receiptCtx, block)
	w.metrics.DecReceiptFetchInFlight()
	w.metrics.RecordReceiptFetch(err, time.Since(receiptStart).Seconds())
	if err != nil {
		return fmt.Errorf("fetch receipts for block %d: %w", height, err)
	}

	var deployments []*deployment.Deployment
	for i, receipt := range receipts {
		if receipt == nil {
			// Receipt no longer available; skip this transaction only.
			w.log.Debugw("receipt absent, skipping transaction",
				"height", height,
				"tx", block.Transactions()[i].Hash().Hex(),
			)
			continue
		}
		d, err := deployment.FromReceipt(w.chainID, block, block.Transactions()[i], receipt)
		if err != nil {
			return fmt.Errorf("extract deployment from block %d tx %d: %w", height, i, err)
		}
		if d == nil {
			continue
		}
		deployments = append(deployments, d)
	}

	if len(deployments) > 0 {
		if err := w.sink.Write(ctx, deployments); err != nil {
			return fmt.Errorf("write deployments for block %d: %w", height, err)
		}
		w.metrics.AddDeploymentsFound(len(deployments))
	}

	w.log.Debugw("processed block",
		"height", height,
		"hash", block.Hash().Hex(),
		"txs", len(block.Transactions()),
		"deployments", len(deployments),
	)

	return nil
}
