package checkpointer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deploytrack/deploytrack/pkg/window"
)

// Checkpointer abstracts checkpoint persistence across data stores. A checkpoint records the
// lowest unprocessed block height for a chain so a scan can resume where it left off after a
// restart or failure.
type Checkpointer interface {
	// Initialize ensures the underlying storage is ready (creates tables, schemas, etc.).
	// Must be idempotent.
	Initialize(ctx context.Context) error

	// Write persists a checkpoint for the chain. The stored timestamp is the current Unix
	// timestamp in seconds.
	Write(ctx context.Context, chainID uint64, lowestUnprocessed uint64) error

	// Read retrieves the latest checkpoint for the chain. If no checkpoint exists, exists is
	// false and lowestUnprocessed is 0.
	Read(ctx context.Context, chainID uint64) (lowestUnprocessed uint64, exists bool, err error)
}

// Start periodically persists the window's lowest watermark to durable storage. On context
// cancellation it makes one final best-effort write before returning nil; checkpoint writes
// that fail after all retries return an error.
func Start(
	ctx context.Context,
	log *zap.SugaredLogger,
	s *window.State,
	checkpointer Checkpointer,
	cfg Config,
	chainID uint64,
) error {
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			writeShutdownCheckpoint(log, s, checkpointer, cfg, chainID)
			return nil

		case <-t.C:
			lowest := s.GetLowest()

			var lastErr error
			for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
				if ctx.Err() != nil {
					writeShutdownCheckpoint(log, s, checkpointer, cfg, chainID)
					return nil
				}

				writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
				lastErr = checkpointer.Write(writeCtx, chainID, lowest)
				cancel()

				if lastErr == nil {
					break
				}

				if ctx.Err() != nil {
					writeShutdownCheckpoint(log, s, checkpointer, cfg, chainID)
					return nil
				}

				if attempt < cfg.MaxRetries {
					select {
					case <-time.After(cfg.RetryBackoff):
					case <-ctx.Done():
						writeShutdownCheckpoint(log, s, checkpointer, cfg, chainID)
						return nil
					}
				}
			}

			if lastErr != nil {
				return fmt.Errorf("failed to write checkpoint (lowest: %d) after %d attempts: %w",
					lowest, cfg.MaxRetries+1, lastErr)
			}
		}
	}
}

// writeShutdownCheckpoint makes a final best-effort write so the latest progress survives a
// graceful shutdown. The parent context is already cancelled, so a fresh one is used.
func writeShutdownCheckpoint(
	log *zap.SugaredLogger,
	s *window.State,
	checkpointer Checkpointer,
	cfg Config,
	chainID uint64,
) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()

	lowest := s.GetLowest()
	if err := checkpointer.Write(ctx, chainID, lowest); err != nil {
		log.Warnw("failed to write shutdown checkpoint", "lowest", lowest, "error", err)
	}
}
