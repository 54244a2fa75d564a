package worker

import (
	"context"
)

// Worker processes a single block height.
type Worker interface {
	Process(ctx context.Context, height uint64) error
}
