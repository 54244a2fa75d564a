package sink

import (
	"context"

	"github.com/deploytrack/deploytrack/pkg/deployment"
)

// Sink persists contract deployments discovered by the scanner.
type Sink interface {
	// Write records the deployments found in one block. An empty slice is a
	// no-op. Implementations must be safe for concurrent use.
	Write(ctx context.Context, deployments []*deployment.Deployment) error

	// Close flushes and releases the sink.
	Close() error
}
