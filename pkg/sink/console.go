package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/deploytrack/deploytrack/pkg/deployment"
	"github.com/deploytrack/deploytrack/pkg/metrics"
)

const consoleSinkName = "console"

// Console writes one line per deployment to an io.Writer (stdout in the CLI).
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	metrics *metrics.Metrics
}

var _ Sink = (*Console)(nil)

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer, m *metrics.Metrics) *Console {
	return &Console{out: out, metrics: m}
}

func (c *Console) Write(_ context.Context, deployments []*deployment.Deployment) error {
	if len(deployments) == 0 {
		return nil
	}
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range deployments {
		if _, err := fmt.Fprintln(c.out, d.String()); err != nil {
			c.metrics.RecordSinkWrite(consoleSinkName, err, time.Since(start).Seconds())
			return fmt.Errorf("write deployment line: %w", err)
		}
	}

	c.metrics.RecordSinkWrite(consoleSinkName, nil, time.Since(start).Seconds())
	return nil
}

func (c *Console) Close() error {
	return nil
}
