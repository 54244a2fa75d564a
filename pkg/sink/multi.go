package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/deploytrack/deploytrack/pkg/deployment"
)

// Multi fans a write out to several sinks. A write succeeds only when every
// underlying sink accepts it, so a failed block stays unprocessed in the
// window and is retried against all sinks.
type Multi struct {
	sinks []Sink
}

var _ Sink = (*Multi)(nil)

// NewMulti combines the given sinks. With a single sink it is returned as is.
func NewMulti(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &Multi{sinks: sinks}
}

func (m *Multi) Write(ctx context.Context, deployments []*deployment.Deployment) error {
	for i, s := range m.sinks {
		if err := s.Write(ctx, deployments); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
