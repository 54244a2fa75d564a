package sink

import (
	"context"
	"time"

	"github.com/deploytrack/deploytrack/pkg/data/clickhouse/deployments"
	"github.com/deploytrack/deploytrack/pkg/deployment"
	"github.com/deploytrack/deploytrack/pkg/metrics"
)

// ClickHouse persists deployments to a ClickHouse table via the deployments repository.
type ClickHouse struct {
	repo    deployments.Repository
	closer  func() error
	metrics *metrics.Metrics
}

// NewClickHouse wraps a deployments repository as a Sink. closer is invoked on Close and
// may be nil when the caller owns the underlying connection.
func NewClickHouse(repo deployments.Repository, closer func() error, m *metrics.Metrics) *ClickHouse {
	return &ClickHouse{repo: repo, closer: closer, metrics: m}
}

func (s *ClickHouse) Write(ctx context.Context, batch []*deployment.Deployment) error {
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := s.repo.WriteDeployments(ctx, batch)
	s.metrics.RecordSinkWrite("clickhouse", err, time.Since(start).Seconds())
	return err
}

func (s *ClickHouse) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
