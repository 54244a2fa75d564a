package subscriber

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deploytrack/deploytrack/internal/chainclient"
	"github.com/deploytrack/deploytrack/pkg/window"
)

// Poller periodically asks the node for its tip height and submits every
// height up to tip minus the confirmation margin. It is the fallback for
// plain HTTP transports without subscription support.
type Poller struct {
	log           *zap.SugaredLogger
	client        chainclient.ChainClient
	interval      time.Duration
	confirmations uint64

	// Highest height submitted so far; valid only once submitted is set, so
	// height 0 is submitted exactly once like any other height.
	lastSubmitted uint64
	submitted     bool
}

var _ Subscriber = (*Poller)(nil)

func NewPoller(
	log *zap.SugaredLogger,
	client chainclient.ChainClient,
	interval time.Duration,
	confirmations uint64,
) *Poller {
	return &Poller{
		log:           log,
		client:        client,
		interval:      interval,
		confirmations: confirmations,
	}
}

// Subscribe is a BLOCKING function. It polls the tip height on the configured
// interval and submits confirmed heights to the manager. Transient poll
// failures are logged and retried on the next tick.
func (s *Poller) Subscribe(ctx context.Context, _ int, manager *window.Manager) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			tip, err := s.client.BlockNumber(ctx)
			if err != nil {
				s.log.Warnw("failed to poll tip height", "error", err)
				continue
			}
			if tip < s.confirmations {
				continue
			}
			confirmed := tip - s.confirmations
			if s.submitted && confirmed <= s.lastSubmitted {
				continue
			}
			s.log.Debugw("polled new tip", "tip", tip, "confirmed", confirmed)
			if !manager.SubmitHeight(confirmed) {
				s.log.Debugw("dropped polled height; queued for backfill", "height", confirmed)
			}
			s.lastSubmitted = confirmed
			s.submitted = true
		}
	}
}
