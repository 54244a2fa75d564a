package window

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deploytrack/deploytrack/pkg/metrics"
)

// StartGapWatchdog periodically compares the window watermarks and warns when
// the unprocessed gap exceeds maxGap. It also pushes the watermarks to the
// metrics so the window is observable even while no blocks commit.
func StartGapWatchdog(
	ctx context.Context,
	log *zap.SugaredLogger,
	s *State,
	m *metrics.Metrics,
	interval time.Duration,
	maxGap uint64,
) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lowest, highest := s.Window()
			// When backfill is complete, lowest rests at highest+1 (next
			// unprocessed block). Any larger difference indicates
			// inconsistent state.
			var gap uint64
			switch {
			case highest >= lowest:
				gap = highest - lowest
			case lowest == highest+1:
				gap = 0
			default:
				gap = 0
				log.Warnw("state inconsistency in gap watchdog: lowest much greater than highest",
					"highest", highest, "lowest", lowest)
			}
			m.UpdateWindowMetrics(lowest, highest, s.ProcessedCount())
			if gap > maxGap {
				log.Warnw("gap too large", "gap", gap, "highest", highest, "lowest", lowest)
			}
		}
	}
}
