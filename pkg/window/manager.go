package window

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/deploytrack/deploytrack/pkg/metrics"
	"github.com/deploytrack/deploytrack/pkg/scan/worker"
)

// ErrMaxFailuresExceeded is returned by Run when a single height has failed
// more times than the configured threshold.
var ErrMaxFailuresExceeded = errors.New("max failures exceeded")

type Manager struct {
	log    *zap.SugaredLogger
	state  *State
	worker worker.Worker

	// Limits total concurrent workers (both realtime and backfill).
	workerSem *semaphore.Weighted
	// Caps how many of the concurrent workers may be backfill tasks.
	backfillSem *semaphore.Weighted

	// Input for new heights (send-only by callers).
	heightChan chan uint64
	// Wake-up signal to re-run scheduling; buffered (size 1) to coalesce signals.
	workReady chan struct{}

	// Failure threshold for a height; when reached, the manager receives the
	// height on failureChan and shuts down.
	maxFailures int
	failureChan chan uint64

	// When set, Run returns nil once the window is fully processed instead of
	// waiting for more heights. Used by bounded scans.
	exitWhenComplete bool

	metrics *metrics.Metrics // nil if metrics disabled
}

// Option configures the Manager.
type Option func(*Manager)

// WithMetrics enables metrics collection for the manager.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithExitWhenComplete makes Run return nil once every height in the window
// has been processed and nothing is inflight.
func WithExitWhenComplete() Option {
	return func(mgr *Manager) {
		mgr.exitWhenComplete = true
	}
}

// NewManager creates a Manager and returns an error if arguments are invalid.
// Constraints: concurrency>0; 0<backfillPriority<=concurrency;
// heightChanCapacity>0; maxFailures>0.
func NewManager(
	log *zap.SugaredLogger,
	s *State,
	w worker.Worker,
	concurrency, backfillPriority uint64,
	heightChanCapacity, maxFailures int,
	opts ...Option,
) (*Manager, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}

	if s == nil {
		return nil, errors.New("invalid state: must not be nil")
	}

	if w == nil {
		return nil, errors.New("invalid worker: must not be nil")
	}

	if concurrency == 0 {
		return nil, errors.New("invalid concurrency: must be greater than 0")
	}
	if backfillPriority == 0 || backfillPriority > concurrency {
		return nil, errors.New(
			"invalid backfill priority: must be greater than 0 and not exceed concurrency",
		)
	}
	if heightChanCapacity <= 0 {
		return nil, errors.New("invalid height channel capacity: must be greater than 0")
	}

	if maxFailures <= 0 {
		return nil, errors.New("invalid max failures: must be greater than 0")
	}

	m := &Manager{
		log:         log,
		state:       s,
		worker:      w,
		workerSem:   semaphore.NewWeighted(int64(concurrency)),
		backfillSem: semaphore.NewWeighted(int64(backfillPriority)),
		heightChan:  make(chan uint64, heightChanCapacity),
		workReady:   make(chan struct{}, 1),
		maxFailures: maxFailures,
		failureChan: make(chan uint64, 1),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// SubmitHeight extends the window to include h and queues it for low-latency
// processing. It returns true if the height was queued, false if the height
// channel is full or the height is invalid; in the former case backfill will
// still pick the height up from the window scan.
func (m *Manager) SubmitHeight(h uint64) bool {
	if h > m.state.GetHighest() {
		if err := m.state.SetHighest(h); err != nil {
			m.log.Debugw("failed to set highest", "height", h, "error", err)
			m.metrics.IncError(metrics.ErrTypeInvalidWatermark)
			return false
		}
	}

	select {
	case m.heightChan <- h:
		return true
	default:
		return false
	}
}

// Run executes the scheduling loop until shutdown. It performs backfill work
// while there is capacity and an unprocessed window, and handles realtime
// heights concurrently, distributing capacity according to backfillPriority.
//
// It returns when ctx is done, when the failure threshold is exceeded for a
// height, or (with WithExitWhenComplete) when the window is fully processed.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		// Aggressive backfill fill (non-blocking)
		for {
			next, ok := m.state.FindNextUnclaimedHeight()
			if !ok {
				break
			}
			ok = m.tryAcquireBackfill()
			if !ok {
				break
			}
			if ok := m.state.TrySetInflight(next); !ok {
				// Height left the window or was claimed since the scan.
				m.backfillSem.Release(1)
				m.workerSem.Release(1)
				break
			}
			go m.process(ctx, next, true)
		}

		if m.exitWhenComplete && m.state.Complete() {
			return nil
		}

		// Blocking wait for event (backfill, realtime, failure)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-m.failureChan:
			return fmt.Errorf(
				"%w: block %d failed after %d attempts",
				ErrMaxFailuresExceeded,
				h,
				m.state.GetFailureCount(h),
			)
		case h := <-m.heightChan:
			m.handleNewHeight(ctx, h)
		case <-m.workReady:
			// A worker finished or watermarks changed; loop restarts
		}
	}
}

// handleNewHeight dispatches a worker for a freshly announced height when
// capacity allows. Realtime work does not consume backfill priority. With no
// free slot the height is dropped; backfill picks it up via the window scan.
func (m *Manager) handleNewHeight(ctx context.Context, h uint64) {
	if ok := m.tryAcquireWorker(); ok {
		if ok := m.state.TrySetInflight(h); !ok {
			m.workerSem.Release(1)
			return
		}
		go m.process(ctx, h, false)
	}
}

// process is the main worker function for backfill and realtime heights.
// It processes the block height, updates the window state and releases the
// permits acquired by the scheduler.
func (m *Manager) process(ctx context.Context, h uint64, isBackfill bool) {
	defer func() {
		if isBackfill {
			m.backfillSem.Release(1)
		}
		m.workerSem.Release(1)
		m.state.UnsetInflight(h)
		m.signalWorkReady()
	}()

	if err := m.worker.Process(ctx, h); err != nil {
		m.log.Warnw("failed processing block height", "height", h, "error", err)
		m.handleFailure(h)
		return
	}

	// Mark processed and attempt to advance lowest
	if err := m.state.MarkProcessed(h); err != nil {
		m.log.Warnw("failed to mark processed", "height", h, "error", err)
		m.metrics.IncError(metrics.ErrTypeOutOfWindow)
		m.handleFailure(h)
		return
	}

	// Attempt to slide lowest forward; idempotent if not contiguous
	newLowest, committed := m.state.AdvanceLowest()
	if committed > 0 {
		m.metrics.CommitBlocks(committed, newLowest, m.state.GetHighest(), m.state.ProcessedCount())
	}
	m.state.ResetFailureCount(h)
}

// handleFailure increments the failure count for a height and signals
// shutdown when the threshold is reached.
func (m *Manager) handleFailure(h uint64) {
	failCount := m.state.IncrementFailureCount(h)
	if failCount >= m.maxFailures {
		select {
		case m.failureChan <- h:
		default:
		}
	}
}

// tryAcquireBackfill tries to acquire a backfill permit and a worker permit.
// It returns true only if both permits are acquired.
func (m *Manager) tryAcquireBackfill() bool {
	acquired := m.backfillSem.TryAcquire(1)
	if !acquired {
		return false
	}

	acquired = m.workerSem.TryAcquire(1)
	if !acquired {
		m.backfillSem.Release(1)
		return false
	}

	return true
}

// tryAcquireWorker tries to acquire only a worker permit (realtime path).
func (m *Manager) tryAcquireWorker() bool {
	return m.workerSem.TryAcquire(1)
}

// signalWorkReady wakes up the scheduling loop.
func (m *Manager) signalWorkReady() {
	select {
	case m.workReady <- struct{}{}:
	default:
	}
}
