// Package window implements a concurrent scheduler that processes blocks
// within a sliding window of heights. It lets a scanner catch up historical
// ranges (backfill) while also ingesting newly announced blocks (realtime)
// under bounded concurrency and without duplicating work.
//
// The active window is [lowest..highest], inclusive. The lowest watermark is
// the lowest height not yet fully processed; the highest watermark is the
// highest height known so far. The invariant highest >= lowest - 1 holds: when
// every height in the window has been processed, lowest rests at highest+1.
//
// Components
//   - State: a thread-safe in-memory store of the window watermarks, the set
//     of processed heights, the set of inflight heights, and per-height
//     failure counters. It advances the lowest watermark when contiguous
//     processed heights allow the window to slide.
//   - Manager: the scheduler. It scans the window for the next unclaimed
//     height and dispatches workers while respecting total concurrency and a
//     backfill priority relative to realtime work. Realtime heights arrive
//     via SubmitHeight and are processed with low latency when capacity is
//     available; otherwise backfill picks them up from the window scan.
//   - worker.Worker: the unit of work that processes a single height.
//
// On worker success the manager marks the height processed, slides the lowest
// watermark forward if contiguous, and resets the height's failure counter.
// On failure it increments the counter; when the counter reaches maxFailures
// the run stops with ErrMaxFailuresExceeded.
//
// A manager built with WithExitWhenComplete returns nil from Run once every
// height in the window has been processed and no work is inflight. This is
// the bounded-scan mode; the default mode runs until the context is done.
package window
