package window

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInvalidWatermark = errors.New(
		"invalid watermark update: new watermark violates invariants",
	)
	ErrOutOfWindow = errors.New("block height outside current window")
)

// State is a thread-safe in-memory store for the sliding window state
// (watermarks, processed set, inflight set and failure counters).
type State struct {
	mu        sync.Mutex
	lowest    uint64              // lowest unprocessed block watermark.
	highest   uint64              // highest known block watermark.
	processed map[uint64]struct{} // set of processed block heights.

	// Heights currently being processed to avoid duplicate work.
	inflight   map[uint64]struct{}
	inflightMu sync.Mutex

	// Per-height failure counters; trip threshold shuts down Run.
	failCounts map[uint64]int
	failMu     sync.Mutex
}

// NewState creates a new in-memory State with the given initial watermarks.
// An empty window (highest == lowest-1) is valid and means no work yet; the
// window opens once SetHighest moves the tip forward.
func NewState(initialLowest, initialHighest uint64) (*State, error) {
	if initialHighest+1 < initialLowest {
		return nil, fmt.Errorf(
			"%w: highest < lowest-1: %d < %d",
			ErrInvalidWatermark,
			initialHighest,
			initialLowest-1,
		)
	}
	return &State{
		lowest:  initialLowest,
		highest: initialHighest,
		// Sparse set is memory-friendly for out-of-order processing in wide windows.
		processed:  make(map[uint64]struct{}, 1024),
		inflight:   make(map[uint64]struct{}),
		failCounts: make(map[uint64]int),
	}, nil
}

// GetLowest returns the lowest unprocessed block height.
func (s *State) GetLowest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lowest
}

// GetHighest returns the highest known block height.
func (s *State) GetHighest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highest
}

// Window returns the current window boundaries.
func (s *State) Window() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lowest, s.highest
}

// SetHighest sets the highest known block height.
// The new highest must not fall below lowest-1 (the backfill-complete rest
// position of the lowest watermark).
func (s *State) SetHighest(newHighest uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newHighest+1 < s.lowest {
		return fmt.Errorf(
			"%w: new highest < lowest-1: %d < %d",
			ErrInvalidWatermark,
			newHighest,
			s.lowest-1,
		)
	}
	s.highest = newHighest
	return nil
}

// ResetLowest sets the lowest unprocessed block height explicitly (used when
// resuming from a checkpoint). It may move the lowest forward or backward and
// drops all processed marks strictly below the new lowest.
func (s *State) ResetLowest(newLowest uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newLowest > s.highest {
		return fmt.Errorf(
			"%w: new lowest > highest: %d > %d",
			ErrInvalidWatermark,
			newLowest,
			s.highest,
		)
	}
	s.lowest = newLowest

	// Processed marks below lowest are committed and no longer needed.
	for h := range s.processed {
		if h < newLowest {
			delete(s.processed, h)
		}
	}
	return nil
}

// MarkProcessed marks a block as processed.
func (s *State) MarkProcessed(h uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Heights strictly below lowest are implicitly processed already.
	if h < s.lowest {
		return nil
	}
	if h > s.highest {
		return fmt.Errorf("%w: %d > highest %d", ErrOutOfWindow, h, s.highest)
	}
	s.processed[h] = struct{}{}
	return nil
}

// IsProcessed returns true if a block is recorded as processed.
// Block heights below the current lowest are considered committed and
// implicitly processed.
func (s *State) IsProcessed(h uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h < s.lowest {
		return true
	}
	_, ok := s.processed[h]
	return ok
}

// ProcessedCount returns the number of heights marked processed but not yet
// committed by a window advance.
func (s *State) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// AdvanceLowest slides lowest forward while contiguous block heights starting
// from the current lowest are processed. Returns the new lowest and the number
// of heights committed. Idempotent.
func (s *State) AdvanceLowest() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original := s.lowest
	for s.lowest <= s.highest {
		if _, ok := s.processed[s.lowest]; ok {
			delete(s.processed, s.lowest)
			s.lowest++
			continue
		}
		break
	}
	return s.lowest, s.lowest - original
}

// Complete returns true when every height in the window has been processed
// and nothing is inflight. The lowest watermark rests at highest+1 then.
func (s *State) Complete() bool {
	s.inflightMu.Lock()
	inflight := len(s.inflight)
	s.inflightMu.Unlock()
	if inflight > 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lowest == s.highest+1
}

// GetFailureCount returns the current failure count for a height.
func (s *State) GetFailureCount(h uint64) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failCounts[h]
}

// IncrementFailureCount increments the failure count for a height and returns
// the new count.
func (s *State) IncrementFailureCount(h uint64) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failCounts[h]++
	return s.failCounts[h]
}

// ResetFailureCount resets the failure count for a height.
func (s *State) ResetFailureCount(h uint64) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	delete(s.failCounts, h)
}

// IsInflight returns true if a height is being processed.
func (s *State) IsInflight(h uint64) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	_, ok := s.inflight[h]
	return ok
}

// TrySetInflight atomically claims a height for processing. It returns false
// when the height is outside the window, already processed or already claimed.
func (s *State) TrySetInflight(h uint64) bool {
	if s.IsProcessed(h) {
		return false
	}

	s.mu.Lock()
	inWindow := h >= s.lowest && h <= s.highest
	s.mu.Unlock()
	if !inWindow {
		return false
	}

	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[h]; ok {
		return false
	}
	s.inflight[h] = struct{}{}
	return true
}

// UnsetInflight removes a height from the inflight set.
func (s *State) UnsetInflight(h uint64) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, h)
}

// FindNextUnclaimedHeight finds the next height in the [lowest..highest]
// window that is neither processed nor inflight.
func (s *State) FindNextUnclaimedHeight() (uint64, bool) {
	lowest, highest := s.Window()
	for h := lowest; h <= highest; h++ {
		if s.IsProcessed(h) {
			continue
		}
		if s.IsInflight(h) {
			continue
		}
		return h, true
	}
	return 0, false
}
