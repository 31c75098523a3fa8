package risk

import "sync"

// TrailingStopTracker ratchets a stop level in the trade's favor as price
// moves, one instance per open position. Grounded on the teacher's
// internal/risk/stoploss.go StopLossManager, generalized from a LONG/SHORT
// string side to oms.Side-shaped booleans and from percentage-only
// offsets to the ATR-distance trailing spec.md §4.F describes.
type TrailingStopTracker struct {
	mu        sync.RWMutex
	positions map[string]*trailingState
}

type trailingState struct {
	isLong        bool
	stopLevel     float64
	activationPct float64 // fraction of distance-to-target that arms trailing
	trailDistance float64 // absolute price distance kept behind the water mark
	entryPrice    float64
	targetPrice   float64
	highWaterMark float64
	armed         bool
}

// NewTrailingStopTracker creates an empty tracker.
func NewTrailingStopTracker() *TrailingStopTracker {
	return &TrailingStopTracker{positions: make(map[string]*trailingState)}
}

// Track begins trailing-stop bookkeeping for key (typically the symbol),
// given the initial stop, the take-profit target, the entry price, and
// the ATR-scaled distance the stop should trail once armed.
func (t *TrailingStopTracker) Track(key string, isLong bool, entryPrice, initialStop, target, trailDistance, activationPct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions[key] = &trailingState{
		isLong:        isLong,
		stopLevel:     initialStop,
		activationPct: activationPct,
		trailDistance: trailDistance,
		entryPrice:    entryPrice,
		targetPrice:   target,
		highWaterMark: entryPrice,
	}
}

// Update ratchets the stop given the latest price, arming the trail once
// price has moved activationPct of the way from entry to target, then
// returns the current stop level.
func (t *TrailingStopTracker) Update(key string, price float64) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.positions[key]
	if !ok {
		return 0, false
	}

	totalDistance := s.targetPrice - s.entryPrice
	if !s.isLong {
		totalDistance = s.entryPrice - s.targetPrice
	}
	progress := price - s.entryPrice
	if !s.isLong {
		progress = s.entryPrice - price
	}
	if totalDistance > 0 && progress/totalDistance >= s.activationPct {
		s.armed = true
	}

	if s.isLong {
		if price > s.highWaterMark {
			s.highWaterMark = price
		}
		if s.armed {
			candidate := s.highWaterMark - s.trailDistance
			if candidate > s.stopLevel {
				s.stopLevel = candidate
			}
		}
	} else {
		if price < s.highWaterMark {
			s.highWaterMark = price
		}
		if s.armed {
			candidate := s.highWaterMark + s.trailDistance
			if candidate < s.stopLevel {
				s.stopLevel = candidate
			}
		}
	}

	return s.stopLevel, true
}

// Stop returns the current stop level for key, if tracked.
func (t *TrailingStopTracker) Stop(key string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.positions[key]
	if !ok {
		return 0, false
	}
	return s.stopLevel, true
}

// Untrack removes a closed position from the tracker.
func (t *TrailingStopTracker) Untrack(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.positions, key)
}

// Ratchet records a strategy-computed trailing-stop candidate for key and
// returns the tightest (never-loosening) level seen so far on that side.
// Unlike Track/Update, which derive the candidate themselves from a
// high-water mark and trail distance, Ratchet takes a candidate already
// computed by the strategy (as MACrossStrategy/RSIStrategy do from their
// own ATR/regime logic) and applies only the one-directional invariant.
func (t *TrailingStopTracker) Ratchet(key string, isLong bool, candidate float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.positions[key]
	if !ok {
		t.positions[key] = &trailingState{isLong: isLong, stopLevel: candidate}
		return candidate
	}
	if isLong && candidate > s.stopLevel {
		s.stopLevel = candidate
	} else if !isLong && candidate < s.stopLevel {
		s.stopLevel = candidate
	}
	return s.stopLevel
}
