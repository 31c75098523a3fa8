package bar

import (
	"sort"
	"time"
)

// AlignPolicy selects how multi-symbol alignment handles a timestamp that
// is missing for one or more symbols. See SPEC_FULL.md §4.A / DESIGN.md
// "Open Question decisions" for why Intersection is the default.
type AlignPolicy int

const (
	// AlignPolicyIntersection drops timestamps not present for every
	// symbol. The default: conservative, never fabricates OHLC data.
	AlignPolicyIntersection AlignPolicy = iota
	// AlignPolicyForwardFill carries the previous bar forward (flat OHLC
	// at the previous close, zero volume) for symbols missing a
	// timestamp that other symbols have.
	AlignPolicyForwardFill
)

// SymbolSeries is one symbol's unaligned candle series, keyed by symbol.
type SymbolSeries struct {
	Symbol  Symbol
	Candles []Candle
}

// AlignedSeries is a symbol's candle series after alignment, its Candles
// in timestamp order on the shared axis. Under forward-fill, axis
// timestamps before the symbol's first candle have no entry.
type AlignedSeries struct {
	Symbol  Symbol
	Candles []Candle
}

// AlignSymbols aligns a set of per-symbol series onto a common timestamp
// axis according to policy. Returns the aligned per-symbol series plus
// the shared timestamp axis, in non-decreasing order.
func AlignSymbols(series []SymbolSeries, policy AlignPolicy) ([]AlignedSeries, []time.Time) {
	if len(series) == 0 {
		return nil, nil
	}

	switch policy {
	case AlignPolicyForwardFill:
		return alignForwardFill(series)
	default:
		return alignIntersection(series)
	}
}

func alignIntersection(series []SymbolSeries) ([]AlignedSeries, []time.Time) {
	counts := make(map[time.Time]int)
	for _, s := range series {
		seen := make(map[time.Time]bool)
		for _, c := range s.Candles {
			if !seen[c.Timestamp] {
				seen[c.Timestamp] = true
				counts[c.Timestamp]++
			}
		}
	}

	var axis []time.Time
	byIndex := make(map[time.Time]map[Symbol]Candle)
	for _, s := range series {
		for _, c := range s.Candles {
			if counts[c.Timestamp] != len(series) {
				continue
			}
			if byIndex[c.Timestamp] == nil {
				byIndex[c.Timestamp] = make(map[Symbol]Candle)
			}
			byIndex[c.Timestamp][s.Symbol] = c
		}
	}
	for ts, m := range byIndex {
		if len(m) == len(series) {
			axis = append(axis, ts)
		}
	}
	sortTimes(axis)

	out := make([]AlignedSeries, 0, len(series))
	for _, s := range series {
		aligned := make([]Candle, 0, len(axis))
		for _, ts := range axis {
			aligned = append(aligned, byIndex[ts][s.Symbol])
		}
		out = append(out, AlignedSeries{Symbol: s.Symbol, Candles: aligned})
	}
	return out, axis
}

func alignForwardFill(series []SymbolSeries) ([]AlignedSeries, []time.Time) {
	axisSet := make(map[time.Time]bool)
	for _, s := range series {
		for _, c := range s.Candles {
			axisSet[c.Timestamp] = true
		}
	}
	axis := make([]time.Time, 0, len(axisSet))
	for ts := range axisSet {
		axis = append(axis, ts)
	}
	sortTimes(axis)

	out := make([]AlignedSeries, 0, len(series))
	for _, s := range series {
		byTS := make(map[time.Time]Candle, len(s.Candles))
		for _, c := range s.Candles {
			byTS[c.Timestamp] = c
		}

		aligned := make([]Candle, 0, len(axis))
		var prev Candle
		havePrev := false
		for _, ts := range axis {
			if c, ok := byTS[ts]; ok {
				aligned = append(aligned, c)
				prev = c
				havePrev = true
				continue
			}
			if havePrev {
				aligned = append(aligned, Candle{
					Timestamp: ts,
					Open:      prev.Close,
					High:      prev.Close,
					Low:       prev.Close,
					Close:     prev.Close,
					Volume:    0,
				})
			}
			// No prior bar to forward-fill from yet: this symbol simply
			// has no entry for this leading timestamp.
		}
		out = append(out, AlignedSeries{Symbol: s.Symbol, Candles: aligned})
	}
	return out, axis
}

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}
