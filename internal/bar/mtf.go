package bar

// MultiTimeframeView maps a timeframe name to the slice of candles
// available up to and including the current primary bar's timestamp,
// plus the name of the designated primary timeframe. Secondary slices are
// built so no partially-formed higher-timeframe bar is ever exposed.
type MultiTimeframeView struct {
	Primary     string
	timeframes  map[string][]Candle
}

// NewMultiTimeframeView creates an empty view for the given primary
// timeframe name.
func NewMultiTimeframeView(primary string) *MultiTimeframeView {
	return &MultiTimeframeView{Primary: primary, timeframes: make(map[string][]Candle)}
}

// AddTimeframe stores the slice of candles for a given timeframe name.
func (v *MultiTimeframeView) AddTimeframe(name string, candles []Candle) {
	v.timeframes[name] = candles
}

// Get returns the candle slice for a timeframe, if present.
func (v *MultiTimeframeView) Get(name string) ([]Candle, bool) {
	c, ok := v.timeframes[name]
	return c, ok
}

// PrimaryCandles returns the primary timeframe's slice.
func (v *MultiTimeframeView) PrimaryCandles() []Candle {
	return v.timeframes[v.Primary]
}

// Timeframes lists the timeframe names present in the view.
func (v *MultiTimeframeView) Timeframes() []string {
	names := make([]string, 0, len(v.timeframes))
	for name := range v.timeframes {
		names = append(names, name)
	}
	return names
}

// AlignSecondary returns the slice of a secondary timeframe's candles
// ending at the largest index whose timestamp is <= asOf, bounded to at
// most lookback candles. This guarantees no look-ahead: the secondary bar
// has fully closed by the time the primary bar references it.
func AlignSecondary(secondary []Candle, asOf Candle, lookback int) []Candle {
	end := 0
	for i, c := range secondary {
		if !c.Timestamp.After(asOf.Timestamp) {
			end = i + 1
		} else {
			break
		}
	}
	if end == 0 {
		return nil
	}
	start := end - lookback
	if start < 0 {
		start = 0
	}
	return secondary[start:end]
}
