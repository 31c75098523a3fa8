// Package indicators provides the pure price-derived helpers strategies
// use for entries, stops, targets and regime scoring: SMA, EMA, RSI, ATR
// and ADX. Grounded on the teacher's internal/indicators/{ma,rsi}.go
// (single latest-value shape) generalized to full series per
// original_source/src/indicators.rs, which every formula below mirrors.
package indicators

import "math"

// SMA returns the simple moving average of the last period values, 0 if
// there isn't enough data. Matches the teacher's internal/indicators/ma.go.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// SMASeries returns the SMA at every index, using math.NaN() where the
// window isn't yet full (the Go analog of the source's Option<f64>).
func SMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i + 1 - period; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// EMASeries returns the exponential moving average series, seeded by the
// SMA of the first `period` values exactly as original_source/src/indicators.rs
// does.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || period <= 0 {
		return out
	}
	multiplier := 2.0 / (float64(period) + 1.0)
	var emaVal float64
	haveEMA := false

	for i, v := range values {
		switch {
		case i < period-1:
			out[i] = math.NaN()
		case i == period-1:
			sum := 0.0
			for j := 0; j < period; j++ {
				sum += values[j]
			}
			emaVal = sum / float64(period)
			haveEMA = true
			out[i] = emaVal
		default:
			if haveEMA {
				emaVal = (v-emaVal)*multiplier + emaVal
				out[i] = emaVal
			} else {
				out[i] = math.NaN()
			}
		}
	}
	return out
}

// trueRange computes the classic true-range series from OHLC slices.
func trueRange(high, low, close []float64) []float64 {
	n := len(high)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATRSeries returns Wilder-style ATR (EMA of true range) over period.
func ATRSeries(high, low, close []float64, period int) []float64 {
	tr := trueRange(high, low, close)
	return EMASeries(tr, period)
}

// ATR returns the last available ATR value, or fallback if not yet valid.
func ATR(high, low, close []float64, period int, fallback float64) float64 {
	series := ATRSeries(high, low, close, period)
	if len(series) == 0 {
		return fallback
	}
	last := series[len(series)-1]
	if math.IsNaN(last) {
		return fallback
	}
	return last
}

// dmi computes the +DI/-DI EMA series used by ADX.
func dmi(high, low []float64, period int) (plusDI, minusDI []float64) {
	n := len(high)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}
	return EMASeries(plusDM, period), EMASeries(minusDM, period)
}

// ADXSeries returns the Average Directional Index series.
func ADXSeries(high, low, close []float64, period int) []float64 {
	plusDI, minusDI := dmi(high, low, period)
	atrValues := ATRSeries(high, low, close, period)

	n := len(high)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		pdi, mdi, atrVal := plusDI[i], minusDI[i], atrValues[i]
		if math.IsNaN(pdi) || math.IsNaN(mdi) || math.IsNaN(atrVal) || atrVal <= 0 {
			dx[i] = 0
			continue
		}
		pdiNorm := pdi / atrVal * 100.0
		mdiNorm := mdi / atrVal * 100.0
		sum := pdiNorm + mdiNorm
		if sum > 0 {
			dx[i] = math.Abs(pdiNorm-mdiNorm) / sum * 100.0
		}
	}
	return EMASeries(dx, period)
}

// RSI computes a basic Relative Strength Index using the last period
// changes, matching the teacher's internal/indicators/rsi.go shape.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}
	gain, loss := 0.0, 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

// RSISeries returns the smoothed RSI series (EMA of gains/losses), per
// original_source/src/indicators.rs's rsi().
func RSISeries(values []float64, period int) []float64 {
	n := len(values)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}
	avgGains := EMASeries(gains, period)
	avgLosses := EMASeries(losses, period)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(avgGains[i]) || math.IsNaN(avgLosses[i]) {
			out[i] = math.NaN()
			continue
		}
		if avgLosses[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGains[i] / avgLosses[i]
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}
