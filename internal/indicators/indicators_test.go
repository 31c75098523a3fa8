package indicators

import (
	"math"
	"testing"
)

func TestSMAReturnsZeroWithInsufficientData(t *testing.T) {
	if got := SMA([]float64{1, 2}, 5); got != 0 {
		t.Fatalf("SMA = %v, want 0", got)
	}
}

func TestSMAAveragesLastPeriodValues(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := (3.0 + 4.0 + 5.0) / 3.0
	if got != want {
		t.Fatalf("SMA = %v, want %v", got, want)
	}
}

func TestEMASeriesSeedsWithSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	series := EMASeries(values, 3)
	wantSeed := (1.0 + 2.0 + 3.0) / 3.0
	if series[2] != wantSeed {
		t.Fatalf("EMASeries[2] = %v, want SMA seed %v", series[2], wantSeed)
	}
	for i := 0; i < 2; i++ {
		if !math.IsNaN(series[i]) {
			t.Fatalf("EMASeries[%d] = %v, want NaN before window fills", i, series[i])
		}
	}
}

func TestATRFallsBackWhenSeriesNotYetValid(t *testing.T) {
	high := []float64{10, 11}
	low := []float64{9, 10}
	closeP := []float64{9.5, 10.5}
	got := ATR(high, low, closeP, 14, 1.23)
	if got != 1.23 {
		t.Fatalf("ATR = %v, want fallback 1.23", got)
	}
}

func TestRSIAllGainsReturns100(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(values, 5)
	if got != 100 {
		t.Fatalf("RSI = %v, want 100 for an all-gain series", got)
	}
}

func TestRSIAllLossesReturnsZero(t *testing.T) {
	values := []float64{6, 5, 4, 3, 2, 1}
	got := RSI(values, 5)
	if got != 0 {
		t.Fatalf("RSI = %v, want 0 for an all-loss series", got)
	}
}

func TestADXSeriesLengthMatchesInput(t *testing.T) {
	n := 40
	high := make([]float64, n)
	low := make([]float64, n)
	closeP := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 1
		high[i], low[i], closeP[i] = price+1, price-1, price
	}
	series := ADXSeries(high, low, closeP, 14)
	if len(series) != n {
		t.Fatalf("ADXSeries length = %d, want %d", len(series), n)
	}
	last := series[len(series)-1]
	if math.IsNaN(last) || last < 0 || last > 100 {
		t.Fatalf("ADXSeries last value = %v, want a finite value in [0,100]", last)
	}
}
