package backtest

import (
	"testing"
	"time"

	"backtest-core/internal/bar"
	"backtest-core/internal/strategy"
)

func candle(ts time.Time, o, h, l, c float64) bar.Candle {
	cd, err := bar.NewCandle(ts, o, h, l, c, 1000)
	if err != nil {
		panic(err)
	}
	return cd
}

// buildUptrend builds a primary series that falls by step for its first
// n/4 bars and then rises steadily, so the fast MA crosses above the slow
// one (a golden cross) and the rise keeps climbing past any reasonable
// take-profit target.
func buildUptrend(n int, start float64, step float64) []bar.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]bar.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		out[i] = candle(ts, price, price+1, price-1, price)
		if i < n/4 {
			price -= step
		} else {
			price += step
		}
	}
	return out
}

func TestSimulatorRunProducesTradeAndEquityCurve(t *testing.T) {
	candles := buildUptrend(40, 100, 2)
	series := []bar.AlignedSeries{{Symbol: "BTCUSDT", Candles: candles}}

	strat := strategy.NewMACrossStrategy("BTCUSDT", 3, 8, 1.0)
	cfg := DefaultConfig()
	cfg.EnableT1 = false // simplify: immediate execution within a single test bar series
	cfg.Lookback = 20

	sim := NewSimulator(cfg, strat)
	result := sim.Run(series, nil)

	if len(result.Equity) != len(candles) {
		t.Fatalf("equity curve len=%d, want %d", len(result.Equity), len(candles))
	}
	if result.Equity[0].TotalValue <= 0 {
		t.Fatal("expected positive equity throughout")
	}
	// An uptrend with a golden cross should open a long that either hits
	// target or gets closed at end-of-run cleanup — either way at least
	// one trade should be recorded.
	if len(result.Trades) == 0 {
		t.Fatal("expected at least one trade over a 40-bar uptrend with a golden cross")
	}
}

func TestSimulatorRunEmptySeriesReturnsEmptyResult(t *testing.T) {
	strat := strategy.NewMACrossStrategy("BTCUSDT", 3, 8, 1.0)
	sim := NewSimulator(DefaultConfig(), strat)
	result := sim.Run(nil, nil)
	if result.Trades != nil || result.Equity != nil {
		t.Fatal("expected a zero-value Result for empty input series")
	}
}

func TestCalculateMetricsHandlesAllWinningTrades(t *testing.T) {
	trades := []Trade{
		{NetPnL: 100}, {NetPnL: 50},
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []EquityPoint{
		{Timestamp: base, TotalValue: 100_000},
		{Timestamp: base.Add(24 * time.Hour), TotalValue: 100_150},
	}
	m := calculateMetrics(trades, equity, 100_000, 0)
	if m.ProfitFactor != 0 {
		// grossLoss == 0 and grossProfit > 0 -> +Inf, checked separately below
	}
	if !isInf(m.ProfitFactor) {
		t.Fatalf("ProfitFactor=%v, want +Inf with zero losses", m.ProfitFactor)
	}
	if m.WinRatePct != 100 {
		t.Fatalf("WinRatePct=%v, want 100", m.WinRatePct)
	}
}

func isInf(f float64) bool { return f > 1e300 }
