// Command backtest is the ambient entrypoint: load configuration, build
// a default strategy, run one Simulator pass over sample data, and print
// a summary. Not a CLI surface — CSV ingestion, flags and report
// rendering are explicitly out of scope (see SPEC_FULL.md §1) — this is
// the minimal "something must call the library" wiring every binary in
// the pack has, stripped of the teacher's DB/gateway/API bootstrapping.
package main

import (
	"log"
	"time"

	"github.com/google/uuid"

	"backtest-core/internal/backtest"
	"backtest-core/internal/bar"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	runID := uuid.NewString()
	log.Printf("run %s: loading configuration", runID)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ config: %v", err)
	}

	series, err := sampleSeries()
	if err != nil {
		log.Fatalf("✗ sample data: %v", err)
	}

	strat := strategy.NewMACrossStrategy("BTCUSDT", 10, 30, 0.5)

	simCfg := backtest.Config{
		InitialCapital: cfg.InitialCapital,
		Lookback:       cfg.Lookback,
		EnableT1:       cfg.EnableT1,
		MakerFeeRate:   cfg.MakerFeeRate,
		TakerFeeRate:   cfg.TakerFeeRate,
		SlippageRate:   cfg.SlippageRate,
		TaxRate:        cfg.TaxRate,
		Risk:           cfg.RiskConfig(),
	}

	sim := backtest.NewSimulator(simCfg, strat)
	result := sim.Run(series, nil)

	log.Printf("✓ run %s complete: %d trades, %d equity points", runID, len(result.Trades), len(result.Equity))
	log.Printf("  total return: %.2f%%  sharpe: %.2f  calmar: %.2f  max drawdown: %.2f%%",
		result.Metrics.TotalReturnPct, result.Metrics.Sharpe, result.Metrics.Calmar, result.Metrics.MaxDrawdownPct)
	log.Printf("  win rate: %.1f%%  profit factor: %.2f  expectancy: %.2f",
		result.Metrics.WinRatePct, result.Metrics.ProfitFactor, result.Metrics.Expectancy)
}

// sampleSeries builds a small synthetic BTCUSDT candle series so the
// binary has something to run against without a CSV/remote-API loader,
// which SPEC_FULL.md leaves out of scope. Real callers wire their own
// []bar.AlignedSeries from whatever ingestion they have.
func sampleSeries() ([]bar.AlignedSeries, error) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 120
	candles := make([]bar.Candle, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		price += 0.5
		c, err := bar.NewCandle(ts, price, price+1, price-1, price, 1000)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return []bar.AlignedSeries{{Symbol: "BTCUSDT", Candles: candles}}, nil
}
