// Package backtest implements the Simulation Loop: the per-bar phase
// orchestrator that drives the Order Book, Execution Engine, Position
// Ledger and Risk Governor against a strategy, producing a trade log,
// equity curve and performance metrics. Grounded throughout on
// original_source/rust/src/backtest.rs's Backtester::run.
package backtest

import (
	"time"

	"backtest-core/internal/bar"
	"backtest-core/internal/oms"
	"backtest-core/internal/risk"
)

// Config bundles the knobs the Simulator needs: capital, lookback, T+1
// scheduling, execution rates and the risk governor's configuration.
// Grounded on the source's Config{trading, exchange} split, flattened
// here since this module carries no CSV/CLI surface to split it across.
type Config struct {
	InitialCapital float64
	Lookback       int
	EnableT1       bool
	MakerFeeRate   float64
	TakerFeeRate   float64
	SlippageRate   float64
	TaxRate        float64
	Risk           risk.Config

	// StrategyOverrides installs a per-strategy-tag risk config on the
	// governor at construction time, keyed by Strategy.Name(). See
	// risk.Manager.WithStrategyOverride.
	StrategyOverrides map[string]risk.Config

	// DebugAssertions enables assertInvariant checks of the §8 universal
	// invariants on every bar. Off by default; meant for development and
	// test runs, not production-scale optimizer sweeps.
	DebugAssertions bool
}

// DefaultConfig returns sane defaults: 300-bar lookback, T+1 on, the
// ExecutionEngine's default rates, no tax.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100_000,
		Lookback:       300,
		EnableT1:       true,
		MakerFeeRate:   0.0004,
		TakerFeeRate:   0.0006,
		SlippageRate:   0.001,
		TaxRate:        0,
		Risk:           risk.DefaultConfig(),
	}
}

// Trade is one materialized round-trip per spec.md's trade-construction
// rule: a full close or a reversal of a position, covering the quantity
// still open at that fill. A same-side partial reduction produces no Trade.
type Trade struct {
	Symbol      bar.Symbol
	Side        oms.Side
	Quantity    float64
	EntryPrice  float64
	ExitPrice   float64
	EntryTime   time.Time
	ExitTime    time.Time
	GrossPnL    float64
	Commission  float64
	NetPnL      float64
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp  time.Time
	TotalValue float64
}

// Result is everything a backtest run produces.
type Result struct {
	Trades  []Trade
	Equity  []EquityPoint
	Metrics PerformanceMetrics
}

// entryLevels is the Entry Level Cache: the (stop, target) pair fixed at
// signal time, preserved across T+1 delay.
type entryLevels struct {
	stop, target float64
}

// deferredOrder is one entry of the T+1 deferred-execution queue.
type deferredOrder struct {
	symbol  bar.Symbol
	orderID oms.OrderID
}
