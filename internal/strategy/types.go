// Package strategy defines the polymorphic strategy contract the
// Simulator drives each bar, plus the reference MA-cross and RSI
// implementations. Generalized from the teacher's narrow
// internal/strategy/types.go (Strategy/Signal/Context) into the richer
// capability set original_source/src/strategy.rs's trait exposes
// (regime scoring, bracket placement, trailing-stop updates).
package strategy

import (
	"backtest-core/internal/bar"
	"backtest-core/internal/indicators"
	"backtest-core/internal/oms"
)

// OrderRequest is what a strategy hands back to the Simulator to have it
// submitted to the order book. It generalizes the teacher's flat Signal
// (Action/Symbol/Size/Note) into a full order spec.
type OrderRequest struct {
	Symbol     bar.Symbol
	Side       oms.Side
	Type       oms.OrderType
	Quantity   float64
	LimitPrice *float64
	StopPrice  *float64
	Note       string
}

// Context bundles services and account state a strategy may read but does
// not own: pre-computed indicator caches, the multi-timeframe bar view for
// the current symbol, the symbol's current open position (nil if flat),
// a snapshot of its resting open orders, and account-wide cash/equity —
// per spec.md §6's "optional current position, open-orders snapshot,
// available cash, current equity." Grounded on the teacher's
// Context{Indicators}, generalized with the account-state fields.
type Context struct {
	Indicators *indicators.Engine
	Views      *bar.MultiTimeframeView
	Position   *oms.Position
	OpenOrders []*oms.Order
	Cash       float64
	Equity     float64
}

// Strategy is the full capability set a pluggable trading strategy
// implements. It generalizes the teacher's Strategy interface
// (ID/Name/OnTick/GetState/SetState) to the richer trait
// original_source/src/strategy.rs declares for VolatilityRegimeStrategy.
type Strategy interface {
	// Name identifies the strategy for logging and reporting.
	Name() string

	// RequiredTimeframes lists the timeframe keys (beyond the primary)
	// this strategy needs aligned bar views for.
	RequiredTimeframes() []string

	// Init is called once before the first bar, with the Context wired.
	Init(ctx Context) error

	// OnBar is called once per primary-timeframe bar, in order, with
	// the bar history (index len(history)-1 is the current bar) and
	// that bar's matching aligned secondary-timeframe views already
	// sliced into ctx.Views with no lookahead.
	OnBar(ctx Context, symbol bar.Symbol, history []bar.Candle) error

	// GenerateOrders returns zero or more orders to submit for the bar
	// just processed by OnBar.
	GenerateOrders(ctx Context, symbol bar.Symbol, history []bar.Candle) []OrderRequest

	// CalculateStopLoss returns the bracket stop price for a position
	// opened at entryPrice on side.
	CalculateStopLoss(symbol bar.Symbol, side oms.Side, entryPrice float64, history []bar.Candle) float64

	// CalculateTakeProfit returns the bracket target price for a
	// position opened at entryPrice on side.
	CalculateTakeProfit(symbol bar.Symbol, side oms.Side, entryPrice float64, history []bar.Candle) float64

	// UpdateTrailingStop returns a new stop level for an open position
	// given the latest bar, or ok=false to leave the existing stop.
	UpdateTrailingStop(symbol bar.Symbol, pos *oms.Position, history []bar.Candle) (stop float64, ok bool)

	// GetRegimeScore scales position sizing (1.0 = neutral); see
	// risk.Manager.CalculatePositionSize.
	GetRegimeScore(symbol bar.Symbol, history []bar.Candle) float64

	// OnOrderFilled notifies the strategy of a fill it may want to react to.
	OnOrderFilled(symbol bar.Symbol, fill oms.Fill, side oms.Side)

	// OnTradeClosed notifies the strategy a round-trip trade closed,
	// with its realized P&L, so it can track its own streaks if needed.
	OnTradeClosed(symbol bar.Symbol, realizedPnL float64)

	// CloneBoxed returns an independent copy of the strategy with reset
	// internal state, used by the Optimizer to run one instance per
	// parameter set without sharing mutable fields.
	CloneBoxed() Strategy
}
