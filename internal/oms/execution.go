package oms

import (
	"time"

	"backtest-core/internal/bar"
)

// FillPrice is the result of a successful check_fill: the price the order
// would fill at and whether that fill adds or removes liquidity.
type FillPrice struct {
	Price   float64
	IsMaker bool
}

// ExecutionEngine decides whether/where an order fills against a candle,
// and executes partial or full fills against it. It is stateless beyond
// its configured rates. Grounded on original_source/rust/src/oms/execution.rs.
type ExecutionEngine struct {
	MakerFeeRate float64
	TakerFeeRate float64
	SlippageRate float64
}

// DefaultExecutionEngine mirrors the source's Default impl: 4bps maker,
// 6bps taker, 10bps slippage.
func DefaultExecutionEngine() *ExecutionEngine {
	return &ExecutionEngine{MakerFeeRate: 0.0004, TakerFeeRate: 0.0006, SlippageRate: 0.001}
}

// CheckFill decides whether order fills during candle, given the bar
// index the candle occupies (for the anti-lookahead created-bar-index
// guard on limit orders). Returns (fillPrice, true) if it fills.
func (e *ExecutionEngine) CheckFill(o *Order, candle bar.Candle, currentBarIndex int) (FillPrice, bool) {
	sameBarAsCreated := o.CreatedBarIndex != nil && *o.CreatedBarIndex == currentBarIndex

	switch o.Type {
	case Market:
		return FillPrice{Price: candle.Open, IsMaker: false}, true

	case Limit:
		if o.LimitPrice == nil {
			return FillPrice{}, false
		}
		limit := *o.LimitPrice
		if sameBarAsCreated {
			return FillPrice{}, false
		}
		if o.Side == Buy && candle.Low <= limit {
			return FillPrice{Price: limit, IsMaker: true}, true
		}
		if o.Side == Sell && candle.High >= limit {
			return FillPrice{Price: limit, IsMaker: true}, true
		}
		return FillPrice{}, false

	case Stop:
		if o.StopPrice == nil {
			return FillPrice{}, false
		}
		stop := *o.StopPrice
		if o.Side == Buy && candle.High >= stop {
			return FillPrice{Price: stop * (1 + e.SlippageRate), IsMaker: false}, true
		}
		if o.Side == Sell && candle.Low <= stop {
			return FillPrice{Price: stop * (1 - e.SlippageRate), IsMaker: false}, true
		}
		return FillPrice{}, false

	case StopLimit:
		// Reserved — unsupported.
		return FillPrice{}, false

	default:
		return FillPrice{}, false
	}
}

// ExecutePartialFill fills up to maxQty of order's remaining quantity at
// fillPrice, updating the order's weighted-average fill price and state.
// The returned Fill's timestamp is the candle's timestamp (timestamp
// param), never wall-clock.
func (e *ExecutionEngine) ExecutePartialFill(o *Order, fillPrice, maxQty float64, isMaker bool, timestamp time.Time) Fill {
	fillQty := o.RemainingQuantity
	if maxQty < fillQty {
		fillQty = maxQty
	}

	rate := e.TakerFeeRate
	if isMaker {
		rate = e.MakerFeeRate
	}
	commission := fillPrice * fillQty * rate

	prevFilled := o.FilledQuantity
	prevAvg := o.AvgFillPrice
	newFilled := prevFilled + fillQty
	if newFilled > 0 {
		o.AvgFillPrice = (prevAvg*prevFilled + fillPrice*fillQty) / newFilled
	}
	o.FilledQuantity = newFilled
	o.RemainingQuantity -= fillQty
	o.UpdatedAt = timestamp

	if o.RemainingQuantity <= 1e-8*maxf(o.Quantity, 1) {
		o.State = Filled
	} else {
		o.State = PartiallyFilled
	}

	return Fill{
		OrderID:    o.ID,
		Price:      fillPrice,
		Quantity:   fillQty,
		Timestamp:  timestamp,
		Commission: commission,
		IsMaker:    isMaker,
	}
}

// ExecuteFill is a convenience wrapper that fills the order's entire
// remaining quantity.
func (e *ExecutionEngine) ExecuteFill(o *Order, fillPrice float64, isMaker bool, timestamp time.Time) Fill {
	return e.ExecutePartialFill(o, fillPrice, o.RemainingQuantity, isMaker, timestamp)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
