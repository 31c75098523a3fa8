// Package oms implements the Order Book, Execution Engine and Position
// Ledger components: order/fill/position types, a price-time-priority
// book per symbol, intra-candle fill detection, and FIFO position
// accounting.
package oms

import (
	"sync/atomic"
	"time"

	"backtest-core/internal/bar"
)

// OrderID is a monotonically increasing integer identity, generated
// atomically. Scoped per Simulator instance (not process-wide) so that
// independent optimizer workers never share a counter.
type OrderID uint64

// IDGenerator hands out strictly increasing OrderIDs for one Simulator.
type IDGenerator struct {
	next atomic.Uint64
}

// Next returns the next OrderID, starting at 1.
func (g *IDGenerator) Next() OrderID {
	return OrderID(g.next.Add(1))
}

// Side is the direction of an order or position.
type Side int

const (
	Buy Side = iota
	Sell
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the supported order types. StopLimit is reserved:
// check_fill always returns "no fill" for it.
type OrderType int

const (
	Market OrderType = iota
	Limit
	Stop
	StopLimit
)

// TimeInForce enumerates order lifetime policy.
type TimeInForce int

const (
	GTC TimeInForce = iota
	GTD
	IOC
	FOK
)

// OrderState is the order lifecycle state machine.
type OrderState int

const (
	Pending OrderState = iota
	Submitted
	Open
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	Expired
)

// IsActive reports whether the order can still receive fills.
func (s OrderState) IsActive() bool {
	return s == Submitted || s == Open || s == PartiallyFilled
}

// IsTerminal reports whether the order's lifecycle has ended.
func (s OrderState) IsTerminal() bool {
	return s == Filled || s == Cancelled || s == Rejected || s == Expired
}

// Order is a single order ticket.
type Order struct {
	ID                OrderID
	Symbol            bar.Symbol
	Side              Side
	Type              OrderType
	LimitPrice        *float64
	StopPrice         *float64
	Quantity          float64
	FilledQuantity    float64
	RemainingQuantity float64
	AvgFillPrice      float64
	State             OrderState
	TimeInForce       TimeInForce
	GTDExpiry         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClientTag         string
	StrategyTag       string
	CreatedBarIndex   *int
}

// NewOrder constructs a fresh order in Pending state with remaining
// quantity equal to the full requested quantity.
func NewOrder(id OrderID, symbol bar.Symbol, side Side, typ OrderType, qty float64,
	limitPrice, stopPrice *float64, tif TimeInForce, clientTag string, now time.Time) *Order {
	return &Order{
		ID:                id,
		Symbol:            symbol,
		Side:              side,
		Type:              typ,
		LimitPrice:        limitPrice,
		StopPrice:         stopPrice,
		Quantity:          qty,
		RemainingQuantity: qty,
		State:             Pending,
		TimeInForce:       tif,
		CreatedAt:         now,
		UpdatedAt:         now,
		ClientTag:         clientTag,
	}
}

// IsActive reports whether the order's current state is active.
func (o *Order) IsActive() bool { return o.State.IsActive() }

// IsComplete reports whether the order has reached a terminal state.
func (o *Order) IsComplete() bool { return o.State.IsTerminal() }

// Fill is a single execution against an order.
type Fill struct {
	OrderID    OrderID
	Price      float64
	Quantity   float64
	Timestamp  time.Time
	Commission float64
	IsMaker    bool
}

// Position is the net open position for a symbol.
type Position struct {
	Symbol           bar.Symbol
	Side             Side
	AverageEntry     float64
	Quantity         float64
	RealizedPnL      float64
	UnrealizedPnL    float64
	Fills            []Fill
	FirstEntryTime   time.Time
	LastUpdateTime   time.Time
	RiskAmount       float64
}

// epsilon below which a position's quantity is considered closed.
const epsilon = 1e-8

// CurrentValue is quantity * current price.
func (p *Position) CurrentValue(currentPrice float64) float64 {
	return p.Quantity * currentPrice
}

// UpdateUnrealizedPnL marks the position to currentPrice.
func (p *Position) UpdateUnrealizedPnL(currentPrice float64) {
	sign := 1.0
	if p.Side == Sell {
		sign = -1.0
	}
	p.UnrealizedPnL = sign * (currentPrice - p.AverageEntry) * p.Quantity
}

// SetRiskAmount records |entry - stop| * quantity at entry time, used by
// the risk governor's portfolio-heat accounting.
func (p *Position) SetRiskAmount(amount float64) { p.RiskAmount = amount }
