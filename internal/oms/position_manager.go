package oms

import "backtest-core/internal/bar"

// PositionManager is the Position Ledger, keyed by symbol. Grounded on
// original_source/rust/src/oms/position_manager.rs.
//
// Divergence from the source, resolved in the spec's favor: the source's
// add_fill debits fill.commission from realized_pnl on every leg
// iteration of the FIFO walk. spec.md §4.D states explicitly that
// "Commission from the closing fill is debited once from realized P&L
// (not per leg)" — this implementation follows that stated rule, not the
// source's apparent per-leg behavior (see DESIGN.md).
type PositionManager struct {
	positions map[bar.Symbol]*Position
}

// NewPositionManager creates an empty ledger.
func NewPositionManager() *PositionManager {
	return &PositionManager{positions: make(map[bar.Symbol]*Position)}
}

// ApplyFill absorbs fill into the position for symbol on the given side,
// implementing FIFO same-side averaging, opposite-side leg consumption,
// and reversal.
func (m *PositionManager) ApplyFill(fill Fill, symbol bar.Symbol, side Side) {
	pos, exists := m.positions[symbol]
	if !exists {
		m.positions[symbol] = &Position{
			Symbol:         symbol,
			Side:           side,
			AverageEntry:   fill.Price,
			Quantity:       fill.Quantity,
			Fills:          []Fill{fill},
			FirstEntryTime: fill.Timestamp,
			LastUpdateTime: fill.Timestamp,
		}
		return
	}

	if pos.Side == side {
		prevTotalValue := pos.AverageEntry * pos.Quantity
		newValue := fill.Price * fill.Quantity
		newTotalQty := pos.Quantity + fill.Quantity

		pos.AverageEntry = (prevTotalValue + newValue) / newTotalQty
		pos.Quantity = newTotalQty
		pos.Fills = append(pos.Fills, fill)
		pos.LastUpdateTime = fill.Timestamp
		return
	}

	// Opposite side: reduce via FIFO, commission debited once.
	remaining := fill.Quantity
	sign := 1.0
	if pos.Side == Sell {
		sign = -1.0
	}

	for remaining > 0 && len(pos.Fills) > 0 {
		head := &pos.Fills[0]
		if head.Quantity <= remaining {
			pnl := sign * (fill.Price - head.Price) * head.Quantity
			pos.RealizedPnL += pnl
			remaining -= head.Quantity
			pos.Quantity -= head.Quantity
			pos.Fills = pos.Fills[1:]
		} else {
			pnl := sign * (fill.Price - head.Price) * remaining
			pos.RealizedPnL += pnl
			head.Quantity -= remaining
			pos.Quantity -= remaining
			remaining = 0
		}
	}
	pos.RealizedPnL -= fill.Commission

	if remaining > epsilon {
		// Fully consumed existing legs with quantity left over: reverse.
		pos.Side = side
		pos.Quantity = remaining
		pos.AverageEntry = fill.Price
		pos.Fills = []Fill{{
			OrderID:    fill.OrderID,
			Price:      fill.Price,
			Quantity:   remaining,
			Timestamp:  fill.Timestamp,
			Commission: fill.Commission,
			IsMaker:    fill.IsMaker,
		}}
	}
	pos.LastUpdateTime = fill.Timestamp

	if pos.Quantity <= epsilon {
		delete(m.positions, symbol)
	}
}

// GetPosition returns the position for symbol, if one exists (quantity >
// epsilon). Returns nil if none.
func (m *PositionManager) GetPosition(symbol bar.Symbol) *Position {
	return m.positions[symbol]
}

// GetAllPositions returns a snapshot of all open positions.
func (m *PositionManager) GetAllPositions() map[bar.Symbol]*Position {
	out := make(map[bar.Symbol]*Position, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}

// UpdateUnrealizedPnL marks every position to its price in prices.
func (m *PositionManager) UpdateUnrealizedPnL(prices map[bar.Symbol]float64) {
	for symbol, pos := range m.positions {
		if price, ok := prices[symbol]; ok {
			pos.UpdateUnrealizedPnL(price)
		}
	}
}

// ClosePosition removes and returns the position for symbol, or nil if
// there is none. ApplyFill removes a fully closed position on its own.
func (m *PositionManager) ClosePosition(symbol bar.Symbol) *Position {
	pos, ok := m.positions[symbol]
	if !ok {
		return nil
	}
	delete(m.positions, symbol)
	return pos
}

// TotalUnrealizedPnL sums unrealized P&L across all open positions.
func (m *PositionManager) TotalUnrealizedPnL() float64 {
	total := 0.0
	for _, p := range m.positions {
		total += p.UnrealizedPnL
	}
	return total
}

// TotalRealizedPnL sums realized P&L across all open positions (closed
// positions' realized P&L is carried into the Trade record instead).
func (m *PositionManager) TotalRealizedPnL() float64 {
	total := 0.0
	for _, p := range m.positions {
		total += p.RealizedPnL
	}
	return total
}

// OpenPositionCount returns the number of symbols with an open position.
func (m *PositionManager) OpenPositionCount() int {
	return len(m.positions)
}
