package strategy

import (
	"fmt"

	"backtest-core/internal/bar"
	"backtest-core/internal/indicators"
	"backtest-core/internal/oms"
)

// MACrossStrategy trades the fast/slow SMA crossover: golden cross opens
// long, death cross opens short. Generalized from the teacher's
// MACrossStrategy (string Action/OnTick/prevSignal) to the bar-history,
// OrderRequest-emitting Strategy interface, with ATR-based stop/target
// and trailing-stop logic grounded on
// original_source/src/strategy.rs's VolatilityRegimeStrategy.
type MACrossStrategy struct {
	Symbol        bar.Symbol
	FastPeriod    int
	SlowPeriod    int
	ATRPeriod     int
	Size          float64
	StopATRMult   float64
	TargetATRMult float64

	prevFastAboveSlow bool
	havePrev          bool
}

// NewMACrossStrategy creates a cross strategy with the given periods and
// order size; ATR period/stop/target multipliers are set to the
// teacher-adjacent values 14/1.5/3.0.
func NewMACrossStrategy(symbol bar.Symbol, fastPeriod, slowPeriod int, size float64) *MACrossStrategy {
	return &MACrossStrategy{
		Symbol:        symbol,
		FastPeriod:    fastPeriod,
		SlowPeriod:    slowPeriod,
		ATRPeriod:     14,
		Size:          size,
		StopATRMult:   1.5,
		TargetATRMult: 3.0,
	}
}

func (s *MACrossStrategy) Name() string {
	return fmt.Sprintf("MA_Cross_%d_%d", s.FastPeriod, s.SlowPeriod)
}

func (s *MACrossStrategy) RequiredTimeframes() []string { return nil }

func (s *MACrossStrategy) Init(ctx Context) error { return nil }

func (s *MACrossStrategy) closes(history []bar.Candle) []float64 {
	closes := make([]float64, len(history))
	for i, c := range history {
		closes[i] = c.Close
	}
	return closes
}

func (s *MACrossStrategy) OnBar(ctx Context, symbol bar.Symbol, history []bar.Candle) error {
	if len(history) < s.SlowPeriod {
		return nil
	}
	closes := s.closes(history)
	fast := indicators.SMA(closes, s.FastPeriod)
	slow := indicators.SMA(closes, s.SlowPeriod)
	s.prevFastAboveSlow = fast > slow
	s.havePrev = true
	return nil
}

func (s *MACrossStrategy) GenerateOrders(ctx Context, symbol bar.Symbol, history []bar.Candle) []OrderRequest {
	if len(history) < s.SlowPeriod+1 || !s.havePrev {
		return nil
	}
	closes := s.closes(history)
	prevCloses := closes[:len(closes)-1]

	prevFast := indicators.SMA(prevCloses, s.FastPeriod)
	prevSlow := indicators.SMA(prevCloses, s.SlowPeriod)
	curFast := indicators.SMA(closes, s.FastPeriod)
	curSlow := indicators.SMA(closes, s.SlowPeriod)

	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		return []OrderRequest{{
			Symbol: symbol, Side: oms.Buy, Type: oms.Market, Quantity: s.Size,
			Note: fmt.Sprintf("golden cross: fast=%.4f slow=%.4f", curFast, curSlow),
		}}
	case prevFast >= prevSlow && curFast < curSlow:
		return []OrderRequest{{
			Symbol: symbol, Side: oms.Sell, Type: oms.Market, Quantity: s.Size,
			Note: fmt.Sprintf("death cross: fast=%.4f slow=%.4f", curFast, curSlow),
		}}
	default:
		return nil
	}
}

func (s *MACrossStrategy) atr(history []bar.Candle) float64 {
	n := len(history)
	high := make([]float64, n)
	low := make([]float64, n)
	closeP := make([]float64, n)
	for i, c := range history {
		high[i], low[i], closeP[i] = c.High, c.Low, c.Close
	}
	fallback := 0.0
	if n > 0 {
		fallback = closeP[n-1] * 0.01
	}
	return indicators.ATR(high, low, closeP, s.ATRPeriod, fallback)
}

func (s *MACrossStrategy) CalculateStopLoss(symbol bar.Symbol, side oms.Side, entryPrice float64, history []bar.Candle) float64 {
	dist := s.atr(history) * s.StopATRMult
	if side == oms.Buy {
		return entryPrice - dist
	}
	return entryPrice + dist
}

func (s *MACrossStrategy) CalculateTakeProfit(symbol bar.Symbol, side oms.Side, entryPrice float64, history []bar.Candle) float64 {
	dist := s.atr(history) * s.TargetATRMult
	if side == oms.Buy {
		return entryPrice + dist
	}
	return entryPrice - dist
}

// UpdateTrailingStop ratchets the stop to stay StopATRMult*ATR behind the
// close once price has moved halfway to target, matching the activation-
// at-fraction-of-target idiom in original_source/src/strategy.rs.
func (s *MACrossStrategy) UpdateTrailingStop(symbol bar.Symbol, pos *oms.Position, history []bar.Candle) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	last := history[len(history)-1]
	dist := s.atr(history) * s.StopATRMult

	entry := pos.AverageEntry
	target := s.CalculateTakeProfit(symbol, pos.Side, entry, history)
	totalMove := target - entry
	progress := last.Close - entry
	if pos.Side == oms.Sell {
		totalMove = entry - target
		progress = entry - last.Close
	}
	if totalMove <= 0 || progress/totalMove < 0.5 {
		return 0, false
	}

	if pos.Side == oms.Buy {
		return last.Close - dist, true
	}
	return last.Close + dist, true
}

func (s *MACrossStrategy) GetRegimeScore(symbol bar.Symbol, history []bar.Candle) float64 {
	return 1.0
}

func (s *MACrossStrategy) OnOrderFilled(symbol bar.Symbol, fill oms.Fill, side oms.Side) {}

func (s *MACrossStrategy) OnTradeClosed(symbol bar.Symbol, realizedPnL float64) {}

func (s *MACrossStrategy) CloneBoxed() Strategy {
	clone := *s
	clone.prevFastAboveSlow = false
	clone.havePrev = false
	return &clone
}
