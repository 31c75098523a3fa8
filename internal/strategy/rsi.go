package strategy

import (
	"fmt"

	"backtest-core/internal/bar"
	"backtest-core/internal/indicators"
	"backtest-core/internal/oms"
)

// RSIStrategy trades RSI overbought/oversold reversals: buys when RSI
// dips under Oversold, sells when it rises above Overbought. Generalized
// from the teacher's RSIStrategy (manual gain/loss bookkeeping per tick)
// to the bar-history Strategy interface, computing RSI via
// indicators.RSI over the full close series each bar. Regime scoring
// follows original_source/src/strategy.rs: ADX above a trend threshold
// scores full size, a choppy (low-ADX) market scores down.
type RSIStrategy struct {
	Symbol      bar.Symbol
	Period      int
	Oversold    float64
	Overbought  float64
	Size        float64
	ATRPeriod   int
	StopATRMult float64
	TgtATRMult  float64
	ADXPeriod   int

	lastRSI float64
}

// NewRSIStrategy creates an RSI reversal strategy.
func NewRSIStrategy(symbol bar.Symbol, period int, oversold, overbought, size float64) *RSIStrategy {
	return &RSIStrategy{
		Symbol:      symbol,
		Period:      period,
		Oversold:    oversold,
		Overbought:  overbought,
		Size:        size,
		ATRPeriod:   14,
		StopATRMult: 1.5,
		TgtATRMult:  2.5,
		ADXPeriod:   14,
	}
}

func (s *RSIStrategy) Name() string { return fmt.Sprintf("RSI_%d", s.Period) }

func (s *RSIStrategy) RequiredTimeframes() []string { return nil }

func (s *RSIStrategy) Init(ctx Context) error { return nil }

func (s *RSIStrategy) ohlc(history []bar.Candle) (high, low, close []float64) {
	n := len(history)
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	for i, c := range history {
		high[i], low[i], close[i] = c.High, c.Low, c.Close
	}
	return
}

func (s *RSIStrategy) OnBar(ctx Context, symbol bar.Symbol, history []bar.Candle) error {
	if len(history) < s.Period+1 {
		return nil
	}
	_, _, close := s.ohlc(history)
	s.lastRSI = indicators.RSI(close, s.Period)
	return nil
}

func (s *RSIStrategy) GenerateOrders(ctx Context, symbol bar.Symbol, history []bar.Candle) []OrderRequest {
	if len(history) < s.Period+1 {
		return nil
	}
	switch {
	case s.lastRSI < s.Oversold:
		return []OrderRequest{{
			Symbol: symbol, Side: oms.Buy, Type: oms.Market, Quantity: s.Size,
			Note: fmt.Sprintf("RSI oversold: %.2f < %.2f", s.lastRSI, s.Oversold),
		}}
	case s.lastRSI > s.Overbought:
		return []OrderRequest{{
			Symbol: symbol, Side: oms.Sell, Type: oms.Market, Quantity: s.Size,
			Note: fmt.Sprintf("RSI overbought: %.2f > %.2f", s.lastRSI, s.Overbought),
		}}
	default:
		return nil
	}
}

func (s *RSIStrategy) atr(history []bar.Candle) float64 {
	high, low, close := s.ohlc(history)
	fallback := 0.0
	if len(close) > 0 {
		fallback = close[len(close)-1] * 0.01
	}
	return indicators.ATR(high, low, close, s.ATRPeriod, fallback)
}

func (s *RSIStrategy) CalculateStopLoss(symbol bar.Symbol, side oms.Side, entryPrice float64, history []bar.Candle) float64 {
	dist := s.atr(history) * s.StopATRMult
	if side == oms.Buy {
		return entryPrice - dist
	}
	return entryPrice + dist
}

func (s *RSIStrategy) CalculateTakeProfit(symbol bar.Symbol, side oms.Side, entryPrice float64, history []bar.Candle) float64 {
	dist := s.atr(history) * s.TgtATRMult
	if side == oms.Buy {
		return entryPrice + dist
	}
	return entryPrice - dist
}

func (s *RSIStrategy) UpdateTrailingStop(symbol bar.Symbol, pos *oms.Position, history []bar.Candle) (float64, bool) {
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

// GetRegimeScore scores 1.0 in a trending market (ADX >= 25), 0.5
// otherwise, matching the "choppy market, cut risk" idiom in
// original_source/src/strategy.rs's regime classification.
func (s *RSIStrategy) GetRegimeScore(symbol bar.Symbol, history []bar.Candle) float64 {
	if len(history) < s.ADXPeriod+1 {
		return 1.0
	}
	high, low, close := s.ohlc(history)
	adxSeries := indicators.ADXSeries(high, low, close, s.ADXPeriod)
	adx := adxSeries[len(adxSeries)-1]
	if adx >= 25 {
		return 1.0
	}
	return 0.5
}

func (s *RSIStrategy) OnOrderFilled(symbol bar.Symbol, fill oms.Fill, side oms.Side) {}

func (s *RSIStrategy) OnTradeClosed(symbol bar.Symbol, realizedPnL float64) {}

func (s *RSIStrategy) CloneBoxed() Strategy {
	clone := *s
	clone.lastRSI = 0
	return &clone
}
