package backtest

import "math"

// PerformanceMetrics aggregates end-of-run statistics. Grounded on
// original_source/rust/src/backtest.rs's calculate_metrics, cross-checked
// against other_examples' cexoms backtest engine's calculateFinalMetrics.
type PerformanceMetrics struct {
	TotalReturnPct    float64
	PostTaxReturnPct  float64
	Sharpe            float64
	Calmar            float64
	MaxDrawdownPct    float64
	WinRatePct        float64
	ProfitFactor      float64
	Expectancy        float64
	TotalTrades       int
	WinningTrades     int
	LosingTrades      int
	AverageWin        float64
	AverageLoss       float64
	LargestWin        float64
	LargestLoss       float64
	TotalCommission   float64
	TaxAmount         float64
}

const riskFreeRateAnnual = 0.05

// calculateMetrics derives PerformanceMetrics from a completed run's
// trade log and equity curve. Returns the zero value if equity is empty.
func calculateMetrics(trades []Trade, equity []EquityPoint, initialCapital, taxRate float64) PerformanceMetrics {
	var m PerformanceMetrics
	if len(equity) == 0 || initialCapital == 0 {
		return m
	}

	finalValue := equity[len(equity)-1].TotalValue
	grossReturn := finalValue - initialCapital
	m.TotalReturnPct = grossReturn / initialCapital * 100

	totalCommission := 0.0
	var grossProfit, grossLoss float64
	var sumWin, sumLoss float64
	for _, t := range trades {
		totalCommission += t.Commission
		if t.NetPnL >= 0 {
			m.WinningTrades++
			grossProfit += t.NetPnL
			sumWin += t.NetPnL
			if t.NetPnL > m.LargestWin {
				m.LargestWin = t.NetPnL
			}
		} else {
			m.LosingTrades++
			grossLoss += -t.NetPnL
			sumLoss += t.NetPnL
			if t.NetPnL < m.LargestLoss {
				m.LargestLoss = t.NetPnL
			}
		}
	}
	m.TotalTrades = len(trades)
	m.TotalCommission = totalCommission

	if m.TotalTrades > 0 {
		m.WinRatePct = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
		m.Expectancy = (sumWin + sumLoss) / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = sumWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = sumLoss / float64(m.LosingTrades)
	}
	switch {
	case grossLoss == 0 && grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	case grossLoss == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = grossProfit / grossLoss
	}

	// Tax applies once to aggregate positive net profit only.
	m.TaxAmount = 0
	if grossReturn > 0 {
		m.TaxAmount = grossReturn * taxRate
	}
	netReturn := grossReturn - m.TaxAmount
	m.PostTaxReturnPct = netReturn / initialCapital * 100

	m.MaxDrawdownPct = maxDrawdownPct(equity)
	m.Sharpe = sharpeRatio(equity)
	m.Calmar = calmarRatio(equity, m.MaxDrawdownPct)

	return m
}

// maxDrawdownPct returns the largest peak-to-trough percentage decline
// across the equity curve.
func maxDrawdownPct(equity []EquityPoint) float64 {
	peak := equity[0].TotalValue
	maxDD := 0.0
	for _, p := range equity {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak > 0 {
			dd := (peak - p.TotalValue) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// dailyReturns computes simple period-over-period returns across the
// equity curve.
func dailyReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].TotalValue
		if prev == 0 {
			continue
		}
		out = append(out, (equity[i].TotalValue-prev)/prev)
	}
	return out
}

// sharpeRatio annualizes the mean/stddev of per-bar returns using
// sqrt(365), with a daily risk-free rate of riskFreeRateAnnual/365 — the
// same convention original_source/rust/src/backtest.rs's calculate_metrics
// uses for crypto's 24/7 market.
func sharpeRatio(equity []EquityPoint) float64 {
	returns := dailyReturns(equity)
	if len(returns) < 2 {
		return 0
	}
	riskFreeDaily := riskFreeRateAnnual / 365

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return (mean - riskFreeDaily) / stddev * math.Sqrt(365)
}

// calmarRatio is annualized return over the actual elapsed date range,
// divided by max drawdown (as a fraction).
func calmarRatio(equity []EquityPoint, maxDrawdownPctVal float64) float64 {
	if maxDrawdownPctVal == 0 || len(equity) < 2 {
		return 0
	}
	start := equity[0].Timestamp
	end := equity[len(equity)-1].Timestamp
	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		return 0
	}
	initial := equity[0].TotalValue
	final := equity[len(equity)-1].TotalValue
	if initial == 0 {
		return 0
	}
	totalReturn := (final - initial) / initial
	annualizedReturn := totalReturn * (365 / days)
	return annualizedReturn / (maxDrawdownPctVal / 100)
}
