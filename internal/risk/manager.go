// Package risk implements the portfolio-level Risk Governor: position
// sizing, drawdown-based de-risking and consecutive-loss protection.
// Grounded on original_source/rust/src/risk.rs's RiskManager, with field
// naming and the config-struct-driven constructor idiom kept from the
// teacher's internal/risk/types.go and manager.go.
package risk

import "sync"

// Manager tracks account capital, drawdown, and streaks, and sizes new
// positions against the 11-step formula from risk.rs. It is owned by a
// single Simulator instance; nothing here touches shared state, so no
// locking is required on the hot path — the mutex exists only to let a
// Manager be inspected safely from another goroutine (e.g. an Optimizer
// polling progress) without the simulation loop itself ever blocking.
type Manager struct {
	mu sync.RWMutex

	cfg       Config
	overrides map[string]Config

	currentCapital float64
	peakCapital    float64

	consecutiveLosses int
	consecutiveWins   int
}

// NewManager creates a risk governor seeded at cfg.InitialCapital.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:            cfg,
		currentCapital: cfg.InitialCapital,
		peakCapital:    cfg.InitialCapital,
	}
}

// Config returns a copy of the governor's configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// WithStrategyOverride installs a per-strategy-tag risk config, consulted by
// the ...ForStrategy sizing/gating calls instead of the Manager's base
// config. Generalizes the teacher's DB-backed GetStrategyConfig/
// SetStrategyConfig table into an in-memory map, since this module carries
// no DB. Returns m for chaining at construction time.
func (m *Manager) WithStrategyOverride(tag string, cfg Config) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides == nil {
		m.overrides = make(map[string]Config)
	}
	m.overrides[tag] = cfg
	return m
}

// configFor returns tag's override if one was installed, else the
// Manager's base config. Caller must hold m.mu.
func (m *Manager) configFor(tag string) Config {
	if cfg, ok := m.overrides[tag]; ok {
		return cfg
	}
	return m.cfg
}

// UpdateCapital marks equity to newCapital, tracking the running peak.
func (m *Manager) UpdateCapital(newCapital float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentCapital = newCapital
	if newCapital > m.peakCapital {
		m.peakCapital = newCapital
	}
}

// CurrentDrawdown returns the fractional drawdown off the running peak.
func (m *Manager) CurrentDrawdown() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentDrawdownLocked()
}

func (m *Manager) currentDrawdownLocked() float64 {
	if m.peakCapital == 0 {
		return 0
	}
	return (m.peakCapital - m.currentCapital) / m.peakCapital
}

// ShouldHaltTrading reports whether drawdown has breached MaxDrawdown.
func (m *Manager) ShouldHaltTrading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentDrawdownLocked() >= m.cfg.MaxDrawdown
}

// drawdownMultiplier returns the two-tier warning/critical size multiplier.
func (m *Manager) drawdownMultiplier() float64 {
	dd := m.currentDrawdownLocked()
	switch {
	case dd >= m.cfg.DrawdownCritical:
		return m.cfg.DrawdownCriticalMultiplier
	case dd >= m.cfg.DrawdownWarning:
		return m.cfg.DrawdownWarningMultiplier
	default:
		return 1.0
	}
}

// consecutiveLossMultiplier shrinks size after ConsecutiveLossLimit losses
// in a row.
func (m *Manager) consecutiveLossMultiplier() float64 {
	if m.consecutiveLosses >= m.cfg.ConsecutiveLossLimit {
		return m.cfg.ConsecutiveLossMultiplier
	}
	return 1.0
}

// CanOpenPosition reports whether a new position may be opened given the
// current open position count: trading isn't halted and the slot count is
// under MaxPositions.
func (m *Manager) CanOpenPosition(openPositionCount int) bool {
	return m.CanOpenPositionForStrategy("", openPositionCount)
}

// CanOpenPositionForStrategy is CanOpenPosition, gated by tag's risk
// override (MaxDrawdown/MaxPositions) if one was installed via
// WithStrategyOverride.
func (m *Manager) CanOpenPositionForStrategy(tag string, openPositionCount int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.configFor(tag)
	return m.currentDrawdownLocked() < cfg.MaxDrawdown && openPositionCount < cfg.MaxPositions
}

// CalculatePositionSize runs the 11-step sizing formula: base risk off
// current capital, scaled by the strategy's regime score, the drawdown
// multiplier and the consecutive-loss multiplier, capped first by
// MaxPositionPct of capital and then by the remaining portfolio-heat
// budget across openPositions. Returns 0 if trading is halted or the stop
// distance is zero.
func (m *Manager) CalculatePositionSize(entryPrice, stopPrice float64, openPositions []PositionRiskView, regimeScore float64) float64 {
	return m.CalculatePositionSizeForStrategy("", entryPrice, stopPrice, openPositions, regimeScore)
}

// CalculatePositionSizeForStrategy is CalculatePositionSize, run against
// tag's risk override (RiskPerTrade/MaxPositionPct/MaxPortfolioHeat/
// MaxDrawdown) if one was installed via WithStrategyOverride, else the
// Manager's base config. Drawdown/streak state (currentCapital, the
// multipliers, the streak counters) stays shared across all strategy tags —
// only the sizing parameters are overridable, matching the teacher's
// per-strategy config row sharing one account's live drawdown state.
func (m *Manager) CalculatePositionSizeForStrategy(tag string, entryPrice, stopPrice float64, openPositions []PositionRiskView, regimeScore float64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.configFor(tag)

	if m.currentDrawdownLocked() >= cfg.MaxDrawdown {
		return 0
	}

	baseRisk := m.currentCapital * cfg.RiskPerTrade
	regimeAdjusted := baseRisk * regimeScore
	adjustedRisk := regimeAdjusted * m.drawdownMultiplier() * m.consecutiveLossMultiplier()

	stopDistance := entryPrice - stopPrice
	if stopDistance < 0 {
		stopDistance = -stopDistance
	}
	if stopDistance == 0 {
		return 0
	}

	positionSize := adjustedRisk / stopDistance

	maxPositionValue := m.currentCapital * cfg.MaxPositionPct
	positionValue := positionSize * entryPrice
	if positionValue > maxPositionValue {
		positionSize = maxPositionValue / entryPrice
	}

	currentHeat := 0.0
	for _, p := range openPositions {
		currentHeat += p.RiskAmount
	}
	maxAllowedHeat := m.currentCapital * cfg.MaxPortfolioHeat

	if currentHeat+adjustedRisk > maxAllowedHeat {
		remainingHeat := maxAllowedHeat - currentHeat
		if remainingHeat <= 0 {
			return 0
		}
		capped := remainingHeat / stopDistance
		if capped < positionSize {
			return capped
		}
		return positionSize
	}

	return positionSize
}

// RecordWin resets the loss streak and extends the win streak.
func (m *Manager) RecordWin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveWins++
	m.consecutiveLosses = 0
}

// RecordLoss resets the win streak and extends the loss streak.
func (m *Manager) RecordLoss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveLosses++
	m.consecutiveWins = 0
}

// ConsecutiveLosses returns the current losing streak length.
func (m *Manager) ConsecutiveLosses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveLosses
}
