package risk

// Config holds the tunable parameters of the Risk Governor. Field naming
// follows the teacher's internal/risk/types.go RiskConfig conventions;
// defaults follow original_source/rust/src/risk.rs's RiskManagerConfig.
type Config struct {
	InitialCapital             float64
	RiskPerTrade               float64
	MaxPositions               int
	MaxPortfolioHeat           float64
	MaxPositionPct             float64
	MaxDrawdown                float64
	DrawdownWarning            float64
	DrawdownCritical           float64
	DrawdownWarningMultiplier  float64
	DrawdownCriticalMultiplier float64
	ConsecutiveLossLimit       int
	ConsecutiveLossMultiplier  float64
}

// DefaultConfig returns the source's documented defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital:             100_000,
		RiskPerTrade:               0.02,
		MaxPositions:               3,
		MaxPortfolioHeat:           0.10,
		MaxPositionPct:             0.20,
		MaxDrawdown:                0.20,
		DrawdownWarning:            0.10,
		DrawdownCritical:           0.15,
		DrawdownWarningMultiplier:  0.50,
		DrawdownCriticalMultiplier: 0.25,
		ConsecutiveLossLimit:       3,
		ConsecutiveLossMultiplier:  0.75,
	}
}

// PositionRiskView is the minimal view of an open position the sizing
// algorithm's portfolio-heat step needs: how much it's already risking.
type PositionRiskView struct {
	RiskAmount float64
}
