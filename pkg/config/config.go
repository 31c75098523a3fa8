// Package config loads BacktestConfig from the environment (optionally
// via a .env file) and, where present, a YAML overlay — the teacher's
// pkg/config/config.go pattern, re-pointed at backtest parameters
// instead of exchange/DB credentials.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"backtest-core/internal/risk"
)

// BacktestConfig holds every environment-driven knob listed in
// SPEC_FULL.md §6, mapped from the teacher's DryRun* fields onto this
// module's simulation/risk vocabulary.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	Lookback       int     `yaml:"lookback"`
	EnableT1       bool    `yaml:"enable_t1"`

	MakerFeeRate float64 `yaml:"maker_fee_rate"`
	TakerFeeRate float64 `yaml:"taker_fee_rate"`
	SlippageRate float64 `yaml:"slippage_rate"`
	TaxRate      float64 `yaml:"tax_rate"`

	RiskPerTrade               float64 `yaml:"risk_per_trade"`
	MaxPositions               int     `yaml:"max_positions"`
	MaxPortfolioHeat           float64 `yaml:"max_portfolio_heat"`
	MaxPositionPct             float64 `yaml:"max_position_pct"`
	MaxDrawdown                float64 `yaml:"max_drawdown"`
	DrawdownWarning            float64 `yaml:"drawdown_warning"`
	DrawdownCritical           float64 `yaml:"drawdown_critical"`
	DrawdownWarningMultiplier  float64 `yaml:"drawdown_warning_multiplier"`
	DrawdownCriticalMultiplier float64 `yaml:"drawdown_critical_multiplier"`
	ConsecutiveLossLimit       int     `yaml:"consecutive_loss_limit"`
	ConsecutiveLossMultiplier  float64 `yaml:"consecutive_loss_multiplier"`

	OptimizerWorkers   int     `yaml:"optimizer_workers"`
	OptimizerRateLimit float64 `yaml:"optimizer_rate_limit"`
}

// ErrInvalidConfig is returned when a loaded value fails basic sanity
// checks (negative rates, zero capital).
var ErrInvalidConfig = fmt.Errorf("invalid backtest configuration")

// Load reads environment variables (optionally seeded from a .env file
// via godotenv) into a BacktestConfig, defaulting every field to the
// values in risk.DefaultConfig()/backtest's own defaults.
func Load() (*BacktestConfig, error) {
	// Ignore error so the app still starts when .env is missing — matches
	// the teacher's pkg/config/config.go.
	_ = godotenv.Load()

	rc := risk.DefaultConfig()

	cfg := &BacktestConfig{
		InitialCapital: getEnvFloat("BACKTEST_INITIAL_CAPITAL", rc.InitialCapital),
		Lookback:       getEnvInt("BACKTEST_LOOKBACK", 300),
		EnableT1:       getEnvBool("BACKTEST_ENABLE_T1", true),

		MakerFeeRate: getEnvFloat("BACKTEST_MAKER_FEE_RATE", 0.0004),
		TakerFeeRate: getEnvFloat("BACKTEST_TAKER_FEE_RATE", 0.0006),
		SlippageRate: getEnvFloat("BACKTEST_SLIPPAGE_RATE", 0.001),
		TaxRate:      getEnvFloat("BACKTEST_TAX_RATE", 0),

		RiskPerTrade:               getEnvFloat("RISK_PER_TRADE", rc.RiskPerTrade),
		MaxPositions:               getEnvInt("RISK_MAX_POSITIONS", rc.MaxPositions),
		MaxPortfolioHeat:           getEnvFloat("RISK_MAX_PORTFOLIO_HEAT", rc.MaxPortfolioHeat),
		MaxPositionPct:             getEnvFloat("RISK_MAX_POSITION_PCT", rc.MaxPositionPct),
		MaxDrawdown:                getEnvFloat("RISK_MAX_DRAWDOWN", rc.MaxDrawdown),
		DrawdownWarning:            getEnvFloat("RISK_DRAWDOWN_WARNING", rc.DrawdownWarning),
		DrawdownCritical:           getEnvFloat("RISK_DRAWDOWN_CRITICAL", rc.DrawdownCritical),
		DrawdownWarningMultiplier:  getEnvFloat("RISK_DRAWDOWN_WARNING_MULTIPLIER", rc.DrawdownWarningMultiplier),
		DrawdownCriticalMultiplier: getEnvFloat("RISK_DRAWDOWN_CRITICAL_MULTIPLIER", rc.DrawdownCriticalMultiplier),
		ConsecutiveLossLimit:       getEnvInt("RISK_CONSECUTIVE_LOSS_LIMIT", rc.ConsecutiveLossLimit),
		ConsecutiveLossMultiplier:  getEnvFloat("RISK_CONSECUTIVE_LOSS_MULTIPLIER", rc.ConsecutiveLossMultiplier),

		OptimizerWorkers:   getEnvInt("OPTIMIZER_WORKERS", 4),
		OptimizerRateLimit: getEnvFloat("OPTIMIZER_RATE_LIMIT", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromYAML reads Load()'s environment defaults, then overlays any
// fields present in the YAML file at path — lets a user check a repeatable
// parameter set into version control instead of exporting a pile of
// env vars, per the teacher's pkg/config direct dependency on
// gopkg.in/yaml.v3 (otherwise unused once the DB/exchange config it
// originally served was dropped).
func LoadFromYAML(path string) (*BacktestConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RiskConfig projects the risk-related fields of BacktestConfig into a
// risk.Config for handing to risk.NewManager.
func (c *BacktestConfig) RiskConfig() risk.Config {
	return risk.Config{
		InitialCapital:             c.InitialCapital,
		RiskPerTrade:               c.RiskPerTrade,
		MaxPositions:               c.MaxPositions,
		MaxPortfolioHeat:           c.MaxPortfolioHeat,
		MaxPositionPct:             c.MaxPositionPct,
		MaxDrawdown:                c.MaxDrawdown,
		DrawdownWarning:            c.DrawdownWarning,
		DrawdownCritical:           c.DrawdownCritical,
		DrawdownWarningMultiplier:  c.DrawdownWarningMultiplier,
		DrawdownCriticalMultiplier: c.DrawdownCriticalMultiplier,
		ConsecutiveLossLimit:       c.ConsecutiveLossLimit,
		ConsecutiveLossMultiplier:  c.ConsecutiveLossMultiplier,
	}
}

func (c *BacktestConfig) validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", ErrInvalidConfig)
	}
	if c.MakerFeeRate < 0 || c.TakerFeeRate < 0 || c.SlippageRate < 0 || c.TaxRate < 0 {
		return fmt.Errorf("%w: rates must be non-negative", ErrInvalidConfig)
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("%w: lookback must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
