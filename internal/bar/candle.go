// Package bar implements the Price Model: an immutable OHLCV candle with
// validated invariants, symbols, and aligned multi-timeframe/multi-symbol
// views consumed by the simulation loop.
package bar

import (
	"errors"
	"fmt"
	"time"
)

// Symbol is an opaque, content-equal trading pair identifier. A Go string
// already gives cheap shared-ownership and value equality, so no custom
// interner is needed here.
type Symbol string

// Candle is an OHLCV bar over a fixed interval.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ErrInvalidCandle wraps any candle invariant violation.
var ErrInvalidCandle = errors.New("invalid candle")

// NewCandle validates the OHLCV invariants before returning a Candle:
// low <= {open,close} <= high, all prices positive, volume non-negative.
func NewCandle(ts time.Time, open, high, low, close, volume float64) (Candle, error) {
	c := Candle{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
	if err := c.Validate(); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// NewCandleUnchecked constructs a Candle without validation, for trusted
// sources that have already validated elsewhere. The contract is
// identical to NewCandle — callers are responsible for the invariants.
func NewCandleUnchecked(ts time.Time, open, high, low, close, volume float64) Candle {
	return Candle{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

// Validate checks the OHLCV invariants.
func (c Candle) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("%w: non-positive price open=%v high=%v low=%v close=%v",
			ErrInvalidCandle, c.Open, c.High, c.Low, c.Close)
	}
	if c.High < c.Low {
		return fmt.Errorf("%w: high (%v) < low (%v)", ErrInvalidCandle, c.High, c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume %v", ErrInvalidCandle, c.Volume)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("%w: open (%v) out of [%v,%v]", ErrInvalidCandle, c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("%w: close (%v) out of [%v,%v]", ErrInvalidCandle, c.Close, c.Low, c.High)
	}
	return nil
}

// IsValid reports validity without the detailed error.
func (c Candle) IsValid() bool { return c.Validate() == nil }
