package bar

import (
	"errors"
	"testing"
	"time"
)

func TestNewCandleRejectsInvertedHighLow(t *testing.T) {
	_, err := NewCandle(time.Now(), 10, 5, 8, 9, 100)
	if !errors.Is(err, ErrInvalidCandle) {
		t.Fatalf("expected ErrInvalidCandle, got %v", err)
	}
}

func TestNewCandleRejectsOpenOutsideRange(t *testing.T) {
	_, err := NewCandle(time.Now(), 20, 15, 5, 10, 100)
	if !errors.Is(err, ErrInvalidCandle) {
		t.Fatalf("expected ErrInvalidCandle for open out of range, got %v", err)
	}
}

func TestNewCandleRejectsNegativeVolume(t *testing.T) {
	_, err := NewCandle(time.Now(), 10, 15, 5, 12, -1)
	if !errors.Is(err, ErrInvalidCandle) {
		t.Fatalf("expected ErrInvalidCandle for negative volume, got %v", err)
	}
}

func TestNewCandleAcceptsValidOHLCV(t *testing.T) {
	c, err := NewCandle(time.Now(), 10, 15, 5, 12, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsValid() {
		t.Fatal("expected a valid candle to report IsValid() == true")
	}
}

func TestNewCandleUncheckedSkipsValidation(t *testing.T) {
	c := NewCandleUnchecked(time.Now(), 10, 5, 20, 12, -5)
	if c.IsValid() {
		t.Fatal("expected an invalid candle built unchecked to still fail Validate()")
	}
}
