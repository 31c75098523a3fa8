package bar

import (
	"testing"
	"time"
)

func TestMultiTimeframeViewGetAndPrimary(t *testing.T) {
	v := NewMultiTimeframeView("1h")
	hourly := []Candle{c(time.Now(), 100)}
	daily := []Candle{c(time.Now(), 99)}
	v.AddTimeframe("1h", hourly)
	v.AddTimeframe("1d", daily)

	if len(v.PrimaryCandles()) != 1 {
		t.Fatalf("PrimaryCandles() len = %d, want 1", len(v.PrimaryCandles()))
	}
	if _, ok := v.Get("1w"); ok {
		t.Fatal("expected Get on an absent timeframe to report ok=false")
	}
	if got, ok := v.Get("1d"); !ok || len(got) != 1 {
		t.Fatalf("Get(1d) = %v, %v, want the stored daily slice", got, ok)
	}
}

func TestAlignSecondaryExcludesUnclosedBars(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	secondary := []Candle{
		c(t0, 100),
		c(t0.Add(24*time.Hour), 101),
		c(t0.Add(48*time.Hour), 102),
	}
	asOf := c(t0.Add(30*time.Hour), 50) // after the second bar's timestamp, before the third's

	got := AlignSecondary(secondary, asOf, 10)
	if len(got) != 2 {
		t.Fatalf("AlignSecondary returned %d candles, want 2 (no look-ahead into the third bar)", len(got))
	}
}

func TestAlignSecondaryBoundedByLookback(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	secondary := make([]Candle, 10)
	for i := range secondary {
		secondary[i] = c(t0.Add(time.Duration(i)*24*time.Hour), float64(100+i))
	}
	asOf := c(t0.Add(9*24*time.Hour), 50)

	got := AlignSecondary(secondary, asOf, 3)
	if len(got) != 3 {
		t.Fatalf("AlignSecondary returned %d candles, want 3 (lookback cap)", len(got))
	}
}

func TestAlignSecondaryNoEligibleBarsReturnsNil(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	secondary := []Candle{c(t0.Add(24 * time.Hour), 100)}
	asOf := c(t0, 50)

	got := AlignSecondary(secondary, asOf, 5)
	if got != nil {
		t.Fatalf("expected nil when asOf precedes every secondary bar, got %v", got)
	}
}
