package oms

import (
	"testing"
	"time"

	"backtest-core/internal/bar"
)

func mkCandle(o, h, l, c float64) bar.Candle {
	return bar.NewCandleUnchecked(time.Now(), o, h, l, c, 100)
}

func TestCheckFillMarketAlwaysFillsAtOpen(t *testing.T) {
	e := DefaultExecutionEngine()
	o := NewOrder(1, "BTCUSDT", Buy, Market, 1, nil, nil, GTC, "", time.Now())
	fp, ok := e.CheckFill(o, mkCandle(100, 105, 95, 102), 0)
	if !ok || fp.Price != 100 || fp.IsMaker {
		t.Fatalf("got %+v, %v", fp, ok)
	}
}

func TestCheckFillLimitBuyFillsWhenLowTouchesLimit(t *testing.T) {
	e := DefaultExecutionEngine()
	limit := 98.0
	o := NewOrder(1, "BTCUSDT", Buy, Limit, 1, &limit, nil, GTC, "", time.Now())
	barIdx := 5
	o.CreatedBarIndex = &barIdx

	fp, ok := e.CheckFill(o, mkCandle(100, 101, 97, 99), 6)
	if !ok || fp.Price != limit || !fp.IsMaker {
		t.Fatalf("got %+v, %v, want limit fill at %v maker", fp, ok, limit)
	}
}

func TestCheckFillLimitSameBarAsCreatedNeverFills(t *testing.T) {
	e := DefaultExecutionEngine()
	limit := 98.0
	o := NewOrder(1, "BTCUSDT", Buy, Limit, 1, &limit, nil, GTC, "", time.Now())
	barIdx := 6
	o.CreatedBarIndex = &barIdx

	_, ok := e.CheckFill(o, mkCandle(100, 101, 97, 99), 6)
	if ok {
		t.Fatal("limit order created this bar must not fill this same bar (anti-lookahead guard)")
	}
}

func TestCheckFillStopBuyAppliesSlippage(t *testing.T) {
	e := DefaultExecutionEngine()
	stop := 100.0
	o := NewOrder(1, "BTCUSDT", Buy, Stop, 1, nil, &stop, GTC, "", time.Now())

	fp, ok := e.CheckFill(o, mkCandle(99, 102, 98, 101), 0)
	if !ok {
		t.Fatal("expected stop to trigger when high >= stop")
	}
	want := stop * (1 + e.SlippageRate)
	if fp.Price != want {
		t.Fatalf("fill price = %v, want %v", fp.Price, want)
	}
}

func TestExecutePartialFillTracksWeightedAveragePrice(t *testing.T) {
	e := DefaultExecutionEngine()
	o := NewOrder(1, "BTCUSDT", Buy, Market, 10, nil, nil, GTC, "", time.Now())

	f1 := e.ExecutePartialFill(o, 100, 4, false, time.Now())
	if f1.Quantity != 4 || o.State != PartiallyFilled {
		t.Fatalf("after first partial fill: qty=%v state=%v", f1.Quantity, o.State)
	}

	f2 := e.ExecutePartialFill(o, 110, 6, false, time.Now())
	if f2.Quantity != 6 || o.State != Filled {
		t.Fatalf("after second partial fill: qty=%v state=%v", f2.Quantity, o.State)
	}

	wantAvg := (100*4 + 110*6) / 10.0
	if o.AvgFillPrice != wantAvg {
		t.Fatalf("AvgFillPrice = %v, want %v", o.AvgFillPrice, wantAvg)
	}
}
