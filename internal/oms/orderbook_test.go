package oms

import (
	"testing"
	"time"
)

func newTestOrder(id OrderID, side Side, limit float64) *Order {
	return &Order{ID: id, Side: side, Type: Limit, LimitPrice: &limit, Quantity: 1}
}

func TestOrderBookAddInsertsAndTransitionsToOpen(t *testing.T) {
	b := NewOrderBook()
	o := newTestOrder(1, Buy, 100)
	b.Add(o, time.Now())

	if o.State != Open {
		t.Fatalf("state = %v, want Open", o.State)
	}
	if got := b.Get(1); got != o {
		t.Fatalf("Get did not return the inserted order")
	}
	if bid, ok := b.BestBid(); !ok || bid != 100 {
		t.Fatalf("BestBid = %v, %v, want 100, true", bid, ok)
	}
}

func TestOrderBookBestBidIsHighestPrice(t *testing.T) {
	b := NewOrderBook()
	b.Add(newTestOrder(1, Buy, 100), time.Now())
	b.Add(newTestOrder(2, Buy, 105), time.Now())
	b.Add(newTestOrder(3, Buy, 95), time.Now())

	if bid, ok := b.BestBid(); !ok || bid != 105 {
		t.Fatalf("BestBid = %v, %v, want 105, true", bid, ok)
	}
}

func TestOrderBookBestAskIsLowestPrice(t *testing.T) {
	b := NewOrderBook()
	b.Add(newTestOrder(1, Sell, 110), time.Now())
	b.Add(newTestOrder(2, Sell, 108), time.Now())
	b.Add(newTestOrder(3, Sell, 120), time.Now())

	if ask, ok := b.BestAsk(); !ok || ask != 108 {
		t.Fatalf("BestAsk = %v, %v, want 108, true", ask, ok)
	}
}

func TestOrderBookCancelRemovesFromBothIndexes(t *testing.T) {
	b := NewOrderBook()
	b.Add(newTestOrder(1, Buy, 100), time.Now())

	cancelled := b.Cancel(1, time.Now())
	if cancelled == nil || cancelled.State != Cancelled {
		t.Fatalf("Cancel returned %v, want a Cancelled order", cancelled)
	}
	if _, ok := b.BestBid(); ok {
		t.Fatal("expected no resting bid after cancelling the only order")
	}
	if b.Get(1) != nil {
		t.Fatal("expected the ticket to be removed after Cancel")
	}
}

func TestOrderBookCancelUnknownIDIsNoop(t *testing.T) {
	b := NewOrderBook()
	if got := b.Cancel(999, time.Now()); got != nil {
		t.Fatalf("Cancel on unknown id = %v, want nil", got)
	}
}

func TestOrderBookMarkFilledSetsTerminalState(t *testing.T) {
	b := NewOrderBook()
	o := newTestOrder(1, Buy, 100)
	b.Add(o, time.Now())

	b.MarkFilled(1, time.Now())
	if o.State != Filled {
		t.Fatalf("state = %v, want Filled", o.State)
	}
}

func TestOrderBookRemoveTerminalPurgesFilledAndCancelledOnly(t *testing.T) {
	b := NewOrderBook()
	b.Add(newTestOrder(1, Buy, 100), time.Now())
	b.Add(newTestOrder(2, Sell, 110), time.Now())
	b.MarkFilled(2, time.Now())

	b.RemoveTerminal(time.Now())

	if b.Get(2) != nil {
		t.Fatal("expected filled order to be purged")
	}
	if b.Get(1) == nil {
		t.Fatal("expected the still-open order to survive RemoveTerminal")
	}
	if _, ok := b.BestAsk(); ok {
		t.Fatal("expected the filled order's price level to be removed")
	}
}

func TestOrderBookAllIDsReflectsCurrentTickets(t *testing.T) {
	b := NewOrderBook()
	b.Add(newTestOrder(1, Buy, 100), time.Now())
	b.Add(newTestOrder(2, Sell, 110), time.Now())

	ids := b.AllIDs()
	if len(ids) != 2 {
		t.Fatalf("AllIDs len = %d, want 2", len(ids))
	}
}
