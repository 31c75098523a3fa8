package oms

import (
	"sort"
	"time"
)

// priceLevel holds the FIFO queue of order ids resting at one price.
type priceLevel struct {
	price float64
	ids   []OrderID
}

// OrderBook is a single symbol's active-order index with price-time
// priority. It is pure storage: matching is the Execution Engine's job
// (see execution.go). Buy levels are kept sorted ascending by price and
// read back-to-front for "best bid first"; sell levels ascending and read
// front-to-back for "best ask first" — the same ordering
// BTreeMap<OrderedFloat<f64>, VecDeque<OrderId>> gives in the source,
// realized here as sorted slices since no ordered-map dependency exists
// anywhere in the example pack for Go.
type OrderBook struct {
	buyLevels  []*priceLevel
	sellLevels []*priceLevel
	tickets    map[OrderID]*Order
}

// NewOrderBook creates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{tickets: make(map[OrderID]*Order)}
}

func (b *OrderBook) levelsFor(side Side) *[]*priceLevel {
	if side == Buy {
		return &b.buyLevels
	}
	return &b.sellLevels
}

func (b *OrderBook) orderPrice(o *Order) float64 {
	if o.LimitPrice != nil {
		return *o.LimitPrice
	}
	if o.StopPrice != nil {
		return *o.StopPrice
	}
	return 0
}

func findLevel(levels []*priceLevel, price float64) (int, bool) {
	i := sort.Search(len(levels), func(i int) bool { return levels[i].price >= price })
	if i < len(levels) && levels[i].price == price {
		return i, true
	}
	return i, false
}

// Add transitions the order Pending -> Open and inserts it into the
// price-time index. Within a price level, insertion order is preserved.
func (b *OrderBook) Add(o *Order, now time.Time) {
	o.State = Open
	o.UpdatedAt = now

	levels := b.levelsFor(o.Side)
	price := b.orderPrice(o)
	idx, found := findLevel(*levels, price)
	if found {
		(*levels)[idx].ids = append((*levels)[idx].ids, o.ID)
	} else {
		lvl := &priceLevel{price: price, ids: []OrderID{o.ID}}
		*levels = append(*levels, nil)
		copy((*levels)[idx+1:], (*levels)[idx:])
		(*levels)[idx] = lvl
	}
	b.tickets[o.ID] = o
}

// Cancel removes the order from both indexes, setting its state to
// Cancelled, and returns it.
func (b *OrderBook) Cancel(id OrderID, now time.Time) *Order {
	o, ok := b.tickets[id]
	if !ok {
		return nil
	}
	delete(b.tickets, id)
	o.State = Cancelled
	o.UpdatedAt = now

	levels := b.levelsFor(o.Side)
	price := b.orderPrice(o)
	if idx, found := findLevel(*levels, price); found {
		lvl := (*levels)[idx]
		for i, oid := range lvl.ids {
			if oid == id {
				lvl.ids = append(lvl.ids[:i], lvl.ids[i+1:]...)
				break
			}
		}
		if len(lvl.ids) == 0 {
			*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
		}
	}
	return o
}

// Get returns the order by id.
func (b *OrderBook) Get(id OrderID) *Order { return b.tickets[id] }

// MarkFilled sets the order's terminal Filled state.
func (b *OrderBook) MarkFilled(id OrderID, now time.Time) {
	if o, ok := b.tickets[id]; ok {
		o.State = Filled
		o.UpdatedAt = now
	}
}

// AllIDs enumerates all ticket ids currently in the book. The returned
// slice is a snapshot safe to range over even if the book mutates during
// iteration.
func (b *OrderBook) AllIDs() []OrderID {
	ids := make([]OrderID, 0, len(b.tickets))
	for id := range b.tickets {
		ids = append(ids, id)
	}
	return ids
}

// AllOrders enumerates all orders currently in the book.
func (b *OrderBook) AllOrders() []*Order {
	orders := make([]*Order, 0, len(b.tickets))
	for _, o := range b.tickets {
		orders = append(orders, o)
	}
	return orders
}

// BestBid returns the highest resting buy price, if any.
func (b *OrderBook) BestBid() (float64, bool) {
	if len(b.buyLevels) == 0 {
		return 0, false
	}
	return b.buyLevels[len(b.buyLevels)-1].price, true
}

// BestAsk returns the lowest resting sell price, if any.
func (b *OrderBook) BestAsk() (float64, bool) {
	if len(b.sellLevels) == 0 {
		return 0, false
	}
	return b.sellLevels[0].price, true
}

// RemoveTerminal removes every order whose state is terminal from the
// book, matching Phase 1's post-sweep cleanup.
func (b *OrderBook) RemoveTerminal(now time.Time) {
	for _, id := range b.AllIDs() {
		if o := b.tickets[id]; o != nil && o.State.IsTerminal() {
			delete(b.tickets, id)
			levels := b.levelsFor(o.Side)
			price := b.orderPrice(o)
			if idx, found := findLevel(*levels, price); found {
				lvl := (*levels)[idx]
				for i, oid := range lvl.ids {
					if oid == id {
						lvl.ids = append(lvl.ids[:i], lvl.ids[i+1:]...)
						break
					}
				}
				if len(lvl.ids) == 0 {
					*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
				}
			}
		}
	}
}
