// Package orderbook implements the two-sided, price-sorted view of a
// venue's limit order book: a pair of price->size maps kept in sync by
// LimitUpdate deltas, with diffing support for reconciling two snapshots.
package orderbook

import (
	"sort"

	"github.com/epic1st/xchg/tick"
)

// Side is the disjoint union of book sides a LimitUpdate applies to.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// MaxTick is the sentinel used for best-ask-of-an-empty-book.
const MaxTick tick.Unit = ^tick.Unit(0)

// LimitUpdate is a single price-level delta. A Size of 0 removes the level.
type LimitUpdate struct {
	Side  Side
	Price tick.Unit
	Size  tick.Unit
}

// OrderBook holds two independently sorted price->size maps. Every entry
// has Size > 0; a size of 0 update removes the entry instead of being
// stored as a zero.
type OrderBook struct {
	bid map[tick.Unit]tick.Unit
	ask map[tick.Unit]tick.Unit
}

// New returns an empty order book.
func New() *OrderBook {
	return &OrderBook{
		bid: make(map[tick.Unit]tick.Unit),
		ask: make(map[tick.Unit]tick.Unit),
	}
}

// Update applies a single delta. Idempotent for repeated identical values.
func (b *OrderBook) Update(u LimitUpdate) {
	m := b.sideMap(u.Side)
	if u.Size == 0 {
		delete(m, u.Price)
		return
	}
	m[u.Price] = u.Size
}

func (b *OrderBook) sideMap(s Side) map[tick.Unit]tick.Unit {
	if s == Bid {
		return b.bid
	}
	return b.ask
}

// BestBid returns the highest bid price, or 0 if the bid side is empty.
func (b *OrderBook) BestBid() tick.Unit {
	var best tick.Unit
	first := true
	for p := range b.bid {
		if first || p > best {
			best = p
			first = false
		}
	}
	return best
}

// BestAsk returns the lowest ask price, or MaxTick if the ask side is empty.
func (b *OrderBook) BestAsk() tick.Unit {
	best := MaxTick
	for p := range b.ask {
		if p < best {
			best = p
		}
	}
	return best
}

// SizeAt returns the resting size at price on side, 0 if absent.
func (b *OrderBook) SizeAt(s Side, price tick.Unit) tick.Unit {
	return b.sideMap(s)[price]
}

// Level is a single (price, size) pair returned by the ordered iterators.
type Level struct {
	Price tick.Unit
	Size  tick.Unit
}

// Bid returns resting bid levels ordered highest price first.
func (b *OrderBook) Bid() []Level {
	return sortedLevels(b.bid, true)
}

// Ask returns resting ask levels ordered lowest price first.
func (b *OrderBook) Ask() []Level {
	return sortedLevels(b.ask, false)
}

func sortedLevels(m map[tick.Unit]tick.Unit, descending bool) []Level {
	levels := make([]Level, 0, len(m))
	for p, sz := range m {
		levels = append(levels, Level{Price: p, Size: sz})
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	return levels
}

// Diff computes the minimal set of LimitUpdates that, applied in order to
// b, make it equal to other. Computed per side in O(n+m) via a hash-set
// difference: every price in other that is new or changed relative to b
// emits an update; every price present only in b emits a size-0 removal.
func (b *OrderBook) Diff(other *OrderBook) []LimitUpdate {
	var updates []LimitUpdate
	updates = append(updates, diffSide(Bid, b.bid, other.bid)...)
	updates = append(updates, diffSide(Ask, b.ask, other.ask)...)
	return updates
}

func diffSide(side Side, self, other map[tick.Unit]tick.Unit) []LimitUpdate {
	var updates []LimitUpdate
	for price, otherSize := range other {
		if selfSize, ok := self[price]; !ok || selfSize != otherSize {
			updates = append(updates, LimitUpdate{Side: side, Price: price, Size: otherSize})
		}
	}
	for price := range self {
		if _, ok := other[price]; !ok {
			updates = append(updates, LimitUpdate{Side: side, Price: price, Size: 0})
		}
	}
	return updates
}

// Apply applies every update in order, in place.
func (b *OrderBook) Apply(updates []LimitUpdate) {
	for _, u := range updates {
		b.Update(u)
	}
}

// Clone returns a deep copy, used by tests exercising the diff round trip.
func (b *OrderBook) Clone() *OrderBook {
	c := New()
	for p, s := range b.bid {
		c.bid[p] = s
	}
	for p, s := range b.ask {
		c.ask[p] = s
	}
	return c
}
