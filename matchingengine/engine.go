// Package matchingengine implements a single-owner, price-time-priority
// limit order book: an ordered map of price levels, each an intrusive FIFO
// chain of arena-backed entries, with cached best-bid/best-ask extrema.
package matchingengine

import (
	"github.com/google/btree"

	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/tick"
)

// priceLimit is one non-empty price level: a FIFO chain of arena indices
// from head to tail. A priceLimit is only ever present in a tree while its
// chain is non-empty; a fully drained level is removed rather than kept
// around with a nil link.
type priceLimit struct {
	price tick.Unit
	head  int
	tail  int
}

// Order is the engine-level representation of an incoming limit order.
type Order struct {
	Price  tick.Unit
	Size   tick.Unit
	Side   orderbook.Side
	Trader string
}

// Engine is a single-owner matching engine. It is not safe for concurrent
// use; callers needing concurrency own a single mutator goroutine, as
// described for the engine in the surrounding client library.
type Engine struct {
	bidLimits *btree.BTreeG[*priceLimit]
	askLimits *btree.BTreeG[*priceLimit]
	entries   arena

	bestBid tick.Unit
	bestAsk tick.Unit

	nextOrderID uint64
}

func priceLess(a, b *priceLimit) bool {
	return a.price < b.price
}

// New constructs an empty engine. capacity is a hint for the entry arena's
// initial allocation, not a hard limit.
func New(capacity int) *Engine {
	return &Engine{
		bidLimits: btree.NewG(32, priceLess),
		askLimits: btree.NewG(32, priceLess),
		entries:   newArena(capacity),
		bestBid:   0,
		bestAsk:   orderbook.MaxTick,
	}
}

// BestBid returns the cached best bid price, 0 if the bid side is empty.
func (e *Engine) BestBid() tick.Unit { return e.bestBid }

// BestAsk returns the cached best ask price, MaxTick if the ask side is empty.
func (e *Engine) BestAsk() tick.Unit { return e.bestAsk }

// SizeAt returns the total resting size across every order at price on side.
func (e *Engine) SizeAt(side orderbook.Side, price tick.Unit) tick.Unit {
	pl, ok := e.treeFor(side).Get(&priceLimit{price: price})
	if !ok {
		return 0
	}
	var total tick.Unit
	for idx := pl.head; idx != noIndex; idx = e.entries.get(idx).next {
		total += e.entries.get(idx).size
	}
	return total
}

// Limit submits a new limit order. If any part of it rests in the book, it
// returns the allocated order id and true. If it was fully consumed by
// matching, it returns (0, false).
func (e *Engine) Limit(o Order) (orderID uint64, rested bool) {
	remaining := o.Size

	marketable := (o.Side == orderbook.Bid && o.Price >= e.bestAsk) ||
		(o.Side == orderbook.Ask && e.bestBid != 0 && o.Price <= e.bestBid)

	if marketable {
		remaining = e.execRange(o.Side, o.Price, remaining)
	}

	if remaining == 0 {
		return 0, false
	}

	id := e.nextOrderID
	e.nextOrderID++
	e.insert(o.Side, o.Price, remaining, id)
	return id, true
}

// execRange walks the opposite side's price levels from the current best
// toward limitPrice (inclusive), consuming resting entries FIFO within
// each level, and returns the order's unfilled remainder.
func (e *Engine) execRange(side orderbook.Side, limitPrice, remaining tick.Unit) tick.Unit {
	opposite := e.oppositeTreeFor(side)
	ascending := side == orderbook.Bid

	var drained []tick.Unit
	visit := func(pl *priceLimit) bool {
		if ascending && pl.price > limitPrice {
			return false
		}
		if !ascending && pl.price < limitPrice {
			return false
		}
		remaining = e.execLevel(pl, remaining)
		if pl.head == noIndex {
			drained = append(drained, pl.price)
		}
		return remaining > 0
	}

	if ascending {
		opposite.Ascend(visit)
	} else {
		opposite.Descend(visit)
	}

	for _, price := range drained {
		opposite.Delete(&priceLimit{price: price})
	}

	e.refreshOppositeBest(side, opposite)
	return remaining
}

// execLevel consumes entries from pl's FIFO chain, earliest first, until
// either the chain or the incoming order's remaining size is exhausted.
func (e *Engine) execLevel(pl *priceLimit, remaining tick.Unit) tick.Unit {
	idx := pl.head
	for idx != noIndex && remaining > 0 {
		entry := e.entries.get(idx)
		if entry.size <= remaining {
			remaining -= entry.size
			next := entry.next
			e.entries.freeEntry(idx)
			idx = next
		} else {
			entry.size -= remaining
			remaining = 0
		}
	}
	pl.head = idx
	if idx == noIndex {
		pl.tail = noIndex
	}
	return remaining
}

func (e *Engine) refreshOppositeBest(side orderbook.Side, opposite *btree.BTreeG[*priceLimit]) {
	if side == orderbook.Bid {
		if min, ok := opposite.Min(); ok {
			e.bestAsk = min.price
		} else {
			e.bestAsk = orderbook.MaxTick
		}
		return
	}
	if max, ok := opposite.Max(); ok {
		e.bestBid = max.price
	} else {
		e.bestBid = 0
	}
}

// insert appends a residual order onto its own side's book, allocating a
// new arena entry and extending or creating that price level's chain.
func (e *Engine) insert(side orderbook.Side, price, size tick.Unit, orderID uint64) {
	tree := e.treeFor(side)
	idx := e.entries.alloc(bookEntry{size: size, next: noIndex, orderID: orderID})

	if existing, ok := tree.Get(&priceLimit{price: price}); ok {
		e.entries.get(existing.tail).next = idx
		existing.tail = idx
	} else {
		tree.ReplaceOrInsert(&priceLimit{price: price, head: idx, tail: idx})
	}

	if side == orderbook.Bid {
		if price > e.bestBid {
			e.bestBid = price
		}
	} else if price < e.bestAsk {
		e.bestAsk = price
	}
}

func (e *Engine) treeFor(side orderbook.Side) *btree.BTreeG[*priceLimit] {
	if side == orderbook.Bid {
		return e.bidLimits
	}
	return e.askLimits
}

func (e *Engine) oppositeTreeFor(side orderbook.Side) *btree.BTreeG[*priceLimit] {
	if side == orderbook.Bid {
		return e.askLimits
	}
	return e.bidLimits
}
