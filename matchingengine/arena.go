package matchingengine

import "github.com/epic1st/xchg/tick"

// noIndex marks the end of an intrusive FIFO chain, and the head and tail
// of a fully drained price level.
const noIndex = -1

// bookEntry is one resting order, reachable from exactly one priceLimit's
// head..tail chain, or sitting unused on the arena's free list.
type bookEntry struct {
	size    tick.Unit
	next    int
	orderID uint64
}

// arena is a flat, free-listed store of bookEntry values. Allocating never
// grows the backing slice once the free list has slack, and freeing an
// entry is a LIFO push — this is the index-chasing alternative to a
// per-level doubly-linked list of heap-allocated nodes.
type arena struct {
	entries []bookEntry
	free    []int
}

func newArena(capacity int) arena {
	return arena{entries: make([]bookEntry, 0, capacity)}
}

func (a *arena) alloc(e bookEntry) int {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.entries[idx] = e
		return idx
	}
	a.entries = append(a.entries, e)
	return len(a.entries) - 1
}

func (a *arena) freeEntry(idx int) {
	a.entries[idx] = bookEntry{}
	a.free = append(a.free, idx)
}

func (a *arena) get(idx int) *bookEntry {
	return &a.entries[idx]
}
