package xchg

import (
	"sync"

	"github.com/epic1st/xchg/orderbook"
)

// BookState reports whether a LiveOrderBook's backing stream is still
// producing updates.
type BookState int

const (
	// Live means the updater goroutine is still running and the snapshot
	// reflects every notification applied so far.
	Live BookState = iota
	// Disconnected means the notification stream has ended; the snapshot
	// is the last state observed before that happened.
	Disconnected
)

func (s BookState) String() string {
	if s == Live {
		return "live"
	}
	return "disconnected"
}

// LiveOrderBook wraps a shared, continuously updated OrderBook snapshot
// derived from a notification stream. A background goroutine consumes
// LimitUpdates batches and applies them under a write lock; the owning
// handle reads under a read lock via Snapshot.
//
// Liveness is reported with a plain closed-channel broadcast rather than a
// weak pointer: the updater goroutine closes `done` when the notification
// channel is exhausted, and every handle observes that close independently
// of how many readers are still holding the book.
type LiveOrderBook struct {
	mu   sync.RWMutex
	book *orderbook.OrderBook
	done chan struct{}
}

// NewLiveOrderBook starts a background updater over notifications and
// returns immediately; the returned handle is safe for concurrent use.
func NewLiveOrderBook(notifications <-chan Notification) *LiveOrderBook {
	lob := &LiveOrderBook{
		book: orderbook.New(),
		done: make(chan struct{}),
	}
	go lob.run(notifications)
	return lob
}

func (l *LiveOrderBook) run(notifications <-chan Notification) {
	defer close(l.done)
	for n := range notifications {
		if n.LimitUpdates == nil {
			continue
		}
		l.mu.Lock()
		for _, u := range n.LimitUpdates {
			l.book.Update(u.Inner)
		}
		l.mu.Unlock()
	}
}

// Snapshot returns a point-in-time copy of the book and whether the
// updater is still live. The copy is taken under a read lock so it never
// observes a partially applied LimitUpdates batch.
func (l *LiveOrderBook) Snapshot() (*orderbook.OrderBook, BookState) {
	state := Live
	select {
	case <-l.done:
		state = Disconnected
	default:
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Clone(), state
}

// State reports liveness without taking a book snapshot.
func (l *LiveOrderBook) State() BookState {
	select {
	case <-l.done:
		return Disconnected
	default:
		return Live
	}
}
