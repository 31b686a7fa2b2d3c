package xchg

import (
	"time"

	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/tick"
)

// Timestamped pairs a value with the millisecond timestamp it is reported
// at: venue-reported when the venue supplies one, otherwise wall-clock at
// arrival.
type Timestamped[T any] struct {
	TimestampMs int64
	Inner       T
}

// Now wraps v with the current wall-clock time.
func Now[T any](v T) Timestamped[T] {
	return Timestamped[T]{TimestampMs: time.Now().UnixMilli(), Inner: v}
}

// At wraps v with an explicit venue-reported timestamp.
func At[T any](ms int64, v T) Timestamped[T] {
	return Timestamped[T]{TimestampMs: ms, Inner: v}
}

// Trade is a public trade print.
type Trade struct {
	Size      tick.Unit
	Price     tick.Unit
	MakerSide orderbook.Side
}

// OrderConfirmation signals a venue accepted a new resting order.
type OrderConfirmation struct {
	OrderID string
	Size    tick.Unit
	Price   tick.Unit
	Side    orderbook.Side
}

// OrderUpdate signals a (partial) fill on one of our own orders.
type OrderUpdate struct {
	OrderID        string
	ConsumedSize   tick.Unit
	ConsumedPrice  tick.Unit
	RemainingSize  tick.Unit
	Commission     tick.Unit
}

// OrderExpiration signals one of our own orders left the book, by cancel
// or by the venue expiring it.
type OrderExpiration struct {
	OrderID string
}

// Notification is the tagged union delivered on the normalized stream.
// Exactly one of the non-nil fields is populated per value.
type Notification struct {
	LimitUpdates      []Timestamped[orderbook.LimitUpdate]
	Trade             *Timestamped[Trade]
	OrderConfirmation *Timestamped[OrderConfirmation]
	OrderUpdate       *Timestamped[OrderUpdate]
	OrderExpiration   *Timestamped[OrderExpiration]
}

// NotifyLimitUpdates builds a LimitUpdates notification from a batch of
// deltas sharing one timestamp.
func NotifyLimitUpdates(updates []orderbook.LimitUpdate, ms int64) Notification {
	ts := make([]Timestamped[orderbook.LimitUpdate], len(updates))
	for i, u := range updates {
		ts[i] = At(ms, u)
	}
	return Notification{LimitUpdates: ts}
}

// Flags is the bitset selecting which notification categories a stream
// subscription delivers.
type Flags uint8

const (
	FlagOrderBook Flags = 1 << iota
	FlagTrades
	FlagOrders
)

// Has reports whether every bit in want is set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// AllFlags requests every notification category.
const AllFlags = FlagOrderBook | FlagTrades | FlagOrders
