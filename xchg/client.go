package xchg

import (
	"context"

	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
	"github.com/epic1st/xchg/tick"
)

// OrderType selects between a plain limit order and a post-only maker
// order (rejected rather than matched if it would take liquidity).
type OrderType int

const (
	Limit OrderType = iota
	LimitMaker
)

// TimeInForce selects how long an order rests before it is canceled.
type TimeInForce int

const (
	// GoodTilCanceled rests until explicitly canceled.
	GoodTilCanceled TimeInForce = iota
	// ImmediateOrCancel fills whatever it can immediately and cancels the rest.
	ImmediateOrCancel
	// FillOrKill fills entirely immediately or is canceled in full.
	FillOrKill
)

// maxTimeWindowMs is the upper bound on Order.TimeWindowMs.
const maxTimeWindowMs = 5000

// Order is a request to place a new order, expressed in ticks.
type Order struct {
	Side        orderbook.Side
	Size        tick.Unit
	Price       tick.Unit
	Type        OrderType
	TimeInForce TimeInForce
	// OrderID is an optional client-supplied hint; venues that generate
	// their own server-side id (GDAX) still accept and echo it back.
	OrderID string
	// TimeWindowMs bounds how stale the server may consider the request's
	// timestamp before rejecting it outright (must be <= 5000).
	TimeWindowMs int64
}

// Valid reports whether o satisfies the invariants an Order must hold
// before it is ever sent to a venue.
func (o Order) Valid() bool {
	return o.TimeWindowMs >= 0 && o.TimeWindowMs <= maxTimeWindowMs
}

// Cancel is a request to cancel a previously placed order.
type Cancel struct {
	OrderID string
	// CancelID is an optional client-supplied id for the cancel request
	// itself (Binance's newClientOrderId on DELETE).
	CancelID string
	TimeWindowMs int64
}

// OrderAck acknowledges a successfully placed order.
type OrderAck struct {
	OrderID     string
	TimestampMs int64
}

// CancelAck acknowledges a successfully canceled order.
type CancelAck struct {
	OrderID     string
	TimestampMs int64
}

// Balance is one currency's free/locked funds, as reported by a venue's
// balances endpoint.
type Balance struct {
	Free   string
	Locked string
}

// Balances maps currency code to its reported balance.
type Balances map[string]Balance

// ApiClient is the public surface every venue adapter satisfies: symbol
// lookup, a notification stream gated by NotificationFlags, order
// placement and cancellation, a no-op-capable ping, and balance lookup.
type ApiClient interface {
	FindSymbol(name string) (symbol.Symbol, bool)
	StreamWithFlags(ctx context.Context, sym symbol.Symbol, flags Flags) (<-chan Notification, error)
	Order(ctx context.Context, req symbol.WithSymbol[Order]) (OrderAck, error)
	Cancel(ctx context.Context, req symbol.WithSymbol[Cancel]) (CancelAck, error)
	Ping(ctx context.Context) error
	Balances(ctx context.Context) (Balances, error)
}
