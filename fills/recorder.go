// Package fills persists order-lifecycle notifications (confirmation,
// partial/full fill, expiration) to Postgres for downstream reconciliation
// tooling. It sits entirely outside the core matching/book path -- a
// downstream notification log, not persisted engine state -- and the
// recorder is off unless a caller explicitly constructs one.
package fills

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
)

// execer is the slice of *pgxpool.Pool this package actually calls.
// Accepting the interface rather than the concrete pool lets tests swap in
// a fake without a live Postgres connection.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder consumes a normalized notification stream and inserts one row
// per order-lifecycle event into Postgres. It ignores LimitUpdates and
// Trade notifications; those are public book/tape data, not account
// state, and have no lifecycle worth persisting here.
type Recorder struct {
	pool   execer
	venue  string
	symbol string
	logger *logging.Logger
}

// NewRecorder wraps an already-connected pgxpool.Pool. Callers own the
// pool's lifecycle (Close it themselves); the Recorder never closes it.
func NewRecorder(pool execer, venue, symbol string, logger *logging.Logger) *Recorder {
	return &Recorder{pool: pool, venue: venue, symbol: symbol, logger: logger}
}

// CreateTable creates the fills table if it does not already exist.
// Callers typically run this once at startup before Run.
func (r *Recorder) CreateTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS xchg_fills (
	id              BIGSERIAL PRIMARY KEY,
	venue           TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	kind            TEXT NOT NULL,
	order_id        TEXT NOT NULL,
	size            NUMERIC,
	price           NUMERIC,
	remaining_size  NUMERIC,
	commission      NUMERIC,
	timestamp_ms    BIGINT NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("fills: creating table: %w", err)
	}
	return nil
}

// Run consumes notifications until the channel closes or ctx is
// canceled, inserting one row per order-lifecycle event. Errors writing
// an individual row are logged and do not stop consumption: a slow or
// momentarily unreachable database should not back up the notification
// stream's producer.
func (r *Recorder) Run(ctx context.Context, notifications <-chan xchg.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			r.record(ctx, n)
		}
	}
}

func (r *Recorder) record(ctx context.Context, n xchg.Notification) {
	switch {
	case n.OrderConfirmation != nil:
		c := n.OrderConfirmation
		r.insert(ctx, "confirmation", c.Inner.OrderID, int64(c.Inner.Size), int64(c.Inner.Price), 0, 0, c.TimestampMs)
	case n.OrderUpdate != nil:
		u := n.OrderUpdate
		r.insert(ctx, "fill", u.Inner.OrderID, int64(u.Inner.ConsumedSize), int64(u.Inner.ConsumedPrice),
			int64(u.Inner.RemainingSize), int64(u.Inner.Commission), u.TimestampMs)
	case n.OrderExpiration != nil:
		e := n.OrderExpiration
		r.insert(ctx, "expiration", e.Inner.OrderID, 0, 0, 0, 0, e.TimestampMs)
	}
}

func (r *Recorder) insert(ctx context.Context, kind, orderID string, size, price, remaining, commission, ts int64) {
	query := `
INSERT INTO xchg_fills (venue, symbol, kind, order_id, size, price, remaining_size, commission, timestamp_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	start := time.Now()
	_, err := r.pool.Exec(ctx, query,
		r.venue, r.symbol, kind, orderID, size, price, remaining, commission, ts)
	logging.LogSlowQuery(ctx, query, time.Since(start))
	if err != nil {
		r.logger.Warn("fills: insert failed", logging.Component("fills"),
			logging.String("kind", kind), logging.OrderID(orderID), logging.String("error", err.Error()))
	}
}
