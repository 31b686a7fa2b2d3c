package fills

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/orderbook"
)

type fakeExecer struct {
	queries []string
	args    [][]any
	fail    bool
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.fail {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR)
}

func TestCreateTableIssuesDDL(t *testing.T) {
	exec := &fakeExecer{}
	r := NewRecorder(exec, "binance", "BTCUSDT", testLogger())

	if err := r.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(exec.queries))
	}
}

func TestRecordInsertsOneRowPerLifecycleEvent(t *testing.T) {
	exec := &fakeExecer{}
	r := NewRecorder(exec, "binance", "BTCUSDT", testLogger())

	notifications := []xchg.Notification{
		{OrderConfirmation: &xchg.Timestamped[xchg.OrderConfirmation]{
			TimestampMs: 1, Inner: xchg.OrderConfirmation{OrderID: "o1", Size: 10, Price: 100, Side: orderbook.Bid},
		}},
		{OrderUpdate: &xchg.Timestamped[xchg.OrderUpdate]{
			TimestampMs: 2, Inner: xchg.OrderUpdate{OrderID: "o1", ConsumedSize: 5, ConsumedPrice: 100, RemainingSize: 5, Commission: 1},
		}},
		{OrderExpiration: &xchg.Timestamped[xchg.OrderExpiration]{
			TimestampMs: 3, Inner: xchg.OrderExpiration{OrderID: "o1"},
		}},
	}
	for _, n := range notifications {
		r.record(context.Background(), n)
	}

	if len(exec.queries) != 3 {
		t.Fatalf("expected 3 inserts, got %d", len(exec.queries))
	}
	kinds := []string{"confirmation", "fill", "expiration"}
	for i, args := range exec.args {
		if args[2] != kinds[i] {
			t.Errorf("insert %d: kind = %v, want %s", i, args[2], kinds[i])
		}
		if args[3] != "o1" {
			t.Errorf("insert %d: order_id = %v, want o1", i, args[3])
		}
	}
}

func TestRecordIgnoresPublicNotifications(t *testing.T) {
	exec := &fakeExecer{}
	r := NewRecorder(exec, "binance", "BTCUSDT", testLogger())

	r.record(context.Background(), xchg.Notification{Trade: &xchg.Timestamped[xchg.Trade]{
		Inner: xchg.Trade{Size: 1, Price: 1, MakerSide: orderbook.Bid},
	}})
	r.record(context.Background(), xchg.NotifyLimitUpdates([]orderbook.LimitUpdate{{}}, 1))

	if len(exec.queries) != 0 {
		t.Fatalf("expected no inserts for public notifications, got %d", len(exec.queries))
	}
}

func TestRunConsumesUntilChannelCloses(t *testing.T) {
	exec := &fakeExecer{}
	r := NewRecorder(exec, "binance", "BTCUSDT", testLogger())

	ch := make(chan xchg.Notification, 1)
	ch <- xchg.Notification{OrderExpiration: &xchg.Timestamped[xchg.OrderExpiration]{
		Inner: xchg.OrderExpiration{OrderID: "o2"},
	}}
	close(ch)

	r.Run(context.Background(), ch)

	if len(exec.queries) != 1 {
		t.Fatalf("expected 1 insert after channel close, got %d", len(exec.queries))
	}
}

func TestInsertFailureIsLoggedNotPropagated(t *testing.T) {
	exec := &fakeExecer{fail: true}
	r := NewRecorder(exec, "binance", "BTCUSDT", testLogger())

	// Must not panic or block despite the underlying Exec failing.
	r.insert(context.Background(), "confirmation", "o3", 1, 1, 0, 0, 1)
}
