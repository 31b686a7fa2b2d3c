package gdax

import (
	"sync"
	"testing"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
	"github.com/epic1st/xchg/tick"
)

func testSymbol(t *testing.T) symbol.Symbol {
	t.Helper()
	priceTick, err := tick.New(100)
	if err != nil {
		t.Fatalf("tick.New(price): %v", err)
	}
	sizeTick, err := tick.New(100000000)
	if err != nil {
		t.Fatalf("tick.New(size): %v", err)
	}
	commissionTick, _ := tick.New(100000000)
	sym, err := symbol.New("BTC-USD", priceTick, sizeTick, commissionTick)
	if err != nil {
		t.Fatalf("symbol.New: %v", err)
	}
	return sym
}

func newTestParser(t *testing.T) *parser {
	t.Helper()
	return newParser(testSymbol(t), nil, &sync.Map{}, xchg.AllFlags, logging.NewLogger(logging.ERROR))
}

// TestSnapshotThenL2UpdateAppliesBothSides covers GDAX's book model: the
// snapshot arrives over the wire itself, no REST reconciliation step is
// needed before depth updates can be applied.
func TestSnapshotThenL2UpdateAppliesBothSides(t *testing.T) {
	p := newTestParser(t)
	out := make(chan xchg.Notification, 4)

	p.OnMessage([]byte(`{"type":"snapshot","bids":[["100.00","1.00000000"]],"asks":[["101.00","2.00000000"]]}`), out)
	snapNotif := <-out
	if len(snapNotif.LimitUpdates) != 2 {
		t.Fatalf("snapshot: got %d limit updates, want 2", len(snapNotif.LimitUpdates))
	}

	p.OnMessage([]byte(`{"type":"l2update","changes":[["buy","100.00","0.50000000"]]}`), out)
	updNotif := <-out
	if len(updNotif.LimitUpdates) != 1 {
		t.Fatalf("l2update: got %d limit updates, want 1", len(updNotif.LimitUpdates))
	}
	if updNotif.LimitUpdates[0].Inner.Side != orderbook.Bid {
		t.Errorf("l2update side = %v, want Bid", updNotif.LimitUpdates[0].Inner.Side)
	}
}

// TestReceivedThenMatchUpdatesOrderSize covers the order-lifecycle path:
// a `received` establishes the order under its server id, then a `match`
// naming that server id as taker or maker decrements its remaining size.
func TestReceivedThenMatchUpdatesOrderSize(t *testing.T) {
	p := newTestParser(t)
	out := make(chan xchg.Notification, 4)

	p.OnMessage([]byte(`{"type":"received","time":"2020-01-01T00:00:00.000000Z",`+
		`"client_oid":"my-order","order_id":"server-1","size":"1.00000000","price":"100.00","side":"buy"}`), out)
	conf := <-out
	if conf.OrderConfirmation == nil || conf.OrderConfirmation.Inner.OrderID != "my-order" {
		t.Fatalf("expected OrderConfirmation with client id my-order, got %+v", conf)
	}

	if v, ok := p.orderIDs.Load("my-order"); !ok || v.(string) != "server-1" {
		t.Fatalf("orderIDs map not updated: %v, %v", v, ok)
	}

	p.OnMessage([]byte(`{"type":"match","time":"2020-01-01T00:00:01.000000Z","size":"0.25000000",`+
		`"price":"100.00","side":"sell","maker_order_id":"server-1","taker_order_id":"taker-x","profile_id":"p1"}`), out)

	update := <-out
	if update.OrderUpdate == nil {
		t.Fatal("expected an OrderUpdate for the maker leg")
	}
	if update.OrderUpdate.Inner.OrderID != "my-order" {
		t.Errorf("OrderUpdate.OrderID = %q, want my-order", update.OrderUpdate.Inner.OrderID)
	}
	if update.OrderUpdate.Inner.RemainingSize != 75000000 {
		t.Errorf("OrderUpdate.RemainingSize = %d, want 75000000", update.OrderUpdate.Inner.RemainingSize)
	}

	trade := <-out
	if trade.Trade == nil {
		t.Fatal("expected a Trade notification to follow the order update")
	}
}

// TestDoneOnlyExpiresOnCancelReason covers the done-message filter: only
// reason="canceled" produces an OrderExpiration, everything else (e.g.
// "filled") is dropped.
func TestDoneOnlyExpiresOnCancelReason(t *testing.T) {
	p := newTestParser(t)
	out := make(chan xchg.Notification, 2)

	p.orders["server-1"] = &gdaxOpenOrder{orderID: "my-order", side: orderbook.Bid}

	p.OnMessage([]byte(`{"type":"done","reason":"filled","order_id":"server-1","time":"2020-01-01T00:00:00.000000Z"}`), out)
	select {
	case n := <-out:
		t.Fatalf("expected no notification for reason=filled, got %+v", n)
	default:
	}

	p.OnMessage([]byte(`{"type":"done","reason":"canceled","order_id":"server-1","time":"2020-01-01T00:00:00.000000Z"}`), out)
	exp := <-out
	if exp.OrderExpiration == nil || exp.OrderExpiration.Inner.OrderID != "my-order" {
		t.Fatalf("expected OrderExpiration for my-order, got %+v", exp)
	}
}

func TestErrorMessagePanics(t *testing.T) {
	p := newTestParser(t)
	out := make(chan xchg.Notification, 1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on a venue-pushed error message")
		}
	}()
	p.OnMessage([]byte(`{"type":"error","message":"bad request","reason":"invalid product"}`), out)
	t.Fatal("unreachable")
}
