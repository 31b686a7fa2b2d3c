package binance

import (
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
	commissionTick, err := tick.New(100000000)
	if err != nil {
		t.Fatalf("tick.New(commission): %v", err)
	}
	sym, err := symbol.New("BTCUSDT", priceTick, sizeTick, commissionTick)
	if err != nil {
		t.Fatalf("symbol.New: %v", err)
	}
	return sym
}

func depthUpdateJSON(u, uEnd uint64) []byte {
	return []byte(`{"e":"depthUpdate","E":1000,"U":` + itoa(u) + `,"u":` + itoa(uEnd) + `,` +
		`"b":[["100.00","1.00000000"]],"a":[["101.00","2.00000000"]]}`)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// TestSequenceAcceptsContiguousUpdates covers the accepted case:
// (5,7),(8,10),(11,11) form a contiguous chain and must all be delivered
// without a panic once the book is synced.
func TestSequenceAcceptsContiguousUpdates(t *testing.T) {
	p := newParser(testSymbol(t), logging.NewLogger(logging.ERROR), nil)
	p.state = stateOk // skip snapshot reconciliation to isolate the sequence check
	p.hasPreviousU = true
	p.previousU = 4

	out := make(chan xchg.Notification, 8)
	for _, pair := range [][2]uint64{{5, 7}, {8, 10}, {11, 11}} {
		p.OnMessage(depthUpdateJSON(pair[0], pair[1]), out)
	}
	if len(out) != 3 {
		t.Fatalf("got %d notifications, want 3", len(out))
	}
}

// TestSequenceGapPanics covers the rejected case: (5,7) then (9,10)
// skips u=8, violating the invariant and must panic.
func TestSequenceGapPanics(t *testing.T) {
	p := newParser(testSymbol(t), logging.NewLogger(logging.ERROR), nil)
	p.state = stateOk
	p.hasPreviousU = true
	p.previousU = 4

	out := make(chan xchg.Notification, 8)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on sequence gap, got none")
		}
	}()
	p.OnMessage(depthUpdateJSON(5, 7), out)
	p.OnMessage(depthUpdateJSON(9, 10), out)
	t.Fatal("unreachable: second update should have panicked")
}

// TestSnapshotSpliceDropsStaleBufferedUpdates covers the splice scenario:
// a snapshot at lastUpdateId=9 with buffered updates at u={7,10,12} must
// only keep the updates whose u exceeds 9.
func TestSnapshotSpliceDropsStaleBufferedUpdates(t *testing.T) {
	sym := testSymbol(t)
	p := newParser(sym, logging.NewLogger(logging.ERROR), nil)

	mk := func(u uint64) bufferedBatch {
		return bufferedBatch{
			u: u,
			updates: wrapTimestamped([]orderbook.LimitUpdate{
				{Side: orderbook.Bid, Price: 100, Size: 1},
			}, 1000),
		}
	}
	p.buffered = []bufferedBatch{mk(7), mk(10), mk(12)}

	snap := &binanceBookSnapshot{
		LastUpdateID: 9,
		Bids:         []binanceLevel{{Price: "100.00", Size: "1.00000000"}},
		Asks:         []binanceLevel{{Price: "101.00", Size: "2.00000000"}},
	}

	notif, err := p.spliceSnapshot(snap)
	if err != nil {
		t.Fatalf("spliceSnapshot: %v", err)
	}

	// 2 snapshot levels (bid+ask) + 2 surviving buffered batches (u=10,12),
	// each containing one update: 4 total.
	if len(notif.LimitUpdates) != 4 {
		t.Fatalf("got %d limit updates, want 4", len(notif.LimitUpdates))
	}
}

func TestTradeNotificationMakerSide(t *testing.T) {
	p := newParser(testSymbol(t), logging.NewLogger(logging.ERROR), nil)
	out := make(chan xchg.Notification, 1)

	p.OnMessage([]byte(`{"e":"trade","p":"100.00","q":"1.00000000","T":123,"m":true}`), out)

	notif := <-out
	if notif.Trade == nil {
		t.Fatal("expected a Trade notification")
	}
	if notif.Trade.Inner.MakerSide != orderbook.Bid {
		t.Errorf("MakerSide = %v, want Bid when m=true", notif.Trade.Inner.MakerSide)
	}
}

// TestExecutionReportExpiredVsCanceledFieldAsymmetry pins the subtle
// lowercase/uppercase client-order-id field split between EXPIRED and
// CANCELED reports.
func TestExecutionReportExpiredVsCanceledFieldAsymmetry(t *testing.T) {
	p := newParser(testSymbol(t), logging.NewLogger(logging.ERROR), nil)
	out := make(chan xchg.Notification, 2)

	p.OnMessage([]byte(`{"e":"executionReport","x":"EXPIRED","c":"lower-id","C":"upper-id","T":1}`), out)
	p.OnMessage([]byte(`{"e":"executionReport","x":"CANCELED","c":"lower-id","C":"upper-id","T":1}`), out)

	expired := <-out
	if expired.OrderExpiration.Inner.OrderID != "lower-id" {
		t.Errorf("EXPIRED should use lowercase c, got %q", expired.OrderExpiration.Inner.OrderID)
	}
	canceled := <-out
	if canceled.OrderExpiration.Inner.OrderID != "upper-id" {
		t.Errorf("CANCELED should use uppercase C, got %q", canceled.OrderExpiration.Inner.OrderID)
	}
}
