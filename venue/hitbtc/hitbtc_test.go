package hitbtc

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
	priceTick, err := tick.New(1000000)
	if err != nil {
		t.Fatalf("tick.New(price): %v", err)
	}
	sizeTick, err := tick.New(100000000)
	if err != nil {
		t.Fatalf("tick.New(size): %v", err)
	}
	commissionTick, _ := tick.New(100000000)
	sym, err := symbol.New("ETHBTC", priceTick, sizeTick, commissionTick)
	if err != nil {
		t.Fatalf("symbol.New: %v", err)
	}
	return sym
}

func newTestParser(t *testing.T, flags xchg.Flags) *parser {
	t.Helper()
	return newParser(testSymbol(t), nil, flags, logging.NewLogger(logging.ERROR))
}

func orderbookMsg(method string, sequence uint64) []byte {
	return []byte(`{"method":"` + method + `","params":{` +
		`"ask":[["0.06000000","10.00000000"]],` +
		`"bid":[["0.05900000","5.00000000"]],` +
		`"sequence":` + itoa(sequence) + `}}`)
}

func itoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// TestFirstOrderbookMessageAcceptsAnySequence covers the one exemption to
// the sequence invariant: the very first snapshotOrderbook/updateOrderbook
// message is accepted regardless of its sequence number.
func TestFirstOrderbookMessageAcceptsAnySequence(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 1)

	p.OnMessage(orderbookMsg("snapshotOrderbook", 4242), out)
	notif := <-out
	if len(notif.LimitUpdates) != 2 {
		t.Fatalf("got %d limit updates, want 2", len(notif.LimitUpdates))
	}
	if !p.hasSequence || p.lastSeq != 4242 {
		t.Fatalf("sequence state not recorded: hasSequence=%v lastSeq=%d", p.hasSequence, p.lastSeq)
	}
}

func TestOrderbookSequenceGapPanics(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 2)

	p.OnMessage(orderbookMsg("snapshotOrderbook", 1), out)
	<-out

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on a sequence gap")
		}
	}()
	p.OnMessage(orderbookMsg("updateOrderbook", 3), out)
	t.Fatal("unreachable")
}

func TestOrderbookSequenceContiguousAccepted(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 2)

	p.OnMessage(orderbookMsg("snapshotOrderbook", 10), out)
	<-out
	p.OnMessage(orderbookMsg("updateOrderbook", 11), out)
	<-out
	if p.lastSeq != 11 {
		t.Fatalf("lastSeq = %d, want 11", p.lastSeq)
	}
}

// TestOrderBookFlagGatesParsing covers HitBTC's distinction from Binance:
// HitBTC always subscribes to the orderbook channel, so the flag instead
// gates whether an arriving message is parsed and emitted at all.
func TestOrderBookFlagGatesParsing(t *testing.T) {
	p := newTestParser(t, xchg.FlagTrades)
	out := make(chan xchg.Notification, 1)

	p.OnMessage(orderbookMsg("snapshotOrderbook", 1), out)
	select {
	case n := <-out:
		t.Fatalf("expected no notification without FlagOrderBook, got %+v", n)
	default:
	}
}

func TestUpdateTradesEmitsOnePerEntry(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 4)

	msg := []byte(`{"method":"updateTrades","params":{"data":[` +
		`{"price":"0.06000000","quantity":"1.00000000","side":"buy","timestamp":"2017-10-19T14:18:38.587Z"},` +
		`{"price":"0.06100000","quantity":"2.00000000","side":"sell","timestamp":"2017-10-19T14:18:39.587Z"}` +
		`]}}`)
	p.OnMessage(msg, out)

	first := <-out
	if first.Trade == nil || first.Trade.Inner.MakerSide != orderbook.Bid {
		t.Fatalf("expected first trade with Bid maker side, got %+v", first)
	}
	second := <-out
	if second.Trade == nil || second.Trade.Inner.MakerSide != orderbook.Ask {
		t.Fatalf("expected second trade with Ask maker side, got %+v", second)
	}
}

// TestPartiallyFilledReportHardcodesZeroCommission documents the observed
// behavior: HitBTC fill reports never carry a commission field, so the
// adapter always reports zero rather than inferring one.
func TestPartiallyFilledReportHardcodesZeroCommission(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 1)

	msg := []byte(`{"method":"report","params":{` +
		`"clientOrderId":"my-order","side":"buy","status":"partiallyFilled",` +
		`"quantity":"2.00000000","price":"0.06000000","cumQuantity":"1.00000000",` +
		`"tradeQuantity":"1.00000000","tradePrice":"0.06000000",` +
		`"updatedAt":"2017-10-19T14:18:38.587Z"}}`)
	p.OnMessage(msg, out)

	update := <-out
	if update.OrderUpdate == nil {
		t.Fatal("expected an OrderUpdate")
	}
	if update.OrderUpdate.Inner.Commission != 0 {
		t.Errorf("Commission = %d, want 0", update.OrderUpdate.Inner.Commission)
	}
}

func TestReportStatusDispatch(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 1)

	newMsg := []byte(`{"method":"report","params":{` +
		`"clientOrderId":"my-order","side":"sell","status":"new",` +
		`"quantity":"1.00000000","price":"0.06000000","cumQuantity":"0.00000000",` +
		`"updatedAt":"2017-10-19T14:18:38.587Z"}}`)
	p.OnMessage(newMsg, out)
	conf := <-out
	if conf.OrderConfirmation == nil || conf.OrderConfirmation.Inner.OrderID != "my-order" {
		t.Fatalf("expected OrderConfirmation, got %+v", conf)
	}

	canceledMsg := []byte(`{"method":"report","params":{` +
		`"clientOrderId":"my-order","side":"sell","status":"canceled",` +
		`"quantity":"1.00000000","price":"0.06000000","cumQuantity":"0.00000000",` +
		`"updatedAt":"2017-10-19T14:18:39.587Z"}}`)
	p.OnMessage(canceledMsg, out)
	exp := <-out
	if exp.OrderExpiration == nil || exp.OrderExpiration.Inner.OrderID != "my-order" {
		t.Fatalf("expected OrderExpiration, got %+v", exp)
	}
}

func TestMessageWithoutMethodIsIgnored(t *testing.T) {
	p := newTestParser(t, xchg.AllFlags)
	out := make(chan xchg.Notification, 1)

	p.OnMessage([]byte(`{"jsonrpc":"2.0","result":true,"id":123}`), out)
	select {
	case n := <-out:
		t.Fatalf("expected no notification, got %+v", n)
	default:
	}
}
