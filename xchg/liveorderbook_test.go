package xchg

import (
	"testing"
	"time"

	"github.com/epic1st/xchg/orderbook"
)

func TestLiveOrderBookFoldsAppliedUpdates(t *testing.T) {
	ch := make(chan Notification)
	lob := NewLiveOrderBook(ch)

	ch <- NotifyLimitUpdates([]orderbook.LimitUpdate{
		{Side: orderbook.Bid, Price: 100, Size: 10},
		{Side: orderbook.Ask, Price: 200, Size: 5},
	}, 1)
	ch <- NotifyLimitUpdates([]orderbook.LimitUpdate{
		{Side: orderbook.Bid, Price: 100, Size: 7},
	}, 2)
	close(ch)

	// wait for the updater to drain and exit.
	deadline := time.After(time.Second)
	for {
		if lob.State() == Disconnected {
			break
		}
		select {
		case <-deadline:
			t.Fatal("updater did not exit after stream close")
		default:
		}
	}

	want := orderbook.New()
	want.Apply([]orderbook.LimitUpdate{
		{Side: orderbook.Bid, Price: 100, Size: 10},
		{Side: orderbook.Ask, Price: 200, Size: 5},
		{Side: orderbook.Bid, Price: 100, Size: 7},
	})

	got, state := lob.Snapshot()
	if state != Disconnected {
		t.Errorf("state = %v, want Disconnected", state)
	}
	if got.BestBid() != want.BestBid() || got.BestAsk() != want.BestAsk() {
		t.Errorf("best prices = (%d, %d), want (%d, %d)", got.BestBid(), got.BestAsk(), want.BestBid(), want.BestAsk())
	}
	if got.SizeAt(orderbook.Bid, 100) != 7 {
		t.Errorf("size@100 = %d, want 7", got.SizeAt(orderbook.Bid, 100))
	}
	if got.SizeAt(orderbook.Ask, 200) != 5 {
		t.Errorf("size@200 = %d, want 5", got.SizeAt(orderbook.Ask, 200))
	}
}

func TestLiveOrderBookStartsLiveAndEmpty(t *testing.T) {
	ch := make(chan Notification)
	defer close(ch)
	lob := NewLiveOrderBook(ch)

	if lob.State() != Live {
		t.Errorf("initial state = %v, want Live", lob.State())
	}
	snap, state := lob.Snapshot()
	if state != Live {
		t.Errorf("snapshot state = %v, want Live", state)
	}
	if snap.BestBid() != 0 || snap.BestAsk() != orderbook.MaxTick {
		t.Errorf("empty book best prices = (%d, %d), want (0, MaxTick)", snap.BestBid(), snap.BestAsk())
	}
}

func TestLiveOrderBookIgnoresNonLimitUpdateNotifications(t *testing.T) {
	ch := make(chan Notification)
	lob := NewLiveOrderBook(ch)

	trade := At(int64(1), Trade{Size: 1, Price: 1, MakerSide: orderbook.Bid})
	ch <- Notification{Trade: &trade}
	close(ch)

	deadline := time.After(time.Second)
	for lob.State() != Disconnected {
		select {
		case <-deadline:
			t.Fatal("updater did not exit after stream close")
		default:
		}
	}

	snap, _ := lob.Snapshot()
	if snap.BestBid() != 0 || snap.BestAsk() != orderbook.MaxTick {
		t.Errorf("book should be untouched by a Trade notification, got best = (%d, %d)", snap.BestBid(), snap.BestAsk())
	}
}
