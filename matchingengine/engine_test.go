package matchingengine

import (
	"testing"

	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/tick"
)

func assertBestPrices(t *testing.T, e *Engine, wantBid, wantAsk uint64) {
	t.Helper()
	if got := e.BestBid(); got != wantBid {
		t.Errorf("BestBid() = %d, want %d", got, wantBid)
	}
	if got := e.BestAsk(); got != wantAsk {
		t.Errorf("BestAsk() = %d, want %d", got, wantAsk)
	}
}

func TestScenarioM1PassiveAccumulation(t *testing.T) {
	e := New(16)
	e.Limit(Order{Side: orderbook.Bid, Price: 100, Size: 10})
	e.Limit(Order{Side: orderbook.Ask, Price: 200, Size: 5})

	assertBestPrices(t, e, 100, 200)
	if got := e.SizeAt(orderbook.Bid, 100); got != 10 {
		t.Errorf("size@100 = %d, want 10", got)
	}
	if got := e.SizeAt(orderbook.Ask, 200); got != 5 {
		t.Errorf("size@200 = %d, want 5", got)
	}
}

func TestScenarioM2MarketablePartialFill(t *testing.T) {
	e := New(16)
	e.Limit(Order{Side: orderbook.Bid, Price: 100, Size: 10})
	e.Limit(Order{Side: orderbook.Ask, Price: 200, Size: 5})

	e.Limit(Order{Side: orderbook.Bid, Price: 200, Size: 3})
	e.Limit(Order{Side: orderbook.Ask, Price: 100, Size: 2})

	assertBestPrices(t, e, 100, 200)
	if got := e.SizeAt(orderbook.Bid, 100); got != 8 {
		t.Errorf("size@100 = %d, want 8", got)
	}
	if got := e.SizeAt(orderbook.Ask, 200); got != 2 {
		t.Errorf("size@200 = %d, want 2", got)
	}
}

func buildM3Book(t *testing.T) *Engine {
	t.Helper()
	e := New(32)
	e.Limit(Order{Side: orderbook.Bid, Price: 96, Size: 4})
	e.Limit(Order{Side: orderbook.Bid, Price: 99, Size: 4})
	e.Limit(Order{Side: orderbook.Bid, Price: 100, Size: 10})
	e.Limit(Order{Side: orderbook.Ask, Price: 200, Size: 5})
	e.Limit(Order{Side: orderbook.Ask, Price: 202, Size: 5})
	e.Limit(Order{Side: orderbook.Ask, Price: 203, Size: 5})
	return e
}

func TestScenarioM3CrossMultipleLevels(t *testing.T) {
	e := buildM3Book(t)

	e.Limit(Order{Side: orderbook.Ask, Price: 99, Size: 3})
	assertBestPrices(t, e, 100, 200)
	if got := e.SizeAt(orderbook.Bid, 100); got != 7 {
		t.Errorf("after first sell, size@100 = %d, want 7", got)
	}

	e.Limit(Order{Side: orderbook.Ask, Price: 97, Size: 9})
	assertBestPrices(t, e, 99, 200)
	if got := e.SizeAt(orderbook.Bid, 99); got != 2 {
		t.Errorf("after second sell, size@99 = %d, want 2", got)
	}
	if got := e.SizeAt(orderbook.Bid, 100); got != 0 {
		t.Errorf("after second sell, size@100 = %d, want 0 (level drained)", got)
	}

	e.Limit(Order{Side: orderbook.Bid, Price: 203, Size: 12})
	assertBestPrices(t, e, 99, 203)
	if got := e.SizeAt(orderbook.Ask, 203); got != 3 {
		t.Errorf("after buy, size@203 = %d, want 3 (residual resting)", got)
	}
}

func TestScenarioM4TotalLiquidation(t *testing.T) {
	e := buildM3Book(t)
	e.Limit(Order{Side: orderbook.Ask, Price: 99, Size: 3})
	e.Limit(Order{Side: orderbook.Ask, Price: 97, Size: 9})
	e.Limit(Order{Side: orderbook.Bid, Price: 203, Size: 12})

	e.Limit(Order{Side: orderbook.Bid, Price: 203, Size: 15})

	if got := e.BestAsk(); got != orderbook.MaxTick {
		t.Errorf("BestAsk() after total liquidation = %d, want MaxTick", got)
	}
	if got := e.SizeAt(orderbook.Ask, 203); got != 0 {
		t.Errorf("size@203 = %d, want 0", got)
	}
}

func TestLimitReturnsOrderIDOnlyWhenResting(t *testing.T) {
	e := New(4)
	id, rested := e.Limit(Order{Side: orderbook.Bid, Price: 100, Size: 10})
	if !rested {
		t.Fatal("expected passive order to rest")
	}
	if id != 0 {
		t.Errorf("first order id = %d, want 0", id)
	}

	_, rested = e.Limit(Order{Side: orderbook.Ask, Price: 100, Size: 10})
	if rested {
		t.Error("fully marketable order should not rest")
	}
}

func TestMaxOrderIDNeverDecreases(t *testing.T) {
	e := New(4)
	var last uint64
	for i := 0; i < 5; i++ {
		id, rested := e.Limit(Order{Side: orderbook.Bid, Price: tick.Unit(100 + i), Size: 1})
		if !rested {
			t.Fatalf("iteration %d: expected order to rest", i)
		}
		if i > 0 && id <= last {
			t.Errorf("order id did not increase: got %d after %d", id, last)
		}
		last = id
	}
}
