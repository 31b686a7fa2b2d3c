package orderbook

import "testing"

func TestBestPricesOnEmptyBook(t *testing.T) {
	b := New()
	if got := b.BestBid(); got != 0 {
		t.Errorf("BestBid() on empty book = %d, want 0", got)
	}
	if got := b.BestAsk(); got != MaxTick {
		t.Errorf("BestAsk() on empty book = %d, want MaxTick", got)
	}
}

func TestUpdateRemovesOnZeroSize(t *testing.T) {
	b := New()
	b.Update(LimitUpdate{Side: Bid, Price: 100, Size: 5})
	if got := b.SizeAt(Bid, 100); got != 5 {
		t.Fatalf("SizeAt(Bid, 100) = %d, want 5", got)
	}
	b.Update(LimitUpdate{Side: Bid, Price: 100, Size: 0})
	if got := b.SizeAt(Bid, 100); got != 0 {
		t.Errorf("SizeAt(Bid, 100) after zero update = %d, want 0", got)
	}
	if got := b.BestBid(); got != 0 {
		t.Errorf("BestBid() after removing sole level = %d, want 0", got)
	}
}

func buildBook(levels ...LimitUpdate) *OrderBook {
	b := New()
	b.Apply(levels)
	return b
}

func TestDiffAppliedToSelfYieldsOther(t *testing.T) {
	a := buildBook(
		LimitUpdate{Side: Bid, Price: 100, Size: 10},
		LimitUpdate{Side: Bid, Price: 99, Size: 4},
		LimitUpdate{Side: Ask, Price: 200, Size: 5},
	)
	b := buildBook(
		LimitUpdate{Side: Bid, Price: 100, Size: 7},
		LimitUpdate{Side: Ask, Price: 200, Size: 5},
		LimitUpdate{Side: Ask, Price: 202, Size: 3},
	)

	got := a.Clone()
	got.Apply(a.Diff(b))

	assertBooksEqual(t, got, b)
}

func assertBooksEqual(t *testing.T, got, want *OrderBook) {
	t.Helper()
	if !levelsEqual(got.Bid(), want.Bid()) {
		t.Errorf("bid side mismatch: got %+v, want %+v", got.Bid(), want.Bid())
	}
	if !levelsEqual(got.Ask(), want.Ask()) {
		t.Errorf("ask side mismatch: got %+v, want %+v", got.Ask(), want.Ask())
	}
}

func levelsEqual(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
