package symbol

import (
	"errors"
	"testing"

	"github.com/epic1st/xchg/tick"
)

type staticFetcher struct {
	symbols []Symbol
	err     error
}

func (f staticFetcher) FetchSymbols() ([]Symbol, error) {
	return f.symbols, f.err
}

func TestNewRejectsOverlongName(t *testing.T) {
	perUnit, _ := tick.New(100)
	if _, err := New("WAYTOOLONGNAME", perUnit, perUnit, perUnit); err == nil {
		t.Fatal("expected New to reject an over-long symbol name")
	}
}

func TestRegistryFetchesOnceAndFindsByName(t *testing.T) {
	perUnit, _ := tick.New(100)
	btcusd, err := New("BTCUSD", perUnit, perUnit, perUnit)
	if err != nil {
		t.Fatal(err)
	}

	reg, err := NewRegistry(staticFetcher{symbols: []Symbol{btcusd}})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	if _, ok := reg.Find("BTCUSD"); !ok {
		t.Error("expected to find BTCUSD")
	}
	if _, ok := reg.Find("ETHUSD"); ok {
		t.Error("did not expect to find ETHUSD")
	}
}

func TestRegistrySurfacesFetchError(t *testing.T) {
	wantErr := errors.New("boom")
	if _, err := NewRegistry(staticFetcher{err: wantErr}); !errors.Is(err, wantErr) {
		t.Errorf("NewRegistry error = %v, want wrapping %v", err, wantErr)
	}
}
