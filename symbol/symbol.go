// Package symbol models the immutable per-market tick configuration fetched
// once from a venue at client construction, plus the registry and
// with-symbol wrapper used to carry it alongside requests.
package symbol

import (
	"fmt"
	"sync"

	"github.com/epic1st/xchg/tick"
)

const maxNameLen = 10

// Symbol is an immutable record of a tradeable market's fixed-point
// lattices. Constructed once per venue connection and never mutated.
type Symbol struct {
	name           string
	priceTick      tick.Tick
	sizeTick       tick.Tick
	commissionTick tick.Tick
}

// New validates name length and builds a Symbol. It fails if name exceeds
// the 10-character limit every venue adapter in this module assumes.
func New(name string, priceTick, sizeTick, commissionTick tick.Tick) (Symbol, error) {
	if len(name) > maxNameLen {
		return Symbol{}, fmt.Errorf("symbol: name %q exceeds %d characters", name, maxNameLen)
	}
	return Symbol{
		name:           name,
		priceTick:      priceTick,
		sizeTick:       sizeTick,
		commissionTick: commissionTick,
	}, nil
}

func (s Symbol) Name() string            { return s.name }
func (s Symbol) PriceTick() tick.Tick     { return s.priceTick }
func (s Symbol) SizeTick() tick.Tick      { return s.sizeTick }
func (s Symbol) CommissionTick() tick.Tick { return s.commissionTick }

// WithSymbol pairs a value with the Symbol it concerns, the way an order
// or cancel request must travel with the market it was built against.
type WithSymbol[T any] struct {
	Symbol Symbol
	Inner  T
}

// With wraps v with sym.
func With[T any](sym Symbol, v T) WithSymbol[T] {
	return WithSymbol[T]{Symbol: sym, Inner: v}
}

// Fetcher fetches the full symbol list from a venue. Implemented once per
// venue adapter (Binance: exchangeInfo, GDAX: /products, HitBTC:
// /api/2/public/symbol) and invoked exactly once, synchronously, at client
// construction.
type Fetcher interface {
	FetchSymbols() ([]Symbol, error)
}

// Registry is the blocking-fetched, read-mostly symbol table a venue
// client consults on every find-by-name. It fetches once at construction
// and never refreshes on its own; callers needing a refresh construct a
// new Registry.
type Registry struct {
	mu      sync.RWMutex
	symbols map[string]Symbol
}

// NewRegistry fetches the symbol list from fetcher and returns a populated
// Registry, or an error if the fetch itself failed. This is the one
// blocking network call a venue client constructor makes.
func NewRegistry(fetcher Fetcher) (*Registry, error) {
	list, err := fetcher.FetchSymbols()
	if err != nil {
		return nil, fmt.Errorf("symbol: fetching symbol registry: %w", err)
	}
	r := &Registry{symbols: make(map[string]Symbol, len(list))}
	for _, s := range list {
		r.symbols[s.Name()] = s
	}
	return r, nil
}

// Find looks up a symbol by its venue-reported name.
func (r *Registry) Find(name string) (Symbol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.symbols[name]
	return s, ok
}

// Len returns the number of symbols currently known.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.symbols)
}
