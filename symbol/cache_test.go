package symbol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/tick"
)

// unreachableRedisClient points at a loopback port nothing is listening
// on, so every call fails fast with a connection error. This exercises
// CachingRegistry's "treat a cache failure as a miss, fall through to the
// venue fetch" path without standing up a real Redis server.
func unreachableRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})
}

func TestCachingRegistryFallsBackToFetcherOnRedisMiss(t *testing.T) {
	perUnit, _ := tick.New(100)
	btcusd, err := New("BTCUSD", perUnit, perUnit, perUnit)
	if err != nil {
		t.Fatal(err)
	}

	logger := logging.NewLogger(logging.FATAL)
	cache := NewCachingRegistry(unreachableRedisClient(), time.Hour, logger)

	reg, err := cache.Load(context.Background(), "binance", staticFetcher{symbols: []Symbol{btcusd}})
	if err != nil {
		t.Fatalf("Load() error = %v, want fallback to succeed", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	if _, ok := reg.Find("BTCUSD"); !ok {
		t.Error("expected to find BTCUSD via the fallback fetch")
	}
}

func TestCachingRegistrySurfacesFetcherError(t *testing.T) {
	logger := logging.NewLogger(logging.FATAL)
	cache := NewCachingRegistry(unreachableRedisClient(), time.Hour, logger)

	_, err := cache.Load(context.Background(), "binance", staticFetcher{err: errors.New("boom")})
	if err == nil {
		t.Fatal("expected Load to surface the fetcher's error")
	}
}

func TestBuildFromCacheRoundTrips(t *testing.T) {
	priceTick, _ := tick.New(10)
	sizeTick, _ := tick.New(100)
	commissionTick, _ := tick.New(100000000)
	sym, err := New("ETHUSD", priceTick, sizeTick, commissionTick)
	if err != nil {
		t.Fatal(err)
	}

	reg := &Registry{symbols: map[string]Symbol{"ETHUSD": sym}}
	cached := toCached(reg)
	if len(cached) != 1 {
		t.Fatalf("toCached() len = %d, want 1", len(cached))
	}

	rebuilt, err := buildFromCache(cached)
	if err != nil {
		t.Fatal(err)
	}
	if len(rebuilt) != 1 || rebuilt[0].Name() != "ETHUSD" {
		t.Fatalf("buildFromCache() = %+v, want one ETHUSD symbol", rebuilt)
	}
	if rebuilt[0].PriceTick().PerUnit() != priceTick.PerUnit() {
		t.Errorf("PriceTick().PerUnit() = %d, want %d", rebuilt[0].PriceTick().PerUnit(), priceTick.PerUnit())
	}
}
