package symbol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/tick"
)

// cachedSymbol is the wire shape a Symbol is serialized to/from Redis as;
// Symbol's fields are unexported so the registry round-trips through this.
type cachedSymbol struct {
	Name           string `json:"name"`
	PriceTick      uint64 `json:"price_tick"`
	SizeTick       uint64 `json:"size_tick"`
	CommissionTick uint64 `json:"commission_tick"`
}

// CachingRegistry decorates a venue's blocking symbol fetch with a Redis
// cache, so a second process start on the same venue avoids the REST
// round trip. It satisfies the same construction contract as NewRegistry:
// it still returns a *Registry, just one populated from Redis when a warm
// entry exists.
type CachingRegistry struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachingRegistry wraps a redis.Client for symbol-list caching under
// the key "xchg:symbols:<venue>", with entries expiring after ttl.
func NewCachingRegistry(client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachingRegistry {
	return &CachingRegistry{client: client, ttl: ttl, logger: logger}
}

func cacheKey(venue string) string {
	return fmt.Sprintf("xchg:symbols:%s", venue)
}

// Load returns a populated *Registry for venue, preferring a warm Redis
// entry over invoking fetcher. On a cache miss (or a Redis error, which
// is logged and treated as a miss) it falls through to NewRegistry and
// stores the result back to Redis for the next process start.
func (c *CachingRegistry) Load(ctx context.Context, venue string, fetcher Fetcher) (*Registry, error) {
	key := cacheKey(venue)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var cached []cachedSymbol
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			list, buildErr := buildFromCache(cached)
			if buildErr == nil {
				r := &Registry{symbols: make(map[string]Symbol, len(list))}
				for _, s := range list {
					r.symbols[s.Name()] = s
				}
				return r, nil
			}
		}
	} else if err != redis.Nil {
		c.logger.Warn("symbol cache read failed, falling back to venue fetch",
			logging.Component("symbol"), logging.Venue(venue), logging.String("error", err.Error()))
	}

	registry, err := NewRegistry(fetcher)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(toCached(registry)); jsonErr == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("symbol cache write failed",
				logging.Component("symbol"), logging.Venue(venue), logging.String("error", err.Error()))
		}
	}

	return registry, nil
}

func toCached(r *Registry) []cachedSymbol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]cachedSymbol, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, cachedSymbol{
			Name:           s.name,
			PriceTick:      s.priceTick.PerUnit(),
			SizeTick:       s.sizeTick.PerUnit(),
			CommissionTick: s.commissionTick.PerUnit(),
		})
	}
	return out
}

func buildFromCache(cached []cachedSymbol) ([]Symbol, error) {
	out := make([]Symbol, 0, len(cached))
	for _, c := range cached {
		priceTick, err := tick.New(c.PriceTick)
		if err != nil {
			return nil, err
		}
		sizeTick, err := tick.New(c.SizeTick)
		if err != nil {
			return nil, err
		}
		commissionTick, err := tick.New(c.CommissionTick)
		if err != nil {
			return nil, err
		}
		sym, err := New(c.Name, priceTick, sizeTick, commissionTick)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}
