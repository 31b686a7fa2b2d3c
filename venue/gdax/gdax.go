// Package gdax implements the GDAX (Coinbase Pro) venue adapter: its
// WebSocket level2/matches/user stream parser, REST order/cancel/balance
// endpoints, and error classification.
package gdax

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/symbol"
	"github.com/epic1st/xchg/tick"
)

// Params carries the streaming/REST endpoints and the single symbol this
// client trades.
type Params struct {
	WSEndpoint   string
	RESTEndpoint string
	Symbol       string
}

// Keys is a GDAX key pair: API key, base64-encoded HMAC secret and a pass
// phrase, as required by CB-ACCESS-* request signing.
type Keys struct {
	APIKey     string
	SecretKey  string
	PassPhrase string
}

// Client is the GDAX ApiClient implementation. Unlike Binance, GDAX pushes
// its order book snapshot over the WebSocket itself rather than requiring
// a separate REST fetch, and a server order id arriving over either the
// WebSocket or the REST response must be reconciled through the same
// concurrent map.
type Client struct {
	params   Params
	keys     *Keys
	rest     *xchg.RestClient
	registry *symbol.Registry
	logger   *logging.Logger

	// orderIDs maps our client order id to GDAX's server order id. Written
	// by both the WebSocket `received` handler and the REST order
	// placement path, whichever observes the mapping first.
	orderIDs *sync.Map
}

// New constructs a GDAX client, fetching the product list (blocking).
func New(params Params, keys *Keys, logger *logging.Logger) (*Client, error) {
	c := &Client{params: params, keys: keys, logger: logger, orderIDs: &sync.Map{}}
	c.rest = xchg.NewRestClient("gdax", params.RESTEndpoint, &signer{keys: keys}, decodeError, classifyGeneric, logger)

	registry, err := symbol.NewRegistry(c)
	if err != nil {
		return nil, fmt.Errorf("gdax: %w", err)
	}
	c.registry = registry

	return c, nil
}

// FindSymbol looks up a symbol fetched at construction.
func (c *Client) FindSymbol(name string) (symbol.Symbol, bool) {
	return c.registry.Find(strings.ToUpper(name))
}

// SetAuditLogger attaches a compliance audit trail to every order
// placement and cancellation this client issues.
func (c *Client) SetAuditLogger(al *logging.AuditLogger) {
	c.rest.SetAuditLogger(al)
}

type gdaxProduct struct {
	ID             string `json:"id"`
	QuoteIncrement string `json:"quote_increment"`
	BaseIncrement  string `json:"base_increment"`
}

// FetchSymbols implements symbol.Fetcher against GDAX's products endpoint.
func (c *Client) FetchSymbols() ([]symbol.Symbol, error) {
	body, err := c.rest.Do(context.Background(), xchg.RestRequest{
		Method: "GET",
		Path:   "products",
	}, nil)
	if err != nil {
		return nil, err
	}

	var products []gdaxProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("gdax: decoding products: %w", err)
	}

	var out []symbol.Symbol
	for _, p := range products {
		if p.QuoteIncrement == "" || p.BaseIncrement == "" {
			continue
		}
		priceTick, err := tick.TickSize(p.QuoteIncrement)
		if err != nil {
			c.logger.Warn("skipping product with unparsable price tick",
				logging.Component("gdax"), logging.String("symbol", p.ID))
			continue
		}
		sizeTick, err := tick.TickSize(p.BaseIncrement)
		if err != nil {
			c.logger.Warn("skipping product with unparsable size tick",
				logging.Component("gdax"), logging.String("symbol", p.ID))
			continue
		}
		commissionTick, _ := tick.New(100000000)

		sym, err := symbol.New(p.ID, priceTick, sizeTick, commissionTick)
		if err != nil {
			continue
		}
		out = append(out, sym)
	}
	return out, nil
}

// StreamWithFlags dials the level2/matches[/user] feed and returns its
// normalized notification channel. GDAX pushes the order book snapshot
// itself on subscribe, so no separate REST reconciliation step is needed,
// unlike Binance.
func (c *Client) StreamWithFlags(ctx context.Context, sym symbol.Symbol, flags xchg.Flags) (<-chan xchg.Notification, error) {
	p := newParser(sym, c.keys, c.orderIDs, flags, c.logger)
	_, out, err := xchg.Dial(c.params.WSEndpoint, p, false, c.logger)
	if err != nil {
		return nil, fmt.Errorf("gdax: dialing stream: %w", err)
	}
	return out, nil
}

// Ping is a no-op: GDAX's WebSocket session has no venue-mandated
// keep-alive refresh beyond the framework's own ping frames.
func (c *Client) Ping(ctx context.Context) error {
	return nil
}
