// Package binance implements the Binance venue adapter: its WebSocket
// depth/trade/user-data stream parser (with the snapshot-reconciliation
// substate machine), its signed/unsigned REST endpoints, and its error
// classification.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

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

// Keys is a Binance API key pair; HMAC-SHA256 signs every authenticated
// request's query string.
type Keys struct {
	APIKey    string
	SecretKey string
}

// listenKeyRefreshInterval is comfortably inside the 60-minute listen key
// expiry named in the GLOSSARY.
const listenKeyRefreshInterval = 30 * time.Minute

// Client is the Binance ApiClient implementation.
type Client struct {
	params   Params
	keys     *Keys
	rest     *xchg.RestClient
	registry *symbol.Registry
	logger   *logging.Logger

	mu      sync.RWMutex
	session *listenKeySession

	stopRefresh chan struct{}
}

// New constructs a Binance client, fetching the symbol list (blocking)
// and, if keys are supplied, obtaining a listen key for the private user
// data stream. It starts a background goroutine that refreshes the
// listen key every 30 minutes for the lifetime of the client.
func New(params Params, keys *Keys, logger *logging.Logger) (*Client, error) {
	c := &Client{params: params, keys: keys, logger: logger, stopRefresh: make(chan struct{})}
	c.rest = xchg.NewRestClient("binance", params.RESTEndpoint, &signer{keys: keys}, decodeError, classifyGeneric, logger)

	registry, err := symbol.NewRegistry(c)
	if err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}
	c.registry = registry

	if keys != nil {
		key, err := c.getListenKey(context.Background())
		if err != nil {
			return nil, fmt.Errorf("binance: fetching listen key: %w", err)
		}
		session, err := newListenKeySession(key)
		if err != nil {
			return nil, fmt.Errorf("binance: %w", err)
		}
		c.session = session
		go c.refreshListenKeyLoop()
	}

	return c, nil
}

// Close stops the listen-key refresh loop.
func (c *Client) Close() {
	close(c.stopRefresh)
}

// SetAuditLogger attaches a compliance audit trail to every order
// placement and cancellation this client issues.
func (c *Client) SetAuditLogger(al *logging.AuditLogger) {
	c.rest.SetAuditLogger(al)
}

func (c *Client) refreshListenKeyLoop() {
	ticker := time.NewTicker(listenKeyRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopRefresh:
			return
		case <-ticker.C:
			c.mu.RLock()
			expired := c.session != nil && c.session.Expired()
			c.mu.RUnlock()
			if expired {
				c.logger.Warn("listen key session expired before refresh ran",
					logging.Component("binance"))
			}
			if err := c.Ping(context.Background()); err != nil {
				c.logger.Warn("listen key refresh failed", logging.Component("binance"),
					logging.String("error", err.Error()))
			}
		}
	}
}

// FindSymbol looks up a symbol fetched at construction.
func (c *Client) FindSymbol(name string) (symbol.Symbol, bool) {
	return c.registry.Find(strings.ToUpper(name))
}

// binanceExchangeInfo is the subset of GET /api/v3/exchangeInfo this
// client consumes to build the symbol registry.
type binanceExchangeInfo struct {
	Symbols []binanceSymbolInfo `json:"symbols"`
}

type binanceSymbolInfo struct {
	Symbol  string          `json:"symbol"`
	Filters []binanceFilter `json:"filters"`
}

type binanceFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
}

// FetchSymbols implements symbol.Fetcher against Binance's exchangeInfo
// endpoint, deriving each symbol's price/size tick from its PRICE_FILTER
// and LOT_SIZE filters.
func (c *Client) FetchSymbols() ([]symbol.Symbol, error) {
	body, err := c.rest.Do(context.Background(), xchg.RestRequest{
		Method: "GET",
		Path:   "api/v3/exchangeInfo",
	}, nil)
	if err != nil {
		return nil, err
	}

	var info binanceExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding exchangeInfo: %w", err)
	}

	var out []symbol.Symbol
	for _, s := range info.Symbols {
		var priceTickStr, stepSizeStr string
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				priceTickStr = f.TickSize
			case "LOT_SIZE":
				stepSizeStr = f.StepSize
			}
		}
		if priceTickStr == "" || stepSizeStr == "" {
			continue
		}
		priceTick, err := tick.TickSize(priceTickStr)
		if err != nil {
			c.logger.Warn("skipping symbol with unparsable price tick",
				logging.Component("binance"), logging.String("symbol", s.Symbol))
			continue
		}
		sizeTick, err := tick.TickSize(stepSizeStr)
		if err != nil {
			c.logger.Warn("skipping symbol with unparsable size tick",
				logging.Component("binance"), logging.String("symbol", s.Symbol))
			continue
		}
		commissionTick, _ := tick.New(100000000)

		sym, err := symbol.New(s.Symbol, priceTick, sizeTick, commissionTick)
		if err != nil {
			continue
		}
		out = append(out, sym)
	}
	return out, nil
}

// StreamWithFlags dials the combined trade/depth[/listenKey] stream and
// returns its normalized notification channel.
func (c *Client) StreamWithFlags(ctx context.Context, sym symbol.Symbol, flags xchg.Flags) (<-chan xchg.Notification, error) {
	lower := strings.ToLower(sym.Name())
	address := fmt.Sprintf("%s/ws/%s@trade/%s@depth", c.params.WSEndpoint, lower, lower)

	listenKey := ""
	c.mu.RLock()
	if c.session != nil {
		listenKey, _ = c.session.ListenKey()
	}
	c.mu.RUnlock()

	if flags.Has(xchg.FlagOrders) && listenKey != "" {
		address += "/" + listenKey
	}

	parser := newParser(sym, c.logger, c.rest)
	_, out, err := xchg.Dial(address, parser, true, c.logger)
	if err != nil {
		return nil, fmt.Errorf("binance: dialing stream: %w", err)
	}
	return out, nil
}

// Ping extends the listen key's validity for another 60 minutes.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return nil
	}
	listenKey, err := session.ListenKey()
	if err != nil {
		return fmt.Errorf("binance: listen key session: %w", err)
	}

	query := url.Values{"listenKey": {listenKey}}
	_, err = c.rest.Do(ctx, xchg.RestRequest{
		Method: "PUT",
		Path:   "api/v1/userDataStream",
		Query:  query,
	}, nil)
	if err != nil {
		return err
	}

	refreshed, err := newListenKeySession(listenKey)
	if err != nil {
		return fmt.Errorf("binance: %w", err)
	}
	c.mu.Lock()
	c.session = refreshed
	c.mu.Unlock()
	return nil
}

func (c *Client) getListenKey(ctx context.Context) (string, error) {
	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method: "POST",
		Path:   "api/v1/userDataStream",
	}, nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding listen key response: %w", err)
	}
	if resp.ListenKey == "" {
		return "", fmt.Errorf("status 200 but no listen key present")
	}
	return resp.ListenKey, nil
}

func sideString(s int) string {
	if s == 0 {
		return "BUY"
	}
	return "SELL"
}

func timeInForceString(t int) string {
	switch t {
	case 1:
		return "IOC"
	case 2:
		return "FOK"
	default:
		return "GTC"
	}
}

func formatTicks(t tick.Tick, v tick.Unit) (string, error) {
	return t.Encode(v)
}
