package gdax

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/metrics"
	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
	"github.com/epic1st/xchg/tick"
)

// gdaxOpenOrder tracks one of our resting orders by GDAX's server order
// id, so a `match`/`done` message (keyed by server id) can be resolved
// back to the client-visible order and have its remaining size tracked.
type gdaxOpenOrder struct {
	orderID string
	size    tick.Unit
	price   tick.Unit
	side    orderbook.Side
}

// parser implements xchg.Parser for the GDAX level2/matches[/user] feed.
// Unlike Binance, GDAX pushes the order book snapshot itself on
// subscribe: there is no separate reconciliation substate to track.
type parser struct {
	sym      symbol.Symbol
	keys     *Keys
	orderIDs *sync.Map
	flags    xchg.Flags
	logger   *logging.Logger

	subscribed bool
	orders     map[string]*gdaxOpenOrder
}

func newParser(sym symbol.Symbol, keys *Keys, orderIDs *sync.Map, flags xchg.Flags, logger *logging.Logger) *parser {
	return &parser{sym: sym, keys: keys, orderIDs: orderIDs, flags: flags, logger: logger, orders: make(map[string]*gdaxOpenOrder)}
}

type gdaxSubscribeMessage struct {
	Type       string        `json:"type"`
	ProductIDs []string      `json:"product_ids"`
	Channels   []interface{} `json:"channels"`
	Key        string        `json:"key,omitempty"`
	Signature  string        `json:"signature,omitempty"`
	Timestamp  string        `json:"timestamp,omitempty"`
	Passphrase string        `json:"passphrase,omitempty"`
}

// OnOpen always subscribes to the heartbeat channel, to level2 when
// FlagOrderBook is set, to matches when FlagTrades is set, and to a signed
// `user` channel when keys are present and FlagOrders is set.
func (p *parser) OnOpen(send func(v interface{}) error) error {
	productIDs := []string{p.sym.Name()}
	channels := []interface{}{
		map[string]interface{}{"name": "heartbeat", "product_ids": productIDs},
	}
	if p.flags.Has(xchg.FlagOrderBook) {
		channels = append(channels, "level2")
	}
	if p.flags.Has(xchg.FlagTrades) {
		channels = append(channels, "matches")
	}

	msg := gdaxSubscribeMessage{Type: "subscribe", ProductIDs: productIDs, Channels: channels}

	if p.keys != nil && p.flags.Has(xchg.FlagOrders) {
		secret := p.keys.SecretKey
		timestamp := fmt.Sprintf("%d", time.Now().Unix())
		what := timestamp + "GET/users/self/verify"

		sig, err := hmacBase64(secret, what)
		if err != nil {
			return fmt.Errorf("gdax: signing user channel auth: %w", err)
		}

		msg.Key = p.keys.APIKey
		msg.Signature = sig
		msg.Timestamp = timestamp
		msg.Passphrase = p.keys.PassPhrase
		channels = append(channels, "user")
		msg.Channels = channels
	}

	return send(msg)
}

type gdaxEventType struct {
	Type string `json:"type"`
}

func (p *parser) OnMessage(data []byte, out chan<- xchg.Notification) {
	var evt gdaxEventType
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Warn("gdax: malformed message", logging.Component("gdax"), logging.String("error", err.Error()))
		return
	}

	switch evt.Type {
	case "subscribe":
		if p.subscribed {
			p.logger.Warn("gdax: received subscribe event while already subscribed", logging.Component("gdax"))
		}
		p.subscribed = true
	case "snapshot":
		p.handleSnapshot(data, out)
	case "l2update":
		p.handleL2Update(data, out)
	case "match":
		p.handleMatch(data, out)
	case "received":
		p.handleReceived(data, out)
	case "done":
		p.handleDone(data, out)
	case "error":
		p.handleError(data)
	}
}

func (p *parser) convertSide(priceStr, sizeStr string, side orderbook.Side) (orderbook.LimitUpdate, error) {
	price, err := p.sym.PriceTick().Decode(priceStr)
	if err != nil {
		return orderbook.LimitUpdate{}, err
	}
	size, err := p.sym.SizeTick().Decode(sizeStr)
	if err != nil {
		return orderbook.LimitUpdate{}, err
	}
	return orderbook.LimitUpdate{Side: side, Price: price, Size: size}, nil
}

func parseGdaxSide(s string) (orderbook.Side, error) {
	switch s {
	case "buy":
		return orderbook.Bid, nil
	case "sell":
		return orderbook.Ask, nil
	default:
		return 0, fmt.Errorf("gdax: unexpected side %q", s)
	}
}

func parseGdaxTime(s string) (int64, error) {
	t, err := time.Parse(gdaxTimeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

type gdaxSnapshot struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

func (p *parser) handleSnapshot(data []byte, out chan<- xchg.Notification) {
	var snap gdaxSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.logger.Warn("gdax: malformed snapshot", logging.Component("gdax"), logging.String("error", err.Error()))
		return
	}

	updates := make([]orderbook.LimitUpdate, 0, len(snap.Bids)+len(snap.Asks))
	for _, l := range snap.Bids {
		u, err := p.convertSide(l[0], l[1], orderbook.Bid)
		if err != nil {
			p.logger.Warn("gdax: bad bid level in snapshot", logging.Component("gdax"))
			return
		}
		updates = append(updates, u)
	}
	for _, l := range snap.Asks {
		u, err := p.convertSide(l[0], l[1], orderbook.Ask)
		if err != nil {
			p.logger.Warn("gdax: bad ask level in snapshot", logging.Component("gdax"))
			return
		}
		updates = append(updates, u)
	}

	out <- xchg.NotifyLimitUpdates(updates, nowMs())
	metrics.ObserveNotification("gdax", "limit_updates")
}

type gdaxL2Update struct {
	Changes [][3]string `json:"changes"`
}

func (p *parser) handleL2Update(data []byte, out chan<- xchg.Notification) {
	var upd gdaxL2Update
	if err := json.Unmarshal(data, &upd); err != nil {
		p.logger.Warn("gdax: malformed l2update", logging.Component("gdax"), logging.String("error", err.Error()))
		return
	}

	updates := make([]orderbook.LimitUpdate, 0, len(upd.Changes))
	for _, c := range upd.Changes {
		side, err := parseGdaxSide(c[0])
		if err != nil {
			p.logger.Warn("gdax: bad side in l2update", logging.Component("gdax"))
			return
		}
		u, err := p.convertSide(c[1], c[2], side)
		if err != nil {
			p.logger.Warn("gdax: bad level in l2update", logging.Component("gdax"))
			return
		}
		updates = append(updates, u)
	}

	out <- xchg.NotifyLimitUpdates(updates, nowMs())
	metrics.ObserveNotification("gdax", "limit_updates")
}

type gdaxMatch struct {
	Time         string `json:"time"`
	Size         string `json:"size"`
	Price        string `json:"price"`
	Side         string `json:"side"`
	MakerOrderID string `json:"maker_order_id"`
	TakerOrderID string `json:"taker_order_id"`
	ProfileID    string `json:"profile_id"`
}

func (p *parser) handleMatch(data []byte, out chan<- xchg.Notification) {
	var m gdaxMatch
	if err := json.Unmarshal(data, &m); err != nil {
		p.logger.Warn("gdax: malformed match", logging.Component("gdax"), logging.String("error", err.Error()))
		return
	}

	ts, err := parseGdaxTime(m.Time)
	if err != nil {
		p.logger.Warn("gdax: bad match timestamp", logging.Component("gdax"))
		return
	}
	size, err := p.sym.SizeTick().Decode(m.Size)
	if err != nil {
		p.logger.Warn("gdax: bad match size", logging.Component("gdax"))
		return
	}
	price, err := p.sym.PriceTick().Decode(m.Price)
	if err != nil {
		p.logger.Warn("gdax: bad match price", logging.Component("gdax"))
		return
	}
	makerSide, err := parseGdaxSide(m.Side)
	if err != nil {
		p.logger.Warn("gdax: bad match side", logging.Component("gdax"))
		return
	}

	// A non-empty profile_id means this match involves one of our own
	// resting orders.
	if m.ProfileID != "" {
		if order, ok := p.orders[m.TakerOrderID]; ok {
			order.size -= size
			update := xchg.At(ts, xchg.OrderUpdate{
				OrderID: order.orderID, ConsumedSize: size, ConsumedPrice: price,
				RemainingSize: order.size, Commission: 0,
			})
			out <- xchg.Notification{OrderUpdate: &update}
			metrics.ObserveNotification("gdax", "order_update")
		}
		if order, ok := p.orders[m.MakerOrderID]; ok {
			order.size -= size
			update := xchg.At(ts, xchg.OrderUpdate{
				OrderID: order.orderID, ConsumedSize: size, ConsumedPrice: price,
				RemainingSize: order.size, Commission: 0,
			})
			out <- xchg.Notification{OrderUpdate: &update}
			metrics.ObserveNotification("gdax", "order_update")
		}
	}

	trade := xchg.At(ts, xchg.Trade{Size: size, Price: price, MakerSide: makerSide})
	out <- xchg.Notification{Trade: &trade}
	metrics.ObserveNotification("gdax", "trade")
}

type gdaxReceived struct {
	Time      string `json:"time"`
	ClientOID string `json:"client_oid"`
	OrderID   string `json:"order_id"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Side      string `json:"side"`
}

func (p *parser) handleReceived(data []byte, out chan<- xchg.Notification) {
	var r gdaxReceived
	if err := json.Unmarshal(data, &r); err != nil {
		p.logger.Warn("gdax: malformed received", logging.Component("gdax"), logging.String("error", err.Error()))
		return
	}

	ts, err := parseGdaxTime(r.Time)
	if err != nil {
		p.logger.Warn("gdax: bad received timestamp", logging.Component("gdax"))
		return
	}
	size, err := p.sym.SizeTick().Decode(r.Size)
	if err != nil {
		p.logger.Warn("gdax: bad received size", logging.Component("gdax"))
		return
	}
	price, err := p.sym.PriceTick().Decode(r.Price)
	if err != nil {
		p.logger.Warn("gdax: bad received price", logging.Component("gdax"))
		return
	}
	side, err := parseGdaxSide(r.Side)
	if err != nil {
		p.logger.Warn("gdax: bad received side", logging.Component("gdax"))
		return
	}

	orderID := r.ClientOID
	if orderID == "" {
		orderID = r.OrderID
	}

	// Update the concurrent map in case this WebSocket notification
	// arrives before the HTTP response does.
	p.orderIDs.Store(orderID, r.OrderID)

	p.orders[r.OrderID] = &gdaxOpenOrder{orderID: orderID, size: size, price: price, side: side}

	conf := xchg.At(ts, xchg.OrderConfirmation{OrderID: orderID, Size: size, Price: price, Side: side})
	out <- xchg.Notification{OrderConfirmation: &conf}
	metrics.ObserveNotification("gdax", "order_confirmation")
}

type gdaxDone struct {
	Reason  string `json:"reason"`
	OrderID string `json:"order_id"`
	Time    string `json:"time"`
}

func (p *parser) handleDone(data []byte, out chan<- xchg.Notification) {
	var d gdaxDone
	if err := json.Unmarshal(data, &d); err != nil {
		p.logger.Warn("gdax: malformed done", logging.Component("gdax"), logging.String("error", err.Error()))
		return
	}
	if d.Reason != "canceled" {
		return
	}

	order, ok := p.orders[d.OrderID]
	if !ok {
		return
	}

	ts, err := parseGdaxTime(d.Time)
	if err != nil {
		p.logger.Warn("gdax: bad done timestamp", logging.Component("gdax"))
		return
	}

	exp := xchg.At(ts, xchg.OrderExpiration{OrderID: order.orderID})
	out <- xchg.Notification{OrderExpiration: &exp}
	metrics.ObserveNotification("gdax", "order_expiration")
}

type gdaxError struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// handleError panics, tearing the connection down: a venue-pushed error
// message on this feed signals a protocol fault this adapter cannot
// recover from by itself, and connections never self-retry.
func (p *parser) handleError(data []byte) {
	var e gdaxError
	if err := json.Unmarshal(data, &e); err == nil {
		panic(fmt.Sprintf("gdax: venue reported error: %s (%s)", e.Message, e.Reason))
	}
	panic("gdax: venue reported an unparsable error message")
}

func nowMs() int64 { return time.Now().UnixMilli() }
