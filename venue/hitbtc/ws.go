package hitbtc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/metrics"
	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// parseHitbtcTimestamp parses HitBTC's ISO-8601 millisecond timestamps
// (e.g. "2017-10-19T14:18:38.587Z"), as carried on trade and report
// messages.
func parseHitbtcTimestamp(s string) (int64, error) {
	t, err := time.Parse(hitbtcTimeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// parser implements xchg.Parser for HitBTC's orderbook/trades/reports
// stream. Unlike Binance, there is no REST snapshot to reconcile against:
// "snapshotOrderbook" and "updateOrderbook" share one handler and one
// sequence counter, with the invariant waived only for the very first
// message ever observed.
type parser struct {
	sym    symbol.Symbol
	keys   *Keys
	flags  xchg.Flags
	logger *logging.Logger

	hasSequence bool
	lastSeq     uint64
}

func newParser(sym symbol.Symbol, keys *Keys, flags xchg.Flags, logger *logging.Logger) *parser {
	return &parser{sym: sym, keys: keys, flags: flags, logger: logger}
}

type hitbtcSubscribeParams struct {
	Symbol string `json:"symbol"`
}

type hitbtcSubscribeMessage struct {
	Method string                `json:"method"`
	Params hitbtcSubscribeParams `json:"params"`
}

type hitbtcReportSubscribeMessage struct {
	Method string   `json:"method"`
	Params struct{} `json:"params"`
}

type hitbtcAuthParams struct {
	Algo string `json:"algo"`
	PKey string `json:"pKey"`
	SKey string `json:"sKey"`
}

type hitbtcAuthMessage struct {
	Method string           `json:"method"`
	Params hitbtcAuthParams `json:"params"`
}

// OnOpen unconditionally subscribes to the orderbook and trades channels;
// a private login + reports subscription follows only when keys are
// present. Flags do not gate subscription here -- they gate which
// message types get parsed and emitted once a message arrives.
func (p *parser) OnOpen(send func(v interface{}) error) error {
	if err := send(hitbtcSubscribeMessage{
		Method: "subscribeOrderbook",
		Params: hitbtcSubscribeParams{Symbol: p.sym.Name()},
	}); err != nil {
		return err
	}
	if err := send(hitbtcSubscribeMessage{
		Method: "subscribeTrades",
		Params: hitbtcSubscribeParams{Symbol: p.sym.Name()},
	}); err != nil {
		return err
	}

	if p.keys != nil {
		if err := send(hitbtcAuthMessage{
			Method: "login",
			Params: hitbtcAuthParams{Algo: "BASIC", PKey: p.keys.PublicKey, SKey: p.keys.SecretKey},
		}); err != nil {
			return err
		}
		if err := send(hitbtcReportSubscribeMessage{Method: "subscribeReports"}); err != nil {
			return err
		}
	}

	return nil
}

type hitbtcMethodEnvelope struct {
	Method string `json:"method"`
}

// OnMessage mirrors parse_message: a message with no `method` field is
// silently ignored, and every handled method is additionally gated by
// flags before it does anything.
func (p *parser) OnMessage(data []byte, out chan<- xchg.Notification) {
	var env hitbtcMethodEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		p.logger.Warn("hitbtc: malformed message", logging.Component("hitbtc"), logging.String("error", err.Error()))
		return
	}
	if env.Method == "" {
		return
	}

	switch env.Method {
	case "snapshotOrderbook", "updateOrderbook":
		if p.flags.Has(xchg.FlagOrderBook) {
			p.handleOrderBook(data, out)
		}
	case "snapshotTrades":
		// observed but never itself emits a notification; "updateTrades"
		// carries the actual fills.
	case "updateTrades":
		if p.flags.Has(xchg.FlagTrades) {
			p.handleTrades(data, out)
		}
	case "activeOrders":
		// observed but never itself emits a notification.
	case "report":
		if p.flags.Has(xchg.FlagOrders) {
			p.handleReport(data, out)
		}
	}
}

type hitbtcLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type hitbtcOrderBookParams struct {
	Ask      []hitbtcLevel `json:"ask"`
	Bid      []hitbtcLevel `json:"bid"`
	Sequence uint64        `json:"sequence"`
}

type hitbtcOrderBookMessage struct {
	Params hitbtcOrderBookParams `json:"params"`
}

// handleOrderBook enforces the single cross-channel sequence invariant:
// strictly last+1, except the very first message ever seen, which is
// always accepted regardless of its sequence number.
func (p *parser) handleOrderBook(data []byte, out chan<- xchg.Notification) {
	var msg hitbtcOrderBookMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn("hitbtc: malformed orderbook message", logging.Component("hitbtc"), logging.String("error", err.Error()))
		return
	}

	if p.hasSequence && p.lastSeq+1 != msg.Params.Sequence {
		metrics.ObserveSnapshotAbort("hitbtc")
		panic(fmt.Sprintf("hitbtc: desynchronized order book: last sequence=%d, got=%d", p.lastSeq, msg.Params.Sequence))
	}
	p.hasSequence = true
	p.lastSeq = msg.Params.Sequence

	bid, err := convertLevels(p.sym, msg.Params.Bid, orderbook.Bid)
	if err != nil {
		p.logger.Warn("hitbtc: bad bid level", logging.Component("hitbtc"))
		return
	}
	ask, err := convertLevels(p.sym, msg.Params.Ask, orderbook.Ask)
	if err != nil {
		p.logger.Warn("hitbtc: bad ask level", logging.Component("hitbtc"))
		return
	}

	raw := append(bid, ask...)
	if len(raw) == 0 {
		return
	}

	updates := wrapTimestamped(raw, nowMs())
	out <- xchg.Notification{LimitUpdates: updates}
	metrics.ObserveNotification("hitbtc", "limit_updates")
}

type hitbtcTradeData struct {
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

type hitbtcTradesParams struct {
	Data []hitbtcTradeData `json:"data"`
}

type hitbtcTradesMessage struct {
	Params hitbtcTradesParams `json:"params"`
}

// handleTrades emits one Trade notification per entry in the batch:
// "updateTrades" may carry several fills at once.
func (p *parser) handleTrades(data []byte, out chan<- xchg.Notification) {
	var msg hitbtcTradesMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn("hitbtc: malformed trades message", logging.Component("hitbtc"), logging.String("error", err.Error()))
		return
	}

	for _, d := range msg.Params.Data {
		ts, err := parseHitbtcTimestamp(d.Timestamp)
		if err != nil {
			p.logger.Warn("hitbtc: bad trade timestamp", logging.Component("hitbtc"))
			continue
		}
		side, err := convertSide(d.Side)
		if err != nil {
			p.logger.Warn("hitbtc: bad trade side", logging.Component("hitbtc"), logging.String("side", d.Side))
			continue
		}
		size, err := p.sym.SizeTick().Decode(d.Quantity)
		if err != nil {
			p.logger.Warn("hitbtc: bad trade size", logging.Component("hitbtc"))
			continue
		}
		price, err := p.sym.PriceTick().Decode(d.Price)
		if err != nil {
			p.logger.Warn("hitbtc: bad trade price", logging.Component("hitbtc"))
			continue
		}

		trade := xchg.At(ts, xchg.Trade{Size: size, Price: price, MakerSide: side})
		out <- xchg.Notification{Trade: &trade}
		metrics.ObserveNotification("hitbtc", "trade")
	}
}

type hitbtcReportParams struct {
	ClientOrderID string  `json:"clientOrderId"`
	Side          string  `json:"side"`
	Status        string  `json:"status"`
	Quantity      string  `json:"quantity"`
	Price         string  `json:"price"`
	CumQuantity   string  `json:"cumQuantity"`
	TradeQuantity *string `json:"tradeQuantity"`
	TradePrice    *string `json:"tradePrice"`
	UpdatedAt     string  `json:"updatedAt"`
}

type hitbtcReportMessage struct {
	Params hitbtcReportParams `json:"params"`
}

// handleReport dispatches on the report's status. "partiallyFilled" and
// "filled" always carry a hardcoded zero commission: HitBTC's commission
// model is not exposed on this message, so no attempt is made to infer one.
func (p *parser) handleReport(data []byte, out chan<- xchg.Notification) {
	var msg hitbtcReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn("hitbtc: malformed report message", logging.Component("hitbtc"), logging.String("error", err.Error()))
		return
	}
	r := msg.Params

	ts, err := parseHitbtcTimestamp(r.UpdatedAt)
	if err != nil {
		p.logger.Warn("hitbtc: bad report timestamp", logging.Component("hitbtc"))
		return
	}

	switch r.Status {
	case "new":
		side, err := convertSide(r.Side)
		if err != nil {
			p.logger.Warn("hitbtc: bad order side", logging.Component("hitbtc"), logging.String("side", r.Side))
			return
		}
		size, err1 := p.sym.SizeTick().Decode(r.Quantity)
		price, err2 := p.sym.PriceTick().Decode(r.Price)
		if err1 != nil || err2 != nil {
			p.logger.Warn("hitbtc: bad size/price in new report", logging.Component("hitbtc"))
			return
		}
		conf := xchg.At(ts, xchg.OrderConfirmation{OrderID: r.ClientOrderID, Size: size, Price: price, Side: side})
		out <- xchg.Notification{OrderConfirmation: &conf}
		metrics.ObserveNotification("hitbtc", "order_confirmation")

	case "partiallyFilled", "filled":
		if r.TradeQuantity == nil || r.TradePrice == nil {
			p.logger.Warn("hitbtc: fill report missing trade quantity/price", logging.Component("hitbtc"))
			return
		}
		consumedSize, e1 := p.sym.SizeTick().Decode(*r.TradeQuantity)
		consumedPrice, e2 := p.sym.PriceTick().Decode(*r.TradePrice)
		qty, e3 := p.sym.SizeTick().Decode(r.Quantity)
		cum, e4 := p.sym.SizeTick().Decode(r.CumQuantity)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			p.logger.Warn("hitbtc: bad field in fill report", logging.Component("hitbtc"))
			return
		}
		update := xchg.At(ts, xchg.OrderUpdate{
			OrderID:       r.ClientOrderID,
			ConsumedSize:  consumedSize,
			ConsumedPrice: consumedPrice,
			RemainingSize: qty - cum,
			Commission:    0,
		})
		out <- xchg.Notification{OrderUpdate: &update}
		metrics.ObserveNotification("hitbtc", "order_update")

	case "canceled", "expired", "suspended":
		exp := xchg.At(ts, xchg.OrderExpiration{OrderID: r.ClientOrderID})
		out <- xchg.Notification{OrderExpiration: &exp}
		metrics.ObserveNotification("hitbtc", "order_expiration")
	}
}

func convertSide(side string) (orderbook.Side, error) {
	switch side {
	case "buy":
		return orderbook.Bid, nil
	case "sell":
		return orderbook.Ask, nil
	default:
		return 0, fmt.Errorf("hitbtc: unrecognized side %q", side)
	}
}

func convertLevels(sym symbol.Symbol, levels []hitbtcLevel, side orderbook.Side) ([]orderbook.LimitUpdate, error) {
	out := make([]orderbook.LimitUpdate, 0, len(levels))
	for _, l := range levels {
		price, err := sym.PriceTick().Decode(l.Price)
		if err != nil {
			return nil, err
		}
		size, err := sym.SizeTick().Decode(l.Size)
		if err != nil {
			return nil, err
		}
		out = append(out, orderbook.LimitUpdate{Side: side, Price: price, Size: size})
	}
	return out, nil
}

func wrapTimestamped(updates []orderbook.LimitUpdate, ts int64) []xchg.Timestamped[orderbook.LimitUpdate] {
	out := make([]xchg.Timestamped[orderbook.LimitUpdate], len(updates))
	for i, u := range updates {
		out[i] = xchg.At(ts, u)
	}
	return out
}
