package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/metrics"
	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// reconcileState is the book-snapshot reconciliation substate: the
// hardest part of the Binance adapter, gating depth updates on an
// asynchronously fetched REST snapshot under strict sequence discipline.
type reconcileState int

const (
	stateNone reconcileState = iota
	stateWaiting
	stateOk
)

type bufferedBatch struct {
	u       uint64
	updates []xchg.Timestamped[orderbook.LimitUpdate]
}

type snapshotResult struct {
	snapshot *binanceBookSnapshot
	err      error
}

// parser implements xchg.Parser for the Binance combined trade/depth[/user
// data] stream.
type parser struct {
	sym    symbol.Symbol
	logger *logging.Logger
	rest   *xchg.RestClient

	state    reconcileState
	buffered []bufferedBatch

	hasPreviousU bool
	previousU    uint64

	snapshotCh chan snapshotResult
}

func newParser(sym symbol.Symbol, logger *logging.Logger, rest *xchg.RestClient) *parser {
	return &parser{sym: sym, logger: logger, rest: rest}
}

// binanceLevel decodes a Binance `[price, size, ...]` depth array; trailing
// elements (always empty in practice) are ignored.
type binanceLevel struct {
	Price string
	Size  string
}

func (l *binanceLevel) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("binance: malformed price level array")
	}
	if err := json.Unmarshal(raw[0], &l.Price); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &l.Size)
}

type binanceEventType struct {
	Type string `json:"e"`
}

type binanceTradeMsg struct {
	Price string `json:"p"`
	Qty   string `json:"q"`
	T     int64  `json:"T"`
	Maker bool   `json:"m"`
}

type binanceDepthUpdate struct {
	E    int64          `json:"E"`
	U    uint64         `json:"U"`
	UEnd uint64         `json:"u"`
	Bids []binanceLevel `json:"b"`
	Asks []binanceLevel `json:"a"`
}

type binanceBookSnapshot struct {
	LastUpdateID uint64         `json:"lastUpdateId"`
	Bids         []binanceLevel `json:"bids"`
	Asks         []binanceLevel `json:"asks"`
}

type binanceExecutionReport struct {
	ClientOrderID     string `json:"c"`
	OrigClientOrderID string `json:"C"`
	Side              string `json:"S"`
	Qty               string `json:"q"`
	Price             string `json:"p"`
	ExecType          string `json:"x"`
	LastExecQty       string `json:"l"`
	CumQty            string `json:"z"`
	LastExecPrice     string `json:"L"`
	Commission        string `json:"n"`
	T                 int64  `json:"T"`
}

// OnOpen is a no-op: subscription happens via the URL path (streams are
// selected when the connection is dialed), so open just needs to keep
// the socket alive -- no payload to send.
func (p *parser) OnOpen(send func(v interface{}) error) error {
	return nil
}

// OnMessage dispatches by Binance's `e` event-type discriminator.
func (p *parser) OnMessage(data []byte, out chan<- xchg.Notification) {
	var evt binanceEventType
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Warn("binance: malformed message", logging.Component("binance"), logging.String("error", err.Error()))
		return
	}

	switch evt.Type {
	case "trade":
		p.handleTrade(data, out)
	case "depthUpdate":
		p.handleDepthUpdate(data, out)
	case "executionReport":
		p.handleExecutionReport(data, out)
	}
}

func (p *parser) handleTrade(data []byte, out chan<- xchg.Notification) {
	var t binanceTradeMsg
	if err := json.Unmarshal(data, &t); err != nil {
		p.logger.Warn("binance: malformed trade", logging.Component("binance"), logging.String("error", err.Error()))
		return
	}
	price, err := p.sym.PriceTick().Decode(t.Price)
	if err != nil {
		p.logger.Warn("binance: bad trade price", logging.Component("binance"))
		return
	}
	size, err := p.sym.SizeTick().Decode(t.Qty)
	if err != nil {
		p.logger.Warn("binance: bad trade size", logging.Component("binance"))
		return
	}
	makerSide := orderbook.Ask
	if t.Maker {
		makerSide = orderbook.Bid
	}
	trade := xchg.At(t.T, xchg.Trade{Size: size, Price: price, MakerSide: makerSide})
	out <- xchg.Notification{Trade: &trade}
	metrics.ObserveNotification("binance", "trade")
}

// handleDepthUpdate enforces the sequence invariant (previous u+1 == U),
// then routes the converted update batch through the reconciliation
// substate machine.
func (p *parser) handleDepthUpdate(data []byte, out chan<- xchg.Notification) {
	var du binanceDepthUpdate
	if err := json.Unmarshal(data, &du); err != nil {
		p.logger.Warn("binance: malformed depth update", logging.Component("binance"), logging.String("error", err.Error()))
		return
	}

	if p.hasPreviousU && p.previousU+1 != du.U {
		metrics.ObserveSnapshotAbort("binance")
		panic(fmt.Sprintf("binance: sequence invariant violated: previous u+1=%d, got U=%d", p.previousU+1, du.U))
	}
	p.previousU = du.UEnd
	p.hasPreviousU = true

	bid, err := convertLevels(p.sym, du.Bids, orderbook.Bid)
	if err != nil {
		p.logger.Warn("binance: bad bid level in depth update", logging.Component("binance"))
		return
	}
	ask, err := convertLevels(p.sym, du.Asks, orderbook.Ask)
	if err != nil {
		p.logger.Warn("binance: bad ask level in depth update", logging.Component("binance"))
		return
	}
	raw := append(bid, ask...)
	if len(raw) == 0 {
		return
	}
	updates := wrapTimestamped(raw, du.E)

	switch p.state {
	case stateNone:
		p.requestSnapshot(bufferedBatch{u: du.UEnd, updates: updates})
	case stateWaiting:
		p.buffered = append(p.buffered, bufferedBatch{u: du.UEnd, updates: updates})
		p.pollSnapshot(out)
	case stateOk:
		out <- xchg.Notification{LimitUpdates: updates}
		metrics.ObserveNotification("binance", "limit_updates")
	}
}

// requestSnapshot fires the asynchronous REST depth fetch and buffers the
// triggering update as the first element of the waiting state.
func (p *parser) requestSnapshot(first bufferedBatch) {
	p.state = stateWaiting
	p.buffered = []bufferedBatch{first}
	p.snapshotCh = make(chan snapshotResult, 1)

	rest := p.rest
	name := p.sym.Name()
	ch := p.snapshotCh

	go func() {
		body, err := rest.Do(context.Background(), xchg.RestRequest{
			Method: "GET",
			Path:   "api/v1/depth",
			Query:  url.Values{"symbol": {name}, "limit": {"1000"}},
		}, nil)
		if err != nil {
			ch <- snapshotResult{err: err}
			return
		}
		var snap binanceBookSnapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			ch <- snapshotResult{err: fmt.Errorf("decoding depth snapshot: %w", err)}
			return
		}
		ch <- snapshotResult{snapshot: &snap}
	}()
}

// pollSnapshot is a non-blocking check for the REST snapshot's arrival on
// the background request's result channel.
func (p *parser) pollSnapshot(out chan<- xchg.Notification) {
	select {
	case res := <-p.snapshotCh:
		if res.err != nil {
			panic(fmt.Sprintf("binance: LOB snapshot request failed: %v", res.err))
		}
		notif, err := p.spliceSnapshot(res.snapshot)
		if err != nil {
			panic(fmt.Sprintf("binance: LOB processing encountered error: %v", err))
		}
		p.state = stateOk
		p.buffered = nil
		p.snapshotCh = nil
		out <- notif
		metrics.ObserveNotification("binance", "limit_updates")
	default:
	}
}

// spliceSnapshot applies the snapshot's bids and asks, followed by every
// buffered update whose trailing sequence `u` exceeds the snapshot's
// lastUpdateId.
func (p *parser) spliceSnapshot(snap *binanceBookSnapshot) (xchg.Notification, error) {
	bid, err := convertLevels(p.sym, snap.Bids, orderbook.Bid)
	if err != nil {
		return xchg.Notification{}, err
	}
	ask, err := convertLevels(p.sym, snap.Asks, orderbook.Ask)
	if err != nil {
		return xchg.Notification{}, err
	}

	updates := wrapTimestamped(append(bid, ask...), nowMs())
	for _, batch := range p.buffered {
		if batch.u > snap.LastUpdateID {
			updates = append(updates, batch.updates...)
		}
	}
	return xchg.Notification{LimitUpdates: updates}, nil
}

func (p *parser) handleExecutionReport(data []byte, out chan<- xchg.Notification) {
	var r binanceExecutionReport
	if err := json.Unmarshal(data, &r); err != nil {
		p.logger.Warn("binance: malformed execution report", logging.Component("binance"), logging.String("error", err.Error()))
		return
	}

	switch r.ExecType {
	case "NEW":
		size, err1 := p.sym.SizeTick().Decode(r.Qty)
		price, err2 := p.sym.PriceTick().Decode(r.Price)
		var side orderbook.Side
		switch r.Side {
		case "BUY":
			side = orderbook.Bid
		case "SELL":
			side = orderbook.Ask
		default:
			p.logger.Warn("binance: unexpected order side", logging.Component("binance"), logging.String("side", r.Side))
			return
		}
		if err1 != nil || err2 != nil {
			p.logger.Warn("binance: bad size/price in execution report", logging.Component("binance"))
			return
		}
		conf := xchg.At(r.T, xchg.OrderConfirmation{OrderID: r.ClientOrderID, Size: size, Price: price, Side: side})
		out <- xchg.Notification{OrderConfirmation: &conf}
		metrics.ObserveNotification("binance", "order_confirmation")

	case "TRADE":
		consumedSize, e1 := p.sym.SizeTick().Decode(r.LastExecQty)
		qty, e2 := p.sym.SizeTick().Decode(r.Qty)
		cum, e3 := p.sym.SizeTick().Decode(r.CumQty)
		consumedPrice, e4 := p.sym.PriceTick().Decode(r.LastExecPrice)
		commission, e5 := p.sym.CommissionTick().Decode(r.Commission)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			p.logger.Warn("binance: bad field in fill report", logging.Component("binance"))
			return
		}
		update := xchg.At(r.T, xchg.OrderUpdate{
			OrderID:       r.ClientOrderID,
			ConsumedSize:  consumedSize,
			ConsumedPrice: consumedPrice,
			RemainingSize: qty - cum,
			Commission:    commission,
		})
		out <- xchg.Notification{OrderUpdate: &update}
		metrics.ObserveNotification("binance", "order_update")

	case "EXPIRED":
		// lowercase `c`: Binance's own client order id field.
		exp := xchg.At(r.T, xchg.OrderExpiration{OrderID: r.ClientOrderID})
		out <- xchg.Notification{OrderExpiration: &exp}
		metrics.ObserveNotification("binance", "order_expiration")

	case "CANCELED":
		// uppercase `C`: the order id from the original placement request.
		exp := xchg.At(r.T, xchg.OrderExpiration{OrderID: r.OrigClientOrderID})
		out <- xchg.Notification{OrderExpiration: &exp}
		metrics.ObserveNotification("binance", "order_expiration")

	default:
		// REJECTED and others are already surfaced through the REST response.
	}
}

func convertLevels(sym symbol.Symbol, levels []binanceLevel, side orderbook.Side) ([]orderbook.LimitUpdate, error) {
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
