package hitbtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
)

const hitbtcTimeLayout = "2006-01-02T15:04:05.999Z"

func sideString(s orderbook.Side) string {
	if s == orderbook.Bid {
		return "buy"
	}
	return "sell"
}

func orderTypeString(t xchg.OrderType) string {
	// HitBTC has no distinct post-only order type on this endpoint; both
	// Limit and LimitMaker submit as "limit".
	_ = t
	return "limit"
}

func timeInForceString(t xchg.TimeInForce) string {
	switch t {
	case xchg.FillOrKill:
		return "FOK"
	case xchg.ImmediateOrCancel:
		return "IOC"
	default:
		return "GTC"
	}
}

type hitbtcOrderAck struct {
	ClientOrderID string `json:"clientOrderId"`
	CreatedAt     string `json:"createdAt"`
}

// Order places a new order via POST /api/2/order, form-urlencoded like
// every other HitBTC REST request.
func (c *Client) Order(ctx context.Context, req symbol.WithSymbol[xchg.Order]) (xchg.OrderAck, error) {
	sym := req.Symbol
	order := req.Inner

	size, err := sym.SizeTick().Encode(order.Size)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("hitbtc: encoding size: %w", err)
	}
	price, err := sym.PriceTick().Encode(order.Price)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("hitbtc: encoding price: %w", err)
	}

	query := url.Values{}
	query.Set("symbol", sym.Name())
	query.Set("side", sideString(order.Side))
	query.Set("type", orderTypeString(order.Type))
	query.Set("timeInForce", timeInForceString(order.TimeInForce))
	query.Set("quantity", size)
	query.Set("price", price)
	if order.OrderID != "" {
		query.Set("clientOrderId", order.OrderID)
	}

	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "POST",
		Path:          "api/2/order",
		Body:          []byte(query.Encode()),
		Authenticated: true,
		Audit: &xchg.AuditMeta{
			Action:    "place_order",
			OrderID:   order.OrderID,
			Symbol:    sym.Name(),
			Side:      sideString(order.Side),
			Size:      float64(order.Size),
			Price:     float64(order.Price),
			OrderType: orderTypeString(order.Type),
		},
	}, RefineOrder)
	if err != nil {
		return xchg.OrderAck{}, err
	}

	var ack hitbtcOrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return xchg.OrderAck{}, fmt.Errorf("hitbtc: decoding order ack: %w", err)
	}

	t, err := time.Parse(hitbtcTimeLayout, ack.CreatedAt)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("hitbtc: parsing createdAt: %w", err)
	}

	return xchg.OrderAck{OrderID: ack.ClientOrderID, TimestampMs: t.UnixMilli()}, nil
}

type hitbtcCancelAck struct {
	UpdatedAt string `json:"updatedAt"`
}

// Cancel cancels a resting order via DELETE /api/2/order/{clientOrderId}.
// Unlike GDAX, HitBTC addresses orders by the client-supplied id
// throughout, so no server-id lookup is needed.
func (c *Client) Cancel(ctx context.Context, req symbol.WithSymbol[xchg.Cancel]) (xchg.CancelAck, error) {
	cancel := req.Inner

	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "DELETE",
		Path:          "api/2/order/" + cancel.OrderID,
		Authenticated: true,
		Audit:         &xchg.AuditMeta{Action: "cancel_order", OrderID: cancel.OrderID, Symbol: req.Symbol.Name()},
	}, RefineCancel)
	if err != nil {
		return xchg.CancelAck{}, err
	}

	var ack hitbtcCancelAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return xchg.CancelAck{}, fmt.Errorf("hitbtc: decoding cancel ack: %w", err)
	}

	t, err := time.Parse(hitbtcTimeLayout, ack.UpdatedAt)
	if err != nil {
		return xchg.CancelAck{}, fmt.Errorf("hitbtc: parsing updatedAt: %w", err)
	}

	return xchg.CancelAck{OrderID: cancel.OrderID, TimestampMs: t.UnixMilli()}, nil
}

type hitbtcBalance struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
}

// Balances returns account balances via GET /api/2/trading/balance.
func (c *Client) Balances(ctx context.Context) (xchg.Balances, error) {
	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "GET",
		Path:          "api/2/trading/balance",
		Authenticated: true,
	}, nil)
	if err != nil {
		return nil, err
	}

	var balances []hitbtcBalance
	if err := json.Unmarshal(body, &balances); err != nil {
		return nil, fmt.Errorf("hitbtc: decoding balances: %w", err)
	}

	out := make(xchg.Balances, len(balances))
	for _, b := range balances {
		out[b.Currency] = xchg.Balance{Free: b.Available, Locked: b.Reserved}
	}
	return out, nil
}
