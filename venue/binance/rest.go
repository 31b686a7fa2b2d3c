package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/symbol"
)

type binanceOrderAck struct {
	Symbol        string `json:"symbol"`
	OrderID       uint64 `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	TransactTime  int64  `json:"transactTime"`
}

type binanceCancelAck struct {
	Symbol            string `json:"symbol"`
	OrigClientOrderID string `json:"origClientOrderId"`
	OrderID           uint64 `json:"orderId"`
	ClientOrderID     string `json:"clientOrderId"`
}

// Order places a new order via POST /api/v3/order.
func (c *Client) Order(ctx context.Context, req symbol.WithSymbol[xchg.Order]) (xchg.OrderAck, error) {
	sym := req.Symbol
	order := req.Inner

	size, err := formatTicks(sym.SizeTick(), order.Size)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("binance: encoding size: %w", err)
	}
	price, err := formatTicks(sym.PriceTick(), order.Price)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("binance: encoding price: %w", err)
	}

	query := url.Values{}
	query.Set("symbol", strings.ToUpper(sym.Name()))
	query.Set("side", sideString(int(order.Side)))
	query.Set("type", "LIMIT")
	query.Set("timeInForce", timeInForceString(int(order.TimeInForce)))
	query.Set("quantity", size)
	query.Set("price", price)
	if order.OrderID != "" {
		query.Set("newClientOrderId", order.OrderID)
	}
	query.Set("recvWindow", strconv.FormatInt(order.TimeWindowMs, 10))

	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "POST",
		Path:          "api/v3/order",
		Query:         query,
		Authenticated: true,
		Audit: &xchg.AuditMeta{
			Action:    "place_order",
			OrderID:   order.OrderID,
			Symbol:    sym.Name(),
			Side:      sideString(int(order.Side)),
			Size:      float64(order.Size),
			Price:     float64(order.Price),
			OrderType: "LIMIT",
		},
	}, RefineOrder)
	if err != nil {
		return xchg.OrderAck{}, err
	}

	var ack binanceOrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return xchg.OrderAck{}, fmt.Errorf("binance: decoding order ack: %w", err)
	}
	return xchg.OrderAck{OrderID: ack.ClientOrderID, TimestampMs: ack.TransactTime}, nil
}

// Cancel cancels a resting order via DELETE /api/v3/order.
func (c *Client) Cancel(ctx context.Context, req symbol.WithSymbol[xchg.Cancel]) (xchg.CancelAck, error) {
	sym := req.Symbol
	cancel := req.Inner

	query := url.Values{}
	query.Set("symbol", strings.ToUpper(sym.Name()))
	query.Set("origClientOrderId", cancel.OrderID)
	if cancel.CancelID != "" {
		query.Set("newClientOrderId", cancel.CancelID)
	}
	query.Set("recvWindow", strconv.FormatInt(cancel.TimeWindowMs, 10))

	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "DELETE",
		Path:          "api/v3/order",
		Query:         query,
		Authenticated: true,
		Audit:         &xchg.AuditMeta{Action: "cancel_order", OrderID: cancel.OrderID, Symbol: sym.Name()},
	}, RefineCancel)
	if err != nil {
		return xchg.CancelAck{}, err
	}

	var ack binanceCancelAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return xchg.CancelAck{}, fmt.Errorf("binance: decoding cancel ack: %w", err)
	}
	return xchg.CancelAck{OrderID: ack.ClientOrderID}, nil
}

// Balances returns account balances via GET /api/v3/account.
func (c *Client) Balances(ctx context.Context) (xchg.Balances, error) {
	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "GET",
		Path:          "api/v3/account",
		Authenticated: true,
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decoding account balances: %w", err)
	}

	out := make(xchg.Balances, len(resp.Balances))
	for _, b := range resp.Balances {
		out[b.Asset] = xchg.Balance{Free: b.Free, Locked: b.Locked}
	}
	return out, nil
}
