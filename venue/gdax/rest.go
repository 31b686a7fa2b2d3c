package gdax

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/orderbook"
	"github.com/epic1st/xchg/symbol"
)

const gdaxTimeLayout = "2006-01-02T15:04:05.999999Z"

type gdaxOrderRequest struct {
	Size        string `json:"size"`
	Price       string `json:"price"`
	Side        string `json:"side"`
	ProductID   string `json:"product_id"`
	ClientOID   string `json:"client_oid,omitempty"`
	TimeInForce string `json:"time_in_force"`
	PostOnly    bool   `json:"post_only"`
}

type gdaxOrderAck struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason"`
}

func sideString(s orderbook.Side) string {
	if s == orderbook.Bid {
		return "buy"
	}
	return "sell"
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

// Order places a new order via POST /orders. GDAX accepts only UUID
// client order ids, so no duplicate-order race is possible the way a
// reused textual id could cause on other venues.
func (c *Client) Order(ctx context.Context, req symbol.WithSymbol[xchg.Order]) (xchg.OrderAck, error) {
	sym := req.Symbol
	order := req.Inner

	size, err := sym.SizeTick().Encode(order.Size)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("gdax: encoding size: %w", err)
	}
	price, err := sym.PriceTick().Encode(order.Price)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("gdax: encoding price: %w", err)
	}

	body := gdaxOrderRequest{
		Size:        size,
		Price:       price,
		Side:        sideString(order.Side),
		ProductID:   sym.Name(),
		ClientOID:   order.OrderID,
		TimeInForce: timeInForceString(order.TimeInForce),
		PostOnly:    order.Type == xchg.LimitMaker,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("gdax: encoding order: %w", err)
	}

	orderType := "limit"
	if body.PostOnly {
		orderType = "limit_maker"
	}

	respBody, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "POST",
		Path:          "orders",
		Body:          payload,
		Authenticated: true,
		Audit: &xchg.AuditMeta{
			Action:    "place_order",
			OrderID:   order.OrderID,
			Symbol:    sym.Name(),
			Side:      body.Side,
			Size:      float64(order.Size),
			Price:     float64(order.Price),
			OrderType: orderType,
		},
	}, RefineOrder)
	if err != nil {
		return xchg.OrderAck{}, err
	}

	var ack gdaxOrderAck
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return xchg.OrderAck{}, fmt.Errorf("gdax: decoding order ack: %w", err)
	}

	if ack.Status == "rejected" && strings.HasPrefix(ack.RejectReason, "post only") {
		return xchg.OrderAck{}, &xchg.RestError{Kind: xchg.WouldTakeLiquidity}
	}

	t, err := time.Parse(gdaxTimeLayout, ack.CreatedAt)
	if err != nil {
		return xchg.OrderAck{}, fmt.Errorf("gdax: parsing created_at: %w", err)
	}

	orderID := order.OrderID
	if orderID == "" {
		orderID = ack.ID
	}
	c.orderIDs.Store(orderID, ack.ID)

	return xchg.OrderAck{OrderID: orderID, TimestampMs: t.UnixMilli()}, nil
}

// Cancel cancels a resting order via DELETE /orders/{server_order_id},
// looking up the server-assigned id through the concurrent map shared
// with the WebSocket `received` handler.
func (c *Client) Cancel(ctx context.Context, req symbol.WithSymbol[xchg.Cancel]) (xchg.CancelAck, error) {
	cancel := req.Inner

	v, ok := c.orderIDs.Load(cancel.OrderID)
	if !ok {
		return xchg.CancelAck{}, &xchg.RestError{Kind: xchg.UnknownOrder}
	}
	serverOrderID := v.(string)

	_, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "DELETE",
		Path:          "orders/" + serverOrderID,
		Authenticated: true,
		Audit:         &xchg.AuditMeta{Action: "cancel_order", OrderID: cancel.OrderID},
	}, RefineCancel)
	if err != nil {
		return xchg.CancelAck{}, err
	}

	return xchg.CancelAck{OrderID: serverOrderID}, nil
}

type gdaxAccount struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
}

// Balances returns account balances via GET /accounts.
func (c *Client) Balances(ctx context.Context) (xchg.Balances, error) {
	body, err := c.rest.Do(ctx, xchg.RestRequest{
		Method:        "GET",
		Path:          "accounts",
		Authenticated: true,
	}, nil)
	if err != nil {
		return nil, err
	}

	var accounts []gdaxAccount
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("gdax: decoding accounts: %w", err)
	}

	out := make(xchg.Balances, len(accounts))
	for _, a := range accounts {
		out[a.Currency] = xchg.Balance{Free: a.Available, Locked: a.Hold}
	}
	return out, nil
}
