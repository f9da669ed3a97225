package gmo

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"fx-trading-bot/internal/types"
)

// insufficientMarginCode is the envelope code the exchange returns
// when the account cannot cover the requested order.
const insufficientMarginCode = "ERR-201"

// wireAssets mirrors /v1/account/assets. The FX account is a single
// JPY margin account, but the endpoint still wraps it in a list.
type wireAssets struct {
	Balance          string `json:"balance"`
	AvailableAmount  string `json:"availableAmount"`
	Margin           string `json:"margin"`
	Equity           string `json:"equity"`
	PositionLossGain string `json:"positionLossGain"`
}

// wireOrder mirrors the order objects from /v1/order, /v1/activeOrders
// and the close endpoints. IDs come back as JSON numbers.
type wireOrder struct {
	RootOrderID   json.Number `json:"rootOrderId"`
	OrderID       json.Number `json:"orderId"`
	Symbol        string      `json:"symbol"`
	Side          string      `json:"side"`
	ExecutionType string      `json:"executionType"`
	Size          string      `json:"size"`
	ExecutedSize  string      `json:"executedSize"`
	Price         string      `json:"price"`
	Status        string      `json:"status"`
	TimeInForce   string      `json:"timeInForce"`
	Timestamp     string      `json:"timestamp"`
}

type wirePosition struct {
	PositionID json.Number `json:"positionId"`
	Symbol     string      `json:"symbol"`
	Side       string      `json:"side"`
	Size       string      `json:"size"`
	Price      string      `json:"price"`
	LossGain   string      `json:"lossGain"`
	Timestamp  string      `json:"timestamp"`
}

func parseWireTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// AccountAssets returns the margin account snapshot. Amounts stay
// string-encoded; callers needing arithmetic convert with decimal.
func (c *Client) AccountAssets(ctx context.Context) (types.AccountAssets, error) {
	var raw []wireAssets
	if err := c.getPrivate(ctx, "/v1/account/assets", nil, &raw); err != nil {
		return types.AccountAssets{}, err
	}
	if len(raw) == 0 {
		return types.AccountAssets{}, &APIError{HTTPStatus: 200, Message: "empty account assets response"}
	}
	a := raw[0]
	return types.AccountAssets{
		Balance:         a.Balance,
		AvailableAmount: a.AvailableAmount,
		Margin:          a.Margin,
		Equity:          a.Equity,
		ProfitLoss:      a.PositionLossGain,
	}, nil
}

// PlaceOrder submits a new order. An insufficient-margin rejection is
// returned as InsufficientFundsError so the caller can fail just this
// symbol and keep going.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	body := map[string]any{
		"symbol":        req.Symbol,
		"side":          string(req.Side),
		"size":          strconv.Itoa(req.Size),
		"executionType": string(req.ExecutionType),
	}
	if req.Price != "" {
		body["limitPrice"] = req.Price
	}
	if req.StopPrice != "" {
		body["stopPrice"] = req.StopPrice
	}
	if req.TimeInForce != "" {
		body["timeInForce"] = req.TimeInForce
	}

	var raw []wireOrder
	if err := c.postPrivate(ctx, "/v1/order", body, &raw); err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Code == insufficientMarginCode {
			return types.OrderResult{}, &InsufficientFundsError{Symbol: req.Symbol, Err: err}
		}
		return types.OrderResult{}, &OrderError{Op: "place order", Err: err}
	}
	if len(raw) == 0 {
		return types.OrderResult{}, &OrderError{Op: "place order", Err: errors.New("empty order response")}
	}
	return orderResult(raw[0]), nil
}

func orderResult(w wireOrder) types.OrderResult {
	size, _ := strconv.Atoi(w.Size)
	return types.OrderResult{
		OrderID:       w.OrderID.String(),
		Symbol:        w.Symbol,
		Side:          types.Side(w.Side),
		Size:          size,
		ExecutionType: w.ExecutionType,
		Status:        w.Status,
		Timestamp:     parseWireTime(w.Timestamp),
	}
}

// CancelOrder cancels one active order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{"orderId": orderID}
	if err := c.postPrivate(ctx, "/v1/cancelOrder", body, nil); err != nil {
		return &OrderError{Op: "cancel order " + orderID, Err: err}
	}
	return nil
}

// Orders lists active orders for symbol. A non-empty orderID narrows
// the result to that order.
func (c *Client) Orders(ctx context.Context, symbol, orderID string) ([]types.Order, error) {
	query := url.Values{}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	var raw struct {
		List []wireOrder `json:"list"`
	}
	if err := c.getPrivate(ctx, "/v1/activeOrders", query, &raw); err != nil {
		return nil, err
	}
	orders := make([]types.Order, 0, len(raw.List))
	for _, w := range raw.List {
		if orderID != "" && w.OrderID.String() != orderID {
			continue
		}
		orders = append(orders, types.Order{
			OrderID:      w.OrderID.String(),
			Symbol:       w.Symbol,
			Side:         types.Side(w.Side),
			Size:         w.Size,
			ExecutedSize: w.ExecutedSize,
			Price:        w.Price,
			Status:       w.Status,
			TimeInForce:  w.TimeInForce,
			Timestamp:    parseWireTime(w.Timestamp),
		})
	}
	return orders, nil
}

// Positions lists open positions. Empty symbol returns all symbols.
func (c *Client) Positions(ctx context.Context, symbol string) ([]types.Position, error) {
	query := url.Values{}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	var raw struct {
		List []wirePosition `json:"list"`
	}
	if err := c.getPrivate(ctx, "/v1/openPositions", query, &raw); err != nil {
		return nil, err
	}
	positions := make([]types.Position, 0, len(raw.List))
	for _, w := range raw.List {
		size, _ := strconv.Atoi(w.Size)
		positions = append(positions, types.Position{
			PositionID: w.PositionID.String(),
			Symbol:     w.Symbol,
			Side:       types.Side(w.Side),
			Size:       size,
			EntryPrice: w.Price,
			LossGain:   w.LossGain,
			OpenedAt:   parseWireTime(w.Timestamp),
		})
	}
	return positions, nil
}

// ClosePosition settles a single position with a closing order on the
// opposite side.
func (c *Client) ClosePosition(ctx context.Context, req types.CloseRequest) (types.OrderResult, error) {
	executionType := req.ExecutionType
	if executionType == "" {
		executionType = types.ExecutionMarket
	}
	body := map[string]any{
		"symbol":        req.Symbol,
		"side":          string(req.Side),
		"executionType": string(executionType),
		"settlePosition": []map[string]any{
			{"positionId": req.PositionID, "size": strconv.Itoa(req.Size)},
		},
	}
	if req.Price != "" {
		body["limitPrice"] = req.Price
	}
	if req.TimeInForce != "" {
		body["timeInForce"] = req.TimeInForce
	}

	var raw []wireOrder
	if err := c.postPrivate(ctx, "/v1/closeOrder", body, &raw); err != nil {
		return types.OrderResult{}, &OrderError{Op: "close position " + req.PositionID, Err: err}
	}
	if len(raw) == 0 {
		return types.OrderResult{}, &OrderError{Op: "close position " + req.PositionID, Err: errors.New("empty close response")}
	}
	return orderResult(raw[0]), nil
}

// CloseAllPositions settles every open position held on `held` for the
// symbol in a single bulk order; the closing order is placed on the
// opposite side.
func (c *Client) CloseAllPositions(ctx context.Context, symbol string, held types.Side) (types.OrderResult, error) {
	body := map[string]any{
		"symbol":        symbol,
		"side":          string(held.Opposite()),
		"executionType": string(types.ExecutionMarket),
	}

	var raw []wireOrder
	if err := c.postPrivate(ctx, "/v1/closeBulkOrder", body, &raw); err != nil {
		return types.OrderResult{}, &OrderError{Op: "close all " + symbol, Err: err}
	}
	if len(raw) == 0 {
		return types.OrderResult{}, &OrderError{Op: "close all " + symbol, Err: errors.New("empty close response")}
	}
	return orderResult(raw[0]), nil
}
