package gmo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"fx-trading-bot/internal/types"
)

func fastRetry(maxAttempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func newTestClient(baseURL string, maxAttempts int) *Client {
	return NewClient(ClientConfig{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		APISecret: "test-secret",
		Retry:     fastRetry(maxAttempts),
	})
}

func TestPrivateRequestSigning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/private/v1/account/assets" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("API-KEY"); got != "test-key" {
			t.Errorf("Expected API-KEY header, got %q", got)
		}
		timestamp := r.Header.Get("API-TIMESTAMP")
		if timestamp == "" {
			t.Error("Expected API-TIMESTAMP header")
		}

		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(timestamp + "GET" + "/v1/account/assets"))
		want := hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("API-SIGN"); got != want {
			t.Errorf("Signature mismatch: expected %s, got %s", want, got)
		}

		fmt.Fprint(w, `{"status":0,"data":[{"balance":"100","availableAmount":"90","margin":"10","equity":"100","positionLossGain":"0"}]}`)
	}))
	defer server.Close()

	assets, err := newTestClient(server.URL, 1).AccountAssets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if assets.Balance != "100" || assets.Margin != "10" {
		t.Errorf("Unexpected assets: %+v", assets)
	}
}

func TestPrivateRequestWithoutCredentials(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Retry: fastRetry(1)})
	_, err := c.AccountAssets(context.Background())
	if !IsAuth(err) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if calls != 0 {
		t.Error("Missing credentials must fail before any network call")
	}
}

func TestCandlesQueryAndParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "USD_JPY" || q.Get("interval") != "5min" || q.Get("priceType") != "ASK" {
			t.Errorf("Unexpected query: %v", q)
		}
		if q.Get("date") != "20260301" {
			t.Errorf("Expected date 20260301, got %s", q.Get("date"))
		}
		fmt.Fprint(w, `{"status":0,"data":[
			{"openTime":"1772366400000","open":"150.100","high":"150.200","low":"150.000","close":"150.150"},
			{"openTime":"1772366700000","open":"150.150","high":"150.300","low":"150.100","close":"150.250"}
		]}`)
	}))
	defer server.Close()

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candles, err := newTestClient(server.URL, 1).Candles(context.Background(), "USD_JPY", "5min", date)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	if !candles[0].OpenTime.Equal(time.UnixMilli(1772366400000).UTC()) {
		t.Errorf("Unexpected open time %v", candles[0].OpenTime)
	}
	if candles[1].Close != 150.25 {
		t.Errorf("Expected close 150.25, got %f", candles[1].Close)
	}
}

func TestCandleRangeSkipsFailedDaysAndDedupes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("date") {
		case "20260228":
			w.WriteHeader(http.StatusInternalServerError)
		case "20260301":
			fmt.Fprint(w, `{"status":0,"data":[
				{"openTime":"1772366400000","open":"150.1","high":"150.2","low":"150.0","close":"150.15"},
				{"openTime":"1772366700000","open":"150.15","high":"150.3","low":"150.1","close":"150.25"}
			]}`)
		case "20260302":
			// First bar duplicates the previous day's boundary candle.
			fmt.Fprint(w, `{"status":0,"data":[
				{"openTime":"1772366700000","open":"150.15","high":"150.3","low":"150.1","close":"150.25"},
				{"openTime":"1772367000000","open":"150.25","high":"150.4","low":"150.2","close":"150.35"}
			]}`)
		default:
			t.Errorf("Unexpected date %s", r.URL.Query().Get("date"))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL, 1)
	c.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }

	candles, err := c.CandleRange(context.Background(), "USD_JPY", "5min", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 3 {
		t.Fatalf("Expected 3 deduped candles, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			t.Errorf("Expected strictly ascending open times, got %v then %v",
				candles[i-1].OpenTime, candles[i].OpenTime)
		}
	}
}

func TestEnvelopeErrorMapping(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status":1,"messages":[{"message_code":"ERR-254","message_string":"invalid parameter"}]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Candles(context.Background(), "USD_JPY", "5min", time.Now())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Code != "ERR-254" {
		t.Errorf("Expected code ERR-254, got %s", apiErr.Code)
	}
	if calls != 1 {
		t.Errorf("Business errors must not be retried, got %d calls", calls)
	}
}

func TestRateLimitResponsesAreRetriedAndPreserved(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Candles(context.Background(), "USD_JPY", "5min", time.Now())
	if !IsRateLimit(err) {
		t.Fatalf("Expected RateLimitError after exhausted retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"messages":[{"message_code":"ERR-201","message_string":"insufficient margin"}]}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 1)
	_, err := c.PlaceOrder(context.Background(), orderReq())
	if !IsInsufficientFunds(err) {
		t.Fatalf("Expected InsufficientFundsError, got %v", err)
	}
}

func TestPlaceOrderParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/private/v1/order" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"status":0,"data":[{"orderId":223456789,"symbol":"USD_JPY","side":"BUY","executionType":"MARKET","size":"1","status":"WAITING","timestamp":"2026-03-01T09:30:00.000Z"}]}`)
	}))
	defer server.Close()

	res, err := newTestClient(server.URL, 1).PlaceOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatal(err)
	}
	if res.OrderID != "223456789" {
		t.Errorf("Expected order id 223456789, got %s", res.OrderID)
	}
	if res.Simulated {
		t.Error("Live order must not be marked simulated")
	}
	if res.Timestamp.IsZero() {
		t.Error("Expected parsed timestamp")
	}
}

func orderReq() types.OrderRequest {
	return types.OrderRequest{
		Symbol:        "USD_JPY",
		Side:          types.SideBuy,
		Size:          1,
		ExecutionType: types.ExecutionMarket,
	}
}

func TestOrdersListingAndFilter(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/private/v1/activeOrders" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"status":0,"data":{"list":[
			{"orderId":223456789,"symbol":"USD_JPY","side":"BUY","executionType":"LIMIT","size":"1","executedSize":"0","price":"149.80","status":"ORDERED","timeInForce":"FAS","timestamp":"2026-03-02T09:00:00Z"},
			{"orderId":223456790,"symbol":"USD_JPY","side":"SELL","executionType":"LIMIT","size":"2","executedSize":"0","price":"150.60","status":"ORDERED","timeInForce":"FAS","timestamp":"2026-03-02T09:05:00Z"}
		]}}`)
	}))
	defer server.Close()
	c := newTestClient(server.URL, 1)

	orders, err := c.Orders(context.Background(), "USD_JPY", "")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery.Get("symbol") != "USD_JPY" {
		t.Errorf("Expected symbol query parameter, got %q", gotQuery.Get("symbol"))
	}
	if len(orders) != 2 {
		t.Fatalf("Expected two orders, got %d", len(orders))
	}
	if orders[0].OrderID != "223456789" || orders[0].Price != "149.80" || orders[0].Side != types.SideBuy {
		t.Errorf("Unexpected first order: %+v", orders[0])
	}

	orders, err = c.Orders(context.Background(), "USD_JPY", "223456790")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].OrderID != "223456790" {
		t.Errorf("Expected only the matching order, got %+v", orders)
	}

	if _, err = c.Orders(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}
	if _, set := gotQuery["symbol"]; set {
		t.Error("Expected no symbol query parameter when symbol is empty")
	}
}

func TestCancelOrder(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/private/v1/cancelOrder" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Decoding request body: %v", err)
		}
		fmt.Fprint(w, `{"status":0,"data":{}}`)
	}))
	defer server.Close()

	if err := newTestClient(server.URL, 1).CancelOrder(context.Background(), "223456789"); err != nil {
		t.Fatal(err)
	}
	if gotBody["orderId"] != "223456789" {
		t.Errorf("Expected orderId in body, got %v", gotBody)
	}
}

func TestCancelOrderRejectionWrapsOrderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"messages":[{"message_code":"ERR-254","message_string":"Order not found."}]}`)
	}))
	defer server.Close()

	err := newTestClient(server.URL, 1).CancelOrder(context.Background(), "999")
	var orderErr *OrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("Expected OrderError, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "ERR-254" {
		t.Errorf("Expected the business error code to survive wrapping, got %v", err)
	}
}
