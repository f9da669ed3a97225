// Package gmo implements the GMO Coin FX REST client: public market
// data, authenticated private trading endpoints, rate limiting, and a
// dry-run simulator that mimics the same response shapes.
package gmo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://forex-api.coin.z.com"
	defaultTimeout = 30 * time.Second

	readsPerSecond  = 6
	writesPerSecond = 1
)

// ClientConfig carries everything needed to talk to the exchange.
// APIKey/APISecret may be empty for public-only use; private calls
// then fail with an AuthError.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	PriceType string // ASK or BID, used for candle queries
	Timeout   time.Duration
	Retry     *RetryPolicy
}

// Client is the live exchange client. It satisfies
// interfaces.Exchange and is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	priceType  string
	httpClient *http.Client
	readLimit  *rateLimiter
	writeLimit *rateLimiter
	retry      RetryPolicy
	now        func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if retry.Sleep == nil {
		retry.Sleep = sleepCtx
	}
	priceType := cfg.PriceType
	if priceType == "" {
		priceType = "ASK"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		priceType:  priceType,
		httpClient: &http.Client{Timeout: timeout},
		readLimit:  newRateLimiter(readsPerSecond),
		writeLimit: newRateLimiter(writesPerSecond),
		retry:      retry,
		now:        time.Now,
	}
}

// envelope is the wrapper every GMO response comes in. Status 0 means
// success; anything else carries machine codes in messages.
type envelope struct {
	Status   int             `json:"status"`
	Data     json.RawMessage `json:"data"`
	Messages []struct {
		Code string `json:"message_code"`
		Text string `json:"message_string"`
	} `json:"messages"`
}

// sign computes the request signature: hex HMAC-SHA256 of
// timestamp+method+path+body keyed with the API secret.
func (c *Client) sign(timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// getPublic performs a rate-limited, retried GET against /public.
func (c *Client) getPublic(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, query, nil, false, out)
}

// getPrivate performs an authenticated GET against /private.
func (c *Client) getPrivate(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, query, nil, true, out)
}

// postPrivate performs an authenticated POST against /private.
func (c *Client) postPrivate(ctx context.Context, path string, body any, out any) error {
	return c.request(ctx, http.MethodPost, path, nil, body, true, out)
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any, private bool, out any) error {
	if private && (c.apiKey == "" || c.apiSecret == "") {
		return &AuthError{Message: "api key and secret are not configured"}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	limiter := c.readLimit
	if method == http.MethodPost {
		limiter = c.writeLimit
	}

	var data json.RawMessage
	err := c.retry.Do(ctx, func() error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		raw, err := c.doOnce(ctx, method, path, query, payload, private)
		if err != nil {
			return err
		}
		data = raw
		return nil
	})
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, payload []byte, private bool) (json.RawMessage, error) {
	endpoint := c.baseURL + "/public" + path
	if private {
		endpoint = c.baseURL + "/private" + path
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if private {
		// Signature covers the path after /private, not the full URL.
		timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
		req.Header.Set("API-KEY", c.apiKey)
		req.Header.Set("API-TIMESTAMP", timestamp)
		req.Header.Set("API-SIGN", c.sign(timestamp, method, path, string(payload)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{HTTPStatus: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{HTTPStatus: 0, Message: "read response: " + err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Message: fmt.Sprintf("http %d from %s", resp.StatusCode, path)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Message: "http 429 from " + path}
	case resp.StatusCode >= 400:
		return nil, &APIError{HTTPStatus: resp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &APIError{HTTPStatus: resp.StatusCode, Message: "decode envelope: " + err.Error()}
	}
	if env.Status != 0 {
		code, text := "", fmt.Sprintf("status %d", env.Status)
		if len(env.Messages) > 0 {
			code = env.Messages[0].Code
			parts := make([]string, 0, len(env.Messages))
			for _, m := range env.Messages {
				parts = append(parts, m.Text)
			}
			text = strings.Join(parts, "; ")
		}
		// ERR-5003 is the exchange's "requests are too many" code.
		if code == "ERR-5003" {
			return nil, &RateLimitError{Message: text}
		}
		return nil, &APIError{HTTPStatus: resp.StatusCode, Code: code, Message: text}
	}
	return env.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
