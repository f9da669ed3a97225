package gmo

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/types"
)

// wireCandle is a single kline as the exchange encodes it: the open
// time in epoch milliseconds and prices as decimal strings.
type wireCandle struct {
	OpenTime string `json:"openTime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
}

func (w wireCandle) toCandle() (types.Candle, error) {
	ms, err := strconv.ParseInt(w.OpenTime, 10, 64)
	if err != nil {
		return types.Candle{}, err
	}
	c := types.Candle{OpenTime: time.UnixMilli(ms).UTC()}
	for _, f := range []struct {
		src string
		dst *float64
	}{
		{w.Open, &c.Open},
		{w.High, &c.High},
		{w.Low, &c.Low},
		{w.Close, &c.Close},
	} {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return types.Candle{}, err
		}
		*f.dst = v
	}
	return c, nil
}

// Candles fetches one day's klines for a symbol. The exchange buckets
// klines by date, so date selects that day's bucket.
func (c *Client) Candles(ctx context.Context, symbol, interval string, date time.Time) ([]types.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("priceType", c.priceType)
	query.Set("interval", interval)
	query.Set("date", date.Format("20060102"))

	var raw []wireCandle
	if err := c.getPublic(ctx, "/v1/klines", query, &raw); err != nil {
		return nil, err
	}
	candles := make([]types.Candle, 0, len(raw))
	for _, w := range raw {
		candle, err := w.toCandle()
		if err != nil {
			logger.Warn(ctx, "skipping malformed candle",
				"symbol", symbol, "openTime", w.OpenTime, "error", err.Error())
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// CandleRange merges the last `days` day-buckets of klines, oldest
// first. Days that fail to fetch are skipped with a warning rather
// than failing the whole range; partial history still feeds the
// indicators.
func (c *Client) CandleRange(ctx context.Context, symbol, interval string, days int) ([]types.Candle, error) {
	if days < 1 {
		days = 1
	}
	today := c.now().UTC()
	var merged []types.Candle
	var lastErr error
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i)
		candles, err := c.Candles(ctx, symbol, interval, date)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "candle day fetch failed",
				"symbol", symbol, "date", date.Format("20060102"), "error", err.Error())
			continue
		}
		merged = append(merged, candles...)
	}
	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].OpenTime.Before(merged[j].OpenTime)
	})
	// Adjacent day buckets can overlap at the boundary; keep the
	// first candle per open time.
	deduped := merged[:0]
	for i, candle := range merged {
		if i > 0 && candle.OpenTime.Equal(merged[i-1].OpenTime) {
			continue
		}
		deduped = append(deduped, candle)
	}
	return deduped, nil
}
