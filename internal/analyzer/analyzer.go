// Package analyzer turns raw candle history into an IndicatorSet: the
// moving-average trend, Wilder RSI, and MACD crossover state a rule
// engine needs to score a symbol.
package analyzer

import (
	"context"
	"fmt"

	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/interfaces"
	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/ta"
	"fx-trading-bot/internal/types"
)

// DataUnavailableError means there is not enough candle history to
// compute the slow indicators. Callers treat it as "hold", not as a
// system failure.
type DataUnavailableError struct {
	Symbol string
	Bars   int
	Need   int
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %d bars, need %d", e.Symbol, e.Bars, e.Need)
}

// TechnicalAnalyzer computes indicators from exchange candle data.
type TechnicalAnalyzer struct {
	market       interfaces.MarketData
	interval     string
	lookbackDays int

	fastMA, slowMA int
	rsiPeriod      int
	rsiOverbought  float64
	rsiOversold    float64
	macdFast       int
	macdSlow       int
	macdSignal     int
}

func New(market interfaces.MarketData, cfg *config.Config) *TechnicalAnalyzer {
	return &TechnicalAnalyzer{
		market:        market,
		interval:      cfg.Interval,
		lookbackDays:  cfg.Signal.LookbackDays,
		fastMA:        cfg.Indicators.FastMA,
		slowMA:        cfg.Indicators.SlowMA,
		rsiPeriod:     cfg.Indicators.RSIPeriod,
		rsiOverbought: cfg.Indicators.RSIOverbought,
		rsiOversold:   cfg.Indicators.RSIOversold,
		macdFast:      cfg.Indicators.MACDFast,
		macdSlow:      cfg.Indicators.MACDSlow,
		macdSignal:    cfg.Indicators.MACDSignal,
	}
}

// Analyze fetches recent history and computes the full indicator set
// for one symbol.
func (a *TechnicalAnalyzer) Analyze(ctx context.Context, symbol string) (types.IndicatorSet, error) {
	candles, err := a.market.CandleRange(ctx, symbol, a.interval, a.lookbackDays)
	if err != nil {
		return types.IndicatorSet{}, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	return a.Compute(ctx, symbol, candles)
}

// Compute derives the indicator set from an already-fetched candle
// series, ascending by open time.
func (a *TechnicalAnalyzer) Compute(ctx context.Context, symbol string, candles []types.Candle) (types.IndicatorSet, error) {
	if len(candles) < a.slowMA {
		return types.IndicatorSet{}, &DataUnavailableError{Symbol: symbol, Bars: len(candles), Need: a.slowMA}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	ma20 := ta.SMA(closes, a.fastMA)
	ma50 := ta.SMA(closes, a.slowMA)
	rsi := ta.RSI(closes, a.rsiPeriod)
	macd := ta.MACD(closes, a.macdFast, a.macdSlow, a.macdSignal)

	set := types.IndicatorSet{
		Symbol:      symbol,
		Interval:    a.interval,
		BarCount:    len(candles),
		LatestPrice: closes[len(closes)-1],
		MA: types.MovingAverages{
			MA20:          ma20,
			MA50:          ma50,
			MA20AboveMA50: ma20 > ma50,
		},
		RSI: types.RSIResult{
			Value:      rsi,
			Overbought: rsi >= a.rsiOverbought,
			Oversold:   rsi <= a.rsiOversold,
		},
		MACD: types.MACDResult{
			MACD:             macd.MACD,
			Signal:           macd.Signal,
			Histogram:        macd.Histogram,
			BullishCrossover: macd.BullishCrossover(),
			BearishCrossover: macd.BearishCrossover(),
		},
	}

	set.Trend = types.TrendDown
	if set.MA.MA20AboveMA50 {
		set.Trend = types.TrendUp
	}
	set.Momentum = momentum(set)

	logger.Debug(ctx, "indicators computed",
		"symbol", symbol,
		"bars", set.BarCount,
		"price", set.LatestPrice,
		"rsi", set.RSI.Value,
		"histogram", set.MACD.Histogram,
		"trend", string(set.Trend),
		"momentum", string(set.Momentum))
	return set, nil
}

// momentum labels the combined RSI/MACD/trend state. Bullish needs a
// positive histogram in an uptrend with RSI off the oversold floor;
// bearish is the mirror. Everything else, including a flat histogram,
// is neutral.
func momentum(set types.IndicatorSet) types.Momentum {
	switch {
	case set.MACD.Histogram > 0 && set.Trend == types.TrendUp && !set.RSI.Oversold:
		return types.MomentumBullish
	case set.MACD.Histogram < 0 && set.Trend == types.TrendDown && !set.RSI.Overbought:
		return types.MomentumBearish
	default:
		return types.MomentumNeutral
	}
}
