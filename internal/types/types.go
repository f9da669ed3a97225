package types

import "time"

// Candle is a single OHLC bar. Series are ordered by ascending OpenTime
// with no duplicate timestamps.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
}

// MovingAverages holds the simple moving averages used for trend detection.
type MovingAverages struct {
	MA20          float64 `json:"ma20"`
	MA50          float64 `json:"ma50"`
	MA20AboveMA50 bool    `json:"ma20_above_ma50"`
}

// RSIResult is the Wilder RSI value with its threshold flags.
type RSIResult struct {
	Value      float64 `json:"value"`
	Overbought bool    `json:"overbought"`
	Oversold   bool    `json:"oversold"`
}

// MACDResult is the MACD line/signal/histogram triple plus edge-triggered
// crossover flags computed from the two most recent bars.
type MACDResult struct {
	MACD             float64 `json:"macd"`
	Signal           float64 `json:"signal"`
	Histogram        float64 `json:"histogram"`
	BullishCrossover bool    `json:"bullish_crossover"`
	BearishCrossover bool    `json:"bearish_crossover"`
}

// Trend direction derived from the moving-average pair.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Momentum label derived from RSI and MACD.
type Momentum string

const (
	MomentumBullish Momentum = "bullish"
	MomentumBearish Momentum = "bearish"
	MomentumNeutral Momentum = "neutral"
)

// IndicatorSet is the full technical picture for one symbol at one
// point in time. Recomputed on each request, never persisted as-is.
type IndicatorSet struct {
	Symbol      string         `json:"symbol"`
	Interval    string         `json:"interval"`
	BarCount    int            `json:"bar_count"`
	LatestPrice float64        `json:"latest_price"`
	MA          MovingAverages `json:"ma"`
	RSI         RSIResult      `json:"rsi"`
	MACD        MACDResult     `json:"macd"`
	Trend       Trend          `json:"trend"`
	Momentum    Momentum       `json:"momentum"`
}

// NewsEvent is one externally-scored news record. Sentiment is an
// integer in [-2, 2], Impact an integer in [1, 5] for the event's
// effect on Symbol. This core reads events, never writes them.
type NewsEvent struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Headline    string    `json:"headline"`
	Sentiment   int       `json:"sentiment"`
	Impact      int       `json:"impact"`
	Signal      string    `json:"signal"` // BUY_CANDIDATE, SELL_CANDIDATE, NEUTRAL
	CollectedAt time.Time `json:"collected_at"`
}

// NewsSummary aggregates a window of NewsEvents for one symbol.
type NewsSummary struct {
	Count        int            `json:"count"`
	AvgSentiment float64        `json:"avg_sentiment"`
	AvgImpact    float64        `json:"avg_impact"`
	BullishCount int            `json:"bullish_count"`
	BearishCount int            `json:"bearish_count"`
	NeutralCount int            `json:"neutral_count"`
	Signals      map[string]int `json:"signals"`
}

// Decision is the rule engine's verdict for one symbol.
type Decision string

const (
	DecisionBuy  Decision = "buy"
	DecisionSell Decision = "sell"
	DecisionHold Decision = "hold"
)

// Signal is an emitted trading signal. Immutable once created.
// Confidence is always in [0, 1].
type Signal struct {
	Symbol      string       `json:"symbol"`
	Decision    Decision     `json:"decision"`
	Confidence  float64      `json:"confidence"`
	Timestamp   time.Time    `json:"timestamp"`
	Technical   IndicatorSet `json:"technical"`
	NewsSummary NewsSummary  `json:"news_summary"`
	Rationale   string       `json:"rationale"`
	RuleVersion string       `json:"rule_version"`
}

// DocID returns the persistence key {yyyymmdd_hhmmss}_{symbol}.
func (s Signal) DocID() string {
	return s.Timestamp.UTC().Format("20060102_150405") + "_" + s.Symbol
}

// Side of an order or position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position held on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ExecutionType of an order.
type ExecutionType string

const (
	ExecutionMarket ExecutionType = "MARKET"
	ExecutionLimit  ExecutionType = "LIMIT"
	ExecutionStop   ExecutionType = "STOP"
)

// OrderRequest describes a new order to submit.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Size          int
	ExecutionType ExecutionType
	Price         string // LIMIT orders
	StopPrice     string // STOP orders
	TimeInForce   string // FAK, FAS, FOK; empty means exchange default (FAK)
}

// OrderResult is the exchange's answer to an order submission.
// Simulated is true only for results produced without network I/O.
type OrderResult struct {
	OrderID       string    `json:"order_id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Size          int       `json:"size"`
	ExecutionType string    `json:"execution_type"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Simulated     bool      `json:"simulated"`
}

// Order is an active order as reported by the exchange.
type Order struct {
	OrderID      string    `json:"order_id"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Size         string    `json:"size"`
	ExecutedSize string    `json:"executed_size"`
	Price        string    `json:"price"`
	Status       string    `json:"status"`
	TimeInForce  string    `json:"time_in_force"`
	Timestamp    time.Time `json:"timestamp"`
}

// Position is an open position owned by the exchange. This core reads
// it and issues close requests; it never mutates positions directly.
type Position struct {
	PositionID string    `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Size       int       `json:"size"`
	EntryPrice string    `json:"entry_price"`
	LossGain   string    `json:"loss_gain"`
	OpenedAt   time.Time `json:"opened_at"`
}

// CloseRequest asks the exchange to settle one position.
type CloseRequest struct {
	PositionID    string
	Symbol        string
	Side          Side // side of the closing order, opposite of the position
	Size          int
	ExecutionType ExecutionType
	Price         string
	TimeInForce   string
}

// AccountAssets is the account snapshot returned by the exchange.
// Amounts stay string-encoded decimals until a consumer needs math on
// them, avoiding binary-float drift.
type AccountAssets struct {
	Balance         string `json:"balance"`
	AvailableAmount string `json:"available_amount"`
	Margin          string `json:"margin"`
	Equity          string `json:"equity"`
	ProfitLoss      string `json:"profit_loss"`
}

// TradeOutcome classifies one executor result.
type TradeOutcome string

const (
	OutcomeExecuted TradeOutcome = "EXECUTED"
	OutcomeSkipped  TradeOutcome = "SKIPPED"
	OutcomeFailed   TradeOutcome = "FAILED"
)

// TradeResult is the per-symbol outcome of one executor invocation.
// Reason explains skips; ErrorKind plus Reason explain failures.
type TradeResult struct {
	Outcome   TradeOutcome `json:"outcome"`
	Symbol    string       `json:"symbol"`
	Action    Side         `json:"action,omitempty"`
	Size      int          `json:"size"`
	OrderID   string       `json:"order_id,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
	Reason    string       `json:"reason"`
	Timestamp time.Time    `json:"timestamp"`
	Simulated bool         `json:"simulated"`
}
