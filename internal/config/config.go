package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode     string   `yaml:"mode"` // DRY_RUN or LIVE
	Symbols  []string `yaml:"symbols"`
	Interval string   `yaml:"interval"`

	Signal struct {
		LookbackDays      int     `yaml:"lookback_days"`
		NewsLookbackHours int     `yaml:"news_lookback_hours"`
		NewsImpactMin     int     `yaml:"news_impact_min"`
		NewsMaxRecords    int     `yaml:"news_max_records"`
		MinConfidence     float64 `yaml:"min_confidence"`
		RuleVersion       string  `yaml:"rule_version"`
	} `yaml:"signal"`

	Trade struct {
		DefaultSize           int    `yaml:"default_size"`
		MaxPositionsPerSymbol int    `yaml:"max_positions_per_symbol"`
		MaxTotalPositions     int    `yaml:"max_total_positions"`
		ExecutionType         string `yaml:"execution_type"`
	} `yaml:"trade"`

	Risk struct {
		StopLossPips         float64 `yaml:"stop_loss_pips"`
		TakeProfitPips       float64 `yaml:"take_profit_pips"`
		MaxDailyLoss         float64 `yaml:"max_daily_loss"`
		MaxDailyTrades       int     `yaml:"max_daily_trades"`
		MaxPositionHours     int     `yaml:"max_position_hours"`
		MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
		MinMarginRatio       float64 `yaml:"min_margin_ratio"`
		ResetTimezone        string  `yaml:"reset_timezone"`
	} `yaml:"risk"`

	Indicators struct {
		FastMA        int     `yaml:"fast_ma"`
		SlowMA        int     `yaml:"slow_ma"`
		RSIPeriod     int     `yaml:"rsi_period"`
		RSIOverbought float64 `yaml:"rsi_overbought"`
		RSIOversold   float64 `yaml:"rsi_oversold"`
		MACDFast      int     `yaml:"macd_fast"`
		MACDSlow      int     `yaml:"macd_slow"`
		MACDSignal    int     `yaml:"macd_signal"`
	} `yaml:"indicators"`

	Exchange struct {
		BaseURL        string  `yaml:"base_url"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		MaxRetries     int     `yaml:"max_retries"`
		RetryBaseSecs  float64 `yaml:"retry_base_seconds"`
		PriceType      string  `yaml:"price_type"` // BID or ASK
	} `yaml:"exchange"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	if c.Signal.MinConfidence < 0 || c.Signal.MinConfidence > 1 {
		return fmt.Errorf("signal.min_confidence must be in [0,1], got %.2f", c.Signal.MinConfidence)
	}
	if c.Trade.ExecutionType != "MARKET" && c.Trade.ExecutionType != "LIMIT" {
		return fmt.Errorf("trade.execution_type must be 'MARKET' or 'LIMIT', got '%s'", c.Trade.ExecutionType)
	}
	if c.Risk.StopLossPips <= 0 || c.Risk.TakeProfitPips <= 0 {
		return fmt.Errorf("risk stop_loss_pips and take_profit_pips must be positive")
	}
	if c.Indicators.RSIOversold >= c.Indicators.RSIOverbought {
		return fmt.Errorf("indicators.rsi_oversold (%.0f) must be below rsi_overbought (%.0f)",
			c.Indicators.RSIOversold, c.Indicators.RSIOverbought)
	}
	return nil
}

// Default returns a fully-defaulted DRY_RUN config for one symbol.
func Default() *Config {
	c := &Config{
		Mode:    "DRY_RUN",
		Symbols: []string{"USD_JPY"},
	}
	c.applyDefaults()
	return c
}

// Load reads the YAML config at path, applies defaults, and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Interval == "" {
		c.Interval = "1hour"
	}
	if c.Signal.LookbackDays == 0 {
		c.Signal.LookbackDays = 7
	}
	if c.Signal.NewsLookbackHours == 0 {
		c.Signal.NewsLookbackHours = 24
	}
	if c.Signal.NewsImpactMin == 0 {
		c.Signal.NewsImpactMin = 3
	}
	if c.Signal.NewsMaxRecords == 0 {
		c.Signal.NewsMaxRecords = 10
	}
	if c.Signal.MinConfidence == 0 {
		c.Signal.MinConfidence = 0.7
	}
	if c.Signal.RuleVersion == "" {
		c.Signal.RuleVersion = "v1.0"
	}
	if c.Trade.DefaultSize == 0 {
		c.Trade.DefaultSize = 1
	}
	if c.Trade.MaxPositionsPerSymbol == 0 {
		c.Trade.MaxPositionsPerSymbol = 3
	}
	if c.Trade.MaxTotalPositions == 0 {
		c.Trade.MaxTotalPositions = 5
	}
	if c.Trade.ExecutionType == "" {
		c.Trade.ExecutionType = "MARKET"
	}
	if c.Risk.StopLossPips == 0 {
		c.Risk.StopLossPips = 50
	}
	if c.Risk.TakeProfitPips == 0 {
		c.Risk.TakeProfitPips = 100
	}
	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 50000
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 10
	}
	if c.Risk.MaxPositionHours == 0 {
		c.Risk.MaxPositionHours = 24
	}
	if c.Risk.MaxConsecutiveLosses == 0 {
		c.Risk.MaxConsecutiveLosses = 3
	}
	if c.Risk.MinMarginRatio == 0 {
		c.Risk.MinMarginRatio = 100
	}
	if c.Risk.ResetTimezone == "" {
		c.Risk.ResetTimezone = "UTC"
	}
	if c.Indicators.FastMA == 0 {
		c.Indicators.FastMA = 20
	}
	if c.Indicators.SlowMA == 0 {
		c.Indicators.SlowMA = 50
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.RSIOverbought == 0 {
		c.Indicators.RSIOverbought = 70
	}
	if c.Indicators.RSIOversold == 0 {
		c.Indicators.RSIOversold = 30
	}
	if c.Indicators.MACDFast == 0 {
		c.Indicators.MACDFast = 12
	}
	if c.Indicators.MACDSlow == 0 {
		c.Indicators.MACDSlow = 26
	}
	if c.Indicators.MACDSignal == 0 {
		c.Indicators.MACDSignal = 9
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://forex-api.coin.z.com"
	}
	if c.Exchange.TimeoutSeconds == 0 {
		c.Exchange.TimeoutSeconds = 30
	}
	if c.Exchange.MaxRetries == 0 {
		c.Exchange.MaxRetries = 3
	}
	if c.Exchange.RetryBaseSecs == 0 {
		c.Exchange.RetryBaseSecs = 1.0
	}
	if c.Exchange.PriceType == "" {
		c.Exchange.PriceType = "ASK"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/trader.db"
	}
}
