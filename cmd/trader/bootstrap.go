package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fx-trading-bot/internal/analyzer"
	"fx-trading-bot/internal/config"
	"fx-trading-bot/internal/engine"
	"fx-trading-bot/internal/executor"
	"fx-trading-bot/internal/gmo"
	"fx-trading-bot/internal/interfaces"
	"fx-trading-bot/internal/logger"
	"fx-trading-bot/internal/news"
	"fx-trading-bot/internal/risk"
	"fx-trading-bot/internal/storage"
	"fx-trading-bot/internal/trace"
)

// initializeSystem loads env and config, then brings up logging and tracing.
func initializeSystem(configPath string) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(); err != nil {
		return nil, err
	}
	if err := trace.Init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildExchange picks the live client or the simulator from the
// configured mode. DRY_RUN still reads live market data when
// credentials allow, but never submits real orders.
func buildExchange(cfg *config.Config) interfaces.Exchange {
	retry := gmo.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Exchange.MaxRetries
	retry.BaseDelay = time.Duration(cfg.Exchange.RetryBaseSecs * float64(time.Second))
	client := gmo.NewClient(gmo.ClientConfig{
		BaseURL:   cfg.Exchange.BaseURL,
		APIKey:    os.Getenv("GMO_API_KEY"),
		APISecret: os.Getenv("GMO_API_SECRET"),
		PriceType: cfg.Exchange.PriceType,
		Timeout:   time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		Retry:     &retry,
	})
	if cfg.Mode == "DRY_RUN" {
		log.Println(">> DRY_RUN mode: orders are simulated")
		return gmo.NewSimulator(client)
	}
	return client
}

// buildExecutor wires the full signal-to-order pipeline.
func buildExecutor(cfg *config.Config, store *storage.Store) (*executor.TradeExecutor, *risk.Manager, error) {
	exchange := buildExchange(cfg)
	ta := analyzer.New(exchange, cfg)
	reader := news.NewReader(store, cfg)
	eng := engine.NewRuleEngine(ta, reader, store, cfg)
	rm, err := risk.NewManager(cfg)
	if err != nil {
		return nil, nil, err
	}
	return executor.New(eng, rm, exchange, store, cfg), rm, nil
}
