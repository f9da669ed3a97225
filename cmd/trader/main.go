package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fx-trading-bot/internal/storage"
	"fx-trading-bot/internal/trace"
)

const usage = `usage: trader [-config path] <command> [args]

commands:
  execute            run one signal/trade cycle over the configured symbols
  sweep              close positions past their stop, target, or age limit
  positions [SYM]    list open positions
  account            print account assets and risk state
  close SYM          bulk-close all open positions for one symbol
  reset-halt         clear a consecutive-loss trading halt
`

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := initializeSystem(*configPath)
	must(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Flush on a fresh context: ctx may already be canceled by the
	// signal handler when we get here.
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = trace.Shutdown(sctx)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	db, err := storage.Open(cfg.Storage.Path)
	must(err)
	defer db.Close()
	store := storage.New(db)

	exec, rm, err := buildExecutor(cfg, store)
	must(err)

	switch flag.Arg(0) {
	case "execute":
		results := exec.ExecuteSignals(ctx)
		printJSON(results)
	case "sweep":
		closed, err := exec.SweepPositions(ctx)
		must(err)
		printJSON(closed)
	case "positions":
		positions, err := exec.CurrentPositions(ctx, flag.Arg(1))
		must(err)
		printJSON(positions)
	case "account":
		assets, summary, err := exec.AccountSummary(ctx)
		must(err)
		printJSON(map[string]any{"assets": assets, "risk": summary})
	case "close":
		symbol := flag.Arg(1)
		if symbol == "" {
			log.Fatal("close requires a symbol")
		}
		results, err := exec.ClosePositionsForSymbol(ctx, symbol)
		must(err)
		printJSON(results)
	case "reset-halt":
		rm.ResetHalt(ctx)
		fmt.Println("trading halt cleared")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	must(err)
	fmt.Println(string(b))
}
