package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"meanrev/internal/config"
	"meanrev/internal/exchange"
	"meanrev/internal/logger"
	"meanrev/internal/market/feature"
	"meanrev/internal/market/kline"
	"meanrev/internal/monitoring"
	"meanrev/internal/strategy"
	"meanrev/internal/strategy/backtest"
	"meanrev/internal/strategy/fill"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	params, err := strategy.Expand(cfg.Backtest.Param, nil)
	if err != nil {
		logg.Fatalf("Failed to expand parameters: %v", err)
	}
	if len(params) == 0 {
		logg.Fatal("No valid parameter set after expansion")
	}
	param := params[0]
	if len(params) > 1 {
		logg.Infof("Parameter ranges expand to %d valid sets, running the first; drive sweeps externally", len(params))
	}

	start, err := time.Parse("2006-01-02", cfg.Backtest.Start)
	if err != nil {
		logg.Fatalf("Invalid backtest start: %v", err)
	}
	end, err := time.Parse("2006-01-02", cfg.Backtest.End)
	if err != nil {
		logg.Fatalf("Invalid backtest end: %v", err)
	}

	source, err := exchange.NewBanexgAdapter(&exchange.Config{
		Name:      cfg.Exchange.Name,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		TestNet:   cfg.Exchange.TestNet,
	})
	if err != nil {
		logg.Fatalf("Failed to create exchange adapter: %v", err)
	}

	iv := kline.Interval(cfg.Data.Interval)
	storePath := filepath.Join(cfg.Data.Dir, "kline_"+string(iv)+".bin")
	store, err := kline.LoadStore(storePath)
	if err != nil {
		logg.Fatalf("Failed to load kline store: %v", err)
	}
	if store.Len() == 0 {
		logg.Fatalf("Kline cache %s is empty, run backfill first", storePath)
	}

	metrics := monitoring.NewMetrics()

	// derive features per symbol, reusing the wide cache where present
	builder := feature.NewBuilder(cfg.Data.Window, cfg.Data.RealBandK)
	rows := make([]feature.Row, 0, store.Len())
	for _, symbol := range store.Symbols() {
		cachePath := feature.CachePath(cfg.Data.Dir, symbol, iv, cfg.Data.Window)
		cached, err := feature.LoadRows(cachePath)
		if err != nil {
			logg.WithField("symbol", symbol).WithError(err).Warn("feature cache unreadable, rebuilding")
			cached = nil
		}
		bars := store.Symbol(symbol)
		if len(cached) != len(bars) {
			cached = builder.Build(bars)
			if err := feature.SaveRows(cachePath, cached); err != nil {
				logg.WithField("symbol", symbol).WithError(err).Warn("failed to save feature cache")
			}
		}
		rows = append(rows, cached...)
	}

	details := kline.NewDetailStore(
		filepath.Join(cfg.Data.Dir, "detail"),
		kline.Interval(cfg.Data.DetailInterval),
		source, logg)
	details.SetMetrics(metrics)
	cfg.ApplyAllowIncomplete(details)

	retryCfg := exchange.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Backtest.FillRetries
	fillSim := fill.NewSimulator(details, iv, retryCfg, logg)
	fillSim.SetMetrics(metrics)

	engine, err := backtest.NewEngine(rows, fillSim, &backtest.Config{
		InitialMoney: cfg.Backtest.InitialMoney,
		Start:        start.Unix(),
		End:          end.Unix(),
		Interval:     iv,
		BuyVariant:   strategy.Variant(cfg.Backtest.BuyVariant),
		SellVariant:  strategy.Variant(cfg.Backtest.SellVariant),
		Param:        param,
	}, logg)
	if err != nil {
		logg.Fatalf("Failed to create engine: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		logg.Fatalf("Backtest failed: %v", err)
	}

	tradesPath := filepath.Join(cfg.Backtest.OutputDir, "trades.csv")
	if err := backtest.WriteTrades(tradesPath, result.Trades); err != nil {
		logg.Errorf("Failed to write trades: %v", err)
	}
	ledgerPath := filepath.Join(cfg.Backtest.OutputDir, "ledger.csv")
	if err := backtest.WriteLedger(ledgerPath, result.Ledger); err != nil {
		logg.Errorf("Failed to write ledger: %v", err)
	}

	logg.Infof("Backtest done: trades=%d return=%.4f max_drawdown=%.4f win_rate=%.2f",
		result.TradeCount, result.TotalReturn, result.MaxDrawdown, result.WinRate)
}
