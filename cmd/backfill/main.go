package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"strings"
	"time"

	"meanrev/internal/config"
	"meanrev/internal/exchange"
	"meanrev/internal/logger"
	"meanrev/internal/market/kline"
	"meanrev/internal/monitoring"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
		symbols    = flag.String("symbols", "", "多个交易对，用逗号分隔（默认取配置）")
		interval   = flag.String("interval", "", "K线间隔（默认取配置）")
		days       = flag.Int("days", 30, "回填天数（从今天往前）")
		startDate  = flag.String("start", "", "开始日期 (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "结束日期 (YYYY-MM-DD)")
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

	source, err := exchange.NewBanexgAdapter(&exchange.Config{
		Name:      cfg.Exchange.Name,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		TestNet:   cfg.Exchange.TestNet,
	})
	if err != nil {
		logg.Fatalf("Failed to create exchange adapter: %v", err)
	}

	symbolList := cfg.Data.Symbols
	if *symbols != "" {
		symbolList = strings.Split(*symbols, ",")
	}
	if len(symbolList) == 0 {
		logg.Fatal("No symbols configured")
	}

	iv := kline.Interval(cfg.Data.Interval)
	if *interval != "" {
		iv = kline.Interval(*interval)
	}

	var start, end time.Time
	if *startDate != "" && *endDate != "" {
		if start, err = time.Parse("2006-01-02", *startDate); err != nil {
			logg.Fatalf("Invalid start date: %v", err)
		}
		if end, err = time.Parse("2006-01-02", *endDate); err != nil {
			logg.Fatalf("Invalid end date: %v", err)
		}
	} else {
		end = time.Now().UTC()
		start = end.AddDate(0, 0, -*days)
	}

	storePath := filepath.Join(cfg.Data.Dir, "kline_"+string(iv)+".bin")
	store, err := kline.LoadStore(storePath)
	if err != nil {
		logg.Fatalf("Failed to load kline store: %v", err)
	}
	logg.Infof("Loaded %d cached bars from %s", store.Len(), storePath)

	metrics := monitoring.NewMetrics()
	updater := kline.NewUpdater(store, source, &cfg.Data.Updater, logg)
	updater.SetDenylist(cfg.DenylistRules())
	updater.SetMetrics(metrics)

	ctx := context.Background()
	if err := updater.Update(ctx, symbolList, iv, start.Unix(), end.Unix()); err != nil {
		logg.Fatalf("Update failed: %v", err)
	}

	if err := store.Save(storePath); err != nil {
		logg.Fatalf("Failed to save kline store: %v", err)
	}
	logg.Infof("Saved %d bars to %s", store.Len(), storePath)
}
