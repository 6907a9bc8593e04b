package exchange

import (
	"context"

	"meanrev/internal/market/kline"
)

// Config represents exchange client configuration
type Config struct {
	Name      string `yaml:"name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	TestNet   bool   `yaml:"testnet"`
}

// MarketDataSource is the consumed market-data collaborator: a single
// fetch operation returning OHLCV bars for a symbol/interval/time-range.
// Implementations may return bars in either time order.
type MarketDataSource interface {
	FetchKlines(ctx context.Context, symbol string, interval kline.Interval, start, end int64) ([]kline.Bar, error)
}
