package exchange

import (
	"context"
	"fmt"

	"github.com/banbox/banexg"
	"github.com/banbox/banexg/bex"

	"meanrev/internal/errors"
	"meanrev/internal/market/kline"
)

// fetchPageLimit is the per-request bar cap accepted by the exchanges
// banexg fronts
const fetchPageLimit = 1000

// BanexgAdapter adapts banexg.BanExchange to the MarketDataSource
// boundary
type BanexgAdapter struct {
	exchange banexg.BanExchange
	config   *Config
}

// NewBanexgAdapter creates a new banexg adapter
func NewBanexgAdapter(config *Config) (*BanexgAdapter, error) {
	options := map[string]interface{}{
		banexg.OptApiKey:    config.APIKey,
		banexg.OptApiSecret: config.APISecret,
	}

	if config.TestNet {
		options[banexg.OptEnv] = "test"
		options[banexg.OptDebugApi] = false
	}

	name := config.Name
	if name == "" {
		name = "binance"
	}

	exg, err := bex.New(name, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create banexg exchange: %w", err)
	}

	return &BanexgAdapter{
		exchange: exg,
		config:   config,
	}, nil
}

// FetchKlines implements MarketDataSource. Bars are fetched page by page
// and returned in ascending time order, covering [start, end) at the
// requested interval.
func (a *BanexgAdapter) FetchKlines(ctx context.Context, symbol string, interval kline.Interval, start, end int64) ([]kline.Bar, error) {
	bars := make([]kline.Bar, 0)
	since := start * 1000 // banexg works in milliseconds
	endMS := end * 1000

	for since < endMS {
		klines, err := a.exchange.FetchOHLCV(symbol, string(interval), since, fetchPageLimit, nil)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeExchangeAPI,
				fmt.Sprintf("failed to fetch %s %s ohlcv", symbol, interval))
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			ts := k.Time / 1000
			if ts*1000 >= endMS {
				continue
			}
			bars = append(bars, kline.Bar{
				Symbol:    symbol,
				Timestamp: ts,
				Open:      k.Open,
				Close:     k.Close,
				High:      k.High,
				Low:       k.Low,
				Volume:    k.Volume,
			})
		}

		last := klines[len(klines)-1].Time
		if last < since {
			// Descending page; banexg normalizes most venues but not
			// all. One resort is enough for a bounded range.
			break
		}
		since = last + int64(interval.Duration().Milliseconds())
		if len(klines) < fetchPageLimit {
			break
		}
	}

	kline.SortAscending(bars)
	return bars, nil
}
