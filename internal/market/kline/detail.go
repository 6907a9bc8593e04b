package kline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"meanrev/internal/errors"
	"meanrev/internal/logger"
	"meanrev/internal/monitoring"
)

// Fetcher is the market-data collaborator boundary: one fetch operation
// returning OHLCV bars for a symbol/interval/time-range. Bars may come
// back in either time order; callers normalize.
type Fetcher interface {
	FetchKlines(ctx context.Context, symbol string, interval Interval, start, end int64) ([]Bar, error)
}

// SortAscending restores ascending time order on a fetched range
func SortAscending(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})
}

// DetailStore caches fine-grained intraday bars, one file per
// (symbol, UTC day). Days are fetched lazily and validated for
// completeness against the exchange's expected bar count.
type DetailStore struct {
	dir      string
	interval Interval
	fetcher  Fetcher
	log      *logger.Logger
	metrics  *monitoring.Metrics

	// days exempt from the completeness check (partial trading days,
	// listing days), keyed by "symbol|YYYY-MM-DD"
	allow map[string]bool

	mu   sync.Mutex
	days map[string][]Bar
}

// NewDetailStore creates a detail store rooted at dir
func NewDetailStore(dir string, interval Interval, fetcher Fetcher, log *logger.Logger) *DetailStore {
	if log == nil {
		log = logger.Nop()
	}
	return &DetailStore{
		dir:      dir,
		interval: interval,
		fetcher:  fetcher,
		log:      log,
		allow:    make(map[string]bool),
		days:     make(map[string][]Bar),
	}
}

// SetMetrics attaches metrics collection
func (d *DetailStore) SetMetrics(m *monitoring.Metrics) {
	d.metrics = m
}

// AllowIncomplete exempts a (symbol, day) from the completeness check
func (d *DetailStore) AllowIncomplete(symbol string, day int64) {
	d.allow[allowKey(symbol, day)] = true
}

func allowKey(symbol string, day int64) string {
	return symbol + "|" + DayString(day)
}

func (d *DetailStore) dayPath(symbol string, day int64) string {
	return filepath.Join(d.dir, symbol, fmt.Sprintf("%s_%s.bin", DayString(day), d.interval))
}

// Day returns the intraday bars for a symbol on the UTC day containing
// ts, fetching and caching them on first access. An incomplete or
// misaligned cached day is deleted before the error is returned, so the
// next attempt refetches.
func (d *DetailStore) Day(ctx context.Context, symbol string, ts int64) ([]Bar, error) {
	day := DayStart(ts)
	key := allowKey(symbol, day)

	d.mu.Lock()
	if bars, ok := d.days[key]; ok {
		d.mu.Unlock()
		return bars, nil
	}
	d.mu.Unlock()

	path := d.dayPath(symbol, day)
	bars, err := loadBars(path)
	if err != nil {
		if appErr := errors.GetAppError(err); appErr != nil && appErr.Code == errors.ErrCodeCacheCorrupted {
			d.invalidate(symbol, path, "unreadable cache file")
		}
		return nil, err
	}

	if len(bars) == 0 {
		if bars, err = d.fetchDay(ctx, symbol, day, path); err != nil {
			return nil, err
		}
	}

	if err := d.validate(symbol, day, bars, path); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.days[key] = bars
	d.mu.Unlock()
	return bars, nil
}

func (d *DetailStore) fetchDay(ctx context.Context, symbol string, day int64, path string) ([]Bar, error) {
	if d.metrics != nil {
		d.metrics.RecordFetch(symbol, string(d.interval))
	}

	bars, err := d.fetcher.FetchKlines(ctx, symbol, d.interval, day, day+86400)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordFetchError(symbol, string(d.interval))
		}
		return nil, errors.WrapError(err, errors.ErrCodeMarketDataUnavailable,
			fmt.Sprintf("failed to fetch %s detail bars for %s", symbol, DayString(day)))
	}

	SortAscending(bars)
	if err := saveBars(path, bars); err != nil {
		return nil, fmt.Errorf("failed to save detail cache: %w", err)
	}
	return bars, nil
}

// validate checks the day against the expected bar count and day start,
// unless the day is allow-listed as known incomplete
func (d *DetailStore) validate(symbol string, day int64, bars []Bar, path string) error {
	if d.allow[allowKey(symbol, day)] {
		return nil
	}

	expected := d.interval.BarsPerDay()
	if len(bars) < expected {
		d.invalidate(symbol, path, "incomplete day")
		return errors.NewAppErrorWithDetails(errors.ErrCodeCacheIncomplete,
			fmt.Sprintf("%s %s has %d bars, want %d", symbol, DayString(day), len(bars), expected),
			path, nil)
	}
	if bars[0].Timestamp != day {
		d.invalidate(symbol, path, "misaligned day start")
		return errors.NewAppErrorWithDetails(errors.ErrCodeCacheMisaligned,
			fmt.Sprintf("%s %s starts at %d, want %d", symbol, DayString(day), bars[0].Timestamp, day),
			path, nil)
	}
	return nil
}

func (d *DetailStore) invalidate(symbol, path, reason string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.log.WithField("path", path).WithError(err).Warn("failed to delete detail cache")
		return
	}
	if d.metrics != nil {
		d.metrics.RecordCacheRefresh(symbol)
	}
	d.log.WithField("path", path).Warnf("deleted detail cache: %s", reason)
}
