package kline

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"meanrev/internal/logger"
	"meanrev/internal/monitoring"
)

// DenyRule excludes a symbol's bars over a time range from the cache
// (delisting events, known bad data)
type DenyRule struct {
	Symbol string `yaml:"symbol"`
	Start  int64  `yaml:"start"`
	End    int64  `yaml:"end"`
}

// Denylist is a set of deny rules, injected from configuration
type Denylist []DenyRule

// Blocked reports whether a bar falls inside a denied range
func (d Denylist) Blocked(symbol string, ts int64) bool {
	for _, r := range d {
		if r.Symbol == symbol && ts >= r.Start && ts < r.End {
			return true
		}
	}
	return false
}

// UpdaterConfig configures the incremental cache updater
type UpdaterConfig struct {
	Concurrency int     `yaml:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	Burst       int     `yaml:"burst"`
}

// DefaultUpdaterConfig returns the default updater configuration
func DefaultUpdaterConfig() *UpdaterConfig {
	return &UpdaterConfig{
		Concurrency: 6,
		RatePerSec:  10,
		Burst:       10,
	}
}

// Updater fills a store's missing ranges from the market-data
// collaborator through a bounded worker pool
type Updater struct {
	store    *Store
	fetcher  Fetcher
	limiter  *rate.Limiter
	workers  int
	denylist Denylist
	log      *logger.Logger
	metrics  *monitoring.Metrics
}

// NewUpdater creates an updater for the given store
func NewUpdater(store *Store, fetcher Fetcher, cfg *UpdaterConfig, log *logger.Logger) *Updater {
	if cfg == nil {
		cfg = DefaultUpdaterConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultUpdaterConfig().Concurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Updater{
		store:   store,
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		workers: cfg.Concurrency,
		log:     log,
	}
}

// SetDenylist injects symbol/time-range exclusions
func (u *Updater) SetDenylist(d Denylist) {
	u.denylist = d
}

// SetMetrics attaches metrics collection
func (u *Updater) SetMetrics(m *monitoring.Metrics) {
	u.metrics = m
}

// Update fetches each symbol's missing range [lastCached, end] and merges
// the results into the store in one single-threaded pass after all
// workers complete. A symbol whose fetch fails is logged and skipped.
func (u *Updater) Update(ctx context.Context, symbols []string, interval Interval, start, end int64) error {
	jobs := make(chan string)

	var (
		mu      sync.Mutex
		fetched []Bar
		wg      sync.WaitGroup
	)

	for i := 0; i < u.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				bars, err := u.fetchMissing(ctx, symbol, interval, start, end)
				if err != nil {
					u.log.WithField("symbol", symbol).WithError(err).Warn("skipping symbol for this run")
					continue
				}
				mu.Lock()
				fetched = append(fetched, bars...)
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range symbols {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	u.store.Merge(fetched)
	if u.metrics != nil {
		u.metrics.SetBarsCached(string(interval), u.store.Len())
	}
	return nil
}

func (u *Updater) fetchMissing(ctx context.Context, symbol string, interval Interval, start, end int64) ([]Bar, error) {
	// Refetch from the last cached bar so a revised final bar gets
	// replaced by the dedup rule.
	if last, ok := u.store.LastTimestamp(symbol); ok && last > start {
		start = last
	}
	if start > end {
		return nil, nil
	}

	if err := u.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if u.metrics != nil {
		u.metrics.RecordFetch(symbol, string(interval))
	}

	bars, err := u.fetcher.FetchKlines(ctx, symbol, interval, start, end)
	if err != nil {
		if u.metrics != nil {
			u.metrics.RecordFetchError(symbol, string(interval))
		}
		return nil, err
	}

	SortAscending(bars)
	if len(u.denylist) > 0 {
		kept := bars[:0]
		for _, b := range bars {
			if !u.denylist.Blocked(b.Symbol, b.Timestamp) {
				kept = append(kept, b)
			}
		}
		bars = kept
	}
	return bars, nil
}
