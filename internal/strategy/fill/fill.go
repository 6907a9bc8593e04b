package fill

import (
	"context"
	"math"

	"meanrev/internal/exchange"
	"meanrev/internal/logger"
	"meanrev/internal/market/feature"
	"meanrev/internal/market/kline"
	"meanrev/internal/monitoring"
	"meanrev/internal/strategy"
)

// Result is a simulated execution. Time == 0 means the order never
// filled and the candidate must be skipped.
type Result struct {
	Price float64
	Time  int64
}

// Filled reports whether the execution happened
func (r Result) Filled() bool {
	return r.Time != 0
}

// Simulator converts daily signals into simulated intraday executions
// by scanning fine-grained bars
type Simulator struct {
	details  *kline.DetailStore
	interval kline.Interval // base signal interval
	retry    *exchange.RetryConfig
	log      *logger.Logger
	metrics  *monitoring.Metrics
}

// NewSimulator creates a fill simulator over the given detail store
func NewSimulator(details *kline.DetailStore, interval kline.Interval, retry *exchange.RetryConfig, log *logger.Logger) *Simulator {
	if log == nil {
		log = logger.Nop()
	}
	return &Simulator{
		details:  details,
		interval: interval,
		retry:    retry,
		log:      log,
	}
}

// SetMetrics attaches metrics collection
func (s *Simulator) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// SignalTime returns when the candidate's signal becomes actionable:
// the open of the bar following the signal bar
func (s *Simulator) SignalTime(cand feature.Row) int64 {
	return cand.Timestamp + s.interval.Seconds()
}

// day loads one detail day under the bounded retry policy
func (s *Simulator) day(ctx context.Context, symbol string, ts int64) ([]kline.Bar, error) {
	return exchange.RetryWithResult(ctx, func(ctx context.Context) ([]kline.Bar, error) {
		return s.details.Day(ctx, symbol, ts)
	}, s.retry)
}

// buyTarget computes the variant-specific target price and the
// abort-low price for a candidate
func buyTarget(cand feature.Row, p strategy.Param, v strategy.Variant) (target, abortLow float64) {
	dip := cand.Close * (1 + p.BuyRate)
	switch v {
	case 2:
		target = cand.NextBands.Lower()
	case 3:
		target = cand.RealBand
	case 4:
		target = math.Min(dip, cand.Bands.Lower())
	case 5:
		target = math.Min(dip, cand.NextBands.At(-1.5))
	default:
		target = dip
	}
	return target, cand.Close * (1 + p.BuyUpRate)
}

// Buy scans the signal day's fine bars for the first one trading
// through the target price. The scan stops at the earlier of the
// configured watch deadline and the first touch of the abort-low price.
func (s *Simulator) Buy(ctx context.Context, cand feature.Row, p strategy.Param, v strategy.Variant) (Result, error) {
	signal := s.SignalTime(cand)
	target, abortLow := buyTarget(cand, p, v)
	if target <= 0 {
		return Result{}, nil
	}

	bars, err := s.day(ctx, cand.Symbol, signal)
	if err != nil {
		return Result{}, err
	}

	dayEnd := kline.DayStart(signal) + 86400
	deadline := signal + p.MaxBuyTS
	if deadline > dayEnd {
		deadline = dayEnd
	}
	for _, b := range bars {
		if b.Timestamp < signal {
			continue
		}
		if b.Low <= abortLow && b.Timestamp < deadline {
			deadline = b.Timestamp
			break
		}
	}

	for _, b := range bars {
		if b.Timestamp < signal {
			continue
		}
		if b.Timestamp >= deadline {
			break
		}
		if b.Low < target {
			if s.metrics != nil {
				s.metrics.RecordFill("buy")
			}
			return Result{Price: target, Time: b.Timestamp}, nil
		}
	}
	return Result{}, nil
}
