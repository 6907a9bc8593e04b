package fill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"meanrev/internal/exchange"
	"meanrev/internal/market/feature"
	"meanrev/internal/market/kline"
	"meanrev/internal/strategy"
)

const sigDay int64 = 1704067200 // 2024-01-01, the day after the signal bar

// dayFetcher serves scripted detail days keyed by day start
type dayFetcher struct {
	days map[int64][]kline.Bar
}

func (f *dayFetcher) FetchKlines(ctx context.Context, symbol string, interval kline.Interval, start, end int64) ([]kline.Bar, error) {
	return f.days[start], nil
}

// quietDay builds 24 hourly bars that trigger nothing for the default
// parameters around a close of 100
func quietDay(day int64) []kline.Bar {
	bars := make([]kline.Bar, 24)
	for i := range bars {
		bars[i] = kline.Bar{
			Symbol:    "BTC/USDT",
			Timestamp: day + int64(i)*3600,
			Open:      100,
			Close:     100,
			High:      100.5,
			Low:       99.5,
			Volume:    10,
		}
	}
	return bars
}

func newTestSimulator(t *testing.T, days map[int64][]kline.Bar) *Simulator {
	t.Helper()
	details := kline.NewDetailStore(t.TempDir(), kline.Interval1h, &dayFetcher{days: days}, nil)
	return NewSimulator(details, kline.Interval1d, exchange.DefaultRetryConfig(), nil)
}

// signalRow is a candidate whose signal bar closed at 100 the day
// before sigDay
func signalRow() feature.Row {
	return feature.Row{
		Bar: kline.Bar{
			Symbol:    "BTC/USDT",
			Timestamp: sigDay - 86400,
			Open:      105,
			Close:     100,
			High:      106,
			Low:       99,
			Volume:    1e6,
		},
		Bands:     feature.Bands{110, 108, 106, 104, 103, 102, 101, 100.6, 100.2},
		NextBands: feature.Bands{109, 107, 105, 103.5, 102.5, 101.5, 100.5, 100.4, 100.3},
		RealBand:  100.5,
	}
}

func TestSignalTime(t *testing.T) {
	s := newTestSimulator(t, nil)
	if got := s.SignalTime(signalRow()); got != sigDay {
		t.Errorf("Expected signal time %d, got %d", sigDay, got)
	}
}

func TestBuyFillsAtTarget(t *testing.T) {
	day := quietDay(sigDay)
	day[1].Low = 98.8 // first bar trading through the 99 target
	day[2].Low = 97.0 // later dip must not matter
	s := newTestSimulator(t, map[int64][]kline.Bar{sigDay: day})

	res, err := s.Buy(context.Background(), signalRow(), strategy.DefaultParam(), 1)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if !res.Filled() {
		t.Fatal("Expected the order to fill")
	}
	if res.Time != sigDay+3600 {
		t.Errorf("Expected fill at the first crossing bar, got %d", res.Time)
	}
	assert.InDelta(t, 99, res.Price, 1e-9, "fills execute at the target price, not the bar low")
}

func TestBuyUnfilled(t *testing.T) {
	s := newTestSimulator(t, map[int64][]kline.Bar{sigDay: quietDay(sigDay)})

	res, err := s.Buy(context.Background(), signalRow(), strategy.DefaultParam(), 1)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if res.Filled() {
		t.Errorf("Expected no fill, got %+v", res)
	}
}

func TestBuyAbortLowTruncatesWindow(t *testing.T) {
	day := quietDay(sigDay)
	day[1].Low = 94 // through the 95 abort level (and the target)
	day[2].Low = 98 // would fill, but the watch already ended
	s := newTestSimulator(t, map[int64][]kline.Bar{sigDay: day})

	res, err := s.Buy(context.Background(), signalRow(), strategy.DefaultParam(), 1)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if res.Filled() {
		t.Errorf("A crash through the abort level must cancel the order, got %+v", res)
	}
}

func TestBuyDeadline(t *testing.T) {
	day := quietDay(sigDay)
	day[5].Low = 98 // first dip one hour past the 4h watch window
	s := newTestSimulator(t, map[int64][]kline.Bar{sigDay: day})

	res, err := s.Buy(context.Background(), signalRow(), strategy.DefaultParam(), 1)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if res.Filled() {
		t.Errorf("Expected no fill after the watch deadline, got %+v", res)
	}
}

func TestBuyTargets(t *testing.T) {
	cand := signalRow()
	p := strategy.DefaultParam() // BuyRate -0.01 on a 100 close

	tests := []struct {
		variant strategy.Variant
		target  float64
	}{
		{1, 99},
		{2, 100.3},  // projected -2 sigma band
		{3, 100.5},  // converged band
		{4, 99},     // min(dip, -2 sigma band 100.2)
		{5, 99},     // min(dip, projected -1.5 sigma band 100.4)
	}

	for _, test := range tests {
		target, abortLow := buyTarget(cand, p, test.variant)
		assert.InDelta(t, test.target, target, 1e-9, "variant %d target", test.variant)
		assert.InDelta(t, 95, abortLow, 1e-9, "variant %d abort level", test.variant)
	}
}
