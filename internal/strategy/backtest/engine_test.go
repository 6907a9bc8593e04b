package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"meanrev/internal/exchange"
	"meanrev/internal/market/feature"
	"meanrev/internal/market/kline"
	"meanrev/internal/strategy"
	"meanrev/internal/strategy/fill"
)

const sigDay int64 = 1704067200 // 2024-01-01

type dayFetcher struct {
	days map[int64][]kline.Bar
}

func (f *dayFetcher) FetchKlines(ctx context.Context, symbol string, interval kline.Interval, start, end int64) ([]kline.Bar, error) {
	return f.days[start], nil
}

func hourlyDay(day int64) []kline.Bar {
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

// candidate closed at 100 on the bar before sigDay and passes the
// variant 1 gate
func candidate() feature.Row {
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
		LossStreakDays: 3,
		LossStreakRate: -0.08,
		Bands:          feature.Bands{110, 108, 106, 104, 103, 102, 101, 100.6, 100.2},
		NextBands:      feature.Bands{109, 107, 105, 103.5, 102.5, 101.5, 100.5, 100.4, 100.3},
		RealBand:       100.5,
	}
}

func testEngine(t *testing.T, rows []feature.Row, days map[int64][]kline.Bar, p strategy.Param) *Engine {
	t.Helper()
	details := kline.NewDetailStore(t.TempDir(), kline.Interval1h, &dayFetcher{days: days}, nil)
	sim := fill.NewSimulator(details, kline.Interval1d, exchange.DefaultRetryConfig(), nil)

	e, err := NewEngine(rows, sim, &Config{
		InitialMoney: 10000,
		Start:        sigDay,
		End:          sigDay + 2*86400,
		Interval:     kline.Interval1d,
		BuyVariant:   1,
		SellVariant:  1,
		Param:        p,
	}, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngineRoundTrip(t *testing.T) {
	p := strategy.DefaultParam()
	p.FeeRate = 0

	day := hourlyDay(sigDay)
	day[1].Low = 98.8  // fills the 99 buy target
	day[3].High = 104.2 // crosses the 103.95 take-profit

	e := testEngine(t, []feature.Row{candidate()}, map[int64][]kline.Bar{sigDay: day}, p)
	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TradeCount != 1 {
		t.Fatalf("Expected 1 trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]
	assert.InDelta(t, 99, trade.BuyPrice, 1e-9)
	assert.InDelta(t, 99*1.05, trade.SellPrice, 1e-9)
	if trade.BuyTime != sigDay+3600 {
		t.Errorf("Expected buy at the dip bar, got %d", trade.BuyTime)
	}

	// the whole bankroll turned over once at +5%
	assert.InDelta(t, 10500, result.FinalEquity, 1e-6)
	assert.InDelta(t, 1.05, result.TotalReturn, 1e-9)
	assert.InDelta(t, 0, result.MaxDrawdown, 1e-9)
	assert.InDelta(t, 1, result.WinRate, 1e-9)

	if len(result.Ledger) != 2 {
		t.Fatalf("Expected one ledger row per simulated bar, got %d", len(result.Ledger))
	}
	assert.InDelta(t, 10000, result.Ledger[0].BuyVolume, 1e-6, "the buy cash shows on the signal day")
	assert.InDelta(t, 10500, result.Ledger[0].Equity, 1e-6, "the resolved exit settles the same day")
}

func TestEngineUnfilledCandidate(t *testing.T) {
	p := strategy.DefaultParam()
	p.FeeRate = 0

	// the day never dips to the target, so no cash moves
	e := testEngine(t, []feature.Row{candidate()}, map[int64][]kline.Bar{sigDay: hourlyDay(sigDay)}, p)
	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TradeCount != 0 {
		t.Fatalf("Expected no trades, got %d", result.TradeCount)
	}
	assert.InDelta(t, 10000, result.FinalEquity, 1e-9, "an unfilled candidate leaves equity untouched")
	for _, row := range result.Ledger {
		assert.InDelta(t, 10000, row.Equity, 1e-9)
		assert.InDelta(t, 0, row.Drawdown, 1e-9)
	}
}

func TestEngineUnresolvedFillDropsCandidate(t *testing.T) {
	p := strategy.DefaultParam()
	p.FeeRate = 0

	// no detail data at all: every fetch comes back empty and fails
	// validation, the run must still complete
	e := testEngine(t, []feature.Row{candidate()}, nil, p)
	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run must complete despite unresolved fills, got %v", err)
	}
	if result.TradeCount != 0 {
		t.Errorf("Expected the candidate to be dropped, got %d trades", result.TradeCount)
	}
	assert.InDelta(t, 10000, result.FinalEquity, 1e-9)
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	p := strategy.DefaultParam()
	p.LowBackRate = 0.05 // above the arming margin

	_, err := NewEngine(nil, nil, &Config{
		InitialMoney: 10000,
		Interval:     kline.Interval1d,
		BuyVariant:   1,
		SellVariant:  1,
		Param:        p,
	}, nil)
	if err == nil {
		t.Error("Expected invalid parameters to be rejected before the run")
	}

	_, err = NewEngine(nil, nil, &Config{
		InitialMoney: 10000,
		Interval:     kline.Interval1d,
		BuyVariant:   6,
		SellVariant:  1,
		Param:        strategy.DefaultParam(),
	}, nil)
	if err == nil {
		t.Error("Expected an out-of-range variant to be rejected")
	}
}

func TestPositionSize(t *testing.T) {
	p := strategy.DefaultParam()
	p.FeeRate = 0

	t.Run("splits cash across candidates", func(t *testing.T) {
		vol, count := positionSize(10000, 4, p)
		if count != 4 {
			t.Fatalf("Expected 4 positions, got %d", count)
		}
		assert.InDelta(t, 2500, vol, 1e-9)
	})

	t.Run("clamps to max positions", func(t *testing.T) {
		vol, count := positionSize(10000, 20, p) // MaxNum 5
		if count != 5 {
			t.Fatalf("Expected the position count clamped to 5, got %d", count)
		}
		assert.InDelta(t, 2000, vol, 1e-9)
	})

	t.Run("raises to min volume", func(t *testing.T) {
		vol, count := positionSize(300, 5, p) // MinVol 100
		assert.InDelta(t, 100, vol, 1e-9)
		if count != 3 {
			t.Errorf("Expected the count recomputed from min volume, got %d", count)
		}
	})

	t.Run("no cash", func(t *testing.T) {
		vol, count := positionSize(0, 3, p)
		if vol != 0 || count != 0 {
			t.Errorf("Expected nothing to size, got vol=%v count=%d", vol, count)
		}
	})

	t.Run("reserves the fee", func(t *testing.T) {
		fp := strategy.DefaultParam() // FeeRate 0.001
		vol, count := positionSize(10000, 1, fp)
		if count != 1 {
			t.Fatalf("Expected 1 position, got %d", count)
		}
		if vol*(1+fp.FeeRate) > 10000 {
			t.Errorf("Fee-inclusive cost %v exceeds cash", vol*(1+fp.FeeRate))
		}
	})
}

func TestOrderCandidates(t *testing.T) {
	low := candidate()
	low.Symbol = "LOW"
	low.Volume = 10
	low.Close = 104 // above the window mean

	high := candidate()
	high.Symbol = "HIGH"
	high.Volume = 1000
	high.Close = 104

	belowMid := candidate()
	belowMid.Symbol = "MID"
	belowMid.Volume = 1

	t.Run("volume descending", func(t *testing.T) {
		cands := []feature.Row{low, belowMid, high}
		orderCandidates(cands, 1)
		if cands[0].Symbol != "HIGH" || cands[1].Symbol != "LOW" || cands[2].Symbol != "MID" {
			t.Errorf("Expected volume-descending order, got %v %v %v",
				cands[0].Symbol, cands[1].Symbol, cands[2].Symbol)
		}
	})

	t.Run("below-mean first for projected variants", func(t *testing.T) {
		cands := []feature.Row{low, belowMid, high}
		orderCandidates(cands, 5)
		if cands[0].Symbol != "MID" {
			t.Errorf("Expected the below-mean candidate first, got %v", cands[0].Symbol)
		}
		if cands[1].Symbol != "HIGH" || cands[2].Symbol != "LOW" {
			t.Error("Volume order must be kept within each group")
		}
	})
}
