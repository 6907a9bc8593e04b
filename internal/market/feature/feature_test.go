package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meanrev/internal/market/kline"
)

// chain builds a daily bar sequence where each open is the previous close
func chain(closes []float64) []kline.Bar {
	bars := make([]kline.Bar, len(closes))
	open := closes[0]
	for i, close := range closes {
		high, low := open, close
		if close > high {
			high, low = close, open
		}
		bars[i] = kline.Bar{
			Symbol:    "BTC/USDT",
			Timestamp: int64(i) * 86400,
			Open:      open,
			Close:     close,
			High:      high,
			Low:       low,
			Volume:    1000,
		}
		open = close
	}
	return bars
}

func TestLossStreak(t *testing.T) {
	rows := NewBuilder(20, -2).Build(chain([]float64{100, 98, 95, 97}))

	wantDays := []int32{0, 1, 2, 0}
	wantRates := []float64{0, -0.02, -0.05, 0}
	for i, row := range rows {
		if row.LossStreakDays != wantDays[i] {
			t.Errorf("Row %d: expected streak %d, got %d", i, wantDays[i], row.LossStreakDays)
		}
		assert.InDelta(t, wantRates[i], row.LossStreakRate, 1e-9, "row %d streak rate", i)
	}
}

func TestStreakResetOnFlatDay(t *testing.T) {
	// a zero-return day breaks the streak
	rows := NewBuilder(20, -2).Build(chain([]float64{100, 98, 98, 96}))

	if rows[2].LossStreakDays != 0 {
		t.Errorf("Flat day should reset the streak, got %d", rows[2].LossStreakDays)
	}
	if rows[3].LossStreakDays != 1 {
		t.Errorf("Expected a fresh streak of 1, got %d", rows[3].LossStreakDays)
	}
	assert.InDelta(t, 96.0/98-1, rows[3].LossStreakRate, 1e-9)
}

func TestStreakExtremes(t *testing.T) {
	// day 1: -2%, day 2: ~-3.06% (the deeper loss)
	rows := NewBuilder(20, -2).Build(chain([]float64{100, 98, 95}))

	if !rows[1].IsMaxLoss || !rows[1].IsMinLoss {
		t.Error("A one-day streak is both its max and min loss")
	}
	if !rows[2].IsMaxLoss {
		t.Error("The deeper second day should be the max loss")
	}
	if rows[2].IsMinLoss {
		t.Error("The deeper second day should not be the min loss")
	}
}

func TestWarmupRows(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104}
	rows := NewBuilder(3, -2).Build(chain(closes))

	for i := 0; i < 2; i++ {
		if rows[i].Bands != (Bands{}) {
			t.Errorf("Row %d is inside the warm-up and should have zero bands", i)
		}
	}
	for i := 2; i < len(rows); i++ {
		if rows[i].Bands.Mid() <= 0 {
			t.Errorf("Row %d should have computed bands", i)
		}
	}

	// first full window is {100, 101, 102}
	assert.InDelta(t, 101, rows[2].Bands.Mid(), 1e-9)
}

func TestNextBarLookahead(t *testing.T) {
	rows := NewBuilder(20, -2).Build(chain([]float64{100, 98, 95}))

	if rows[0].CloseNext != 98 || rows[1].CloseNext != 95 {
		t.Error("CloseNext should copy the following bar")
	}
	last := rows[len(rows)-1]
	if last.CloseNext != 0 || last.OpenNext != 0 {
		t.Error("The last row has no following bar and should be zero-filled")
	}
	if rows[1].PrevVolume != 1000 {
		t.Errorf("Expected PrevVolume 1000, got %v", rows[1].PrevVolume)
	}
	if rows[2].DaysSinceStart != 2 {
		t.Errorf("Expected DaysSinceStart 2, got %d", rows[2].DaysSinceStart)
	}
}
