package feature

import (
	"meanrev/internal/market/kline"
)

// Row is a bar augmented with loss-streak and band statistics plus a
// lookahead copy of the following bar
type Row struct {
	kline.Bar

	LossStreakDays int32
	LossStreakRate float64
	IsMaxLoss      bool
	IsMinLoss      bool

	Bands     Bands   // trailing window ending at this bar
	NextBands Bands   // window shifted one bar forward, close duplicated
	RealBand  float64 // fixed-point band for the configured multiplier

	// following bar, zero-filled on the last row
	OpenNext   float64
	CloseNext  float64
	HighNext   float64
	LowNext    float64
	VolumeNext float64

	PrevVolume     float64
	DaysSinceStart int32
}

// Date returns the UTC date of the row's bar
func (r Row) Date() string {
	return kline.DayString(r.Timestamp)
}

// DefaultWindow is the default Bollinger window size
const DefaultWindow = 20

// Builder derives feature rows from one symbol's bar sequence
type Builder struct {
	window int
	realK  float64
}

// NewBuilder creates a builder with the given window size and real-band
// multiplier
func NewBuilder(window int, realK float64) *Builder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Builder{window: window, realK: realK}
}

// streak is the accumulator carried by the forward scan
type streak struct {
	length   int
	startIdx int
}

// Build performs one forward sequential scan over time-sorted bars and
// emits one row per bar. Warm-up rows with insufficient window history
// get all-zero band fields.
func (b *Builder) Build(bars []kline.Bar) []Row {
	rows := make([]Row, len(bars))
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	var st streak
	for i, bar := range bars {
		row := Row{Bar: bar, DaysSinceStart: int32(i)}

		r := bar.Return()
		if r < 0 {
			if st.length == 0 {
				st.startIdx = i
			}
			st.length++

			row.LossStreakDays = int32(st.length)
			if open := bars[st.startIdx].Open; open != 0 {
				row.LossStreakRate = bar.Close/open - 1
			}
			row.IsMaxLoss, row.IsMinLoss = streakExtremes(bars[st.startIdx:i+1], r)
		} else {
			st = streak{}
		}

		if i+1 >= b.window {
			window := closes[i+1-b.window : i+1]
			row.Bands = computeBands(window)
			row.NextBands = projectedBands(window)
			row.RealBand = realBand(window, b.realK)
		}

		if i+1 < len(bars) {
			next := bars[i+1]
			row.OpenNext = next.Open
			row.CloseNext = next.Close
			row.HighNext = next.High
			row.LowNext = next.Low
			row.VolumeNext = next.Volume
		}
		if i > 0 {
			row.PrevVolume = bars[i-1].Volume
		}

		rows[i] = row
	}
	return rows
}

// streakExtremes reports whether r is the worst and the least-bad return
// in the current streak window
func streakExtremes(streakBars []kline.Bar, r float64) (isMax, isMin bool) {
	min, max := r, r
	for _, bar := range streakBars {
		ret := bar.Return()
		if ret < min {
			min = ret
		}
		if ret > max {
			max = ret
		}
	}
	return r == min, r == max
}
