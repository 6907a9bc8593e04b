package feature

import (
	"math"
)

// BandMultipliers are the fixed standard-deviation multipliers, in
// decreasing order so a band set is non-increasing across the index.
var BandMultipliers = [...]float64{2, 1.5, 1, 0.5, 0, -0.5, -1, -1.5, -2}

// Bands holds one Bollinger band value per multiplier
type Bands [len(BandMultipliers)]float64

// At returns the band value for a multiplier
func (b Bands) At(k float64) float64 {
	for i, m := range BandMultipliers {
		if m == k {
			return b[i]
		}
	}
	return 0
}

// Upper returns the +2 sigma band
func (b Bands) Upper() float64 { return b[0] }

// Mid returns the 0 sigma band (the window mean)
func (b Bands) Mid() float64 { return b[4] }

// Lower returns the -2 sigma band
func (b Bands) Lower() float64 { return b[len(b)-1] }

func meanStd(window []float64) (float64, float64) {
	if len(window) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(window))
	return mean, math.Sqrt(variance)
}

// computeBands calculates mean + k*stddev for every multiplier over a
// trailing window of closes
func computeBands(window []float64) Bands {
	var bands Bands
	mean, std := meanStd(window)
	for i, k := range BandMultipliers {
		bands[i] = mean + k*std
	}
	return bands
}

// projectedBands shifts the window one position forward, duplicating the
// current close as a stand-in for the not-yet-known next close. The
// assumption that tomorrow's price equals today's is deliberate; the
// projection is a threshold aid, not a forecast.
func projectedBands(window []float64) Bands {
	if len(window) == 0 {
		return Bands{}
	}
	shifted := make([]float64, 0, len(window))
	shifted = append(shifted, window[1:]...)
	shifted = append(shifted, window[len(window)-1])
	return computeBands(shifted)
}

const (
	realBandEpsilon = 1e-5
	realBandMaxIter = 100
)

// realBand solves for the band value consistent with tomorrow's price
// equalling the band: starting from the last close, the guess is
// appended to the shifted window and replaced by the recomputed band
// until the two agree within epsilon. The iteration cap is a safety net
// against non-convergent inputs; the last computed value is returned in
// that case.
func realBand(window []float64, k float64) float64 {
	if len(window) == 0 {
		return 0
	}

	shifted := make([]float64, 0, len(window))
	shifted = append(shifted, window[1:]...)
	shifted = append(shifted, 0)
	last := len(shifted) - 1

	guess := window[len(window)-1]
	for i := 0; i < realBandMaxIter; i++ {
		shifted[last] = guess
		mean, std := meanStd(shifted)
		band := mean + k*std
		if guess != 0 && math.Abs(band/guess-1) < realBandEpsilon {
			return band
		}
		guess = band
	}
	return guess
}
