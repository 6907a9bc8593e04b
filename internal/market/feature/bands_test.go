package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBands(t *testing.T) {
	window := []float64{1, 2, 3}
	bands := computeBands(window)

	mean := 2.0
	std := math.Sqrt(2.0 / 3.0) // population stddev

	assert.InDelta(t, mean, bands.Mid(), 1e-9)
	assert.InDelta(t, mean+2*std, bands.Upper(), 1e-9)
	assert.InDelta(t, mean-2*std, bands.Lower(), 1e-9)
	assert.InDelta(t, mean-std, bands.At(-1), 1e-9)

	// multipliers are decreasing, so the bands never increase across
	// the index
	for i := 1; i < len(bands); i++ {
		if bands[i] > bands[i-1] {
			t.Errorf("Band %d (%v) above band %d (%v)", i, bands[i], i-1, bands[i-1])
		}
	}
}

func TestBandsAtUnknownMultiplier(t *testing.T) {
	bands := computeBands([]float64{1, 2, 3})
	if got := bands.At(0.75); got != 0 {
		t.Errorf("Unknown multiplier should return 0, got %v", got)
	}
}

func TestProjectedBands(t *testing.T) {
	window := []float64{10, 20, 30}
	got := projectedBands(window)

	// shift forward, duplicate the current close
	want := computeBands([]float64{20, 30, 30})
	for i := range got {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
}

func TestRealBandConstantWindow(t *testing.T) {
	window := []float64{10, 10, 10, 10, 10}
	// with zero spread every band equals the mean, so the fixed point
	// is the price itself
	assert.InDelta(t, 10, realBand(window, -2), 1e-4)
}

func TestRealBandFixedPoint(t *testing.T) {
	window := []float64{100, 102, 99, 101, 98, 100, 97, 99, 96, 98}
	band := realBand(window, -2)

	// the returned value must reproduce itself when appended to the
	// shifted window
	shifted := append(append([]float64{}, window[1:]...), band)
	mean, std := meanStd(shifted)
	assert.InDelta(t, band, mean-2*std, math.Abs(band)*1e-4)
}

func TestMeanStdEmpty(t *testing.T) {
	mean, std := meanStd(nil)
	if mean != 0 || std != 0 {
		t.Errorf("Empty window should yield zeros, got mean=%v std=%v", mean, std)
	}
}
