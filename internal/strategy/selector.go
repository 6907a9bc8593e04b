package strategy

import (
	"meanrev/internal/market/feature"
)

// Variant identifies one of the five closed strategy shapes
type Variant int

const (
	VariantMin Variant = 1
	VariantMax Variant = 5
)

// Valid reports whether the variant is one of the closed shapes
func (v Variant) Valid() bool {
	return v >= VariantMin && v <= VariantMax
}

// baseMatch applies the filters common to every variant: price bounds,
// volume bounds, streak depth and streak rate, and the warm-up guard on
// band history
func baseMatch(r feature.Row, p Param) bool {
	if r.Bands.Mid() <= 0 {
		return false // warm-up row, bands not yet defined
	}
	if p.LowPrice > 0 && r.Close < p.LowPrice {
		return false
	}
	if p.HighPrice > 0 && r.Close > p.HighPrice {
		return false
	}
	if p.MinVolume > 0 && r.Volume < p.MinVolume {
		return false
	}
	if p.MaxVolume > 0 && r.Volume > p.MaxVolume {
		return false
	}
	if int(r.LossStreakDays) < p.MinDownDays {
		return false
	}
	if r.LossStreakRate > p.MinDownRate {
		return false
	}
	return true
}

// match applies one variant's gate on top of the base filters. Each
// variant is total: a row is either returned or excluded.
func match(r feature.Row, p Param, v Variant) bool {
	if !baseMatch(r, p) {
		return false
	}

	switch v {
	case 1:
		// same-day band gate
		return r.Close < r.Bands.At(-1)
	case 2:
		// projected band gate, one extra down day
		return int(r.LossStreakDays) > p.MinDownDays && r.Close < r.NextBands.At(-1)
	case 3:
		// same-day gate plus the converged band pinned inside the
		// bar's body
		return r.Close < r.Bands.At(-1) && r.Low < r.RealBand && r.RealBand < r.Open
	case 4:
		// deepest loss of the streak, deeper band gate
		return r.IsMaxLoss && r.Close < r.Bands.At(-1.5)
	case 5:
		// projected deeper gate; the already-holding exclusion is the
		// caller's job
		return r.Close < r.NextBands.At(-1.5)
	default:
		return false
	}
}

// Select filters candidate rows into buy targets for one variant
func Select(rows []feature.Row, p Param, v Variant) []feature.Row {
	if !v.Valid() {
		return nil
	}
	out := make([]feature.Row, 0)
	for _, r := range rows {
		if match(r, p, v) {
			out = append(out, r)
		}
	}
	return out
}

// BelowMid reports whether a candidate closed at or below its window
// mean; some variants process these before above-mean candidates
func BelowMid(r feature.Row) bool {
	return r.Close <= r.Bands.Mid()
}
