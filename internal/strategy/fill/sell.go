package fill

import (
	"context"

	"meanrev/internal/market/feature"
	"meanrev/internal/market/kline"
	"meanrev/internal/strategy"
)

// exit leg identifiers
type legID int

const (
	legEndOfWindow legID = iota
	legProfitPullback
	legLossPullback
	legHardStop
	legTakeProfit
)

// sellLegs lists the active exit legs per sell variant, in tie-break
// priority order. The per-variant orders are deliberate strategy tuning
// and must not be unified.
var sellLegs = map[strategy.Variant][]legID{
	1: {legEndOfWindow, legHardStop, legTakeProfit},
	2: {legEndOfWindow, legProfitPullback, legHardStop},
	3: {legEndOfWindow, legLossPullback, legTakeProfit},
	4: {legEndOfWindow, legProfitPullback, legLossPullback, legHardStop},
	5: {legEndOfWindow, legProfitPullback, legLossPullback, legHardStop, legTakeProfit},
}

// crossing is one leg's first trigger
type crossing struct {
	time  int64
	price float64
}

// Sell resolves the exit leg for a filled buy: every active leg's first
// crossing time is computed over the holding window's fine bars, and
// the earliest wins, ties broken by the variant's priority order. If
// nothing triggers, the position exits at the close of the last
// available bar in the window.
func (s *Simulator) Sell(ctx context.Context, cand feature.Row, p strategy.Param, v strategy.Variant, buy Result) (Result, error) {
	if !buy.Filled() {
		return Result{}, nil
	}

	legs := sellLegs[v]
	if legs == nil {
		legs = sellLegs[1]
	}

	// static exit levels off the buy price
	takeProfit := buy.Price * (1 + p.HighRate)
	armLevel := buy.Price * (1 + p.LowRate)
	pullback := buy.Price * (1 + p.LowBackRate)
	softStop := buy.Price * (1 + p.ClearRate)
	hardStop := buy.Price * (1 + p.StopLoss)

	found := make(map[legID]crossing)
	armed := false
	var last kline.Bar

	firstDay := kline.DayStart(buy.Time)
	for d := 0; d < p.MaxHoldDays; d++ {
		bars, err := s.day(ctx, cand.Symbol, firstDay+int64(d)*86400)
		if err != nil {
			// Later days may be missing entirely; fall back to what the
			// window produced so far.
			if d == 0 || len(found) == 0 && last.Timestamp == 0 {
				return Result{}, err
			}
			s.log.WithField("symbol", cand.Symbol).WithError(err).Warn("holding window truncated")
			break
		}

		for _, b := range bars {
			if b.Timestamp <= buy.Time {
				continue
			}
			last = b

			if _, ok := found[legTakeProfit]; !ok && b.High >= takeProfit {
				found[legTakeProfit] = crossing{b.Timestamp, takeProfit}
			}
			if !armed && b.High >= armLevel {
				armed = true
			}
			if _, ok := found[legProfitPullback]; !ok && armed && b.Low <= pullback {
				found[legProfitPullback] = crossing{b.Timestamp, pullback}
			}
			if _, ok := found[legLossPullback]; !ok && b.Low <= softStop {
				found[legLossPullback] = crossing{b.Timestamp, softStop}
			}
			if _, ok := found[legHardStop]; !ok && b.Low <= hardStop {
				found[legHardStop] = crossing{b.Timestamp, hardStop}
			}
		}
	}

	if last.Timestamp == 0 {
		// no bars after the buy; exit at cost
		return Result{Price: buy.Price, Time: buy.Time}, nil
	}

	// the window's natural close competes with the triggered legs
	found[legEndOfWindow] = crossing{last.Timestamp, last.Close}

	best := crossing{}
	for _, id := range legs {
		c, ok := found[id]
		if !ok {
			continue
		}
		if best.time == 0 || c.time < best.time {
			best = c
		}
	}

	if s.metrics != nil {
		s.metrics.RecordFill("sell")
	}
	return Result{Price: best.price, Time: best.time}, nil
}
