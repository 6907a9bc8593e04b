package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"

	"meanrev/internal/logger"
	"meanrev/internal/market/feature"
	"meanrev/internal/market/kline"
	"meanrev/internal/strategy"
	"meanrev/internal/strategy/fill"
)

// Config represents portfolio simulation configuration
type Config struct {
	InitialMoney float64
	Start        int64 // first simulated bar, unix seconds
	End          int64 // exclusive
	Interval     kline.Interval
	BuyVariant   strategy.Variant
	SellVariant  strategy.Variant
	Param        strategy.Param
}

// holding is an open position with its already-resolved exit
type holding struct {
	record *Record
}

// Engine is the portfolio simulator: it steps one bar at a time over
// the backtest horizon, sizes positions against available cash and
// accumulates the equity ledger.
type Engine struct {
	cfg       *Config
	rowsByDay map[int64][]feature.Row
	fill      *fill.Simulator
	log       *logger.Logger
}

// NewEngine creates an engine over precomputed feature rows. Invalid
// parameter sets are rejected here, before any simulation work.
func NewEngine(rows []feature.Row, fillSim *fill.Simulator, cfg *Config, log *logger.Logger) (*Engine, error) {
	if err := cfg.Param.Check(); err != nil {
		return nil, err
	}
	if !cfg.BuyVariant.Valid() || !cfg.SellVariant.Valid() {
		return nil, fmt.Errorf("variant out of range: buy=%d sell=%d", cfg.BuyVariant, cfg.SellVariant)
	}
	if log == nil {
		log = logger.Nop()
	}

	byDay := make(map[int64][]feature.Row)
	for _, r := range rows {
		byDay[r.Timestamp] = append(byDay[r.Timestamp], r)
	}

	return &Engine{
		cfg:       cfg,
		rowsByDay: byDay,
		fill:      fillSim,
		log:       log,
	}, nil
}

// positionSize computes the per-position cash volume and the target
// position count for one step
func positionSize(cash float64, candidates int, p strategy.Param) (float64, int) {
	count := candidates
	if count < p.MinNum {
		count = p.MinNum
	}
	if count > p.MaxNum {
		count = p.MaxNum
	}
	if count == 0 || cash <= 0 {
		return 0, 0
	}

	// size against fee-inclusive cost so count positions remain affordable
	spendable := cash / (1 + p.FeeRate)
	vol := spendable / float64(count)
	if p.MinVol > 0 && vol < p.MinVol {
		vol = p.MinVol
		count = int(spendable / p.MinVol)
		if count == 0 {
			return 0, 0
		}
	}
	if vol*float64(count) > spendable {
		vol = spendable / float64(count)
	}
	// round down to cents so the residual stays in cash
	vol = math.Floor(vol*100) / 100
	return vol, count
}

// orderCandidates sorts highest-volume first; the projected-band
// variants process at/below-mean candidates before above-mean ones
func orderCandidates(cands []feature.Row, v strategy.Variant) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Volume > cands[j].Volume
	})
	if v == 2 || v == 5 {
		sort.SliceStable(cands, func(i, j int) bool {
			return strategy.BelowMid(cands[i]) && !strategy.BelowMid(cands[j])
		})
	}
}

// Run executes the simulation and returns the finalized result. The
// run always completes: candidates whose fills cannot be resolved are
// dropped with a log line, never aborting the loop.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	p := e.cfg.Param
	step := e.cfg.Interval.Seconds()

	cash := e.cfg.InitialMoney
	holdings := make([]*holding, 0)
	lastClose := make(map[string]float64)
	tracker := NewStatsTracker(e.cfg.InitialMoney)

	for ts := e.cfg.Start; ts < e.cfg.End; ts += step {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var dayBuy, daySell float64

		for _, r := range e.rowsByDay[ts] {
			lastClose[r.Symbol] = r.Close
		}

		// yesterday's close produced today's signals
		cands := strategy.Select(e.rowsByDay[ts-step], p, e.cfg.BuyVariant)
		if e.cfg.BuyVariant == 5 {
			cands = e.excludeHeld(cands, holdings)
		}
		orderCandidates(cands, e.cfg.BuyVariant)

		vol, count := positionSize(cash, len(cands), p)
		placed := 0
		for _, cand := range cands {
			if placed >= count {
				break
			}
			cost := vol * (1 + p.FeeRate)
			if vol <= 0 || cost > cash {
				break
			}

			buyRes, err := e.fill.Buy(ctx, cand, p, e.cfg.BuyVariant)
			if err != nil {
				e.log.WithField("symbol", cand.Symbol).WithError(err).Warn("buy fill unresolved, dropping candidate")
				continue
			}
			if !buyRes.Filled() {
				continue
			}

			// the exit is fully determined once the fine bars are
			// known, so resolve it immediately
			sellRes, err := e.fill.Sell(ctx, cand, p, e.cfg.SellVariant, buyRes)
			if err != nil {
				e.log.WithField("symbol", cand.Symbol).WithError(err).Warn("sell fill unresolved, dropping candidate")
				continue
			}

			rec := NewRecord(cand.Symbol, buyRes.Price, buyRes.Time, vol, p.FeeRate)
			rec.Sell(sellRes.Price, sellRes.Time)
			cash -= cost
			dayBuy += vol
			placed++
			holdings = append(holdings, &holding{record: rec})
			tracker.AddTrade(rec)
		}

		// settle holdings whose resolved exit time has arrived
		dayEnd := ts + step
		open := holdings[:0]
		for _, h := range holdings {
			if h.record.SellTime != 0 && h.record.SellTime < dayEnd {
				cash += h.record.NetProceeds()
				daySell += h.record.SellVolume
				continue
			}
			open = append(open, h)
		}
		holdings = open

		// mark remaining holdings to the latest close at or before now
		var holdingValue float64
		for _, h := range holdings {
			mark, ok := lastClose[h.record.Symbol]
			if !ok {
				mark = h.record.BuyPrice
			}
			holdingValue += h.record.Units() * mark
		}

		tracker.Update(ts, cash, holdingValue, dayBuy, daySell)
	}

	return tracker.Finalize(), nil
}

func (e *Engine) excludeHeld(cands []feature.Row, holdings []*holding) []feature.Row {
	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		held[h.record.Symbol] = true
	}
	out := cands[:0]
	for _, c := range cands {
		if !held[c.Symbol] {
			out = append(out, c)
		}
	}
	return out
}
