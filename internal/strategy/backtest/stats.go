package backtest

import (
	"meanrev/internal/market/kline"
)

// LedgerRow is one per-bar accounting line
type LedgerRow struct {
	Date         string
	BuyVolume    float64 // cash deployed this bar
	SellVolume   float64 // gross proceeds this bar
	Cash         float64
	HoldingValue float64
	Equity       float64
	TotalReturn  float64 // cumulative, vs initial money
	DailyProfit  float64
	DailyReturn  float64
	Drawdown     float64 // <= 0, 0 at each new peak
}

// StatsTracker accumulates the equity series, running peak and ledger
type StatsTracker struct {
	initial float64
	peak    float64
	ledger  []LedgerRow
	trades  []*Record
}

// NewStatsTracker creates a tracker for the given starting equity
func NewStatsTracker(initial float64) *StatsTracker {
	return &StatsTracker{
		initial: initial,
		peak:    initial,
		ledger:  make([]LedgerRow, 0),
		trades:  make([]*Record, 0),
	}
}

// AddTrade appends a closed trade to the audit trail
func (t *StatsTracker) AddTrade(r *Record) {
	t.trades = append(t.trades, r)
}

// Update appends one ledger row for the bar at ts
func (t *StatsTracker) Update(ts int64, cash, holdingValue, buyVolume, sellVolume float64) {
	equity := cash + holdingValue
	if equity > t.peak {
		t.peak = equity
	}

	prev := t.initial
	if n := len(t.ledger); n > 0 {
		prev = t.ledger[n-1].Equity
	}

	row := LedgerRow{
		Date:         kline.DayString(ts),
		BuyVolume:    buyVolume,
		SellVolume:   sellVolume,
		Cash:         cash,
		HoldingValue: holdingValue,
		Equity:       equity,
		DailyProfit:  equity - prev,
	}
	if t.initial != 0 {
		row.TotalReturn = equity/t.initial - 1
	}
	if prev != 0 {
		row.DailyReturn = equity/prev - 1
	}
	if t.peak != 0 {
		row.Drawdown = equity/t.peak - 1
	}
	t.ledger = append(t.ledger, row)
}

// Result represents the finalized backtest outcome
type Result struct {
	InitialMoney float64
	FinalEquity  float64
	TotalReturn  float64 // final equity / initial money
	MaxDrawdown  float64 // minimum drawdown over the run, <= 0
	WinRate      float64
	ProfitFactor float64
	TradeCount   int
	Trades       []*Record
	Ledger       []LedgerRow
}

// Finalize computes the run-level statistics
func (t *StatsTracker) Finalize() *Result {
	result := &Result{
		InitialMoney: t.initial,
		FinalEquity:  t.initial,
		Trades:       t.trades,
		Ledger:       t.ledger,
		TradeCount:   len(t.trades),
	}

	if n := len(t.ledger); n > 0 {
		result.FinalEquity = t.ledger[n-1].Equity
	}
	if t.initial != 0 {
		result.TotalReturn = result.FinalEquity / t.initial
	}

	for _, row := range t.ledger {
		if row.Drawdown < result.MaxDrawdown {
			result.MaxDrawdown = row.Drawdown
		}
	}

	var wins int
	var grossProfit, grossLoss float64
	for _, trade := range t.trades {
		if trade.Profit > 0 {
			wins++
			grossProfit += trade.Profit
		} else {
			grossLoss -= trade.Profit
		}
	}
	if len(t.trades) > 0 {
		result.WinRate = float64(wins) / float64(len(t.trades))
	}
	if grossLoss > 0 {
		result.ProfitFactor = grossProfit / grossLoss
	}

	return result
}
