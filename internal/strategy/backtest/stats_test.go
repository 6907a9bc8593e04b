package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsDrawdown(t *testing.T) {
	tr := NewStatsTracker(1000)

	// rise, fall, partial recovery past the old peak
	equities := []float64{1100, 1200, 900, 1250}
	for i, eq := range equities {
		tr.Update(int64(i)*86400, eq, 0, 0, 0)
	}

	ledger := tr.Finalize().Ledger
	assert.InDelta(t, 0, ledger[0].Drawdown, 1e-9, "a new peak has zero drawdown")
	assert.InDelta(t, 0, ledger[1].Drawdown, 1e-9)
	assert.InDelta(t, 900.0/1200-1, ledger[2].Drawdown, 1e-9)
	assert.InDelta(t, 0, ledger[3].Drawdown, 1e-9, "recovering past the peak resets drawdown")

	for _, row := range ledger {
		if row.Drawdown > 0 {
			t.Errorf("Drawdown must never be positive, got %v on %s", row.Drawdown, row.Date)
		}
	}
}

func TestStatsLedgerRow(t *testing.T) {
	tr := NewStatsTracker(1000)
	tr.Update(0, 800, 250, 200, 0)

	row := tr.Finalize().Ledger[0]
	assert.InDelta(t, 1050, row.Equity, 1e-9, "equity is cash plus holding value")
	assert.InDelta(t, 0.05, row.TotalReturn, 1e-9)
	assert.InDelta(t, 50, row.DailyProfit, 1e-9, "the first row compares against initial money")
	assert.InDelta(t, 0.05, row.DailyReturn, 1e-9)
	if row.Date != "1970-01-01" {
		t.Errorf("Unexpected ledger date %s", row.Date)
	}
}

func TestStatsFinalize(t *testing.T) {
	tr := NewStatsTracker(1000)
	tr.Update(0, 1200, 0, 0, 0)
	tr.Update(86400, 960, 0, 0, 0)

	winner := NewRecord("BTC/USDT", 100, 0, 500, 0)
	winner.Sell(120, 3600) // +100
	loser := NewRecord("ETH/USDT", 100, 0, 500, 0)
	loser.Sell(92, 3600) // -40
	tr.AddTrade(winner)
	tr.AddTrade(loser)

	result := tr.Finalize()
	assert.InDelta(t, 960, result.FinalEquity, 1e-9)
	assert.InDelta(t, 0.96, result.TotalReturn, 1e-9, "total return is final equity over initial money")
	assert.InDelta(t, 960.0/1200-1, result.MaxDrawdown, 1e-9)
	if result.TradeCount != 2 {
		t.Errorf("Expected 2 trades, got %d", result.TradeCount)
	}
	assert.InDelta(t, 0.5, result.WinRate, 1e-9)
	assert.InDelta(t, 100.0/40, result.ProfitFactor, 1e-9)
}

func TestStatsFinalizeEmpty(t *testing.T) {
	result := NewStatsTracker(1000).Finalize()

	assert.InDelta(t, 1000, result.FinalEquity, 1e-9, "an empty run keeps the initial equity")
	assert.InDelta(t, 1, result.TotalReturn, 1e-9)
	if result.MaxDrawdown != 0 || result.TradeCount != 0 || result.WinRate != 0 {
		t.Errorf("Expected zeroed statistics, got %+v", result)
	}
}
