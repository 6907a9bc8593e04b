package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"meanrev/internal/market/kline"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTrades writes the trade audit trail, one row per closed trade
func WriteTrades(path string, trades []*Record) error {
	f, err := createOutput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"symbol", "buy_time", "buy_price", "buy_volume",
		"sell_time", "sell_price", "sell_volume",
		"profit", "rate", "fee", "holding_days",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write trades header: %w", err)
	}

	for _, t := range trades {
		row := []string{
			t.Symbol,
			kline.DayString(t.BuyTime) + " " + formatClock(t.BuyTime),
			formatFloat(t.BuyPrice),
			formatFloat(t.BuyVolume),
			kline.DayString(t.SellTime) + " " + formatClock(t.SellTime),
			formatFloat(t.SellPrice),
			formatFloat(t.SellVolume),
			formatFloat(t.Profit),
			formatFloat(t.Rate),
			formatFloat(t.Fee),
			strconv.Itoa(t.HoldingDays()),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write trade row: %w", err)
		}
	}
	return nil
}

// WriteLedger writes the per-bar accounting ledger
func WriteLedger(path string, ledger []LedgerRow) error {
	f, err := createOutput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"date", "buy_volume", "sell_volume", "cash", "holding_value",
		"equity", "total_return", "daily_profit", "daily_return", "drawdown",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}

	for _, row := range ledger {
		record := []string{
			row.Date,
			formatFloat(row.BuyVolume),
			formatFloat(row.SellVolume),
			formatFloat(row.Cash),
			formatFloat(row.HoldingValue),
			formatFloat(row.Equity),
			formatFloat(row.TotalReturn),
			formatFloat(row.DailyProfit),
			formatFloat(row.DailyReturn),
			formatFloat(row.Drawdown),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	return nil
}

func createOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

func formatClock(ts int64) string {
	secs := ts % 86400
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
