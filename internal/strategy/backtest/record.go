package backtest

import (
	"github.com/google/uuid"
)

// Record represents one simulated trade. It is created at buy and
// mutated exactly once at sell; later sell calls are no-ops.
type Record struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`

	BuyPrice  float64 `json:"buy_price"`
	BuyTime   int64   `json:"buy_time"`
	BuyVolume float64 `json:"buy_volume"` // cash deployed

	SellPrice  float64 `json:"sell_price"`
	SellTime   int64   `json:"sell_time"`
	SellVolume float64 `json:"sell_volume"` // gross proceeds

	FeeRate float64 `json:"fee_rate"`
	Profit  float64 `json:"profit"`
	Rate    float64 `json:"rate"`
	Fee     float64 `json:"fee"`
}

// NewRecord creates a record for a filled buy
func NewRecord(symbol string, price float64, ts int64, volume, feeRate float64) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		BuyPrice:  price,
		BuyTime:   ts,
		BuyVolume: volume,
		FeeRate:   feeRate,
	}
}

// Units returns the position size in asset units
func (r *Record) Units() float64 {
	if r.BuyPrice == 0 {
		return 0
	}
	return r.BuyVolume / r.BuyPrice
}

// Sold reports whether the sell leg has been recorded
func (r *Record) Sold() bool {
	return r.SellTime != 0
}

// Sell records the sell leg and the derived profit figures. The first
// sell wins; subsequent calls do nothing.
func (r *Record) Sell(price float64, ts int64) {
	if r.Sold() {
		return
	}
	r.SellPrice = price
	r.SellTime = ts
	r.SellVolume = r.Units() * price
	r.Fee = (r.BuyVolume + r.SellVolume) * r.FeeRate
	r.Profit = r.SellVolume - r.BuyVolume - r.Fee
	if r.BuyVolume != 0 {
		r.Rate = r.Profit / r.BuyVolume
	}
}

// HoldingDays returns the holding period in whole days, minimum 1 for a
// closed trade
func (r *Record) HoldingDays() int {
	if !r.Sold() {
		return 0
	}
	days := int((r.SellTime - r.BuyTime) / 86400)
	if days < 1 {
		days = 1
	}
	return days
}

// NetProceeds returns the cash credited back at sell
func (r *Record) NetProceeds() float64 {
	return r.SellVolume - r.SellVolume*r.FeeRate
}
