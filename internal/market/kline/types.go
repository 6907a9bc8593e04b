package kline

import (
	"time"
)

// Interval represents a candlestick interval
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the duration of an interval
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Seconds returns the interval length in seconds
func (i Interval) Seconds() int64 {
	return int64(i.Duration() / time.Second)
}

// BarsPerDay returns the expected bar count for one full UTC day
func (i Interval) BarsPerDay() int {
	return int(24 * time.Hour / i.Duration())
}

// Bar represents one OHLCV observation for a symbol
type Bar struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"` // bar open time, unix seconds
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    float64 `json:"volume"`
}

// OpenTime returns the bar open time
func (b Bar) OpenTime() time.Time {
	return time.Unix(b.Timestamp, 0).UTC()
}

// Return returns the intraday return close/open - 1
func (b Bar) Return() float64 {
	if b.Open == 0 {
		return 0
	}
	return b.Close/b.Open - 1
}

// DayStart truncates a unix timestamp to the start of its UTC day
func DayStart(ts int64) int64 {
	return ts - ts%86400
}

// DayString formats a unix timestamp as the UTC date it falls on
func DayString(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
