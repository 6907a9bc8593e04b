package strategy

import (
	"meanrev/internal/errors"
)

// Param is one strategy configuration: a point in the swept parameter
// space. Rates are fractional offsets from a reference price (negative
// for levels below it).
type Param struct {
	// candidate filters
	LowPrice    float64 `yaml:"low_price"`    // minimum close, 0 = unbounded
	HighPrice   float64 `yaml:"high_price"`   // maximum close, 0 = unbounded
	MinVolume   float64 `yaml:"min_volume"`   // minimum bar volume, 0 = unbounded
	MaxVolume   float64 `yaml:"max_volume"`   // maximum bar volume, 0 = unbounded
	MinDownDays int     `yaml:"min_down_days"` // required loss-streak depth
	MinDownRate float64 `yaml:"min_down_rate"` // required streak compounded rate (<= this)

	// position sizing
	MinNum int     `yaml:"min_num"` // minimum simultaneous positions
	MaxNum int     `yaml:"max_num"` // maximum simultaneous positions
	MinVol float64 `yaml:"min_vol"` // minimum cash per position

	// entry
	BuyRate   float64 `yaml:"buy_rate"`    // dip target below signal close
	BuyUpRate float64 `yaml:"buy_up_rate"` // abort-low level below the target
	MaxBuyTS  int64   `yaml:"max_buy_ts"`  // stop watching this long after the signal, seconds

	// exit
	HighRate    float64 `yaml:"high_rate"`     // take-profit above buy
	LowRate     float64 `yaml:"low_rate"`      // profit-pullback arming level
	LowBackRate float64 `yaml:"low_back_rate"` // profit-pullback trigger level
	ClearRate   float64 `yaml:"clear_rate"`    // soft stop below buy
	StopLoss    float64 `yaml:"stop_loss"`     // hard stop below buy
	MaxHoldDays int     `yaml:"max_hold_days"` // holding horizon in days

	FeeRate float64 `yaml:"fee_rate"` // flat percentage per fill
}

// DefaultParam returns a parameter set that passes Check
func DefaultParam() Param {
	return Param{
		MinDownDays: 2,
		MinDownRate: -0.03,
		MinNum:      1,
		MaxNum:      5,
		MinVol:      100,
		BuyRate:     -0.01,
		BuyUpRate:   -0.05,
		MaxBuyTS:    4 * 3600,
		HighRate:    0.05,
		LowRate:     0.02,
		LowBackRate: 0.01,
		ClearRate:   -0.03,
		StopLoss:    -0.08,
		MaxHoldDays: 1,
		FeeRate:     0.001,
	}
}

// Check validates the partial order among rates and the basic bounds.
// Invalid parameter sets are rejected before any simulation work.
func (p Param) Check() error {
	fail := func(msg string) error {
		return errors.NewAppError(errors.ErrCodeParameterInvalid, msg, nil)
	}

	if p.HighPrice > 0 && p.LowPrice >= p.HighPrice {
		return fail("low_price must be below high_price")
	}
	if p.MaxVolume > 0 && p.MinVolume >= p.MaxVolume {
		return fail("min_volume must be below max_volume")
	}
	if p.MinNum < 1 || p.MaxNum < p.MinNum {
		return fail("position count bounds need 1 <= min_num <= max_num")
	}
	if p.MinVol < 0 {
		return fail("min_vol must not be negative")
	}
	if p.MinDownDays < 1 {
		return fail("min_down_days must be at least 1")
	}
	if p.MaxBuyTS <= 0 {
		return fail("max_buy_ts must be positive")
	}
	if p.MaxHoldDays < 1 {
		return fail("max_hold_days must be at least 1")
	}
	if p.BuyRate > 0 {
		return fail("buy_rate must not be positive")
	}
	if p.BuyUpRate >= p.BuyRate {
		return fail("buy_up_rate must be below buy_rate")
	}

	// rate partial order
	if !(p.LowBackRate < 0.85*p.LowRate) {
		return fail("low_back_rate must be below 0.85*low_rate")
	}
	if !(0.85*p.LowRate < p.HighRate) {
		return fail("0.85*low_rate must be below high_rate")
	}
	if !(p.StopLoss < p.ClearRate) {
		return fail("stop_loss must be below clear_rate")
	}
	if !(p.ClearRate < p.LowRate) {
		return fail("clear_rate must be below low_rate")
	}

	if p.FeeRate < 0 || p.FeeRate >= 0.1 {
		return fail("fee_rate must be in [0, 0.1)")
	}
	return nil
}
