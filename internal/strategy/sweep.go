package strategy

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// ParseRange expands a sweep value specification: either a single value
// or an inclusive "start:stop:step" range.
func ParseRange(spec string) ([]float64, error) {
	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", spec, err)
		}
		return []float64{v}, nil
	case 3:
		start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q: %w", spec, err)
		}
		stop, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range stop %q: %w", spec, err)
		}
		step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range step %q: %w", spec, err)
		}
		if step <= 0 || stop < start {
			return nil, fmt.Errorf("range %q needs start <= stop and step > 0", spec)
		}
		values := make([]float64, 0)
		for v := start; v <= stop+step*1e-9; v += step {
			values = append(values, v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("range %q must be a value or start:stop:step", spec)
	}
}

// setField assigns a swept value to the named Param field
func setField(p *Param, key string, v float64) error {
	switch key {
	case "low_price":
		p.LowPrice = v
	case "high_price":
		p.HighPrice = v
	case "min_volume":
		p.MinVolume = v
	case "max_volume":
		p.MaxVolume = v
	case "min_down_days":
		p.MinDownDays = int(math.Round(v))
	case "min_down_rate":
		p.MinDownRate = v
	case "min_num":
		p.MinNum = int(math.Round(v))
	case "max_num":
		p.MaxNum = int(math.Round(v))
	case "min_vol":
		p.MinVol = v
	case "buy_rate":
		p.BuyRate = v
	case "buy_up_rate":
		p.BuyUpRate = v
	case "max_buy_ts":
		p.MaxBuyTS = int64(math.Round(v))
	case "high_rate":
		p.HighRate = v
	case "low_rate":
		p.LowRate = v
	case "low_back_rate":
		p.LowBackRate = v
	case "clear_rate":
		p.ClearRate = v
	case "stop_loss":
		p.StopLoss = v
	case "max_hold_days":
		p.MaxHoldDays = int(math.Round(v))
	case "fee_rate":
		p.FeeRate = v
	default:
		return fmt.Errorf("unknown parameter %q", key)
	}
	return nil
}

// Expand turns a map of sweep specifications into the Cartesian product
// of Param instances, dropping combinations that fail Check. The
// optional progress counter is incremented once per evaluated
// combination so a sweep driver can report across processes without
// shared globals.
func Expand(specs map[string]string, progress *atomic.Int64) ([]Param, error) {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]float64, len(keys))
	for i, k := range keys {
		vs, err := ParseRange(specs[k])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		values[i] = vs
	}

	params := make([]Param, 0)
	var walk func(idx int, p Param) error
	walk = func(idx int, p Param) error {
		if idx == len(keys) {
			if progress != nil {
				progress.Add(1)
			}
			if err := p.Check(); err == nil {
				params = append(params, p)
			}
			return nil
		}
		for _, v := range values[idx] {
			next := p
			if err := setField(&next, keys[idx], v); err != nil {
				return err
			}
			if err := walk(idx+1, next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(0, DefaultParam()); err != nil {
		return nil, err
	}
	return params, nil
}
