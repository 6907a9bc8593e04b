package feature

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"meanrev/internal/errors"
	"meanrev/internal/market/kline"
)

// featureRecord is the fixed on-disk layout of one feature row (the wide
// cache schema)
type featureRecord struct {
	Symbol    [16]byte
	Date      [10]byte
	Timestamp int64
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    float64

	LossStreakDays int32
	LossStreakRate float64
	IsMaxLoss      bool
	IsMinLoss      bool

	Bands     Bands
	NextBands Bands
	RealBand  float64

	OpenNext   float64
	CloseNext  float64
	HighNext   float64
	LowNext    float64
	VolumeNext float64

	PrevVolume     float64
	DaysSinceStart int32
}

func toRecord(r Row) featureRecord {
	rec := featureRecord{
		Symbol:         kline.EncodeSymbol(r.Symbol),
		Timestamp:      r.Timestamp,
		Open:           r.Open,
		Close:          r.Close,
		High:           r.High,
		Low:            r.Low,
		Volume:         r.Volume,
		LossStreakDays: r.LossStreakDays,
		LossStreakRate: r.LossStreakRate,
		IsMaxLoss:      r.IsMaxLoss,
		IsMinLoss:      r.IsMinLoss,
		Bands:          r.Bands,
		NextBands:      r.NextBands,
		RealBand:       r.RealBand,
		OpenNext:       r.OpenNext,
		CloseNext:      r.CloseNext,
		HighNext:       r.HighNext,
		LowNext:        r.LowNext,
		VolumeNext:     r.VolumeNext,
		PrevVolume:     r.PrevVolume,
		DaysSinceStart: r.DaysSinceStart,
	}
	copy(rec.Date[:], r.Date())
	return rec
}

func fromRecord(rec featureRecord) Row {
	return Row{
		Bar: kline.Bar{
			Symbol:    kline.DecodeSymbol(rec.Symbol),
			Timestamp: rec.Timestamp,
			Open:      rec.Open,
			Close:     rec.Close,
			High:      rec.High,
			Low:       rec.Low,
			Volume:    rec.Volume,
		},
		LossStreakDays: rec.LossStreakDays,
		LossStreakRate: rec.LossStreakRate,
		IsMaxLoss:      rec.IsMaxLoss,
		IsMinLoss:      rec.IsMinLoss,
		Bands:          rec.Bands,
		NextBands:      rec.NextBands,
		RealBand:       rec.RealBand,
		OpenNext:       rec.OpenNext,
		CloseNext:      rec.CloseNext,
		HighNext:       rec.HighNext,
		LowNext:        rec.LowNext,
		VolumeNext:     rec.VolumeNext,
		PrevVolume:     rec.PrevVolume,
		DaysSinceStart: rec.DaysSinceStart,
	}
}

// CachePath encodes the symbol, interval and window size into a feature
// cache file name under dir. Pair separators are flattened so the symbol
// stays inside one path element.
func CachePath(dir, symbol string, interval kline.Interval, window int) string {
	flat := strings.ReplaceAll(symbol, "/", "_")
	return filepath.Join(dir, fmt.Sprintf("feature_%s_%s_w%d.bin", flat, interval, window))
}

// SaveRows writes feature rows to path; writing zero rows is a no-op
func SaveRows(path string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	cw, err := kline.CreateCache(path, kline.SchemaFeature, len(rows))
	if err != nil {
		return err
	}
	for _, r := range rows {
		rec := toRecord(r)
		if err := cw.Encode(&rec); err != nil {
			cw.Abort()
			return fmt.Errorf("failed to encode feature row: %w", err)
		}
	}
	return cw.Commit()
}

// LoadRows reads feature rows from path; a missing file yields no rows
func LoadRows(path string) ([]Row, error) {
	cr, err := kline.OpenCache(path, kline.SchemaFeature)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer cr.Close()

	rows := make([]Row, 0, cr.Count)
	for i := 0; i < cr.Count; i++ {
		var rec featureRecord
		if err := cr.Decode(&rec); err != nil {
			return nil, errors.NewAppErrorWithDetails(errors.ErrCodeCacheCorrupted,
				"feature cache truncated", path, err)
		}
		rows = append(rows, fromRecord(rec))
	}
	return rows, nil
}
