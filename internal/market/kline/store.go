package kline

import (
	"sort"
)

// Store is an in-memory columnar cache of bars for many symbols at one
// base interval. It is loaded once per run, merged in memory and written
// back whole; it is not safe for concurrent use.
type Store struct {
	bars []Bar
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// LoadStore loads a store from a cache file; a missing file yields an
// empty store
func LoadStore(path string) (*Store, error) {
	bars, err := loadBars(path)
	if err != nil {
		return nil, err
	}
	s := &Store{bars: bars}
	s.normalize()
	return s, nil
}

// Save writes the store back to path. Saving an empty store is a no-op.
func (s *Store) Save(path string) error {
	return saveBars(path, s.bars)
}

// Merge concatenates new bars into the store, restores sort order and
// drops duplicates. Merging the same range twice is idempotent.
func (s *Store) Merge(bars []Bar) {
	if len(bars) == 0 {
		return
	}
	s.bars = append(s.bars, bars...)
	s.normalize()
}

// normalize sorts by (symbol, timestamp, volume) and keeps exactly one
// record per (symbol, timestamp): the max-volume one, last-after-sort on
// volume ties.
func (s *Store) normalize() {
	sort.SliceStable(s.bars, func(i, j int) bool {
		a, b := s.bars[i], s.bars[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Volume < b.Volume
	})

	out := s.bars[:0]
	for i, b := range s.bars {
		// Volume sorts ascending inside a duplicate group, so the last
		// record of the group carries the max volume.
		if i+1 < len(s.bars) &&
			s.bars[i+1].Symbol == b.Symbol &&
			s.bars[i+1].Timestamp == b.Timestamp {
			continue
		}
		out = append(out, b)
	}
	s.bars = out
}

// Len returns the number of cached bars
func (s *Store) Len() int {
	return len(s.bars)
}

// Bars returns all cached bars in sort order
func (s *Store) Bars() []Bar {
	return s.bars
}

// Symbols returns the distinct symbols in sort order
func (s *Store) Symbols() []string {
	symbols := make([]string, 0)
	for i, b := range s.bars {
		if i == 0 || s.bars[i-1].Symbol != b.Symbol {
			symbols = append(symbols, b.Symbol)
		}
	}
	return symbols
}

// Symbol returns the bars for one symbol in time order
func (s *Store) Symbol(symbol string) []Bar {
	lo := sort.Search(len(s.bars), func(i int) bool {
		return s.bars[i].Symbol >= symbol
	})
	hi := lo
	for hi < len(s.bars) && s.bars[hi].Symbol == symbol {
		hi++
	}
	return s.bars[lo:hi]
}

// LastTimestamp returns the newest cached timestamp for a symbol
func (s *Store) LastTimestamp(symbol string) (int64, bool) {
	bars := s.Symbol(symbol)
	if len(bars) == 0 {
		return 0, false
	}
	return bars[len(bars)-1].Timestamp, true
}
