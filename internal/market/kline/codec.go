package kline

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"meanrev/internal/errors"
)

// Cache file schemas. Base bars and feature rows share the same container
// format; the schema id in the header tells them apart.
const (
	SchemaBar     uint16 = 1
	SchemaFeature uint16 = 2
)

const (
	cacheMagic   uint32 = 0x4d525643 // "MRVC"
	cacheVersion uint16 = 1
)

type cacheHeader struct {
	Magic   uint32
	Version uint16
	Schema  uint16
	Count   uint32
}

// barRecord is the fixed on-disk layout of one base bar
type barRecord struct {
	Symbol    [16]byte
	Timestamp int64
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    float64
}

// EncodeSymbol packs a symbol into the fixed-width cache field
func EncodeSymbol(symbol string) [16]byte {
	var out [16]byte
	copy(out[:], symbol)
	return out
}

// DecodeSymbol unpacks a fixed-width cache field into a symbol
func DecodeSymbol(raw [16]byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func toRecord(b Bar) barRecord {
	return barRecord{
		Symbol:    EncodeSymbol(b.Symbol),
		Timestamp: b.Timestamp,
		Open:      b.Open,
		Close:     b.Close,
		High:      b.High,
		Low:       b.Low,
		Volume:    b.Volume,
	}
}

func fromRecord(r barRecord) Bar {
	return Bar{
		Symbol:    DecodeSymbol(r.Symbol),
		Timestamp: r.Timestamp,
		Open:      r.Open,
		Close:     r.Close,
		High:      r.High,
		Low:       r.Low,
		Volume:    r.Volume,
	}
}

// CacheWriter writes a cache file as a temp file renamed into place on Commit
type CacheWriter struct {
	f    *os.File
	w    *bufio.Writer
	path string
}

// CreateCache creates a cache file for the given schema and record count
func CreateCache(path string, schema uint16, count int) (*CacheWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return nil, fmt.Errorf("failed to create cache temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	header := cacheHeader{
		Magic:   cacheMagic,
		Version: cacheVersion,
		Schema:  schema,
		Count:   uint32(count),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write cache header: %w", err)
	}

	return &CacheWriter{f: f, w: w, path: path}, nil
}

// Encode appends one fixed-size record
func (cw *CacheWriter) Encode(v interface{}) error {
	return binary.Write(cw.w, binary.LittleEndian, v)
}

// Commit flushes and atomically replaces the target path
func (cw *CacheWriter) Commit() error {
	if err := cw.w.Flush(); err != nil {
		cw.Abort()
		return fmt.Errorf("failed to flush cache file: %w", err)
	}
	if err := cw.f.Sync(); err != nil {
		cw.Abort()
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := cw.f.Close(); err != nil {
		os.Remove(cw.f.Name())
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(cw.f.Name(), cw.path); err != nil {
		os.Remove(cw.f.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Abort discards the temp file
func (cw *CacheWriter) Abort() {
	cw.f.Close()
	os.Remove(cw.f.Name())
}

// CacheReader reads a cache file written by CacheWriter
type CacheReader struct {
	f     *os.File
	r     *bufio.Reader
	Count int
}

// OpenCache opens a cache file and validates its header against the schema
func OpenCache(path string, schema uint16) (*CacheReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := bufio.NewReader(f)
	var header cacheHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		f.Close()
		return nil, errors.NewAppErrorWithDetails(errors.ErrCodeCacheCorrupted,
			"cache header unreadable", path, err)
	}
	if header.Magic != cacheMagic || header.Version != cacheVersion {
		f.Close()
		return nil, errors.NewAppErrorWithDetails(errors.ErrCodeCacheCorrupted,
			"cache magic or version mismatch", path, nil)
	}
	if header.Schema != schema {
		f.Close()
		return nil, errors.NewAppErrorWithDetails(errors.ErrCodeCacheCorrupted,
			fmt.Sprintf("cache schema %d, want %d", header.Schema, schema), path, nil)
	}

	return &CacheReader{f: f, r: r, Count: int(header.Count)}, nil
}

// Decode reads one fixed-size record
func (cr *CacheReader) Decode(v interface{}) error {
	return binary.Read(cr.r, binary.LittleEndian, v)
}

// Close closes the underlying file
func (cr *CacheReader) Close() error {
	return cr.f.Close()
}

// saveBars writes a bar slice to path; writing zero bars is a no-op
func saveBars(path string, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}

	cw, err := CreateCache(path, SchemaBar, len(bars))
	if err != nil {
		return err
	}
	for _, b := range bars {
		rec := toRecord(b)
		if err := cw.Encode(&rec); err != nil {
			cw.Abort()
			return fmt.Errorf("failed to encode bar: %w", err)
		}
	}
	return cw.Commit()
}

// loadBars reads a bar slice from path; a missing file yields no bars
func loadBars(path string) ([]Bar, error) {
	cr, err := OpenCache(path, SchemaBar)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer cr.Close()

	bars := make([]Bar, 0, cr.Count)
	for i := 0; i < cr.Count; i++ {
		var rec barRecord
		if err := cr.Decode(&rec); err != nil {
			return nil, errors.NewAppErrorWithDetails(errors.ErrCodeCacheCorrupted,
				"cache truncated", path, err)
		}
		bars = append(bars, fromRecord(rec))
	}
	return bars, nil
}
