package kline

import (
	"os"
	"path/filepath"
	"testing"

	"meanrev/internal/errors"
)

func TestSymbolEncoding(t *testing.T) {
	tests := []string{"BTC/USDT", "A", "0123456789ABCDEF"}

	for _, symbol := range tests {
		if got := DecodeSymbol(EncodeSymbol(symbol)); got != symbol {
			t.Errorf("Symbol %q round-tripped to %q", symbol, got)
		}
	}
}

func TestOpenCacheSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := saveBars(path, []Bar{testBar("BTC/USDT", 100, 1, 1)}); err != nil {
		t.Fatalf("saveBars failed: %v", err)
	}

	_, err := OpenCache(path, SchemaFeature)
	appErr := errors.GetAppError(err)
	if appErr == nil || appErr.Code != errors.ErrCodeCacheCorrupted {
		t.Errorf("Expected cache corrupted error on schema mismatch, got %v", err)
	}
}

func TestOpenCacheGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := os.WriteFile(path, []byte("not a cache file"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenCache(path, SchemaBar)
	appErr := errors.GetAppError(err)
	if appErr == nil || appErr.Code != errors.ErrCodeCacheCorrupted {
		t.Errorf("Expected cache corrupted error on garbage input, got %v", err)
	}
}

func TestLoadBarsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := saveBars(path, []Bar{
		testBar("BTC/USDT", 100, 1, 1),
		testBar("BTC/USDT", 200, 2, 2),
	}); err != nil {
		t.Fatalf("saveBars failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-8); err != nil {
		t.Fatal(err)
	}

	_, err = loadBars(path)
	appErr := errors.GetAppError(err)
	if appErr == nil || appErr.Code != errors.ErrCodeCacheCorrupted {
		t.Errorf("Expected cache corrupted error on truncated file, got %v", err)
	}
}
