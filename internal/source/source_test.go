package source

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zer0data/ingestor/internal/model"
)

func TestExtractInterval(t *testing.T) {
	tests := []struct {
		filename string
		want     model.Interval
		wantErr  bool
	}{
		{"BTCUSDT-1h-2024-01-01.zip", model.Interval1h, false},
		{"ETHUSDT-1d-2024-01-01.zip", model.Interval1d, false},
		{"data/BTCUSDT-15m-2025-01.zip", model.Interval15m, false},
		{"BTCUSDT-2x-2024-01-01.zip", "", true},
		{"garbage.zip", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractInterval(tt.filename)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ExtractInterval(%q) expected error", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractInterval(%q) error: %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractInterval(%q) = %s, want %s", tt.filename, got, tt.want)
		}
	}
}

func TestExtractDate(t *testing.T) {
	d, ok := ExtractDate("BTCUSDT-1h-2024-01-15.zip")
	if !ok || d.Date != "2024-01-15" || d.Monthly {
		t.Errorf("daily extract = %+v ok=%v, want 2024-01-15 daily", d, ok)
	}

	d, ok = ExtractDate("BTCUSDT-1h-2025-03.zip")
	if !ok || d.Date != "2025-03-01" || !d.Monthly {
		t.Errorf("monthly extract = %+v ok=%v, want 2025-03-01 monthly", d, ok)
	}
	if d.Year() != 2025 || d.Month() != 3 {
		t.Errorf("Year/Month = %d/%d, want 2025/3", d.Year(), d.Month())
	}

	if _, ok := ExtractDate("BTCUSDT-1h.zip"); ok {
		t.Error("expected no date for dateless filename")
	}
	if _, ok := ExtractDate("BTCUSDT-1h-20XX-YY.zip"); ok {
		t.Error("expected no date for malformed date")
	}
}

func TestExtractSymbol(t *testing.T) {
	if got := ExtractSymbol("data/BTCUSDT-1h-2024-01-15.zip"); got != "BTCUSDT" {
		t.Errorf("ExtractSymbol = %q, want BTCUSDT", got)
	}
}

// writeZip creates a zip with one CSV member in a temp dir.
func writeZip(t *testing.T, name, csvContent string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	member, err := zw.Create(strings.TrimSuffix(name, ".zip") + ".csv")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if _, err := member.Write([]byte(csvContent)); err != nil {
		t.Fatalf("write member: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
	return path
}

const sampleCSV = "1700000000000,50000.1,50100.2,49900.3,50050.4,10.5,1700000059999,525000.6,123,5.25,262500.7,0\n" +
	"1700000060000,50050.4,50200.0,50000.0,50150.0,8.0,1700000119999,400000.0,99,4.0,200000.0,0\n"

func TestParseZip(t *testing.T) {
	path := writeZip(t, "BTCUSDT-1m-2023-11-14.zip", sampleCSV)

	recs, err := ParseZip(path, "BTCUSDT", model.Interval1m)
	if err != nil {
		t.Fatalf("ParseZip: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	r := recs[0]
	if r.Symbol != "BTCUSDT" || r.Interval != model.Interval1m {
		t.Errorf("key = %s/%s, want BTCUSDT/1m", r.Symbol, r.Interval)
	}
	if r.OpenTime != 1700000000000 || r.CloseTime != 1700000059999 {
		t.Errorf("times = %d/%d", r.OpenTime, r.CloseTime)
	}
	if r.Open != 50000.1 || r.High != 50100.2 || r.Low != 49900.3 || r.Close != 50050.4 {
		t.Errorf("OHLC = %v/%v/%v/%v", r.Open, r.High, r.Low, r.Close)
	}
	if r.Volume != 10.5 || r.QuoteVolume != 525000.6 || r.TakerBuyVolume != 5.25 || r.TakerBuyQuoteVolume != 262500.7 {
		t.Errorf("volumes = %v/%v/%v/%v", r.Volume, r.QuoteVolume, r.TakerBuyVolume, r.TakerBuyQuoteVolume)
	}
	if r.TradesCount != 123 {
		t.Errorf("TradesCount = %d, want 123", r.TradesCount)
	}
}

func TestParseZip_HeaderRowSkipped(t *testing.T) {
	header := "open_time,open,high,low,close,volume,close_time,quote_volume,count,taker_buy_volume,taker_buy_quote_volume,ignore\n"
	path := writeZip(t, "BTCUSDT-1m-2023-11-14.zip", header+sampleCSV)

	recs, err := ParseZip(path, "BTCUSDT", model.Interval1m)
	if err != nil {
		t.Fatalf("ParseZip: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2 (header skipped)", len(recs))
	}
}

func TestParseZip_NoCSVMember(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT-1m-2023-11-14.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("README.txt"); err != nil {
		t.Fatalf("create member: %v", err)
	}
	zw.Close()
	f.Close()

	recs, err := ParseZip(path, "BTCUSDT", model.Interval1m)
	if err != nil {
		t.Fatalf("ParseZip: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records from empty archive, want 0", len(recs))
	}
}

func TestParseZip_CorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT-1m-2023-11-14.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ParseZip(path, "BTCUSDT", model.Interval1m); err == nil {
		t.Error("expected error for corrupt archive")
	}
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "2024")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{
		filepath.Join(dir, "BTCUSDT-1h-2024-01-15.zip"),
		filepath.Join(sub, "ETHUSDT-1h-2024-01-15.zip"),
		filepath.Join(dir, "BTCUSDT-1d-2024-01-15.zip"),
		filepath.Join(dir, "_SUCCESS__2024-01-15__um__1h"),
	} {
		if err := os.WriteFile(name, nil, 0o644); err != nil {
			t.Fatalf("touch %s: %v", name, err)
		}
	}

	files, err := Walk(dir, "*-1h-2024-01-15.zip")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("matched %d files, want 2: %v", len(files), files)
	}
	// Sorted: top-level BTCUSDT before nested ETHUSDT.
	if filepath.Base(files[0]) != "BTCUSDT-1h-2024-01-15.zip" {
		t.Errorf("first match = %s", files[0])
	}
}
