// Package source decodes staged Binance kline archives into typed records.
//
// Input files are named SYMBOL-INTERVAL-YYYY-MM-DD.zip (daily) or
// SYMBOL-INTERVAL-YYYY-MM.zip (monthly) and contain one CSV member with the
// 12-column Binance public-data layout.
package source

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zer0data/ingestor/internal/model"
)

// FileDate is the day or month a staged file covers, as extracted from its
// filename.
type FileDate struct {
	// Date is YYYY-MM-DD; for monthly files it is the first of the month.
	Date string
	// Monthly is true for SYMBOL-INTERVAL-YYYY-MM files.
	Monthly bool
}

// Year and Month return the calendar components of a monthly FileDate.
func (d FileDate) Year() int  { y, _ := strconv.Atoi(d.Date[:4]); return y }
func (d FileDate) Month() int { m, _ := strconv.Atoi(d.Date[5:7]); return m }

// ExtractSymbol returns the symbol prefix of a staged filename.
func ExtractSymbol(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	symbol, _, _ := strings.Cut(name, "-")
	return symbol
}

// ExtractInterval returns the interval encoded in a staged filename.
func ExtractInterval(filename string) (model.Interval, error) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	parts := strings.Split(name, "-")
	if len(parts) >= 2 {
		if iv, err := model.ParseInterval(parts[1]); err == nil {
			return iv, nil
		}
	}
	return "", fmt.Errorf("cannot extract valid interval from filename %q", filename)
}

// ExtractDate returns the date encoded in a staged filename, or ok=false if
// the filename carries none.
func ExtractDate(filename string) (FileDate, bool) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	parts := strings.Split(name, "-")

	// Daily format: SYMBOL-INTERVAL-YYYY-MM-DD
	if len(parts) >= 5 {
		date := fmt.Sprintf("%s-%s-%s", parts[2], parts[3], parts[4])
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return FileDate{Date: date}, true
		}
	}

	// Monthly format: SYMBOL-INTERVAL-YYYY-MM
	if len(parts) >= 4 {
		date := fmt.Sprintf("%s-%s-01", parts[2], parts[3])
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return FileDate{Date: date, Monthly: true}, true
		}
	}

	return FileDate{}, false
}

// ParseZip reads the first CSV member of a staged archive and returns its
// typed rows. An optional header row is skipped; short rows are ignored.
func ParseZip(zipPath, symbol string, interval model.Interval) ([]model.Kline, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", zipPath, err)
	}
	defer zr.Close()

	var member *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".csv") {
			member = f
			break
		}
	}
	if member == nil {
		return nil, nil
	}

	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open csv member of %s: %w", zipPath, err)
	}
	defer rc.Close()

	return parseCSV(rc, symbol, interval)
}

// parseCSV decodes the 12-column Binance kline layout:
// open_time, open, high, low, close, volume, close_time, quote_volume,
// trades_count, taker_buy_volume, taker_buy_quote_volume, ignore.
func parseCSV(r io.Reader, symbol string, interval model.Interval) ([]model.Kline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []model.Kline
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(row) < 12 {
			continue
		}

		// Binance CSVs sometimes ship a header row.
		if first {
			first = false
			if _, err := strconv.ParseInt(row[0], 10, 64); err != nil {
				continue
			}
		}

		k, err := parseRow(row, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("parse csv row: %w", err)
		}
		records = append(records, k)
	}
	return records, nil
}

func parseRow(row []string, symbol string, interval model.Interval) (model.Kline, error) {
	var k model.Kline
	var err error

	if k.OpenTime, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return k, fmt.Errorf("open_time %q: %w", row[0], err)
	}
	if k.CloseTime, err = strconv.ParseInt(row[6], 10, 64); err != nil {
		return k, fmt.Errorf("close_time %q: %w", row[6], err)
	}
	if k.TradesCount, err = strconv.ParseInt(row[8], 10, 64); err != nil {
		return k, fmt.Errorf("trades_count %q: %w", row[8], err)
	}

	floats := []struct {
		dst  *float64
		idx  int
		name string
	}{
		{&k.Open, 1, "open"},
		{&k.High, 2, "high"},
		{&k.Low, 3, "low"},
		{&k.Close, 4, "close"},
		{&k.Volume, 5, "volume"},
		{&k.QuoteVolume, 7, "quote_volume"},
		{&k.TakerBuyVolume, 9, "taker_buy_volume"},
		{&k.TakerBuyQuoteVolume, 10, "taker_buy_quote_volume"},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(row[f.idx], 64); err != nil {
			return k, fmt.Errorf("%s %q: %w", f.name, row[f.idx], err)
		}
	}

	k.Symbol = symbol
	k.Interval = interval
	return k, nil
}

// Walk returns all files under dir whose base name matches pattern, sorted
// for deterministic processing order.
func Walk(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := path.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
