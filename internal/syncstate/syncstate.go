// Package syncstate tracks which externally-staged download batches have
// been durably ingested.
//
// The remote downloader drops a _SUCCESS__{date}__{market}__{interval} marker
// file in the data directory after each completed batch. A marker counts as
// ingested once a same-named file exists in the state directory; the file's
// existence is the only signal, so marking is a zero-byte touch and re-running
// the pipeline is safe.
package syncstate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Matches: _SUCCESS__2026-02-14__um__1h
var markerRe = regexp.MustCompile(`^_SUCCESS__(\d{4}-\d{2}-\d{2})__([a-z]+)__(\w+)$`)

// Marker is a parsed _SUCCESS__ marker. Immutable once parsed.
type Marker struct {
	Name     string
	Date     string
	Market   string
	Interval string
}

// Pattern returns the file-selector pattern matching the input files this
// marker covers.
func (m Marker) Pattern() string {
	return fmt.Sprintf("*-%s-%s.zip", m.Interval, m.Date)
}

// ParseMarker parses a marker filename, or returns ok=false when the name is
// not a marker.
func ParseMarker(name string) (Marker, bool) {
	groups := markerRe.FindStringSubmatch(name)
	if groups == nil {
		return Marker{}, false
	}
	return Marker{
		Name:     name,
		Date:     groups[1],
		Market:   groups[2],
		Interval: groups[3],
	}, true
}

// State manages the marker state machine over two directories.
type State struct {
	DataDir  string
	StateDir string
}

// New creates a State over the given data and state directories.
func New(dataDir, stateDir string) *State {
	return &State{DataDir: dataDir, StateDir: stateDir}
}

// EnsureDirs creates the data and state directories if they don't exist.
func (s *State) EnsureDirs() error {
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(s.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

// Pending returns all discovered markers that have not been ingested yet,
// sorted ascending by (date, market, interval) so older data is processed
// first.
func (s *State) Pending() ([]Marker, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}

	var markers []Marker
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		marker, ok := ParseMarker(e.Name())
		if !ok {
			continue
		}
		ingested, err := s.IsIngested(marker.Name)
		if err != nil {
			return nil, err
		}
		if !ingested {
			markers = append(markers, marker)
		}
	}

	sort.Slice(markers, func(i, j int) bool {
		a, b := markers[i], markers[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		return a.Interval < b.Interval
	})
	return markers, nil
}

// IsIngested reports whether a marker has already been ingested.
func (s *State) IsIngested(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.StateDir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat state marker %s: %w", name, err)
}

// MarkIngested records that a marker has been successfully ingested.
// Idempotent: touching an existing marker is a no-op.
func (s *State) MarkIngested(name string) error {
	if err := os.MkdirAll(s.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.StateDir, name), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("touch state marker %s: %w", name, err)
	}
	return f.Close()
}
