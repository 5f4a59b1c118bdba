package syncstate

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestParseMarker(t *testing.T) {
	m, ok := ParseMarker("_SUCCESS__2026-02-14__um__1h")
	if !ok {
		t.Fatal("expected marker to parse")
	}
	if m.Date != "2026-02-14" || m.Market != "um" || m.Interval != "1h" {
		t.Errorf("parsed = %+v", m)
	}
	if m.Pattern() != "*-1h-2026-02-14.zip" {
		t.Errorf("Pattern() = %q", m.Pattern())
	}

	for _, bad := range []string{
		"_SUCCESS__2026-02-14__um",
		"_SUCCESS_2026-02-14__um__1h",
		"SUCCESS__2026-02-14__um__1h",
		"_SUCCESS__26-02-14__um__1h",
		"BTCUSDT-1h-2024-01-01.zip",
	} {
		if _, ok := ParseMarker(bad); ok {
			t.Errorf("ParseMarker(%q) should not parse", bad)
		}
	}
}

func TestPending_SortedOldestFirst(t *testing.T) {
	s := New(t.TempDir(), t.TempDir())

	touch(t, filepath.Join(s.DataDir, "_SUCCESS__2026-02-15__um__1h"))
	touch(t, filepath.Join(s.DataDir, "_SUCCESS__2026-02-14__um__1m"))
	touch(t, filepath.Join(s.DataDir, "_SUCCESS__2026-02-14__cm__1h"))
	touch(t, filepath.Join(s.DataDir, "_SUCCESS__2026-02-14__um__1h"))
	touch(t, filepath.Join(s.DataDir, "BTCUSDT-1h-2026-02-14.zip")) // not a marker

	pending, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	want := []string{
		"_SUCCESS__2026-02-14__cm__1h",
		"_SUCCESS__2026-02-14__um__1h",
		"_SUCCESS__2026-02-14__um__1m",
		"_SUCCESS__2026-02-15__um__1h",
	}
	if len(pending) != len(want) {
		t.Fatalf("got %d pending, want %d", len(pending), len(want))
	}
	for i, name := range want {
		if pending[i].Name != name {
			t.Errorf("pending[%d] = %s, want %s", i, pending[i].Name, name)
		}
	}
}

func TestMarkIngested_RemovesFromPending(t *testing.T) {
	s := New(t.TempDir(), t.TempDir())
	touch(t, filepath.Join(s.DataDir, "_SUCCESS__2026-02-14__um__1h"))

	ingested, err := s.IsIngested("_SUCCESS__2026-02-14__um__1h")
	if err != nil {
		t.Fatalf("IsIngested: %v", err)
	}
	if ingested {
		t.Fatal("marker reported ingested before marking")
	}

	if err := s.MarkIngested("_SUCCESS__2026-02-14__um__1h"); err != nil {
		t.Fatalf("MarkIngested: %v", err)
	}

	pending, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after marking, want 0", len(pending))
	}

	// Marking twice is safe.
	if err := s.MarkIngested("_SUCCESS__2026-02-14__um__1h"); err != nil {
		t.Errorf("second MarkIngested: %v", err)
	}
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	s := New(filepath.Join(base, "data"), filepath.Join(base, "state"))
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{s.DataDir, s.StateDir} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("dir %s not created", dir)
		}
	}
	// Idempotent.
	if err := s.EnsureDirs(); err != nil {
		t.Errorf("second EnsureDirs: %v", err)
	}
}
