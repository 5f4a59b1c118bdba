package lock

import (
	"path/filepath"
	"testing"
)

func TestTryAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", ".sync.lock")

	l := New(path)
	ok, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	defer l.Release()

	// A second holder must be rejected immediately, not blocked.
	second := New(path)
	ok, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("second TryAcquire: %v", err)
	}
	if ok {
		t.Error("second acquire should fail while lock is held")
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sync.lock")

	l := New(path)
	if ok, err := l.TryAcquire(); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	other := New(path)
	ok, err := other.TryAcquire()
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !ok {
		t.Error("acquire after release should succeed")
	}
	other.Release()
}

func TestReleaseWithoutAcquire(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), ".sync.lock"))
	if err := l.Release(); err != nil {
		t.Errorf("Release without acquire: %v", err)
	}
}
