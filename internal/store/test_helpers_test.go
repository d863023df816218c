package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/ffspoints/internal/point"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPoint creates a successful test point with minimal required fields.
func createTestPoint(id, origin string, iface int) point.Point {
	return point.Point{
		ID:        id,
		OriginID:  origin,
		Interface: iface,
		Payload:   "cfg-" + id,
	}
}

// createFailedPoint creates a failed test point (empty payload).
func createFailedPoint(id, origin string, iface int) point.Point {
	return point.Point{
		ID:        id,
		OriginID:  origin,
		Interface: iface,
	}
}

// mustAdd inserts p and fails the test on error.
func mustAdd(t *testing.T, s *Store, p point.Point) point.Point {
	t.Helper()
	stored, err := s.AddPoint(context.Background(), p)
	if err != nil {
		t.Fatalf("AddPoint(%s) failed: %v", p.ID, err)
	}
	return stored
}
