package store

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	const key = "def456-w2048-h512"
	want := testFingerprint()

	if err := s.Save(key, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("saved fingerprint not found")
	}
	if got.ID != want.ID || got.SampleRate != want.SampleRate || got.HopLength != want.HopLength {
		t.Errorf("metadata mismatch: %+v", got)
	}
	for b := range want.Features {
		for f := range want.Features[b] {
			if got.Features[b][f] != want.Features[b][f] {
				t.Fatalf("feature [%d][%d] differs after round trip", b, f)
			}
		}
	}
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	s := newTestSQLiteStore(t)

	fp, ok, err := s.Load("never-saved")
	if err != nil {
		t.Errorf("missing key must not error, got %v", err)
	}
	if ok || fp != nil {
		t.Error("missing key reported as present")
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	s := newTestSQLiteStore(t)

	const key = "def456-w2048-h512"
	first := testFingerprint()
	if err := s.Save(key, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := testFingerprint()
	second.ID = "replacement-id"
	if err := s.Save(key, second); err != nil {
		t.Fatalf("upsert Save: %v", err)
	}

	got, ok, err := s.Load(key)
	if err != nil || !ok {
		t.Fatalf("Load: %v, %v", ok, err)
	}
	if got.ID != "replacement-id" {
		t.Errorf("ID = %q, want replacement-id", got.ID)
	}
}
