package fingerprint

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFrameTimeConversion(t *testing.T) {
	fp := &Fingerprint{
		SampleRate: 22050,
		HopLength:  512,
	}

	tests := []struct {
		frame int
		want  float64
	}{
		{0, 0},
		{1, 512.0 / 22050.0},
		{100, 51200.0 / 22050.0},
	}
	for _, tt := range tests {
		if got := fp.FrameToTime(tt.frame); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("FrameToTime(%d) = %g, want %g", tt.frame, got, tt.want)
		}
		if got := fp.TimeToFrame(tt.want); got != tt.frame {
			t.Errorf("TimeToFrame(%g) = %d, want %d", tt.want, got, tt.frame)
		}
	}
}

func TestFramesAndDuration(t *testing.T) {
	fp := &Fingerprint{
		Features:   make([][]float64, 12),
		SampleRate: 22050,
		HopLength:  512,
	}
	for b := range fp.Features {
		fp.Features[b] = make([]float64, 430)
	}

	if fp.Frames() != 430 {
		t.Errorf("Frames = %d, want 430", fp.Frames())
	}
	want := 430.0 * 512.0 / 22050.0
	if math.Abs(fp.Duration()-want) > 1e-12 {
		t.Errorf("Duration = %g, want %g", fp.Duration(), want)
	}

	empty := &Fingerprint{SampleRate: 22050, HopLength: 512}
	if empty.Frames() != 0 || empty.Duration() != 0 {
		t.Error("empty fingerprint should report zero frames and duration")
	}
}

func TestCacheKeyContentAddressed(t *testing.T) {
	dir := t.TempDir()
	content := []byte("identical audio bytes")

	pathA := filepath.Join(dir, "a.wav")
	pathB := filepath.Join(dir, "sub")
	if err := os.Mkdir(pathB, 0o755); err != nil {
		t.Fatal(err)
	}
	pathB = filepath.Join(pathB, "a.wav") // same basename, different file
	if err := os.WriteFile(pathA, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pathB, content, 0o644); err != nil {
		t.Fatal(err)
	}

	keyA, err := CacheKey(pathA, 2048, 512)
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}
	keyB, err := CacheKey(pathB, 2048, 512)
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}

	// identical content hashes to the same key regardless of path, so two
	// files with the same basename can never collide in the cache
	if keyA != keyB {
		t.Errorf("same content produced different keys: %s vs %s", keyA, keyB)
	}

	if err := os.WriteFile(pathB, []byte("different audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	keyB2, err := CacheKey(pathB, 2048, 512)
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}
	if keyB2 == keyA {
		t.Error("different content produced the same key")
	}

	// processing parameters are part of the key
	keyHop, err := CacheKey(pathA, 2048, 256)
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}
	if keyHop == keyA {
		t.Error("different hop length produced the same key")
	}
	if !strings.Contains(keyHop, "h256") {
		t.Errorf("key %s should encode the hop length", keyHop)
	}
}

func TestCacheKeyMissingFile(t *testing.T) {
	if _, err := CacheKey(filepath.Join(t.TempDir(), "missing.wav"), 2048, 512); err == nil {
		t.Error("expected error for missing file")
	}
}
