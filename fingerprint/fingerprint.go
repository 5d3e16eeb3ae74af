package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Fingerprint is a chroma-based audio fingerprint: per-frame energy for each
// of the 12 pitch classes at a fixed hop length. Immutable once computed.
type Fingerprint struct {
	ID         string        `json:"id"`
	SourcePath string        `json:"source_path"`
	Features   [][]float64   `json:"features"` // [12][frames] chroma energy
	SampleRate int           `json:"sample_rate"`
	HopLength  int           `json:"hop_length"`
	CreatedAt  time.Time     `json:"created_at"`
	DecodeTime time.Duration `json:"decode_time,omitempty"`
}

// Frames returns the number of time frames in the fingerprint
func (fp *Fingerprint) Frames() int {
	if len(fp.Features) == 0 {
		return 0
	}
	return len(fp.Features[0])
}

// FrameToTime converts a frame index to seconds
func (fp *Fingerprint) FrameToTime(frame int) float64 {
	return float64(frame) * float64(fp.HopLength) / float64(fp.SampleRate)
}

// TimeToFrame converts seconds to the nearest lower frame index
func (fp *Fingerprint) TimeToFrame(seconds float64) int {
	return int(seconds * float64(fp.SampleRate) / float64(fp.HopLength))
}

// Duration returns the fingerprint-derived duration in seconds
func (fp *Fingerprint) Duration() float64 {
	return fp.FrameToTime(fp.Frames())
}

// Store is the persistent fingerprint cache. Writes are idempotent: a
// fingerprint is a pure function of the audio content and the processing
// parameters, so concurrent identical recomputation is safe and the last
// writer wins deterministically.
type Store interface {
	Load(key string) (*Fingerprint, bool, error)
	Save(key string, fp *Fingerprint) error
}

// CacheKey derives the cache key for an audio file: a SHA-256 content hash
// combined with the processing parameters. Two different files sharing a
// basename can never collide, and changing the chroma parameters invalidates
// prior cache entries.
func CacheKey(path string, windowSize, hopLength int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-w%d-h%d", hex.EncodeToString(h.Sum(nil)), windowSize, hopLength), nil
}
