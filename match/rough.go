package match

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
	"github.com/RyanBlaney/sonido-mixgraph/logging"
)

// RoughMatcher locates a whole song inside a mix by cross-correlating their
// chroma fingerprints. It answers "does this song appear, and roughly where"
// to within a few seconds; refinement strategies tighten the boundaries.
type RoughMatcher struct {
	config *Config
	logger logging.Logger
}

// NewRoughMatcher creates a rough matcher with the given configuration.
// A nil config uses DefaultConfig.
func NewRoughMatcher(config *Config) *RoughMatcher {
	if config == nil {
		config = DefaultConfig()
	}
	return &RoughMatcher{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "rough_matcher"}),
	}
}

// Match searches for the song fingerprint inside the mix fingerprint.
// It returns the placement window and true when the peak correlation clears
// the confidence threshold, or false when the song is absent or the mix is
// shorter than the song. The error is non-nil only on invalid input or when
// the context expires mid-computation.
func (m *RoughMatcher) Match(ctx context.Context, song, mix *fingerprint.Fingerprint) (Window, bool, error) {
	if song == nil || mix == nil {
		return Window{}, false, fmt.Errorf("nil fingerprint")
	}
	if song.HopLength != mix.HopLength || song.SampleRate != mix.SampleRate {
		return Window{}, false, fmt.Errorf("fingerprint parameters differ: song %d/%d, mix %d/%d",
			song.SampleRate, song.HopLength, mix.SampleRate, mix.HopLength)
	}

	if song.Frames() > mix.Frames() {
		m.logger.Debug("song longer than mix, skipping", logging.Fields{
			"song": song.SourcePath,
			"mix":  mix.SourcePath,
		})
		return Window{}, false, nil
	}

	songNorm := normalizeFeatures(song.Features)
	mixNorm := normalizeFeatures(mix.Features)

	correlation, err := crossCorrelate(ctx, songNorm, mixNorm)
	if err != nil {
		return Window{}, false, err
	}
	if len(correlation) == 0 {
		return Window{}, false, nil
	}

	bestFrame, score := argmax(correlation)
	if score < m.config.RoughConfidenceThreshold {
		m.logger.Debug("below confidence threshold", logging.Fields{
			"song":      song.SourcePath,
			"mix":       mix.SourcePath,
			"score":     score,
			"threshold": m.config.RoughConfidenceThreshold,
		})
		return Window{}, false, nil
	}

	start := mix.FrameToTime(bestFrame)
	window := Window{
		SongPath:   song.SourcePath,
		MixPath:    mix.SourcePath,
		StartInMix: start,
		EndInMix:   start + song.Duration(),
		Confidence: score,
	}

	m.logger.Info("song located in mix", logging.Fields{
		"song":  song.SourcePath,
		"mix":   mix.SourcePath,
		"start": window.StartInMix,
		"score": score,
	})
	return window, true, nil
}
