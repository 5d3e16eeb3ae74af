package match

import (
	"context"

	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
)

// Strategy refines a rough match window into precise boundaries. ChunkRefiner
// and BeatAligner are the built-in implementations; RoughStrategy passes the
// window through for callers that only need coarse placement.
type Strategy interface {
	// Name identifies the strategy in logs and results
	Name() string

	// Refine tightens the rough window. Implementations return a Refined
	// with StatusNoMatch or a fallback status rather than an error when the
	// input simply does not support refinement; errors are reserved for
	// invalid input and budget expiry.
	Refine(ctx context.Context, song, mix *fingerprint.Fingerprint, rough Window) (Refined, error)
}

// RoughStrategy accepts the rough window without refinement
type RoughStrategy struct{}

// Name identifies the strategy
func (RoughStrategy) Name() string {
	return "rough"
}

// Refine returns the rough window as-is with StatusRough
func (RoughStrategy) Refine(_ context.Context, _, _ *fingerprint.Fingerprint, rough Window) (Refined, error) {
	return Refined{
		SongStart:  0,
		SongEnd:    rough.Duration(),
		MixStart:   rough.StartInMix,
		MixEnd:     rough.EndInMix,
		Status:     StatusRough,
		Confidence: rough.Confidence,
	}, nil
}
