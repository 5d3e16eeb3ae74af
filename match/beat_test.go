package match

import (
	"context"
	"math"
	"math/rand"
	"testing"
)

func TestDownbeats(t *testing.T) {
	beats := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4}

	tests := []struct {
		name            string
		beatsPerMeasure int
		want            []float64
	}{
		{"every fourth", 4, []float64{0, 2, 4}},
		{"every beat", 1, beats},
		{"invalid measure clamps to 1", 0, beats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := downbeats(beats, tt.beatsPerMeasure)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("downbeat %d = %g, want %g", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNearestTime(t *testing.T) {
	times := []float64{0, 2, 4, 6}

	tests := []struct {
		t    float64
		want float64
	}{
		{0.9, 0},
		{1.1, 2},
		{3.9, 4},
		{100, 6},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := nearestTime(times, tt.t); got != tt.want {
			t.Errorf("nearestTime(%g) = %g, want %g", tt.t, got, tt.want)
		}
	}
}

func TestEstimateTempoOnClickEnvelope(t *testing.T) {
	aligner := NewBeatAligner(nil, nil)

	// impulse train with a 20-frame period at ~43 frames/sec is ~129 BPM,
	// inside the configured range
	frameRate := 22050.0 / 512.0
	envelope := make([]float64, 800)
	for i := 0; i < len(envelope); i += 20 {
		envelope[i] = 1
	}

	periodFrames, tempo := aligner.estimateTempo(envelope, frameRate)
	if periodFrames != 20 {
		t.Errorf("periodFrames = %d, want 20", periodFrames)
	}
	wantTempo := 60 * frameRate / 20
	if math.Abs(tempo-wantTempo) > 1e-9 {
		t.Errorf("tempo = %g, want %g", tempo, wantTempo)
	}
}

func TestEstimateTempoFlatEnvelope(t *testing.T) {
	aligner := NewBeatAligner(nil, nil)
	envelope := make([]float64, 400) // all zeros, no periodicity

	periodFrames, _ := aligner.estimateTempo(envelope, 43.07)
	if periodFrames != 0 {
		t.Errorf("periodFrames = %d, want 0 for flat envelope", periodFrames)
	}
}

func TestBestPhase(t *testing.T) {
	envelope := make([]float64, 100)
	for i := 7; i < len(envelope); i += 10 {
		envelope[i] = 1
	}
	if got := bestPhase(envelope, 10); got != 7 {
		t.Errorf("bestPhase = %d, want 7", got)
	}
}

func TestBeatAlignerFallsBackWhenDecodeFails(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	song := makeFingerprint("/nonexistent/song.wav", randomFeatures(rng, 12, 100))
	mix := makeFingerprint("/nonexistent/mix.wav", randomFeatures(rng, 12, 400))

	aligner := NewBeatAligner(nil, nil)
	rough := Window{
		SongPath:   song.SourcePath,
		MixPath:    mix.SourcePath,
		StartInMix: 42.5,
		EndInMix:   102.5,
		Confidence: 12000,
	}

	refined, err := aligner.Refine(context.Background(), song, mix, rough)
	if err != nil {
		t.Fatalf("Refine must not error on decode failure, got %v", err)
	}
	if refined.Status != StatusRoughFallback {
		t.Errorf("status = %v, want %v", refined.Status, StatusRoughFallback)
	}
	if refined.MixStart != rough.StartInMix || refined.MixEnd != rough.EndInMix {
		t.Errorf("fallback window = [%g, %g], want [%g, %g]",
			refined.MixStart, refined.MixEnd, rough.StartInMix, rough.EndInMix)
	}
	if refined.Confidence != rough.Confidence {
		t.Errorf("fallback confidence = %g, want %g", refined.Confidence, rough.Confidence)
	}
}
