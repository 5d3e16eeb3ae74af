package match

import "testing"

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	if c.RoughConfidenceThreshold != 10000 {
		t.Errorf("RoughConfidenceThreshold = %g, want 10000", c.RoughConfidenceThreshold)
	}
	if c.ChunkConfidenceThreshold != 1000 {
		t.Errorf("ChunkConfidenceThreshold = %g, want 1000", c.ChunkConfidenceThreshold)
	}
	if c.ChunkSeconds != 5 || c.NumChunks != 30 || c.BufferSeconds != 30 {
		t.Errorf("chunk parameters = %g/%d/%g, want 5/30/30",
			c.ChunkSeconds, c.NumChunks, c.BufferSeconds)
	}
	if c.IsometryToleranceFrames != 100 {
		t.Errorf("IsometryToleranceFrames = %d, want 100", c.IsometryToleranceFrames)
	}
	if c.ExpandSimilarity != 0.6 || c.RefineSimilarity != 0.8 {
		t.Errorf("similarity thresholds = %g/%g, want 0.6/0.8",
			c.ExpandSimilarity, c.RefineSimilarity)
	}
	if c.MinChunkFactor != 4 {
		t.Errorf("MinChunkFactor = %d, want 4", c.MinChunkFactor)
	}
	if c.BeatsPerMeasure != 4 {
		t.Errorf("BeatsPerMeasure = %d, want 4", c.BeatsPerMeasure)
	}
	if c.MinTempoBPM != 60 || c.MaxTempoBPM != 180 {
		t.Errorf("tempo range = %g-%g, want 60-180", c.MinTempoBPM, c.MaxTempoBPM)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusNoMatch, "no_match"},
		{StatusRough, "rough"},
		{StatusChunkRefined, "chunk_refined"},
		{StatusBeatAligned, "beat_aligned"},
		{StatusRoughFallback, "rough_fallback"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestChunkScores(t *testing.T) {
	r := Refined{Chunks: []ChunkMatch{{Score: 1.5}, {Score: 2.5}}}
	scores := r.ChunkScores()
	if len(scores) != 2 || scores[0] != 1.5 || scores[1] != 2.5 {
		t.Errorf("ChunkScores = %v", scores)
	}
	if (Refined{}).ChunkScores() != nil {
		t.Error("empty refined should have nil scores")
	}
}
