package match

// Config holds all matching and refinement parameters. The thresholds are
// empirically tuned on DJ-mix material and should be treated as provisional:
// validate against a labeled corpus before trusting them on new material.
type Config struct {
	// Matching thresholds
	RoughConfidenceThreshold float64 `json:"rough_confidence_threshold"` // unnormalized correlation energy
	ChunkConfidenceThreshold float64 `json:"chunk_confidence_threshold"` // per-chunk correlation energy

	// Chunk refinement
	ChunkSeconds            float64 `json:"chunk_seconds"`
	NumChunks               int     `json:"num_chunks"`
	BufferSeconds           float64 `json:"buffer_seconds"`
	MinChunkFactor          int     `json:"min_chunk_factor"`           // smallest chunk = initial / 2^factor
	IsometryToleranceFrames int     `json:"isometry_tolerance_frames"`  // max offset drift within an isometric subset
	ExpandSimilarity        float64 `json:"expand_similarity"`          // cosine threshold for boundary expansion
	RefineSimilarity        float64 `json:"refine_similarity"`          // tighter cosine threshold for outer-chunk refinement

	// Beat alignment
	BeatsPerMeasure int     `json:"beats_per_measure"`
	MinTempoBPM     float64 `json:"min_tempo_bpm"`
	MaxTempoBPM     float64 `json:"max_tempo_bpm"`
	BeatWindowSize  int     `json:"beat_window_size"` // STFT window for the onset envelope
	BeatHopSize     int     `json:"beat_hop_size"`
}

// DefaultConfig returns the default matching configuration
func DefaultConfig() *Config {
	return &Config{
		RoughConfidenceThreshold: 10000,
		ChunkConfidenceThreshold: 1000,
		ChunkSeconds:             5,
		NumChunks:                30,
		BufferSeconds:            30,
		MinChunkFactor:           4,
		IsometryToleranceFrames:  100,
		ExpandSimilarity:         0.6,
		RefineSimilarity:         0.8,
		BeatsPerMeasure:          4,
		MinTempoBPM:              60,
		MaxTempoBPM:              180,
		BeatWindowSize:           1024,
		BeatHopSize:              512,
	}
}
