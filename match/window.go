package match

import "errors"

// ErrBudgetExceeded wraps context cancellation or deadline expiry raised
// while matching is in progress. Callers can detect it with errors.Is.
var ErrBudgetExceeded = errors.New("match: computation budget exceeded")

// Status reports the quality tier a match result reached
type Status int

const (
	// StatusNoMatch indicates the song could not be located in the mix
	StatusNoMatch Status = iota
	// StatusRough indicates a whole-song correlation match with no refinement
	StatusRough
	// StatusChunkRefined indicates boundaries refined by chunk isometry
	StatusChunkRefined
	// StatusBeatAligned indicates the start was snapped to a mix downbeat
	StatusBeatAligned
	// StatusRoughFallback indicates beat alignment was attempted but tracking
	// failed on one of the signals, so the rough window was kept as-is
	StatusRoughFallback
)

func (s Status) String() string {
	switch s {
	case StatusNoMatch:
		return "no_match"
	case StatusRough:
		return "rough"
	case StatusChunkRefined:
		return "chunk_refined"
	case StatusBeatAligned:
		return "beat_aligned"
	case StatusRoughFallback:
		return "rough_fallback"
	default:
		return "unknown"
	}
}

// Window is a rough placement of a song inside a mix, in seconds on the
// mix timeline. It carries the raw correlation score as confidence.
type Window struct {
	SongPath   string  `json:"song_path"`
	MixPath    string  `json:"mix_path"`
	StartInMix float64 `json:"start_in_mix"`
	EndInMix   float64 `json:"end_in_mix"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the window length in seconds
func (w Window) Duration() float64 {
	return w.EndInMix - w.StartInMix
}

// Refined is the output of a refinement strategy. SongStart/SongEnd locate
// the matched region on the song timeline; MixStart/MixEnd on the mix
// timeline. All values are seconds.
type Refined struct {
	SongStart  float64      `json:"song_start"`
	SongEnd    float64      `json:"song_end"`
	MixStart   float64      `json:"mix_start"`
	MixEnd     float64      `json:"mix_end"`
	Status     Status       `json:"status"`
	Confidence float64      `json:"confidence"`
	Chunks     []ChunkMatch `json:"chunks,omitempty"`
}

// ChunkScores returns the per-chunk confidence profile of the agreeing
// subset, in song order
func (r Refined) ChunkScores() []float64 {
	if len(r.Chunks) == 0 {
		return nil
	}
	scores := make([]float64, len(r.Chunks))
	for i, c := range r.Chunks {
		scores[i] = c.Score
	}
	return scores
}

// ChunkMatch records where one song chunk landed in the mix, in frames
type ChunkMatch struct {
	Index     int     `json:"index"`
	SongFrame int     `json:"song_frame"`
	MixFrame  int     `json:"mix_frame"`
	Score     float64 `json:"score"`
}
