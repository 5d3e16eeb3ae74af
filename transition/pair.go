package transition

import (
	"sort"

	"github.com/RyanBlaney/sonido-mixgraph/logging"
)

// Candidate is one located song occurrence inside a mix: a song, the mix it
// was found in, and the crossfade region boundaries on the mix timeline.
// CrossOut is when the song starts fading out of the mix; CrossIn is when it
// finished fading in. All times are seconds.
type Candidate struct {
	SongPath string  `json:"song_path"`
	MixPath  string  `json:"mix_path"`
	Offset   float64 `json:"offset"`    // song start relative to mix start
	CrossIn  float64 `json:"cross_in"`  // end of the fade-in, mix timeline
	CrossOut float64 `json:"cross_out"` // start of the fade-out, mix timeline
}

// Pair is an observed transition: song X fading out of a mix while song Y
// fades in shortly after. The gap between CrossOutX and CrossInY is the
// crossfade the DJ actually performed.
type Pair struct {
	SongX     string  `json:"song_x"`
	SongY     string  `json:"song_y"`
	MixPath   string  `json:"mix_path"`
	OffsetX   float64 `json:"offset_x"`
	OffsetY   float64 `json:"offset_y"`
	CrossOutX float64 `json:"cross_out_x"`
	CrossInY  float64 `json:"cross_in_y"`
}

// Gap returns the crossfade length in seconds
func (p Pair) Gap() float64 {
	return p.CrossInY - p.CrossOutX
}

// Config bounds the acceptable crossfade gap. Both bounds are strict: a gap
// exactly at either bound does not pair.
type Config struct {
	MinGapSeconds float64 `json:"min_gap_seconds"`
	MaxGapSeconds float64 `json:"max_gap_seconds"`
}

// DefaultConfig returns the default pairing configuration
func DefaultConfig() *Config {
	return &Config{
		MinGapSeconds: 5,
		MaxGapSeconds: 45,
	}
}

// Pairer derives transition pairs from song occurrence candidates
type Pairer struct {
	config *Config
	logger logging.Logger
}

// NewPairer creates a pairer. A nil config uses DefaultConfig.
func NewPairer(config *Config) *Pairer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pairer{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "pairer"}),
	}
}

// Pairs finds all transitions among the candidates. Candidates are grouped
// by mix; within a mix, every ordered pair of distinct songs whose gap falls
// strictly inside (MinGapSeconds, MaxGapSeconds) becomes a Pair. Results are
// ordered by mix path, then by CrossOutX.
func (p *Pairer) Pairs(candidates []Candidate) []Pair {
	byMix := make(map[string][]Candidate)
	for _, c := range candidates {
		byMix[c.MixPath] = append(byMix[c.MixPath], c)
	}

	mixes := make([]string, 0, len(byMix))
	for mix := range byMix {
		mixes = append(mixes, mix)
	}
	sort.Strings(mixes)

	var pairs []Pair
	for _, mix := range mixes {
		group := byMix[mix]
		sort.Slice(group, func(i, j int) bool {
			return group[i].CrossOut < group[j].CrossOut
		})

		for _, x := range group {
			for _, y := range group {
				if x.SongPath == y.SongPath {
					continue
				}
				gap := y.CrossIn - x.CrossOut
				if gap <= p.config.MinGapSeconds || gap >= p.config.MaxGapSeconds {
					continue
				}
				pairs = append(pairs, Pair{
					SongX:     x.SongPath,
					SongY:     y.SongPath,
					MixPath:   mix,
					OffsetX:   x.Offset,
					OffsetY:   y.Offset,
					CrossOutX: x.CrossOut,
					CrossInY:  y.CrossIn,
				})
			}
		}
	}

	p.logger.Debug("pairing complete", logging.Fields{
		"candidates": len(candidates),
		"mixes":      len(byMix),
		"pairs":      len(pairs),
	})
	return pairs
}
