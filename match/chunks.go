package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
	"github.com/RyanBlaney/sonido-mixgraph/logging"
)

// ChunkRefiner tightens a rough match window by correlating short song
// chunks against a buffered region of the mix and keeping the largest
// subset whose song-to-mix offsets agree. DJ mixes trim intros and outros,
// so the agreeing chunks locate the portion of the song actually played.
type ChunkRefiner struct {
	config *Config
	logger logging.Logger
}

// NewChunkRefiner creates a chunk refiner. A nil config uses DefaultConfig.
func NewChunkRefiner(config *Config) *ChunkRefiner {
	if config == nil {
		config = DefaultConfig()
	}
	return &ChunkRefiner{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "chunk_refiner"}),
	}
}

// Name identifies the strategy
func (r *ChunkRefiner) Name() string {
	return "chunk_isometry"
}

// Refine locates the played region of the song inside the mix. The rough
// window seeds a search region of BufferSeconds on either side; evenly
// spaced chunks are matched independently, the largest isometric subset is
// kept, and its outer boundaries are expanded then refined at progressively
// finer resolutions. Returns StatusNoMatch when fewer than two chunks agree.
func (r *ChunkRefiner) Refine(ctx context.Context, song, mix *fingerprint.Fingerprint, rough Window) (Refined, error) {
	chunkFrames := song.TimeToFrame(r.config.ChunkSeconds)
	songFrames := song.Frames()
	mixFrames := mix.Frames()

	if chunkFrames < 1 || songFrames <= chunkFrames {
		return Refined{Status: StatusNoMatch}, nil
	}

	bufferFrames := mix.TimeToFrame(r.config.BufferSeconds)
	roughFrame := mix.TimeToFrame(rough.StartInMix)
	winStart := roughFrame - bufferFrames
	if winStart < 0 {
		winStart = 0
	}
	winEnd := roughFrame + bufferFrames + songFrames
	if winEnd > mixFrames {
		winEnd = mixFrames
	}
	if winEnd-winStart <= chunkFrames {
		return Refined{Status: StatusNoMatch}, nil
	}

	windowNorm := normalizeFeatures(subMatrix(mix.Features, winStart, winEnd))

	matches, err := r.matchChunks(ctx, song.Features, windowNorm, chunkFrames, winStart)
	if err != nil {
		return Refined{}, err
	}

	subset := largestIsometry(matches, r.config.IsometryToleranceFrames)
	if len(subset) < 2 {
		r.logger.Debug("no isometric chunk subset", logging.Fields{
			"song":    song.SourcePath,
			"mix":     mix.SourcePath,
			"matches": len(matches),
		})
		return Refined{Status: StatusNoMatch}, nil
	}

	sort.Slice(subset, func(i, j int) bool {
		if subset[i].SongFrame != subset[j].SongFrame {
			return subset[i].SongFrame < subset[j].SongFrame
		}
		return subset[i].MixFrame < subset[j].MixFrame
	})

	first, last := subset[0], subset[len(subset)-1]
	songStart, mixStart := first.SongFrame, first.MixFrame
	songEnd, mixEnd := last.SongFrame+chunkFrames, last.MixFrame+chunkFrames

	songStart, mixStart = r.expandBackward(song, mix, songStart, mixStart, chunkFrames)
	songEnd, mixEnd = r.expandForward(song, mix, songEnd, mixEnd, chunkFrames, songFrames, mixFrames)

	songStart, mixStart, songEnd, mixEnd = r.refineOuter(
		song.Features, mix.Features, songStart, mixStart, songEnd, mixEnd, chunkFrames)

	if songEnd <= songStart || mixEnd <= mixStart {
		return Refined{Status: StatusNoMatch}, nil
	}

	var confidence float64
	for _, m := range subset {
		confidence += m.Score
	}

	r.logger.Info("chunk refinement complete", logging.Fields{
		"song":      song.SourcePath,
		"mix":       mix.SourcePath,
		"agreeing":  len(subset),
		"mix_start": mix.FrameToTime(mixStart),
		"mix_end":   mix.FrameToTime(mixEnd),
	})

	return Refined{
		SongStart:  song.FrameToTime(songStart),
		SongEnd:    song.FrameToTime(songEnd),
		MixStart:   mix.FrameToTime(mixStart),
		MixEnd:     mix.FrameToTime(mixEnd),
		Status:     StatusChunkRefined,
		Confidence: confidence,
		Chunks:     subset,
	}, nil
}

// matchChunks correlates NumChunks evenly spaced song chunks against the
// normalized mix window. Each chunk is normalized by its own moments, so a
// quiet verse and a loud chorus correlate on shape rather than level. Mix
// frames in the results are absolute, not window-relative. Chunks below the
// confidence threshold are dropped.
func (r *ChunkRefiner) matchChunks(ctx context.Context, songFeatures, windowNorm [][]float64, chunkFrames, winStart int) ([]ChunkMatch, error) {
	songFrames := len(songFeatures[0])
	span := songFrames - chunkFrames
	n := r.config.NumChunks
	if n < 2 {
		n = 2
	}

	matches := make([]ChunkMatch, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
		}

		start := int(float64(i) * float64(span) / float64(n-1))
		chunk := normalizeFeatures(subMatrix(songFeatures, start, start+chunkFrames))

		correlation, err := crossCorrelate(ctx, chunk, windowNorm)
		if err != nil {
			return nil, err
		}
		if len(correlation) == 0 {
			continue
		}

		lag, score := argmax(correlation)
		if score < r.config.ChunkConfidenceThreshold {
			continue
		}
		matches = append(matches, ChunkMatch{
			Index:     i,
			SongFrame: start,
			MixFrame:  lag + winStart,
			Score:     score,
		})
	}
	return matches, nil
}

// largestIsometry returns the largest subset of matches that share a common
// song-to-mix offset up to the tolerance. Each match is tried as the anchor;
// the first anchor producing the maximal subset wins, so ties resolve to the
// earliest anchor in input order.
func largestIsometry(matches []ChunkMatch, tolerance int) []ChunkMatch {
	var best []ChunkMatch
	for i := range matches {
		subset := []ChunkMatch{matches[i]}
		for j := range matches {
			if j == i {
				continue
			}
			drift := (matches[j].MixFrame - matches[i].MixFrame) - (matches[j].SongFrame - matches[i].SongFrame)
			if drift < 0 {
				drift = -drift
			}
			if drift <= tolerance {
				subset = append(subset, matches[j])
			}
		}
		if len(subset) > len(best) {
			best = subset
		}
	}
	return best
}

// expandBackward walks the start boundary backward one chunk at a time while
// the song and mix chunks preceding it remain similar
func (r *ChunkRefiner) expandBackward(song, mix *fingerprint.Fingerprint, songStart, mixStart, chunkFrames int) (int, int) {
	for songStart-chunkFrames >= 0 && mixStart-chunkFrames >= 0 {
		sim := cosineSimilarity(
			song.Features, songStart-chunkFrames, songStart,
			mix.Features, mixStart-chunkFrames, mixStart,
		)
		if sim < r.config.ExpandSimilarity {
			break
		}
		songStart -= chunkFrames
		mixStart -= chunkFrames
	}
	return songStart, mixStart
}

// expandForward walks the end boundary forward one chunk at a time while the
// song and mix chunks following it remain similar
func (r *ChunkRefiner) expandForward(song, mix *fingerprint.Fingerprint, songEnd, mixEnd, chunkFrames, songFrames, mixFrames int) (int, int) {
	for songEnd+chunkFrames <= songFrames && mixEnd+chunkFrames <= mixFrames {
		sim := cosineSimilarity(
			song.Features, songEnd, songEnd+chunkFrames,
			mix.Features, mixEnd, mixEnd+chunkFrames,
		)
		if sim < r.config.ExpandSimilarity {
			break
		}
		songEnd += chunkFrames
		mixEnd += chunkFrames
	}
	return songEnd, mixEnd
}

// refineOuter sharpens both boundaries at halving resolutions, down to
// chunkFrames/2^MinChunkFactor inclusive. A trim pass first removes the
// chunk just inside a boundary when its song and mix content disagree; a
// second pass then extends a boundary only when the chunk just outside it
// agrees. The two tests are independent, so a boundary that is already
// exact passes both untouched. Out-of-range chunks report similarity -1
// and so never trigger an extension past either signal.
func (r *ChunkRefiner) refineOuter(songFeatures, mixFeatures [][]float64, songStart, mixStart, songEnd, mixEnd, chunkFrames int) (int, int, int, int) {
	minFrames := chunkFrames >> uint(r.config.MinChunkFactor)
	if minFrames < 1 {
		minFrames = 1
	}
	threshold := r.config.RefineSimilarity

	for step := chunkFrames; step >= minFrames; step /= 2 {
		simStart := cosineSimilarity(
			songFeatures, songStart, songStart+step,
			mixFeatures, mixStart, mixStart+step,
		)
		if simStart < threshold {
			songStart += step
			mixStart += step
		}
		simEnd := cosineSimilarity(
			songFeatures, songEnd-step, songEnd,
			mixFeatures, mixEnd-step, mixEnd,
		)
		if simEnd < threshold {
			songEnd -= step
			mixEnd -= step
		}
	}

	for step := chunkFrames; step >= minFrames; step /= 2 {
		simBack := cosineSimilarity(
			songFeatures, songStart-step, songStart,
			mixFeatures, mixStart-step, mixStart,
		)
		if simBack > threshold {
			songStart -= step
			mixStart -= step
		}
		simForward := cosineSimilarity(
			songFeatures, songEnd, songEnd+step,
			mixFeatures, mixEnd, mixEnd+step,
		)
		if simForward > threshold {
			songEnd += step
			mixEnd += step
		}
	}

	if songStart < 0 {
		songStart = 0
	}
	if mixStart < 0 {
		mixStart = 0
	}
	if songEnd > len(songFeatures[0]) {
		songEnd = len(songFeatures[0])
	}
	if mixEnd > len(mixFeatures[0]) {
		mixEnd = len(mixFeatures[0])
	}
	return songStart, mixStart, songEnd, mixEnd
}
