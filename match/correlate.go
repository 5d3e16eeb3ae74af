package match

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-mixgraph/algorithms/spectral"
)

// normalizeFeatures returns a copy of the feature matrix normalized to zero
// mean and unit standard deviation over all entries. Global moments, not
// per-bin, so relative energy between chroma bins is preserved.
func normalizeFeatures(features [][]float64) [][]float64 {
	var sum, sumSq float64
	var count int
	for _, bin := range features {
		for _, v := range bin {
			sum += v
			sumSq += v * v
		}
		count += len(bin)
	}

	normalized := make([][]float64, len(features))
	if count == 0 {
		for b := range features {
			normalized[b] = []float64{}
		}
		return normalized
	}

	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	if std < 1e-12 {
		std = 1
	}

	for b, bin := range features {
		normalized[b] = make([]float64, len(bin))
		for t, v := range bin {
			normalized[b][t] = (v - mean) / std
		}
	}
	return normalized
}

// crossCorrelate computes the valid-mode cross-correlation of the mix
// features against the song features, summed across chroma bins. The result
// has mixFrames-songFrames+1 lags; lag k is the alignment score with the
// song placed at mix frame k. Both inputs must share the same bin count.
//
// Per-bin cross-power spectra are accumulated in the frequency domain so a
// single inverse transform produces the summed correlation. The context is
// checked between bins to honor the caller's computation budget.
func crossCorrelate(ctx context.Context, song, mix [][]float64) ([]float64, error) {
	if len(song) == 0 || len(song) != len(mix) {
		return nil, fmt.Errorf("mismatched feature dimensions: song %d bins, mix %d bins", len(song), len(mix))
	}

	songFrames := len(song[0])
	mixFrames := len(mix[0])
	numLags := mixFrames - songFrames + 1
	if numLags <= 0 {
		return nil, nil
	}

	fftSize := spectral.NextPowerOf2(mixFrames + songFrames - 1)
	calc := spectral.NewFFT()

	songPadded := make([]float64, fftSize)
	mixPadded := make([]float64, fftSize)
	var crossPower []complex128

	for b := range song {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
		}

		copy(songPadded, song[b])
		for i := songFrames; i < fftSize; i++ {
			songPadded[i] = 0
		}
		copy(mixPadded, mix[b])
		for i := mixFrames; i < fftSize; i++ {
			mixPadded[i] = 0
		}

		songSpec := calc.Compute(songPadded)
		mixSpec := calc.Compute(mixPadded)

		if crossPower == nil {
			crossPower = make([]complex128, len(mixSpec))
		}
		for i := range crossPower {
			// conj(song) * mix gives correlation rather than convolution
			crossPower[i] += mixSpec[i] * complex(real(songSpec[i]), -imag(songSpec[i]))
		}
	}

	correlation := calc.ComputeInverseReal(crossPower)
	return correlation[:numLags], nil
}

// argmax returns the index and value of the largest element
func argmax(values []float64) (int, float64) {
	if len(values) == 0 {
		return -1, 0
	}
	idx := floats.MaxIdx(values)
	return idx, values[idx]
}

// cosineSimilarity computes the cosine similarity between two feature
// regions flattened across bins. Regions are [startA,endA) and [startB,endB)
// on the frame axis. Returns -1 when either region is empty or silent.
func cosineSimilarity(a [][]float64, startA, endA int, b [][]float64, startB, endB int) float64 {
	if startA < 0 || startB < 0 || endA <= startA || endB <= startB {
		return -1
	}
	if len(a) != len(b) || endA-startA != endB-startB {
		return -1
	}
	if len(a) == 0 || endA > len(a[0]) || endB > len(b[0]) {
		return -1
	}

	var dot, normA, normB float64
	for bin := range a {
		rowA := a[bin][startA:endA]
		rowB := b[bin][startB:endB]
		dot += floats.Dot(rowA, rowB)
		normA += floats.Dot(rowA, rowA)
		normB += floats.Dot(rowB, rowB)
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < 1e-12 {
		return -1
	}
	return dot / denom
}

// subMatrix returns a view of the feature matrix restricted to frames
// [start, end) on the time axis. The underlying data is shared.
func subMatrix(features [][]float64, start, end int) [][]float64 {
	out := make([][]float64, len(features))
	for b := range features {
		out[b] = features[b][start:end]
	}
	return out
}
