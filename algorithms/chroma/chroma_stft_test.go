package chroma

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, samples int) []float64 {
	signal := make([]float64, samples)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return signal
}

func TestComputeChromaShape(t *testing.T) {
	const sampleRate = 22050
	cs := NewChromaSTFTDefault(sampleRate)

	tests := []struct {
		name    string
		samples int
	}{
		{"one second", 22050},
		{"hop-aligned", 5120},
		{"not hop-aligned", 5000},
		{"shorter than window", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := sine(440, sampleRate, tt.samples)
			chromagram, err := cs.ComputeChroma(signal, 2048, 512)
			if err != nil {
				t.Fatalf("ComputeChroma: %v", err)
			}

			if len(chromagram) != NumBins {
				t.Fatalf("bins = %d, want %d", len(chromagram), NumBins)
			}
			wantFrames := (tt.samples + 511) / 512
			for b := range chromagram {
				if len(chromagram[b]) != wantFrames {
					t.Fatalf("bin %d frames = %d, want %d", b, len(chromagram[b]), wantFrames)
				}
			}
		})
	}
}

func TestComputeChromaEmptySignal(t *testing.T) {
	cs := NewChromaSTFTDefault(22050)
	chromagram, err := cs.ComputeChroma(nil, 2048, 512)
	if err != nil {
		t.Fatalf("ComputeChroma: %v", err)
	}
	if chromagram != nil {
		t.Errorf("empty signal produced %d bins", len(chromagram))
	}
}

func TestChromaFramesSumToOne(t *testing.T) {
	const sampleRate = 22050
	cs := NewChromaSTFTDefault(sampleRate)

	signal := sine(440, sampleRate, 22050)
	chromagram, err := cs.ComputeChroma(signal, 2048, 512)
	if err != nil {
		t.Fatalf("ComputeChroma: %v", err)
	}

	frames := len(chromagram[0])
	for f := 0; f < frames; f++ {
		var sum float64
		for b := 0; b < NumBins; b++ {
			sum += chromagram[b][f]
		}
		// frames are normalized to unit sum, or all zero for silence
		if sum > 1e-9 && math.Abs(sum-1) > 1e-6 {
			t.Fatalf("frame %d energy sum = %g, want 1", f, sum)
		}
	}
}

func TestPureTonesLandInTheirPitchClass(t *testing.T) {
	const sampleRate = 22050
	cs := NewChromaSTFTDefault(sampleRate)

	tests := []struct {
		name string
		freq float64
		bin  int
	}{
		{"A4", 440, 9},
		{"A3", 220, 9},
		{"C4", 261.63, 0},
		{"E5", 659.26, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := sine(tt.freq, sampleRate, 22050)
			chromagram, err := cs.ComputeChroma(signal, 2048, 512)
			if err != nil {
				t.Fatalf("ComputeChroma: %v", err)
			}

			energy := make([]float64, NumBins)
			for b := range chromagram {
				for _, v := range chromagram[b] {
					energy[b] += v
				}
			}
			best := 0
			for b, e := range energy {
				if e > energy[best] {
					best = b
				}
			}
			if best != tt.bin {
				t.Errorf("dominant bin = %d (%s), want %d (%s)",
					best, Labels()[best], tt.bin, Labels()[tt.bin])
			}
		})
	}
}

func TestLabels(t *testing.T) {
	labels := Labels()
	if len(labels) != NumBins {
		t.Fatalf("labels = %d, want %d", len(labels), NumBins)
	}
	if labels[0] != "C" || labels[9] != "A" {
		t.Errorf("unexpected labels: %v", labels)
	}
}
