package chroma

import (
	"math"

	"github.com/RyanBlaney/sonido-mixgraph/algorithms/spectral"
	"github.com/RyanBlaney/sonido-mixgraph/algorithms/windowing"
)

// NumBins is the number of pitch classes in a chromagram
const NumBins = 12

// ChromaSTFT computes chromagrams using a Short-Time Fourier Transform.
//
// Frequencies are mapped to 12 semitone bins (C, C#, D, D#, E, F, F#, G,
// G#, A, A#, B), octave-folded so all C notes share one bin. The output is
// bin-major ([12][frames]) so downstream correlation can slide along the
// time axis of each pitch class independently.
type ChromaSTFT struct {
	sampleRate int
	stft       *spectral.STFT
	tuningFreq float64 // A4 frequency (default 440 Hz)
	minFreq    float64 // Minimum frequency to consider
	maxFreq    float64 // Maximum frequency to consider
}

// NewChromaSTFT creates a new STFT-based chromagram calculator
func NewChromaSTFT(sampleRate int, tuningFreq float64) *ChromaSTFT {
	return &ChromaSTFT{
		sampleRate: sampleRate,
		stft:       spectral.NewSTFT(),
		tuningFreq: tuningFreq,
		minFreq:    80.0,   // Approximate E2
		maxFreq:    8000.0, // High enough for harmonics
	}
}

// NewChromaSTFTDefault creates a chromagram calculator with standard A4=440Hz tuning
func NewChromaSTFTDefault(sampleRate int) *ChromaSTFT {
	return NewChromaSTFT(sampleRate, 440.0)
}

// ComputeChroma computes a bin-major chromagram [12][frames] from mono PCM.
// The signal is zero-padded at the tail so that the number of frames equals
// ceil(len(signal)/hopSize) and frame times line up with hop-based
// frame-to-time conversion.
func (cs *ChromaSTFT) ComputeChroma(signal []float64, windowSize, hopSize int) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, nil
	}

	numFrames := (len(signal) + hopSize - 1) / hopSize
	padded := signal
	if need := (numFrames-1)*hopSize + windowSize; need > len(signal) {
		padded = make([]float64, need)
		copy(padded, signal)
	}

	window := windowing.NewHann(windowSize, false)
	stftResult, err := cs.stft.ComputeWithWindow(padded, windowSize, hopSize, cs.sampleRate, window)
	if err != nil {
		return nil, err
	}

	return cs.convertSTFTToChroma(stftResult), nil
}

// convertSTFTToChroma folds a magnitude spectrogram into pitch-class energy
func (cs *ChromaSTFT) convertSTFTToChroma(stftResult *spectral.STFTResult) [][]float64 {
	chromagram := make([][]float64, NumBins)
	for b := range chromagram {
		chromagram[b] = make([]float64, stftResult.TimeFrames)
	}

	// Pre-calculate frequency to chroma bin mapping
	chromaMapping := cs.calculateChromaMapping(stftResult.FreqBins, stftResult.FreqResolution)

	frame := make([]float64, NumBins)
	for t := 0; t < stftResult.TimeFrames; t++ {
		for b := range frame {
			frame[b] = 0
		}

		for f := 0; f < stftResult.FreqBins; f++ {
			bin := chromaMapping[f]
			if bin >= 0 {
				magnitude := stftResult.Magnitude[t][f]
				// Use magnitude squared for energy
				frame[bin] += magnitude * magnitude
			}
		}

		normalizeChromaFrame(frame)

		for b := range frame {
			chromagram[b][t] = frame[b]
		}
	}

	return chromagram
}

// calculateChromaMapping maps FFT bins to chroma bins (-1 means out of range)
func (cs *ChromaSTFT) calculateChromaMapping(freqBins int, freqResolution float64) []int {
	mapping := make([]int, freqBins)

	for f := 0; f < freqBins; f++ {
		frequency := float64(f) * freqResolution

		if frequency < cs.minFreq || frequency > cs.maxFreq {
			mapping[f] = -1
			continue
		}

		midiNote := cs.frequencyToMIDI(frequency)
		mapping[f] = ((int(math.Round(midiNote)) % NumBins) + NumBins) % NumBins
	}

	return mapping
}

// frequencyToMIDI converts frequency to MIDI note number
// A4 (440 Hz) = MIDI note 69
func (cs *ChromaSTFT) frequencyToMIDI(frequency float64) float64 {
	if frequency <= 0 {
		return 0
	}

	return 69.0 + 12.0*math.Log2(frequency/cs.tuningFreq)
}

// normalizeChromaFrame normalizes a single chroma frame to unit energy sum
func normalizeChromaFrame(chromaFrame []float64) {
	totalEnergy := 0.0
	for _, energy := range chromaFrame {
		totalEnergy += energy
	}

	if totalEnergy > 1e-10 {
		for i := range chromaFrame {
			chromaFrame[i] /= totalEnergy
		}
	}
}

// Labels returns the chroma bin labels
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}

// SetTuning updates the tuning frequency (A4)
func (cs *ChromaSTFT) SetTuning(tuningFreq float64) {
	cs.tuningFreq = tuningFreq
}

// GetTuning returns the current tuning frequency
func (cs *ChromaSTFT) GetTuning() float64 {
	return cs.tuningFreq
}
