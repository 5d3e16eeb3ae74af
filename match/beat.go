package match

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-mixgraph/algorithms/spectral"
	"github.com/RyanBlaney/sonido-mixgraph/algorithms/windowing"
	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
	"github.com/RyanBlaney/sonido-mixgraph/logging"
	"github.com/RyanBlaney/sonido-mixgraph/transcode"
)

// BeatAligner snaps a rough match to the mix's beat grid. DJ transitions
// land on downbeats, so placing the song start on the nearest mix downbeat
// corrects the few-frame slop left by correlation. Beat tracking works on
// the raw audio, not the fingerprint, so the aligner re-decodes both files.
type BeatAligner struct {
	config  *Config
	decoder *transcode.Decoder
	stft    *spectral.STFT
	flux    *spectral.SpectralFlux
	logger  logging.Logger
}

// NewBeatAligner creates a beat aligner. A nil config uses DefaultConfig;
// a nil decoder uses the default decoder configuration.
func NewBeatAligner(config *Config, decoder *transcode.Decoder) *BeatAligner {
	if config == nil {
		config = DefaultConfig()
	}
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}
	return &BeatAligner{
		config:  config,
		decoder: decoder,
		stft:    spectral.NewSTFT(),
		flux:    spectral.NewSpectralFlux(),
		logger:  logging.WithFields(logging.Fields{"component": "beat_aligner"}),
	}
}

// Name identifies the strategy
func (b *BeatAligner) Name() string {
	return "beat_align"
}

// Refine aligns the rough window's start to the nearest downbeat in the
// mix. When beat tracking fails on either signal (weak onsets, ambient
// material, implausible tempo) the rough window is returned unchanged with
// StatusRoughFallback rather than an error.
func (b *BeatAligner) Refine(ctx context.Context, song, mix *fingerprint.Fingerprint, rough Window) (Refined, error) {
	songAudio, err := b.decoder.DecodeFile(ctx, song.SourcePath)
	if err != nil {
		return b.fallback(song, mix, rough, "song decode failed", err), nil
	}
	mixAudio, err := b.decoder.DecodeFile(ctx, mix.SourcePath)
	if err != nil {
		return b.fallback(song, mix, rough, "mix decode failed", err), nil
	}

	songBeats, songTempo, ok := b.trackBeats(songAudio)
	if !ok {
		return b.fallback(song, mix, rough, "beat tracking failed on song", nil), nil
	}
	mixBeats, mixTempo, ok := b.trackBeats(mixAudio)
	if !ok {
		return b.fallback(song, mix, rough, "beat tracking failed on mix", nil), nil
	}

	songDownbeats := downbeats(songBeats, b.config.BeatsPerMeasure)
	mixDownbeats := downbeats(mixBeats, b.config.BeatsPerMeasure)
	if len(songDownbeats) == 0 || len(mixDownbeats) == 0 {
		return b.fallback(song, mix, rough, "no downbeats found", nil), nil
	}

	target := nearestTime(mixDownbeats, rough.StartInMix)
	aligned := target - songDownbeats[0]

	songLen := songAudio.Seconds()

	// the whole song must still fit inside the mix
	maxStart := mixAudio.Seconds() - songLen
	if maxStart < 0 {
		maxStart = 0
	}
	if aligned < 0 {
		aligned = 0
	}
	if aligned > maxStart {
		aligned = maxStart
	}

	b.logger.Info("beat alignment complete", logging.Fields{
		"song":          song.SourcePath,
		"mix":           mix.SourcePath,
		"song_tempo":    songTempo,
		"mix_tempo":     mixTempo,
		"rough_start":   rough.StartInMix,
		"aligned_start": aligned,
	})

	return Refined{
		SongStart:  0,
		SongEnd:    songLen,
		MixStart:   aligned,
		MixEnd:     aligned + songLen,
		Status:     StatusBeatAligned,
		Confidence: rough.Confidence,
	}, nil
}

func (b *BeatAligner) fallback(song, mix *fingerprint.Fingerprint, rough Window, reason string, err error) Refined {
	fields := logging.Fields{
		"song":   song.SourcePath,
		"mix":    mix.SourcePath,
		"reason": reason,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	b.logger.Warn("falling back to rough window", fields)

	return Refined{
		SongStart:  0,
		SongEnd:    rough.Duration(),
		MixStart:   rough.StartInMix,
		MixEnd:     rough.EndInMix,
		Status:     StatusRoughFallback,
		Confidence: rough.Confidence,
	}
}

// trackBeats estimates tempo from the onset envelope's autocorrelation and
// lays a beat grid at the best phase for that period. Returns ok=false when
// the signal is too short or no plausible tempo emerges.
func (b *BeatAligner) trackBeats(audio *transcode.AudioData) ([]float64, float64, bool) {
	windowSize := b.config.BeatWindowSize
	hopSize := b.config.BeatHopSize
	window := windowing.NewHann(windowSize, false)

	result, err := b.stft.ComputeWithWindow(audio.PCM, windowSize, hopSize, audio.SampleRate, window)
	if err != nil {
		return nil, 0, false
	}

	envelope := b.flux.Compute(result.Magnitude)
	if len(envelope) < 4 {
		return nil, 0, false
	}

	frameRate := float64(audio.SampleRate) / float64(hopSize)
	periodFrames, tempo := b.estimateTempo(envelope, frameRate)
	if periodFrames < 1 {
		return nil, 0, false
	}

	phase := bestPhase(envelope, periodFrames)
	var beats []float64
	for frame := phase; frame < len(envelope); frame += periodFrames {
		beats = append(beats, float64(frame)/frameRate)
	}
	if len(beats) == 0 {
		return nil, 0, false
	}
	return beats, tempo, true
}

// estimateTempo picks the autocorrelation peak of the onset envelope within
// the configured BPM range. Returns the beat period in envelope frames.
func (b *BeatAligner) estimateTempo(envelope []float64, frameRate float64) (int, float64) {
	minLag := int(frameRate * 60 / b.config.MaxTempoBPM)
	maxLag := int(frameRate * 60 / b.config.MinTempoBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(envelope) {
		maxLag = len(envelope) - 1
	}
	if maxLag <= minLag {
		return 0, 0
	}

	mean := floats.Sum(envelope) / float64(len(envelope))
	centered := make([]float64, len(envelope))
	for i, v := range envelope {
		centered[i] = v - mean
	}

	bestLag := 0
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		score := floats.Dot(centered[:len(centered)-lag], centered[lag:])
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, 0
	}
	return bestLag, 60 * frameRate / float64(bestLag)
}

// bestPhase finds the grid offset that captures the most onset energy for
// the given beat period
func bestPhase(envelope []float64, periodFrames int) int {
	bestPhase := 0
	bestEnergy := -1.0
	for phase := 0; phase < periodFrames && phase < len(envelope); phase++ {
		energy := 0.0
		for frame := phase; frame < len(envelope); frame += periodFrames {
			energy += envelope[frame]
		}
		if energy > bestEnergy {
			bestEnergy = energy
			bestPhase = phase
		}
	}
	return bestPhase
}

// downbeats keeps every beatsPerMeasure-th beat starting from the first
func downbeats(beats []float64, beatsPerMeasure int) []float64 {
	if beatsPerMeasure < 1 {
		beatsPerMeasure = 1
	}
	var out []float64
	for i := 0; i < len(beats); i += beatsPerMeasure {
		out = append(out, beats[i])
	}
	return out
}

// nearestTime returns the element of times closest to t. times must be
// sorted ascending and non-empty.
func nearestTime(times []float64, t float64) float64 {
	best := times[0]
	bestDist := absFloat(t - best)
	for _, v := range times[1:] {
		if d := absFloat(t - v); d < bestDist {
			best = v
			bestDist = d
		}
	}
	return best
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
