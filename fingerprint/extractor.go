package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-mixgraph/algorithms/chroma"
	"github.com/RyanBlaney/sonido-mixgraph/logging"
	"github.com/RyanBlaney/sonido-mixgraph/transcode"
)

// ErrNoFingerprint indicates the input could not be fingerprinted (missing or
// undecodable audio). The underlying cause is wrapped.
var ErrNoFingerprint = errors.New("fingerprint: no fingerprint")

// ExtractorConfig holds configuration for fingerprint extraction
type ExtractorConfig struct {
	WindowSize int     `json:"window_size"`
	HopLength  int     `json:"hop_length"`
	TuningFreq float64 `json:"tuning_freq"`
}

// DefaultExtractorConfig returns the default extraction configuration
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		WindowSize: 2048,
		HopLength:  512,
		TuningFreq: 440.0,
	}
}

// Extractor computes chroma fingerprints and caches them through a Store.
// A nil store disables caching.
type Extractor struct {
	config  *ExtractorConfig
	decoder *transcode.Decoder
	store   Store
	logger  logging.Logger
}

// NewExtractor creates a fingerprint extractor
func NewExtractor(config *ExtractorConfig, decoder *transcode.Decoder, store Store) *Extractor {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}

	return &Extractor{
		config:  config,
		decoder: decoder,
		store:   store,
		logger:  logging.WithFields(logging.Fields{"component": "fingerprint_extractor"}),
	}
}

// Fingerprint returns the chroma fingerprint for an audio file, reading the
// cache before computing and writing it after. Missing or undecodable input
// is reported as an error wrapping ErrNoFingerprint; nothing panics and
// nothing is raised past this boundary.
func (e *Extractor) Fingerprint(ctx context.Context, audioPath string) (*Fingerprint, error) {
	logger := e.logger.WithFields(logging.Fields{"path": audioPath})

	var key string
	if e.store != nil {
		k, err := CacheKey(audioPath, e.config.WindowSize, e.config.HopLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoFingerprint, audioPath, err)
		}
		key = k

		if fp, ok, err := e.store.Load(key); err != nil {
			logger.Warn("Fingerprint cache read failed, recomputing", logging.Fields{"error": err.Error()})
		} else if ok {
			logger.Debug("Fingerprint cache hit", logging.Fields{"key": key})
			return fp, nil
		}
	}

	started := time.Now()

	audioData, err := e.decoder.DecodeFile(ctx, audioPath)
	if err != nil {
		logger.Error(err, "Failed to decode audio")
		return nil, fmt.Errorf("%w: %s: %v", ErrNoFingerprint, audioPath, err)
	}

	analyzer := chroma.NewChromaSTFT(audioData.SampleRate, e.config.TuningFreq)
	features, err := analyzer.ComputeChroma(audioData.PCM, e.config.WindowSize, e.config.HopLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoFingerprint, audioPath, err)
	}

	fp := &Fingerprint{
		ID:         uuid.NewString(),
		SourcePath: audioPath,
		Features:   features,
		SampleRate: audioData.SampleRate,
		HopLength:  e.config.HopLength,
		CreatedAt:  time.Now(),
		DecodeTime: time.Since(started),
	}

	logger.Info("Fingerprint computed", logging.Fields{
		"frames":      fp.Frames(),
		"sample_rate": fp.SampleRate,
		"elapsed":     fp.DecodeTime.String(),
	})

	if e.store != nil {
		if err := e.store.Save(key, fp); err != nil {
			// Cache write failure is not fatal: the fingerprint is still valid
			logger.Warn("Fingerprint cache write failed", logging.Fields{"error": err.Error()})
		}
	}

	return fp, nil
}

// Config returns the extractor configuration
func (e *Extractor) Config() *ExtractorConfig {
	return e.config
}
