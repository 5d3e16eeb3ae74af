package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-mixgraph/logging"
)

// ErrMissingInput indicates the audio file does not exist or cannot be opened
var ErrMissingInput = errors.New("transcode: missing input file")

// DecodeError wraps a failure to decode an existing audio file
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("transcode: decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AudioData represents decoded mono audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // Raw PCM samples
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	SourcePath string        `json:"source_path"`
}

// Seconds returns the audio length in seconds
func (a *AudioData) Seconds() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.PCM)) / float64(a.SampleRate)
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // 0 keeps the native rate
	FFmpegPath       string        `json:"ffmpeg_path"`        // Path to ffmpeg binary
	FFprobePath      string        `json:"ffprobe_path"`       // Path to ffprobe binary
	Timeout          time.Duration `json:"timeout"`            // Timeout for ffmpeg operations
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,         // Keep native rate; song and mix must agree per file
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          120 * time.Second,
	}
}

// Decoder decodes audio files to mono float64 PCM. WAV files are decoded
// in-process; everything else goes through FFmpeg.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// DecodeFile decodes an audio file and returns mono PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	info, err := os.Stat(filename)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, filename)
	}

	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		data, err := d.decodeWAV(filename)
		if err != nil {
			return nil, err
		}
		logger.Debug("Decoded WAV in-process", logging.Fields{
			"sample_rate": data.SampleRate,
			"samples":     len(data.PCM),
		})
		return data, nil
	}

	return d.decodeWithFFmpeg(ctx, filename)
}

// decodeWithFFmpeg shells out to ffmpeg for compressed formats
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, filename string) (*AudioData, error) {
	sampleRate := d.config.TargetSampleRate
	if sampleRate == 0 {
		probed, err := d.probeSampleRate(ctx, filename)
		if err != nil {
			return nil, &DecodeError{Path: filename, Err: err}
		}
		sampleRate = probed
	}

	decodeCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		decodeCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", filename,
		"-f", "f64le",
		"-acodec", "pcm_f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(decodeCtx, d.config.FFmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if decodeCtx.Err() != nil {
			return nil, &DecodeError{Path: filename, Err: decodeCtx.Err()}
		}
		return nil, &DecodeError{
			Path: filename,
			Err:  fmt.Errorf("ffmpeg: %w, stderr: %s", err, stderr.String()),
		}
	}

	raw := stdout.Bytes()
	pcm := make([]float64, len(raw)/8)
	for i := range pcm {
		pcm[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}

	if len(pcm) == 0 {
		return nil, &DecodeError{Path: filename, Err: errors.New("ffmpeg produced no samples")}
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(float64(len(pcm)) / float64(sampleRate) * float64(time.Second)),
		SourcePath: filename,
	}, nil
}

// probeSampleRate reads the stream sample rate with ffprobe
func (d *Decoder) probeSampleRate(ctx context.Context, filename string) (int, error) {
	probeCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filename,
	}

	cmd := exec.CommandContext(probeCtx, d.config.FFprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	rate, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("ffprobe returned invalid sample rate %q", strings.TrimSpace(string(out)))
	}

	return rate, nil
}
