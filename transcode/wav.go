package transcode

import (
	"errors"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// decodeWAV decodes a RIFF/WAVE file in-process via go-audio, downmixing to
// mono by channel averaging
func (d *Decoder) decodeWAV(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &DecodeError{Path: filename, Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &DecodeError{Path: filename, Err: errors.New("not a valid WAV file")}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Path: filename, Err: err}
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, &DecodeError{Path: filename, Err: errors.New("empty PCM data")}
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := buf.Format.SampleRate

	// Scale factor for the source bit depth
	scale := 1.0
	if dec.BitDepth > 0 && dec.BitDepth <= 32 {
		scale = 1.0 / float64(int64(1)<<(dec.BitDepth-1))
	}

	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) * scale
		}
		pcm[i] = sum / float64(channels)
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second)),
		SourcePath: filename,
	}, nil
}
