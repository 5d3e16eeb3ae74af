package transcode

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, sampleRate, channels, samples int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, samples*channels),
	}
	for i := 0; i < samples; i++ {
		v := int(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 16000)
		for c := 0; c < channels; c++ {
			buf.Data[i*channels+c] = v
		}
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeWAVMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeWAV(t, path, 8000, 1, 8000)

	d := NewDecoder(nil)
	data, err := d.DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}

	if data.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", data.SampleRate)
	}
	if data.Channels != 1 {
		t.Errorf("channels = %d, want 1", data.Channels)
	}
	if len(data.PCM) != 8000 {
		t.Errorf("samples = %d, want 8000", len(data.PCM))
	}
	if data.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", data.Duration)
	}
	if math.Abs(data.Seconds()-1) > 1e-9 {
		t.Errorf("Seconds() = %g, want 1", data.Seconds())
	}

	// 16-bit samples scale into [-1, 1)
	for i, v := range data.PCM {
		if v < -1 || v >= 1 {
			t.Fatalf("sample %d = %g out of range", i, v)
		}
	}
	if data.SourcePath != path {
		t.Errorf("source path = %q", data.SourcePath)
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 8000, 2, 4000)

	d := NewDecoder(nil)
	data, err := d.DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}

	// stereo downmixes to one mono sample per frame
	if len(data.PCM) != 4000 {
		t.Errorf("samples = %d, want 4000", len(data.PCM))
	}
}

func TestDecodeFileMissing(t *testing.T) {
	d := NewDecoder(nil)
	_, err := d.DecodeFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("err = %v, want ErrMissingInput", err)
	}
}

func TestDecodeFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	if err := os.WriteFile(path, []byte("not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(nil)
	_, err := d.DecodeFile(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for corrupt file")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("err = %T, want *DecodeError", err)
	}
	if decodeErr.Path != path {
		t.Errorf("DecodeError.Path = %q, want %q", decodeErr.Path, path)
	}
}
