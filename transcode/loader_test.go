package transcode

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/config"
	"github.com/RyanBlaney/sonido-studio/logging"
)

func sineWAV(t *testing.T, sampleRate int, freq float64, seconds float64) []byte {
	t.Helper()
	n := int(float64(sampleRate) * seconds)
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return encodeWAV(t, sampleRate, 16, 1, 1, data)
}

func TestLoaderLoadWAV(t *testing.T) {
	raw := sineWAV(t, 8000, 440, 0.5)
	loader := NewLoader(config.Default().Decoder, nil)

	signal, err := loader.Load(context.Background(), raw, "tone.WAV")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if signal.SampleRate() != 8000 || signal.Frames() != 4000 {
		t.Errorf("Expected 4000 frames at 8000 Hz, got %d at %d", signal.Frames(), signal.SampleRate())
	}
}

func TestLoaderSniffsWithoutExtension(t *testing.T) {
	raw := sineWAV(t, 8000, 440, 0.1)
	loader := NewLoader(config.Default().Decoder, nil)

	signal, err := loader.Load(context.Background(), raw, "upload")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if signal.Format() != FormatWAV {
		t.Errorf("Expected sniffed wav, got %q", signal.Format())
	}

	_, err = loader.Load(context.Background(), []byte("plain text, not audio"), "upload")
	if !errors.Is(err, audioerr.ErrDecode) {
		t.Errorf("Expected decode error for unrecognised container, got %v", err)
	}
}

func TestLoaderRejectsBeforeDecoding(t *testing.T) {
	cfg := config.Default().Decoder
	cfg.AllowedFormats = []string{"wav"}
	// an unreachable decoder proves nothing was spawned
	cfg.FFmpegPath = "sonido-test-missing-ffmpeg"
	cfg.FFprobePath = "sonido-test-missing-ffprobe"
	loader := NewLoader(cfg, nil)

	tests := []struct {
		name     string
		filename string
		want     error
	}{
		{"unknown extension", "lyrics.txt", audioerr.ErrUnsupportedFormat},
		{"known but not allowed", "song.mp3", audioerr.ErrUnsupportedFormat},
		{"alias not allowed", "song.opus", audioerr.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), []byte("garbage"), tt.filename)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if loader.Supports(FormatFLAC) {
		t.Error("flac should not be supported")
	}
	if !loader.Supports(FormatWAV) {
		t.Error("wav should be supported")
	}
}

func TestLoaderTooLarge(t *testing.T) {
	cfg := config.Default().Decoder
	cfg.MaxInputBytes = 64
	loader := NewLoader(cfg, nil)

	raw := sineWAV(t, 8000, 440, 0.1)
	_, err := loader.Load(context.Background(), raw, "big.wav")
	if !errors.Is(err, audioerr.ErrTooLarge) {
		t.Fatalf("Expected too large, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "big.wav")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = loader.LoadFile(context.Background(), path)
	if audioerr.KindOf(err) != audioerr.KindTooLarge {
		t.Errorf("Expected too large from LoadFile, got %v", err)
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := ReadInput(path, 100)
	if err != nil || len(data) != 100 {
		t.Fatalf("Expected 100 bytes, got %d (%v)", len(data), err)
	}
	if _, err := ReadInput(path, 0); err != nil {
		t.Errorf("A zero limit should disable the check, got %v", err)
	}
	if _, err := ReadInput(path, 99); !errors.Is(err, audioerr.ErrTooLarge) {
		t.Errorf("Expected too large, got %v", err)
	}

	_, err = ReadInput(filepath.Join(dir, "missing.wav"), 0)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLoaderLoadExtensibleWAV(t *testing.T) {
	const sr = 44100
	data := make([]int, sr)
	for i := range data {
		data[i] = int(4000000 * math.Sin(2*math.Pi*440*float64(i)/sr))
	}
	raw := extensibleWAV(sr, 1, subFormatGUID(wavFormatPCM), data)
	loader := NewLoader(config.Default().Decoder, nil)

	for _, name := range []string{"take.wav", "upload"} {
		signal, err := loader.Load(context.Background(), raw, name)
		if err != nil {
			t.Fatalf("%s: Load failed: %v", name, err)
		}
		if signal.Frames() != sr || signal.SampleRate() != sr {
			t.Errorf("%s: expected %d frames at %d Hz, got %d at %d", name, sr, sr, signal.Frames(), signal.SampleRate())
		}
	}
}

func TestLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(config.Default().Decoder, nil)
	_, err := loader.Load(ctx, sineWAV(t, 8000, 440, 0.1), "a.wav")
	if !errors.Is(err, audioerr.ErrCancelled) {
		t.Errorf("Expected cancelled, got %v", err)
	}
}

func TestLoaderResamples(t *testing.T) {
	cfg := config.Default().Decoder
	cfg.TargetSampleRate = 4000
	loader := NewLoader(cfg, nil)

	signal, err := loader.Load(context.Background(), sineWAV(t, 8000, 440, 0.5), "a.wav")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if signal.SampleRate() != 4000 {
		t.Errorf("Expected 4000 Hz, got %d", signal.SampleRate())
	}
	if signal.Frames() != 2000 {
		t.Errorf("Expected 2000 frames, got %d", signal.Frames())
	}
	if signal.Format() != FormatWAV {
		t.Errorf("Resampling should keep the format, got %q", signal.Format())
	}
}

func TestLoaderMissingDecoder(t *testing.T) {
	cfg := config.Default().Decoder
	cfg.FFmpegPath = "sonido-test-missing-ffmpeg"
	cfg.FFprobePath = "sonido-test-missing-ffprobe"
	loader := NewLoader(cfg, nil)

	_, err := loader.Load(context.Background(), []byte("fLaC\x00\x00\x00\x22"), "song.flac")
	if !errors.Is(err, audioerr.ErrUnsupportedFormat) {
		t.Errorf("Expected unsupported format when ffmpeg is absent, got %v", err)
	}
}

func TestNewLoaderIgnoresUnknownAllowEntries(t *testing.T) {
	prev := logging.GetGlobalLogger()
	defer logging.SetGlobalLogger(prev)
	var stderr bytes.Buffer
	logging.SetGlobalLogger(logging.NewWriterLogger(&bytes.Buffer{}, &stderr, false))

	cfg := config.Default().Decoder
	cfg.AllowedFormats = []string{"wave", "wma"}
	// without a logger the loader reports through the global one
	loader := NewLoader(cfg, nil)

	if !strings.Contains(stderr.String(), "Ignoring unknown format in allow list") || !strings.Contains(stderr.String(), "format=wma") {
		t.Errorf("Expected warning through the global logger, got %q", stderr.String())
	}

	if !loader.Supports(FormatWAV) {
		t.Error("wave alias should enable wav")
	}
	if len(loader.allowed) != 1 {
		t.Errorf("Expected one allowed format, got %v", loader.allowed)
	}
}
