// Package transcode turns uploaded audio bytes into an AudioSignal.
//
// WAV is decoded in-process; the compressed containers on the allow list are
// handed to ffmpeg. The loader never analyses anything: it only decodes,
// validates and optionally resamples.
package transcode

import (
	"context"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/config"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// Loader selects a decoder from the filename or magic bytes and enforces the
// format allow list and input size limit
type Loader struct {
	allowed          map[Format]bool
	maxInputBytes    int64
	targetSampleRate int

	wav       *WAVDecoder
	ffmpeg    *FFmpegDecoder
	resampler *Resampler
	logger    logging.Logger
}

// NewLoader creates a loader from the decoder configuration
func NewLoader(cfg config.DecoderConfig, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	allowed := make(map[Format]bool, len(cfg.AllowedFormats))
	for _, name := range cfg.AllowedFormats {
		f, ok := ParseFormat(name)
		if !ok {
			logger.Warn("Ignoring unknown format in allow list", logging.Fields{
				"component": "loader",
				"format":    name,
			})
			continue
		}
		allowed[f] = true
	}

	return &Loader{
		allowed:          allowed,
		maxInputBytes:    cfg.MaxInputBytes,
		targetSampleRate: cfg.TargetSampleRate,
		wav:              NewWAVDecoder(logger),
		ffmpeg:           NewFFmpegDecoder(cfg, logger),
		resampler:        NewResampler(cfg.ResampleHalfTaps),
		logger:           logger,
	}
}

// Supports reports whether the format is on the allow list
func (l *Loader) Supports(f Format) bool {
	return l.allowed[f]
}

// ResolveFormat determines the container for an input without decoding it
func (l *Loader) ResolveFormat(data []byte, filename string) (Format, error) {
	const op = "transcode.Loader.ResolveFormat"

	var (
		format Format
		ok     bool
	)

	if hasExtension(filename) {
		format, ok = FormatFromFilename(filename)
		if !ok {
			return "", audioerr.New(audioerr.KindUnsupportedFormat, op, "unsupported file extension: %q", filename)
		}
	} else {
		format, ok = DetectFormat(data)
		if !ok {
			return "", audioerr.New(audioerr.KindDecode, op, "unrecognised container")
		}
	}

	if !l.Supports(format) {
		return "", audioerr.New(audioerr.KindUnsupportedFormat, op, "format %s is not allowed", format)
	}

	return format, nil
}

// Load decodes data into an AudioSignal. The filename is used only to select
// a decoder; without an extension the container is sniffed.
func (l *Loader) Load(ctx context.Context, data []byte, filename string) (*AudioSignal, error) {
	const op = "transcode.Loader.Load"

	logger := l.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "loader",
		"function":  "Load",
		"filename":  filename,
		"data_size": len(data),
	})

	format, err := l.ResolveFormat(data, filename)
	if err != nil {
		logger.Debug("Rejected input", logging.Fields{"reason": err.Error()})
		return nil, err
	}

	if l.maxInputBytes > 0 && int64(len(data)) > l.maxInputBytes {
		return nil, audioerr.New(audioerr.KindTooLarge, op,
			"input is %d bytes, limit is %d", len(data), l.maxInputBytes)
	}
	if len(data) == 0 {
		return nil, audioerr.New(audioerr.KindDecode, op, "empty audio data")
	}

	if err := audioerr.Cancelled(ctx, op); err != nil {
		return nil, err
	}

	var signal *AudioSignal
	switch format {
	case FormatWAV:
		signal, err = l.wav.Decode(data)
	default:
		signal, err = l.ffmpeg.Decode(ctx, data, format)
	}
	if err != nil {
		return nil, err
	}

	if l.targetSampleRate > 0 && signal.SampleRate() != l.targetSampleRate {
		logger.Debug("Resampling", logging.Fields{
			"from": signal.SampleRate(),
			"to":   l.targetSampleRate,
		})
		signal, err = l.resampler.Resample(ctx, signal, l.targetSampleRate)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Signal loaded", logging.Fields{
		"format":      string(format),
		"sample_rate": signal.SampleRate(),
		"channels":    signal.Channels(),
		"duration":    signal.Duration(),
	})

	return signal, nil
}

// LoadFile reads a file from disk and loads it, checking the size limit
// before reading
func (l *Loader) LoadFile(ctx context.Context, path string) (*AudioSignal, error) {
	data, err := ReadInput(path, l.maxInputBytes)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, data, path)
}

// ReadInput reads a file, refusing it with a TooLarge error before reading
// when it exceeds limit. A limit of 0 disables the check.
func ReadInput(path string, limit int64) ([]byte, error) {
	const op = "transcode.ReadInput"

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if limit > 0 && info.Size() > limit {
		return nil, audioerr.New(audioerr.KindTooLarge, op,
			"%s is %d bytes, limit is %d", path, info.Size(), limit)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
