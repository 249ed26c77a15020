package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/config"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// FFmpegDecoder decodes compressed containers by piping them through ffprobe
// and ffmpeg
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
	logger      logging.Logger
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewFFmpegDecoder creates a subprocess decoder from the decoder configuration
func NewFFmpegDecoder(cfg config.DecoderConfig, logger logging.Logger) *FFmpegDecoder {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := cfg.FFprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &FFmpegDecoder{
		ffmpegPath:  ffmpeg,
		ffprobePath: ffprobe,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Decode decodes audio bytes at their native sample rate and channel count
func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte, format Format) (*AudioSignal, error) {
	const op = "transcode.FFmpegDecoder.Decode"

	logger := d.logger.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Decode",
		"format":    string(format),
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, audioerr.New(audioerr.KindDecode, op, "empty audio data")
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	metadata, err := d.Probe(ctx, data)
	if err != nil {
		logger.Error(err, "Failed to probe audio metadata")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	args := append([]string{"-v", "error", "-i", "pipe:0"}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		return nil, d.classify(ctx, op, "ffmpeg", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, audioerr.New(audioerr.KindDecode, op, "no audio samples decoded")
	}

	// drop a trailing partial frame
	samples = samples[:len(samples)-len(samples)%metadata.Channels]

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_bytes": len(output),
		"decode_time":  time.Since(startTime).Seconds(),
	})

	signal, err := NewSignal(samples, metadata.SampleRate, metadata.Channels)
	if err != nil {
		return nil, audioerr.Wrap(audioerr.KindDecode, op, err, "invalid decoded signal")
	}
	return signal.withFormat(format), nil
}

// Probe runs ffprobe over the bytes and returns the first audio stream
func (d *FFmpegDecoder) Probe(ctx context.Context, data []byte) (*AudioMetadata, error) {
	const op = "transcode.FFmpegDecoder.Probe"

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		"pipe:0",
	}

	cmd := exec.CommandContext(ctx, d.ffprobePath, args...)
	cmd.Stdin = bytes.NewReader(data)

	output, err := cmd.Output()
	if err != nil {
		return nil, d.classify(ctx, op, "ffprobe", err)
	}

	metadata, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, audioerr.Wrap(audioerr.KindDecode, op, err, "unreadable audio stream")
	}
	return metadata, nil
}

// Available reports whether both binaries can be executed
func (d *FFmpegDecoder) Available() error {
	if _, err := exec.LookPath(d.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.ffmpegPath, err)
	}
	if _, err := exec.LookPath(d.ffprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.ffprobePath, err)
	}
	return nil
}

// classify maps a subprocess failure onto the error taxonomy
func (d *FFmpegDecoder) classify(ctx context.Context, op, tool string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return audioerr.Cancelled(ctx, op)
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return audioerr.Wrap(audioerr.KindUnsupportedFormat, op, err, "no decoder available: %s not installed", tool)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return audioerr.Wrap(audioerr.KindDecode, op, ctx.Err(), "%s timed out", tool)
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		d.logger.Error(err, tool+" failed", logging.Fields{
			"component": "audio_decoder",
			"stderr":    string(exitError.Stderr),
		})
		return audioerr.Wrap(audioerr.KindDecode, op, err, "%s failed: %s", tool, strings.TrimSpace(string(exitError.Stderr)))
	}

	return audioerr.Wrap(audioerr.KindDecode, op, err, "%s failed", tool)
}

// buildFFmpegArgs keeps the native rate and channel layout and emits raw f64le
func (d *FFmpegDecoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	return []string{
		"-map", "0:a:0",
		"-vn",
		"-f", "f64le",
		"-ac", strconv.Itoa(metadata.Channels),
		"-ar", strconv.Itoa(metadata.SampleRate),
	}
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]

	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	// the native rate is required; there is no safe fallback
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}
