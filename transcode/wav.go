package transcode

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/logging"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// ksDataFormatTail is the part of the KSDATAFORMAT_SUBTYPE GUIDs shared by
// every subformat derived from a format tag; the first two bytes carry the tag
var ksDataFormatTail = [14]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// extensibleFormat is the fmt chunk of a WAVE_FORMAT_EXTENSIBLE file
type extensibleFormat struct {
	FormatTag     uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	ExtensionSize uint16
	ValidBits     uint16
	ChannelMask   uint32
	SubFormat     [16]byte
}

// WAVDecoder decodes integer PCM WAV files in-process
type WAVDecoder struct {
	logger logging.Logger
}

// NewWAVDecoder creates a WAV decoder
func NewWAVDecoder(logger logging.Logger) *WAVDecoder {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &WAVDecoder{logger: logger}
}

// Decode parses a RIFF/WAVE byte slice into an AudioSignal.
// 8, 16, 24 and 32-bit integer PCM are supported, in the plain layout or as
// WAVE_FORMAT_EXTENSIBLE with the PCM subformat. Any other codec is reported
// as an unsupported format, a malformed header as a decode error.
func (w *WAVDecoder) Decode(data []byte) (*AudioSignal, error) {
	const op = "transcode.WAVDecoder.Decode"

	logger := w.logger.WithFields(logging.Fields{
		"component": "wav_decoder",
		"function":  "Decode",
		"data_size": len(data),
	})

	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return nil, audioerr.Wrap(audioerr.KindDecode, op, err, "invalid WAV file")
		}
		return nil, audioerr.New(audioerr.KindDecode, op, "invalid WAV file")
	}

	codec := decoder.WavAudioFormat
	if codec == wavFormatExtensible {
		sub, err := extensibleSubFormat(data)
		if err != nil {
			return nil, err
		}
		codec = sub
	}
	if codec != wavFormatPCM {
		return nil, audioerr.New(audioerr.KindUnsupportedFormat, op,
			"WAV codec %#x is not integer PCM", codec)
	}

	bitDepth := int(decoder.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, audioerr.New(audioerr.KindUnsupportedFormat, op, "unsupported WAV bit depth: %d", bitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, audioerr.Wrap(audioerr.KindDecode, op, err, "could not read PCM buffer")
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, audioerr.New(audioerr.KindDecode, op, "WAV file has no audio data")
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels <= 0 || sampleRate <= 0 {
		return nil, audioerr.New(audioerr.KindDecode, op,
			"invalid WAV header: %d channels at %d Hz", channels, sampleRate)
	}

	// a truncated final frame is dropped
	usable := len(buf.Data) - len(buf.Data)%channels
	samples := intToFloat(buf.Data[:usable], bitDepth)

	logger.Debug("WAV decoded", logging.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
		"frames":      usable / channels,
	})

	signal, err := NewSignal(samples, sampleRate, channels)
	if err != nil {
		return nil, audioerr.Wrap(audioerr.KindDecode, op, err, "invalid decoded signal")
	}
	return signal.withFormat(FormatWAV), nil
}

// extensibleSubFormat reads the fmt chunk of a WAVE_FORMAT_EXTENSIBLE file
// and returns the format tag its SubFormat GUID stands for
func extensibleSubFormat(data []byte) (uint16, error) {
	const op = "transcode.extensibleSubFormat"

	parser := riff.New(bytes.NewReader(data))
	if err := parser.ParseHeaders(); err != nil {
		return 0, audioerr.Wrap(audioerr.KindDecode, op, err, "invalid RIFF header")
	}

	for {
		chunk, err := parser.NextChunk()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, audioerr.New(audioerr.KindDecode, op, "no fmt chunk")
		}
		if err != nil {
			return 0, audioerr.Wrap(audioerr.KindDecode, op, err, "could not read chunk")
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}

		var format extensibleFormat
		if chunk.Size < binary.Size(format) {
			return 0, audioerr.New(audioerr.KindDecode, op,
				"fmt chunk is %d bytes, WAVE_FORMAT_EXTENSIBLE needs %d", chunk.Size, binary.Size(format))
		}
		if err := chunk.ReadLE(&format); err != nil {
			return 0, audioerr.Wrap(audioerr.KindDecode, op, err, "could not read fmt chunk")
		}

		if [14]byte(format.SubFormat[2:]) != ksDataFormatTail {
			return 0, audioerr.New(audioerr.KindUnsupportedFormat, op,
				"unknown WAV subformat % x", format.SubFormat)
		}
		return binary.LittleEndian.Uint16(format.SubFormat[:2]), nil
	}
}

// intToFloat scales integer PCM to [-1, 1].
// 8-bit WAV is unsigned with a 128 offset, wider depths are signed.
func intToFloat(data []int, bitDepth int) []float64 {
	out := make([]float64, len(data))

	if bitDepth == 8 {
		for i, v := range data {
			out[i] = float64(v-128) / 128.0
		}
		return out
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float64(v) * scale
	}
	return out
}
