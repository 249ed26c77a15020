package transcode

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is a normalised container name such as "wav" or "flac"
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
)

// formatAliases maps file extensions onto the container they name
var formatAliases = map[string]Format{
	"wav":  FormatWAV,
	"wave": FormatWAV,
	"flac": FormatFLAC,
	"ogg":  FormatOGG,
	"oga":  FormatOGG,
	"opus": FormatOGG,
	"mp3":  FormatMP3,
	"mpeg": FormatMP3,
	"mp2":  FormatMP3,
	"m4a":  FormatM4A,
	"mp4":  FormatM4A,
	"aac":  FormatM4A,
}

// ParseFormat normalises a format or extension name, with or without a leading dot
func ParseFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	f, ok := formatAliases[name]
	return f, ok
}

// FormatFromFilename returns the container implied by the file extension.
// The second result is false when the name has no extension or an unknown one.
func FormatFromFilename(name string) (Format, bool) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", false
	}
	return ParseFormat(ext)
}

// hasExtension reports whether name carries any extension at all
func hasExtension(name string) bool {
	return filepath.Ext(name) != ""
}

// DetectFormat sniffs the container from its magic bytes
func DetectFormat(data []byte) (Format, bool) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV, true
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return FormatFLAC, true
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return FormatOGG, true
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3, true
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatM4A, true
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0:
		// MPEG audio frame sync with a non-reserved layer
		return FormatMP3, true
	}
	return "", false
}
