package codec

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the container/codec a recording is written as.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatFLAC
	FormatOgg
	FormatMP3
)

// extensions maps file extensions to formats. Matching is exact and
// case-sensitive: "take.WAV" resolves to FormatUnknown.
var extensions = map[string]Format{
	".wav":  FormatWAV,
	".flac": FormatFLAC,
	".ogg":  FormatOgg,
	".mp3":  FormatMP3,
}

// ResolveFormat picks the output format from the final extension of path.
func ResolveFormat(path string) Format {
	if f, ok := extensions[filepath.Ext(path)]; ok {
		return f
	}
	return FormatUnknown
}

// ParseFormat parses a format name as used in configuration ("wav", "flac", "ogg", "mp3").
func ParseFormat(name string) (Format, error) {
	f := ResolveFormat("." + strings.TrimPrefix(name, "."))
	if f == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	for ext, format := range extensions {
		if format == f {
			return ext
		}
	}
	return ""
}

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatFLAC:
		return "flac"
	case FormatOgg:
		return "ogg"
	case FormatMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// SupportedFormats lists the writable formats in a stable order.
func SupportedFormats() []Format {
	return []Format{FormatWAV, FormatFLAC, FormatOgg, FormatMP3}
}

// MaxChannels returns the most channels format can hold, or 0 when the
// format itself sets no limit.
func MaxChannels(f Format) int {
	switch f {
	case FormatMP3:
		return mp3MaxChannels
	case FormatFLAC:
		return flacMaxChannels
	default:
		return 0
	}
}
