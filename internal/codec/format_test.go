package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"take.wav", FormatWAV},
		{"take.flac", FormatFLAC},
		{"take.ogg", FormatOgg},
		{"take.mp3", FormatMP3},
		{"/tmp/sessions/take.mp3", FormatMP3},
		{"take.backup.flac", FormatFLAC},
		{"take.flac.bak", FormatUnknown},
		{"take.aiff", FormatUnknown},
		{"take.WAV", FormatUnknown},
		{"take", FormatUnknown},
		{"", FormatUnknown},
		{".wav", FormatWAV},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFormat(tt.path))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("flac")
	require.NoError(t, err)
	assert.Equal(t, FormatFLAC, f)

	f, err = ParseFormat(".mp3")
	require.NoError(t, err)
	assert.Equal(t, FormatMP3, f)

	_, err = ParseFormat("aac")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestFormatExtension(t *testing.T) {
	for _, f := range SupportedFormats() {
		assert.Equal(t, f, ResolveFormat("x"+f.Extension()), "round trip for %s", f)
	}
	assert.Empty(t, FormatUnknown.Extension())
	assert.Equal(t, "unknown", FormatUnknown.String())
}
