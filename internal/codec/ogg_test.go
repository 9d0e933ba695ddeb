package codec

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/voicecapture/internal/ffmpeg"
	"github.com/jfreymuth/oggvorbis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_Ogg(t *testing.T) {
	path := ffmpeg.ResolvePath("")
	if path == "" {
		t.Skip("ffmpeg not available")
	}

	out := filepath.Join(t.TempDir(), "take.ogg")
	err := NewEncoder(WithFFmpeg(path)).Save(out, PCM{SampleRate: 44100, Channels: 2, Samples: ramp(2 * 44100)})
	if err != nil {
		// Builds without libvorbis cannot produce Ogg output.
		t.Skipf("ffmpeg cannot encode vorbis: %v", err)
	}

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	r, err := oggvorbis.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, 44100, r.SampleRate())
	assert.Equal(t, 2, r.Channels())
}

func TestSave_OggMissingFFmpeg(t *testing.T) {
	dir := t.TempDir()

	err := NewEncoder(WithFFmpeg("/nonexistent/ffmpeg")).Save(filepath.Join(dir, "take.ogg"), PCM{SampleRate: 44100, Channels: 1, Samples: ramp(10)})
	assert.ErrorIs(t, err, ErrEncoderInit)
	assert.Empty(t, dirEntries(t, dir))
}

func TestSave_OggFFmpegExitsEarly(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	dir := t.TempDir()

	// Far more than a pipe buffer, so the write fails once the process is gone.
	pcm := PCM{SampleRate: 44100, Channels: 2, Samples: ramp(2 << 20)}
	err = NewEncoder(WithFFmpeg(bin)).Save(filepath.Join(dir, "take.ogg"), pcm)
	assert.ErrorIs(t, err, ErrEncode)
	assert.Contains(t, err.Error(), "write to ffmpeg")
	assert.Empty(t, dirEntries(t, dir))
}
