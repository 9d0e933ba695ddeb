package lame

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/voicecapture/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frameCounts = []int{0, 1, 1152, 44100}

// tone returns frames of a 440 Hz sine, interleaved across channels.
func tone(frames, channels, rate int) []int16 {
	s := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for ch := 0; ch < channels; ch++ {
			s[i*channels+ch] = v
		}
	}
	return s
}

func TestEncodeAndFlushFitBuffer(t *testing.T) {
	const rate = 44100

	for _, channels := range []int{1, 2} {
		for _, frames := range frameCounts {
			t.Run(fmt.Sprintf("%dch_%dframes", channels, frames), func(t *testing.T) {
				enc, err := New(rate, channels)
				require.NoError(t, err)
				defer enc.Close()

				samples := tone(frames, channels, rate)
				left, right := samples, []int16(nil)
				if channels == 2 {
					left, right = codec.Deinterleave(samples)
				}

				buf := make([]byte, codec.MP3BufferSize(frames))
				n, err := enc.Encode(left, right, buf)
				require.NoError(t, err)
				flushed, err := enc.Flush(buf[n:])
				require.NoError(t, err)

				assert.LessOrEqual(t, n+flushed, codec.MP3BufferSize(frames))
				if frames > 0 {
					assert.Positive(t, n+flushed)
				}
			})
		}
	}
}

func TestSaveThroughEncoder(t *testing.T) {
	const rate = 44100
	dir := t.TempDir()

	for _, channels := range []int{1, 2} {
		for _, frames := range frameCounts {
			path := filepath.Join(dir, fmt.Sprintf("take-%d-%d.mp3", channels, frames))
			pcm := codec.PCM{SampleRate: rate, Channels: channels, Samples: tone(frames, channels, rate)}

			err := codec.NewEncoder(codec.WithLossyEncoder(Factory)).Save(path, pcm)
			require.NoError(t, err, "channels=%d frames=%d", channels, frames)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.LessOrEqual(t, info.Size(), int64(codec.MP3BufferSize(frames)))
			if frames > 0 {
				assert.Positive(t, info.Size(), "channels=%d frames=%d", channels, frames)
			}
		}
	}
}

func TestNew_RejectsChannelCount(t *testing.T) {
	for _, channels := range []int{0, 3} {
		_, err := New(44100, channels)
		assert.Error(t, err, "channels=%d", channels)
	}
}

func TestEncode_StereoLengthMismatch(t *testing.T) {
	enc, err := New(44100, 2)
	require.NoError(t, err)
	defer enc.Close()

	_, err = enc.Encode(make([]int16, 10), make([]int16, 9), make([]byte, codec.MP3BufferSize(10)))
	assert.ErrorContains(t, err, "channel length mismatch")
}

func TestClose_Idempotent(t *testing.T) {
	enc, err := New(22050, 1)
	require.NoError(t, err)

	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())

	_, err = enc.Encode(make([]int16, 4), nil, make([]byte, codec.MP3BufferSize(4)))
	assert.ErrorIs(t, err, errClosed)
	_, err = enc.Flush(make([]byte, 7200))
	assert.ErrorIs(t, err, errClosed)
}
