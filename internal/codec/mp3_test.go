package codec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLossy records what the MP3 pipeline hands to the encoder context.
type fakeLossy struct {
	rate, channels int

	left, right []int16
	encodeCap   int
	flushCap    int
	closed      int

	encodeOut []byte
	flushOut  []byte
	encodeErr error
	flushErr  error
	encodeN   int // overrides the returned count when non-zero
}

func (f *fakeLossy) Encode(left, right []int16, out []byte) (int, error) {
	f.left = append([]int16(nil), left...)
	if right != nil {
		f.right = append([]int16(nil), right...)
	}
	f.encodeCap = len(out)
	if f.encodeErr != nil {
		return 0, f.encodeErr
	}
	if f.encodeN != 0 {
		return f.encodeN, nil
	}
	return copy(out, f.encodeOut), nil
}

func (f *fakeLossy) Flush(out []byte) (int, error) {
	f.flushCap = len(out)
	if f.flushErr != nil {
		return 0, f.flushErr
	}
	return copy(out, f.flushOut), nil
}

func (f *fakeLossy) Close() error {
	f.closed++
	return nil
}

func withFake(fake *fakeLossy) Option {
	return WithLossyEncoder(func(rate, channels int) (LossyEncoder, error) {
		fake.rate, fake.channels = rate, channels
		return fake, nil
	})
}

func TestMP3BufferSize(t *testing.T) {
	tests := []struct {
		frames int
		want   int
	}{
		{0, 7200},
		{1, 7202},
		{4, 7205},
		{1000, 8450},
		{1001, 8452},
		{-5, 7200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MP3BufferSize(tt.frames), "frames=%d", tt.frames)
	}
}

func TestDeinterleave(t *testing.T) {
	left, right := Deinterleave([]int16{1, -1, 2, -2, 3, -3})
	assert.Equal(t, []int16{1, 2, 3}, left)
	assert.Equal(t, []int16{-1, -2, -3}, right)

	left, right = Deinterleave([]int16{7, 8, 9})
	assert.Equal(t, []int16{7}, left)
	assert.Equal(t, []int16{8}, right)
}

func TestSave_MP3Stereo(t *testing.T) {
	fake := &fakeLossy{encodeOut: []byte("AAAA"), flushOut: []byte("BB")}
	path := filepath.Join(t.TempDir(), "take.mp3")

	err := NewEncoder(withFake(fake)).Save(path, PCM{SampleRate: 48000, Channels: 2, Samples: []int16{10, 20, 11, 21, 12, 22}})
	require.NoError(t, err)

	assert.Equal(t, 48000, fake.rate)
	assert.Equal(t, 2, fake.channels)
	assert.Equal(t, []int16{10, 11, 12}, fake.left)
	assert.Equal(t, []int16{20, 21, 22}, fake.right)
	assert.Equal(t, MP3BufferSize(3), fake.encodeCap)
	assert.Equal(t, MP3BufferSize(3)-4, fake.flushCap)
	assert.Equal(t, 1, fake.closed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AAAABB", string(data))
}

func TestSave_MP3Mono(t *testing.T) {
	fake := &fakeLossy{encodeOut: []byte("M")}
	path := filepath.Join(t.TempDir(), "take.mp3")

	err := NewEncoder(withFake(fake)).Save(path, PCM{SampleRate: 44100, Channels: 1, Samples: []int16{5, 6, 7}})
	require.NoError(t, err)

	assert.Equal(t, []int16{5, 6, 7}, fake.left)
	assert.Nil(t, fake.right)
	assert.Equal(t, 1, fake.closed)
}

func TestSave_MP3Errors(t *testing.T) {
	pcm := PCM{SampleRate: 44100, Channels: 2, Samples: ramp(64)}

	tests := []struct {
		name string
		fake *fakeLossy
		want error
	}{
		{"encode fails", &fakeLossy{encodeErr: errors.New("boom")}, ErrEncode},
		{"flush fails", &fakeLossy{flushErr: errors.New("boom")}, ErrFlush},
		{"encode overruns buffer", &fakeLossy{encodeN: MP3BufferSize(32) + 1}, ErrEncode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "take.mp3")

			err := NewEncoder(withFake(tt.fake)).Save(path, pcm)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 1, tt.fake.closed, "encoder context must be released")
			assert.Empty(t, dirEntries(t, dir))
		})
	}
}

func TestSave_MP3EncoderInitFails(t *testing.T) {
	dir := t.TempDir()
	factory := WithLossyEncoder(func(int, int) (LossyEncoder, error) {
		return nil, errors.New("no encoder")
	})

	err := NewEncoder(factory).Save(filepath.Join(dir, "take.mp3"), PCM{SampleRate: 44100, Channels: 1, Samples: ramp(8)})
	assert.True(t, errors.Is(err, ErrEncoderInit), "got %v", err)
	assert.Empty(t, dirEntries(t, dir))
}

func TestSave_MP3TooManyChannels(t *testing.T) {
	fake := &fakeLossy{}
	dir := t.TempDir()

	err := NewEncoder(withFake(fake)).Save(filepath.Join(dir, "take.mp3"), PCM{SampleRate: 44100, Channels: 4, Samples: ramp(16)})
	assert.True(t, errors.Is(err, ErrEncode), "got %v", err)
	assert.Zero(t, fake.channels, "encoder must not be created")
	assert.Empty(t, dirEntries(t, dir))
}
