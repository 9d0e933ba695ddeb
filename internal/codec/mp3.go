package codec

import (
	"fmt"
	"io"
)

// LossyEncoder is an MP3 encoder context.
//
// Encode consumes one call's worth of per-channel samples (right is nil for
// mono) and writes at most len(out) bytes, returning the number written.
// Flush drains buffered output into out. Close releases the context.
type LossyEncoder interface {
	Encode(left, right []int16, out []byte) (int, error)
	Flush(out []byte) (int, error)
	Close() error
}

// LossyFactory creates an encoder context for the given stream layout,
// configured for variable bit rate.
type LossyFactory func(sampleRate, channels int) (LossyEncoder, error)

// mp3MaxChannels is the channel limit of the MP3 pipeline.
const mp3MaxChannels = 2

// MP3BufferSize returns the worst-case output size for encoding frames
// frames in a single call: ceil(1.25*frames) + 7200 bytes.
func MP3BufferSize(frames int) int {
	if frames < 0 {
		frames = 0
	}
	return (5*frames+3)/4 + 7200
}

// Deinterleave splits stereo samples into left (even indices) and right
// (odd indices). A trailing unpaired sample is dropped.
func Deinterleave(samples []int16) (left, right []int16) {
	frames := len(samples) / 2
	left = make([]int16, frames)
	right = make([]int16, frames)
	for i := 0; i < frames; i++ {
		left[i] = samples[2*i]
		right[i] = samples[2*i+1]
	}
	return left, right
}

// encodeMP3 runs the whole buffer through one encode call and a flush, and
// returns the concatenated output. The encoder context is always released.
func (e *Encoder) encodeMP3(pcm PCM) (out []byte, err error) {
	if pcm.Channels > mp3MaxChannels {
		return nil, fmt.Errorf("%w: mp3 supports at most %d channels, got %d", ErrEncode, mp3MaxChannels, pcm.Channels)
	}
	if e.newLossy == nil {
		return nil, fmt.Errorf("%w: no mp3 encoder available", ErrEncoderInit)
	}

	enc, err := e.newLossy(pcm.SampleRate, pcm.Channels)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", ErrEncoderInit, err)
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: releasing mp3 encoder: %w", ErrEncode, cerr)
		}
	}()

	frames := pcm.Frames()
	buf := make([]byte, MP3BufferSize(frames))

	var left, right []int16
	if pcm.Channels == 2 {
		left, right = Deinterleave(pcm.whole())
	} else {
		left = pcm.whole()
	}

	n, err := enc.Encode(left, right, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", ErrEncode, err)
	}
	if n < 0 || n > len(buf) {
		return nil, fmt.Errorf("%w: mp3: encoder returned %d bytes for a %d byte buffer", ErrEncode, n, len(buf))
	}

	flushed, err := enc.Flush(buf[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", ErrFlush, err)
	}
	if flushed < 0 || flushed > len(buf)-n {
		return nil, fmt.Errorf("%w: mp3: flush returned %d bytes for %d remaining", ErrFlush, flushed, len(buf)-n)
	}

	return buf[:n+flushed], nil
}

// writeMP3 encodes pcm and writes the result to w as one sequential stream.
func (e *Encoder) writeMP3(w io.Writer, pcm PCM) error {
	data, err := e.encodeMP3(pcm)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: mp3: %w", ErrEncode, err)
	}
	return nil
}
