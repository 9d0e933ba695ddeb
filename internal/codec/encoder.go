// Package codec writes captured 16-bit PCM to audio files.
//
// The output format is chosen from the target file extension. WAV, FLAC and
// Ogg share one PCM writer abstraction; MP3 goes through a separate lossy
// pipeline that deinterleaves channels and drains the encoder with a flush.
package codec

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Sentinel errors for encoding operations.
var (
	// ErrUnsupportedFormat is returned for paths whose extension maps to no format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileOpen is returned when the target cannot be opened for writing.
	ErrFileOpen = errors.New("failed to open file for writing")

	// ErrEncoderInit is returned when a codec context cannot be created or configured.
	ErrEncoderInit = errors.New("failed to initialize encoder")

	// ErrEncode is returned when encoding or writing samples fails.
	ErrEncode = errors.New("failed to encode audio")

	// ErrFlush is returned when draining the lossy encoder fails.
	ErrFlush = errors.New("failed to flush encoder")
)

// PCM is an interleaved block of 16-bit samples with its stream layout.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of whole frames in the buffer. A trailing
// partial frame is not counted.
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// whole returns the samples truncated to a whole number of frames.
func (p PCM) whole() []int16 {
	return p.Samples[:p.Frames()*p.Channels]
}

func (p PCM) validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrEncode, p.SampleRate)
	}
	if p.Channels <= 0 {
		return fmt.Errorf("%w: invalid channel count %d", ErrEncode, p.Channels)
	}
	return nil
}

// Encoder saves PCM buffers to files.
type Encoder struct {
	ffmpegPath string
	newLossy   LossyFactory
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithFFmpeg sets the ffmpeg binary used for Ogg Vorbis output.
func WithFFmpeg(path string) Option {
	return func(e *Encoder) {
		e.ffmpegPath = path
	}
}

// WithLossyEncoder sets the factory for the MP3 encoder context.
func WithLossyEncoder(f LossyFactory) Option {
	return func(e *Encoder) {
		e.newLossy = f
	}
}

// NewEncoder creates an Encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{ffmpegPath: "ffmpeg"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Save writes pcm to path in the format selected by its extension.
//
// The file is written to a temporary name in the same directory and renamed
// into place only when encoding succeeded, so a failed save leaves nothing
// at path and an existing file there untouched.
func (e *Encoder) Save(path string, pcm PCM) error {
	format := ResolveFormat(path)
	if format == FormatUnknown {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err := pcm.validate(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileOpen, path, err)
	}
	tmpPath := tmp.Name()

	if err := e.encode(format, tmp, pcm); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("failed to remove partial recording", "path", tmpPath, "error", rmErr)
		}
		return err
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		slog.Debug("failed to set recording permissions", "path", tmpPath, "error", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %w", ErrFileOpen, path, err)
	}

	slog.Debug("recording saved", "path", path, "format", format, "frames", pcm.Frames())
	return nil
}

// encode dispatches to the pipeline for format. It owns f and closes it.
func (e *Encoder) encode(format Format, f *os.File, pcm PCM) error {
	switch format {
	case FormatWAV, FormatFLAC, FormatOgg:
		return e.writePCM(format, f, pcm)
	case FormatMP3:
		err := e.writeMP3(f, pcm)
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: mp3: %w", ErrEncode, cerr)
		}
		return err
	default:
		f.Close()
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// writePCM writes the whole buffer through the format's PCM writer in one call.
func (e *Encoder) writePCM(format Format, f *os.File, pcm PCM) (err error) {
	w, err := e.openPCMWriter(format, f, pcm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing %s writer: %w", ErrEncode, format, cerr)
		}
	}()

	want := pcm.Frames()
	n, err := w.WriteFrames(pcm.whole())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, format, err)
	}
	if n != want {
		return fmt.Errorf("%w: %s: wrote %d of %d frames", ErrEncode, format, n, want)
	}
	return nil
}
