package codec

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/audiolibrelab/voicecapture/internal/ffmpeg"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	bitDepth = 16

	// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
	wavFormatPCM = 1

	// flacBlockFrames is the number of frames per FLAC frame.
	flacBlockFrames = 4096

	// flacMinBlockFrames is the smallest block size STREAMINFO allows.
	flacMinBlockFrames = 16

	// flacMaxChannels is the channel limit of the FLAC frame header.
	flacMaxChannels = 8
)

// pcmWriter is the writer shared by the uncompressed and container formats.
// WriteFrames takes interleaved samples holding whole frames and returns the
// number of frames written.
type pcmWriter interface {
	WriteFrames(samples []int16) (int, error)
	Close() error
}

// openPCMWriter opens the writer for format on f. The writer owns f.
func (e *Encoder) openPCMWriter(format Format, f *os.File, pcm PCM) (pcmWriter, error) {
	switch format {
	case FormatWAV:
		return newWAVWriter(f, pcm), nil
	case FormatFLAC:
		return newFLACWriter(f, pcm)
	case FormatOgg:
		return newOggWriter(e.ffmpegPath, f, pcm)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a PCM container", ErrUnsupportedFormat, format)
	}
}

// closeFile closes f, tolerating writers that already closed it.
func closeFile(f *os.File) error {
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

type wavWriter struct {
	f        *os.File
	enc      *wav.Encoder
	format   *audio.Format
	wroteAny bool
}

func newWAVWriter(f *os.File, pcm PCM) *wavWriter {
	return &wavWriter{
		f:   f,
		enc: wav.NewEncoder(f, pcm.SampleRate, bitDepth, pcm.Channels, wavFormatPCM),
		format: &audio.Format{
			NumChannels: pcm.Channels,
			SampleRate:  pcm.SampleRate,
		},
	}
}

func (w *wavWriter) WriteFrames(samples []int16) (int, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         w.format,
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	w.wroteAny = true
	if err := w.enc.Write(buf); err != nil {
		return 0, err
	}
	return buf.NumFrames(), nil
}

func (w *wavWriter) Close() error {
	if !w.wroteAny {
		// The encoder emits its header on the first write.
		if _, err := w.WriteFrames(nil); err != nil {
			return errors.Join(err, closeFile(w.f))
		}
	}
	return errors.Join(w.enc.Close(), closeFile(w.f))
}

type flacWriter struct {
	f        *os.File
	enc      *flac.Encoder
	rate     int
	channels int
	blocks   []int
	written  uint64
}

// streamOnly hides the Seek method of the file so the encoder keeps the
// STREAMINFO block written up front instead of rewriting it on Close.
type streamOnly struct {
	io.Writer
}

// flacBlockSizes splits frames into block sizes of flacBlockFrames. A
// remainder shorter than flacMinBlockFrames is merged into the block before
// it, so only a stream shorter than that has a block under the minimum.
func flacBlockSizes(frames int) []int {
	var sizes []int
	for rest := frames; rest > 0; rest -= flacBlockFrames {
		sizes = append(sizes, min(flacBlockFrames, rest))
	}
	if n := len(sizes); n > 1 && sizes[n-1] < flacMinBlockFrames {
		sizes[n-2] += sizes[n-1]
		sizes = sizes[:n-1]
	}
	return sizes
}

func newFLACWriter(f *os.File, pcm PCM) (*flacWriter, error) {
	if pcm.Channels > flacMaxChannels {
		f.Close()
		return nil, fmt.Errorf("%w: flac supports at most %d channels, got %d", ErrEncoderInit, flacMaxChannels, pcm.Channels)
	}

	blocks := flacBlockSizes(pcm.Frames())
	largest := flacMinBlockFrames
	for _, n := range blocks {
		largest = max(largest, n)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  flacMinBlockFrames,
		BlockSizeMax:  uint16(largest),
		SampleRate:    uint32(pcm.SampleRate),
		NChannels:     uint8(pcm.Channels),
		BitsPerSample: bitDepth,
		NSamples:      uint64(pcm.Frames()),
		MD5sum:        pcmMD5(pcm.whole()),
	}
	enc, err := flac.NewEncoder(streamOnly{f}, info)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: flac: %w", ErrEncoderInit, err)
	}

	return &flacWriter{
		f:        f,
		enc:      enc,
		rate:     pcm.SampleRate,
		channels: pcm.Channels,
		blocks:   blocks,
	}, nil
}

// pcmMD5 is the STREAMINFO checksum of 16-bit samples: MD5 over the
// interleaved little-endian sample bytes.
func pcmMD5(samples []int16) [md5.Size]uint8 {
	h := md5.New()
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	h.Write(buf)

	var sum [md5.Size]uint8
	copy(sum[:], h.Sum(nil))
	return sum
}

// WriteFrames writes the buffer as verbatim FLAC frames sized by
// flacBlockSizes. It must be given the whole recording in one call.
func (w *flacWriter) WriteFrames(samples []int16) (int, error) {
	total := len(samples) / w.channels
	start := 0
	for _, n := range w.blocks {
		if start+n > total {
			return int(w.written), fmt.Errorf("flac: %d frames given, %d expected", total, start+n)
		}

		subframes := make([]*frame.Subframe, w.channels)
		for ch := range subframes {
			sub := &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   make([]int32, n),
				NSamples:  n,
			}
			for i := 0; i < n; i++ {
				sub.Samples[i] = int32(samples[(start+i)*w.channels+ch])
			}
			subframes[ch] = sub
		}

		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: false,
				BlockSize:         uint16(n),
				SampleRate:        uint32(w.rate),
				Channels:          frame.Channels(w.channels - 1),
				BitsPerSample:     bitDepth,
				Num:               w.written,
			},
			Subframes: subframes,
		}
		if err := w.enc.WriteFrame(fr); err != nil {
			return int(w.written), err
		}
		w.written += uint64(n)
		start += n
	}
	w.blocks = nil
	return int(w.written), nil
}

func (w *flacWriter) Close() error {
	return errors.Join(w.enc.Close(), closeFile(w.f))
}

// oggWriter pipes PCM into FFmpeg, which encodes Ogg Vorbis. FFmpeg writes
// the file by name, so the handle passed in is only used for its path.
type oggWriter struct {
	proc     *ffmpeg.Process
	channels int
	killed   bool
}

func newOggWriter(ffmpegPath string, f *os.File, pcm PCM) (*oggWriter, error) {
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileOpen, path, err)
	}

	args := ffmpeg.InputArgs(pcm.SampleRate, pcm.Channels)
	args = append(args, "-codec:a", "libvorbis", "-q:a", "5", "-f", "ogg", "-y", path)

	proc, err := ffmpeg.StartProcess(context.Background(), ffmpegPath, args)
	if err != nil {
		return nil, fmt.Errorf("%w: ogg: %w", ErrEncoderInit, err)
	}
	return &oggWriter{proc: proc, channels: pcm.Channels}, nil
}

// WriteFrames feeds the samples to FFmpeg. A failed write kills FFmpeg so a
// half-written file is never finalized.
func (w *oggWriter) WriteFrames(samples []int16) (int, error) {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.proc.Stdin.Write(buf); err != nil {
		w.proc.Kill()
		w.killed = true
		if msg := ffmpeg.LastError(w.proc.Stderr.String()); msg != "" {
			return 0, fmt.Errorf("write to ffmpeg: %w: %s", err, msg)
		}
		return 0, fmt.Errorf("write to ffmpeg: %w", err)
	}
	return len(samples) / w.channels, nil
}

func (w *oggWriter) Close() error {
	if w.killed {
		return nil
	}
	return w.proc.Wait()
}
