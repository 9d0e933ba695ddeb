// Package lame binds the libmp3lame buffer encoding API.
package lame

/*
#cgo LDFLAGS: -lmp3lame
#include <stdlib.h>
#include <lame/lame.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/audiolibrelab/voicecapture/internal/codec"
)

var errClosed = errors.New("lame: encoder closed")

// Encoder is a LAME encoder context.
type Encoder struct {
	gfp      C.lame_t
	channels int
}

// New creates an encoder for 16-bit input at sampleRate with the given
// channel count, using LAME's default variable bit rate mode.
func New(sampleRate, channels int) (*Encoder, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("lame: unsupported channel count %d", channels)
	}

	gfp := C.lame_init()
	if gfp == nil {
		return nil, errors.New("lame: lame_init failed")
	}

	C.lame_set_in_samplerate(gfp, C.int(sampleRate))
	C.lame_set_num_channels(gfp, C.int(channels))
	if channels == 1 {
		C.lame_set_mode(gfp, C.MONO)
	}
	C.lame_set_VBR(gfp, C.vbr_default)

	if ret := C.lame_init_params(gfp); ret < 0 {
		C.lame_close(gfp)
		return nil, fmt.Errorf("lame: lame_init_params failed with code %d", int(ret))
	}

	return &Encoder{gfp: gfp, channels: channels}, nil
}

// Factory adapts New to codec.LossyFactory.
func Factory(sampleRate, channels int) (codec.LossyEncoder, error) {
	return New(sampleRate, channels)
}

// Encode encodes len(left) frames. right must be nil for mono and the same
// length as left for stereo.
func (e *Encoder) Encode(left, right []int16, out []byte) (int, error) {
	if e.gfp == nil {
		return 0, errClosed
	}
	if e.channels == 2 && len(right) != len(left) {
		return 0, fmt.Errorf("lame: channel length mismatch: %d left, %d right", len(left), len(right))
	}

	var l, r *C.short
	if len(left) > 0 {
		l = (*C.short)(unsafe.Pointer(&left[0]))
	}
	if e.channels == 2 && len(right) > 0 {
		r = (*C.short)(unsafe.Pointer(&right[0]))
	}

	ret := C.lame_encode_buffer(e.gfp, l, r, C.int(len(left)), bytePtr(out), C.int(len(out)))
	if ret < 0 {
		return 0, encodeError(int(ret))
	}
	return int(ret), nil
}

// Flush drains the remaining buffered MP3 frames into out.
func (e *Encoder) Flush(out []byte) (int, error) {
	if e.gfp == nil {
		return 0, errClosed
	}
	ret := C.lame_encode_flush(e.gfp, bytePtr(out), C.int(len(out)))
	if ret < 0 {
		return 0, encodeError(int(ret))
	}
	return int(ret), nil
}

// Close releases the encoder context. It is safe to call more than once.
func (e *Encoder) Close() error {
	if e.gfp == nil {
		return nil
	}
	ret := C.lame_close(e.gfp)
	e.gfp = nil
	if ret != 0 {
		return fmt.Errorf("lame: lame_close failed with code %d", int(ret))
	}
	return nil
}

func bytePtr(b []byte) *C.uchar {
	if len(b) == 0 {
		return nil
	}
	return (*C.uchar)(unsafe.Pointer(&b[0]))
}

// encodeError describes the negative return codes of lame_encode_buffer.
func encodeError(code int) error {
	switch code {
	case -1:
		return errors.New("lame: output buffer too small")
	case -2:
		return errors.New("lame: malloc problem")
	case -3:
		return errors.New("lame: lame_init_params not called")
	case -4:
		return errors.New("lame: psycho acoustic problems")
	default:
		return fmt.Errorf("lame: encode failed with code %d", code)
	}
}
