package audio

import (
	"errors"
	"fmt"
	"time"
)

// State represents the current state of the recorder
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
)

// Default capture settings.
const (
	DefaultSampleRate     = 44100
	DefaultChannels       = 1
	DefaultFramesPerBlock = 512
)

// Sentinel errors for stream control.
var (
	ErrDeviceInit    = errors.New("failed to initialize audio device subsystem")
	ErrStreamOpen    = errors.New("failed to open input stream")
	ErrStreamStart   = errors.New("failed to start input stream")
	ErrStreamStop    = errors.New("failed to stop input stream")
	ErrStreamClose   = errors.New("failed to close input stream")
	ErrStreamRead    = errors.New("failed to read from input stream")
	ErrInvalidState  = errors.New("invalid recorder state")
	ErrInvalidConfig = errors.New("invalid capture config")
	ErrClosed        = errors.New("recorder is closed")

	// ErrNoData is returned by Stream.Read when no complete block arrived
	// within the stream's poll interval. The block is left untouched.
	ErrNoData = errors.New("no input available")

	// ErrInputOverflow is returned by Stream.Read when input was dropped
	// before the read. The block is still filled and valid.
	ErrInputOverflow = errors.New("input overflowed")
)

// CaptureConfig describes the input stream. It is fixed for the lifetime of
// a Recorder.
type CaptureConfig struct {
	SampleRate     int
	Channels       int
	FramesPerBlock int

	// Device is the input device name. Empty selects the default input.
	Device string
}

// DefaultCaptureConfig returns 44.1 kHz mono capture in 512-frame blocks.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:     DefaultSampleRate,
		Channels:       DefaultChannels,
		FramesPerBlock: DefaultFramesPerBlock,
	}
}

// Validate checks that all stream parameters are positive.
func (c CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidConfig, c.Channels)
	}
	if c.FramesPerBlock <= 0 {
		return fmt.Errorf("%w: frames per block must be positive, got %d", ErrInvalidConfig, c.FramesPerBlock)
	}
	return nil
}

// SessionInfo describes the current or last recording session
type SessionInfo struct {
	ID        string        `json:"id"`
	StartTime time.Time     `json:"start_time"`
	StopTime  time.Time     `json:"stop_time,omitempty"`
	Frames    int           `json:"frames"`
	Blocks    int           `json:"blocks"`
	Overflows int           `json:"overflows"`
	Duration  time.Duration `json:"duration"`
}
