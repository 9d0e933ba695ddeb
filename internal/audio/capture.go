package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/voicecapture/internal/codec"
	"github.com/google/uuid"
)

// captureResult is what the capture goroutine hands back when it is joined.
type captureResult struct {
	samples   []int16
	blocks    int
	overflows int
	err       error
}

// Recorder captures from one input stream into memory and saves the result.
//
// Start and Stop are driven by one controlling goroutine. While recording,
// a single capture goroutine owns the sample buffer; Stop joins it and takes
// the buffer back.
type Recorder struct {
	cfg     CaptureConfig
	backend Backend
	encoder *codec.Encoder

	mutex   sync.RWMutex
	state   State
	closed  bool
	stream  Stream
	session *SessionInfo
	samples []int16
	done    chan captureResult

	recording atomic.Bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithEncoder sets the encoder used by Save.
func WithEncoder(e *codec.Encoder) Option {
	return func(r *Recorder) {
		r.encoder = e
	}
}

// NewRecorder validates cfg and initializes the backend's device subsystem.
func NewRecorder(cfg CaptureConfig, backend Backend, opts ...Option) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Recorder{
		cfg:     cfg,
		backend: backend,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.encoder == nil {
		r.encoder = codec.NewEncoder()
	}

	if err := backend.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}

	return r, nil
}

// Config returns the capture configuration.
func (r *Recorder) Config() CaptureConfig {
	return r.cfg
}

// Start opens and starts the input stream and begins capturing. It does
// nothing when already recording.
func (r *Recorder) Start() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.state == StateRecording {
		return nil
	}

	r.samples = nil

	stream, err := r.backend.OpenStream(r.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamOpen, err)
	}
	if err := stream.Start(); err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			slog.Warn("failed to close unstarted stream", "error", closeErr)
		}
		return fmt.Errorf("%w: %w", ErrStreamStart, err)
	}

	r.stream = stream
	r.session = &SessionInfo{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
	}
	r.done = make(chan captureResult, 1)
	r.recording.Store(true)
	r.state = StateRecording

	go r.capture(stream, r.done)

	slog.Info("recording started",
		"session", r.session.ID,
		"sample_rate", r.cfg.SampleRate,
		"channels", r.cfg.Channels,
		"frames_per_block", r.cfg.FramesPerBlock)
	return nil
}

// capture reads fixed-size blocks until the recording flag is cleared or a
// read fails, then hands its buffer back on done.
func (r *Recorder) capture(stream Stream, done chan<- captureResult) {
	var res captureResult
	defer func() { done <- res }()

	// append copies, so one block serves every read.
	block := make([]int16, r.cfg.FramesPerBlock*r.cfg.Channels)
	for r.recording.Load() {
		err := stream.Read(block)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoData):
			continue
		case errors.Is(err, ErrInputOverflow):
			res.overflows++
			slog.Warn("input overflow, samples were dropped", "block", res.blocks)
		default:
			res.err = fmt.Errorf("%w: %w", ErrStreamRead, err)
			slog.Error("capture stopped", "error", err)
			return
		}

		res.samples = append(res.samples, block...)
		res.blocks++
	}
}

// Stop ends the session: it joins the capture goroutine, then stops and
// closes the stream. The recorder is idle afterwards even when an error is
// returned.
func (r *Recorder) Stop() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.state != StateRecording {
		return fmt.Errorf("%w: no recording in progress", ErrInvalidState)
	}
	return r.stopLocked()
}

func (r *Recorder) stopLocked() error {
	r.recording.Store(false)
	res := <-r.done
	r.done = nil
	r.samples = res.samples

	var errs []error
	if res.err != nil {
		errs = append(errs, res.err)
	}
	if err := r.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrStreamStop, err))
	}
	if err := r.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrStreamClose, err))
	}
	r.stream = nil
	r.state = StateIdle

	frames := len(r.samples) / r.cfg.Channels
	r.session.StopTime = time.Now()
	r.session.Frames = frames
	r.session.Blocks = res.blocks
	r.session.Overflows = res.overflows
	r.session.Duration = time.Duration(frames) * time.Second / time.Duration(r.cfg.SampleRate)

	slog.Info("recording stopped",
		"session", r.session.ID,
		"frames", frames,
		"blocks", res.blocks,
		"duration", r.session.Duration)
	if res.overflows > 0 {
		slog.Warn("recording had input overflows", "session", r.session.ID, "overflows", res.overflows)
	}

	return errors.Join(errs...)
}

// Save writes the captured samples to path; the extension selects the
// format. It fails with ErrInvalidState while recording.
func (r *Recorder) Save(path string) error {
	r.mutex.RLock()
	if r.state == StateRecording {
		r.mutex.RUnlock()
		return fmt.Errorf("%w: cannot save while recording", ErrInvalidState)
	}
	pcm := codec.PCM{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
		Samples:    r.samples,
	}
	r.mutex.RUnlock()

	if err := r.encoder.Save(path, pcm); err != nil {
		return err
	}

	slog.Info("recording saved", "path", path, "frames", pcm.Frames())
	return nil
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.state
}

// Samples returns a copy of the last session's samples. It is empty while
// recording.
func (r *Recorder) Samples() []int16 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.state == StateRecording {
		return nil
	}
	out := make([]int16, len(r.samples))
	copy(out, r.samples)
	return out
}

// Session returns the current or last session, or nil before the first Start.
func (r *Recorder) Session() *SessionInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.session == nil {
		return nil
	}
	s := *r.session
	return &s
}

// Close stops an active recording and releases the device subsystem.
func (r *Recorder) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.closed = true

	if r.state == StateRecording {
		if err := r.stopLocked(); err != nil {
			slog.Error("failed to stop recording on close", "error", err)
		}
	}

	if err := r.backend.Terminate(); err != nil {
		return fmt.Errorf("terminate audio backend: %w", err)
	}
	slog.Debug("recorder closed")
	return nil
}
