// Package device implements the audio backend on PortAudio.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiolibrelab/voicecapture/internal/audio"
	"github.com/gordonklaus/portaudio"
)

// pollInterval is how long Read waits before reporting that no complete
// block is available.
const pollInterval = 5 * time.Millisecond

// PortAudio implements audio.Backend
type PortAudio struct{}

// NewPortAudio creates a PortAudio backend. Initialize must be called before use.
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Initialize initializes the PortAudio library
func (p *PortAudio) Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}
	slog.Debug("PortAudio initialized", "version", portaudio.VersionText())
	return nil
}

// Terminate releases the PortAudio library
func (p *PortAudio) Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}
	return nil
}

// OpenStream opens a blocking int16 input stream on the configured device,
// or on the default input device when none is named.
func (p *PortAudio) OpenStream(cfg audio.CaptureConfig) (audio.Stream, error) {
	dev, err := p.inputDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if dev.MaxInputChannels < cfg.Channels {
		return nil, fmt.Errorf("device %q supports %d input channels, %d requested", dev.Name, dev.MaxInputChannels, cfg.Channels)
	}

	buf := make([]int16, cfg.FramesPerBlock*cfg.Channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: cfg.Channels,
			Latency:  dev.DefaultHighInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBlock,
		Flags:           portaudio.ClipOff,
	}

	s, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", dev.Name, err)
	}

	slog.Debug("PortAudio stream opened", "device", dev.Name, "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	return &stream{pa: s, buf: buf, frames: cfg.FramesPerBlock}, nil
}

func (p *PortAudio) inputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return selectDevice(name, devices)
}

// ListDevices returns all input-capable devices
func (p *PortAudio) ListDevices() ([]audio.Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}
	return inputDevices(devices, defaultName), nil
}

// ValidateDevice checks that a named input device exists exactly once
func (p *PortAudio) ValidateDevice(name string) error {
	if name == "" {
		return nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	_, err = selectDevice(name, devices)
	return err
}

// selectDevice finds the input device called name. A name shared by several
// input devices is rejected, since the choice between them would be arbitrary.
func selectDevice(name string, devices []*portaudio.DeviceInfo) (*portaudio.DeviceInfo, error) {
	var matches []*portaudio.DeviceInfo
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("input device not found: %s", name)
	case 1:
		return matches[0], nil
	default:
		apis := make([]string, len(matches))
		for i, d := range matches {
			apis[i] = hostAPIName(d)
		}
		return nil, fmt.Errorf("duplicate input devices named '%s' on host APIs %v", name, apis)
	}
}

func inputDevices(devices []*portaudio.DeviceInfo, defaultName string) []audio.Device {
	var out []audio.Device
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, audio.Device{
			Name:              d.Name,
			HostAPI:           hostAPIName(d),
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		})
	}
	return out
}

func hostAPIName(d *portaudio.DeviceInfo) string {
	if d.HostApi == nil {
		return ""
	}
	return d.HostApi.Name
}

// stream adapts a blocking PortAudio stream to audio.Stream
type stream struct {
	pa     *portaudio.Stream
	buf    []int16
	frames int
}

func (s *stream) Start() error {
	return s.pa.Start()
}

// Read polls for a complete block so the caller never blocks for longer
// than one block or pollInterval.
func (s *stream) Read(block []int16) error {
	if len(block) != len(s.buf) {
		return fmt.Errorf("block holds %d samples, stream delivers %d", len(block), len(s.buf))
	}

	available, err := s.pa.AvailableToRead()
	if err != nil {
		return err
	}
	if available < s.frames {
		time.Sleep(pollInterval)
		return audio.ErrNoData
	}

	err = s.pa.Read()
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return err
	}
	copy(block, s.buf)
	if err != nil {
		return audio.ErrInputOverflow
	}
	return nil
}

func (s *stream) Stop() error {
	return s.pa.Stop()
}

func (s *stream) Close() error {
	return s.pa.Close()
}
