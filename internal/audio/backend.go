package audio

// Device describes an input-capable audio device.
type Device struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	Default           bool    `json:"default"`
}

// Backend defines the interface for audio device subsystems
type Backend interface {
	// Initialize and release the device subsystem
	Initialize() error
	Terminate() error

	// Open an input stream for the given configuration. The stream is not
	// started.
	OpenStream(cfg CaptureConfig) (Stream, error)

	// List input devices
	ListDevices() ([]Device, error)

	// Validate that a named input device exists. Empty means the default.
	ValidateDevice(name string) error
}

// Stream is a blocking interleaved int16 input stream.
type Stream interface {
	Start() error

	// Read fills block with exactly len(block)/channels frames. It returns
	// ErrNoData when no complete block is available yet and
	// ErrInputOverflow when the block is valid but input was lost.
	Read(block []int16) error

	Stop() error
	Close() error
}
